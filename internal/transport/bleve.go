package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve"
	bquery "github.com/blevesearch/bleve/search/query"

	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
	"github.com/ricesearch/rice-facets/internal/query"
)

const (
	facetSize     = 40
	batchSize     = 500
	maxDateBucket = 1000
)

// OpenBleveIndex opens the index at path, creating it when missing.
// An empty path returns an in-memory index.
func OpenBleveIndex(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(bleve.NewIndexMapping())
	}
	idx, err := bleve.Open(path)
	if stderrors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return bleve.New(path, bleve.NewIndexMapping())
	}
	return idx, err
}

// LoadDocuments indexes JSON lines from r. Every document needs a string
// "id" field. Returns the number of documents indexed.
func LoadDocuments(idx bleve.Index, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	batch := idx.NewBatch()
	count := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var doc map[string]any
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		id, ok := doc["id"].(string)
		if !ok || id == "" {
			return count, fmt.Errorf("line %d: missing string id", line)
		}
		if err := batch.Index(id, doc); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++

		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				return count, fmt.Errorf("indexing batch: %w", err)
			}
			batch.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading documents: %w", err)
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return count, fmt.Errorf("indexing batch: %w", err)
		}
	}
	return count, nil
}

// BleveSearcher answers queries from a local bleve index.
type BleveSearcher struct {
	index bleve.Index
	log   *logger.Logger
	now   func() time.Time
}

// NewBleveSearcher creates a searcher over idx.
func NewBleveSearcher(idx bleve.Index, log *logger.Logger) *BleveSearcher {
	if log == nil {
		log = logger.Discard()
	}
	return &BleveSearcher{
		index: idx,
		log:   log.WithComponent("bleve-searcher"),
		now:   time.Now,
	}
}

// Search translates q into a bleve request and maps the response back.
func (s *BleveSearcher) Search(ctx context.Context, q *query.Query) (*query.Result, error) {
	req, err := s.request(q)
	if err != nil {
		return nil, err
	}

	sr, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.TransportError("bleve search failed", err)
	}

	res := &query.Result{
		NumFound:     int(sr.Total),
		Start:        q.Start,
		Docs:         make([]map[string]any, 0, len(sr.Hits)),
		FacetFields:  make(map[string][]query.FacetCount),
		FacetDates:   make(map[string][]query.FacetCount),
		Highlighting: make(map[string]map[string][]string),
		QTime:        int(sr.Took.Milliseconds()),
	}

	for _, hit := range sr.Hits {
		doc := make(map[string]any, len(hit.Fields)+1)
		for k, v := range hit.Fields {
			doc[k] = v
		}
		doc["id"] = hit.ID
		res.Docs = append(res.Docs, doc)
		if len(hit.Fragments) > 0 {
			res.Highlighting[hit.ID] = hit.Fragments
		}
	}

	for _, field := range q.Fields {
		fr, ok := sr.Facets[field]
		if !ok {
			continue
		}
		counts := make([]query.FacetCount, 0, len(fr.Terms))
		for _, t := range fr.Terms {
			if t.Count > 0 {
				counts = append(counts, query.FacetCount{Value: t.Term, Count: t.Count})
			}
		}
		res.FacetFields[field] = counts
	}

	for _, d := range q.Dates {
		fr, ok := sr.Facets[dateFacetName(d.Field)]
		if !ok {
			continue
		}
		counts := make([]query.FacetCount, 0, len(fr.DateRanges))
		for _, r := range fr.DateRanges {
			if r.Count > 0 {
				counts = append(counts, query.FacetCount{Value: r.Name, Count: r.Count})
			}
		}
		res.FacetDates[d.Field] = counts
	}

	s.log.WithContext(ctx).Debug("bleve search complete", "num_found", res.NumFound, "took", sr.Took)
	return res, nil
}

func dateFacetName(field string) string {
	return "facet.date." + field
}

func (s *BleveSearcher) request(q *query.Query) (*bleve.SearchRequest, error) {
	conjuncts := []bquery.Query{termsQuery(q.Q)}
	for _, f := range q.FQ {
		fq, err := s.filterQuery(f)
		if err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, fq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), q.Rows, q.Start, false)

	req.Fields = []string{"*"}
	if len(q.FL) > 0 {
		req.Fields = append([]string(nil), q.FL...)
	}

	for _, field := range q.Fields {
		req.AddFacet(field, bleve.NewFacetRequest(field, facetSize))
	}

	for _, d := range q.Dates {
		fr := bleve.NewFacetRequest(d.Field, maxDateBucket)
		if err := s.addDateBuckets(fr, d); err != nil {
			return nil, err
		}
		req.AddFacet(dateFacetName(d.Field), fr)
	}

	req.Highlight = bleve.NewHighlight()

	if q.Sort != "" {
		req.SortBy(sortOrder(q.Sort))
	}

	return req, nil
}

func termsQuery(items []query.Item) bquery.Query {
	terms := make([]string, 0, len(items))
	for _, it := range items {
		v := strings.TrimSpace(it.Value)
		if v == "" || v == "*:*" || v == "*" {
			continue
		}
		terms = append(terms, v)
	}
	if len(terms) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewQueryStringQuery(strings.Join(terms, " "))
}

func (s *BleveSearcher) filterQuery(f query.FilterItem) (bquery.Query, error) {
	v := strings.TrimSpace(f.Value)

	if lo, hi, ok := parseRange(v); ok {
		now := s.now()
		start, errStart := parseDateBound(lo, now)
		end, errEnd := parseDateBound(hi, now)
		if errStart == nil && errEnd == nil {
			dq := bleve.NewDateRangeQuery(start, end)
			dq.SetField(f.Field)
			return dq, nil
		}

		minV, errMin := parseNumericBound(lo)
		maxV, errMax := parseNumericBound(hi)
		if errMin != nil || errMax != nil {
			return nil, errors.ValidationError(fmt.Sprintf("unsupported range filter %s:%s", f.Field, f.Value))
		}
		nq := bleve.NewNumericRangeQuery(minV, maxV)
		nq.SetField(f.Field)
		return nq, nil
	}

	pq := bleve.NewMatchPhraseQuery(strings.Trim(v, `"`))
	pq.SetField(f.Field)
	return pq, nil
}

// parseRange splits "[a TO b]" into its bounds.
func parseRange(v string) (string, string, bool) {
	if len(v) < 2 || (v[0] != '[' && v[0] != '{') || (v[len(v)-1] != ']' && v[len(v)-1] != '}') {
		return "", "", false
	}
	lo, hi, ok := strings.Cut(v[1:len(v)-1], " TO ")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi), true
}

// parseDateBound returns the zero time for an open bound.
func parseDateBound(s string, now time.Time) (time.Time, error) {
	if s == "*" {
		return time.Time{}, nil
	}
	return ParseDateMath(s, now)
}

func parseNumericBound(s string) (*float64, error) {
	if s == "*" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *BleveSearcher) addDateBuckets(fr *bleve.FacetRequest, d query.DateFacet) error {
	now := s.now()
	start, err := ParseDateMath(d.Start, now)
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("date facet %s start: %v", d.Field, err))
	}
	end, err := ParseDateMath(d.End, now)
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("date facet %s end: %v", d.Field, err))
	}
	n, unit, err := parseGap(d.Gap)
	if err != nil || n <= 0 {
		return errors.ValidationError(fmt.Sprintf("date facet %s gap: %q", d.Field, d.Gap))
	}

	for i, t := 0, start; t.Before(end); i++ {
		if i >= maxDateBucket {
			return errors.ValidationError(fmt.Sprintf("date facet %s has more than %d buckets", d.Field, maxDateBucket))
		}
		next := addUnit(t, n, unit)
		if next.After(end) {
			next = end
		}
		fr.AddDateTimeRange(t.UTC().Format(time.RFC3339), t, next)
		t = next
	}
	return nil
}

// sortOrder converts "field asc, other desc" into bleve sort keys.
func sortOrder(s string) []string {
	var order []string
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		field := fields[0]
		if field == "score" {
			field = "_score"
		}
		desc := len(fields) > 1 && strings.EqualFold(fields[1], "desc")
		if desc {
			field = "-" + field
		}
		order = append(order, field)
	}
	return order
}

// ParseDateMath parses an RFC 3339 timestamp or a NOW expression such as
// NOW, NOW-5YEARS or NOW/DAY+1MONTH.
func ParseDateMath(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "NOW") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02", s)
	}

	t := now.UTC()
	rest := s[len("NOW"):]
	for rest != "" {
		op := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, "+-/")
		if end < 0 {
			end = len(rest)
		}
		token := rest[:end]
		rest = rest[end:]

		switch op {
		case '/':
			unit, err := normalizeUnit(token)
			if err != nil {
				return time.Time{}, err
			}
			t = truncateUnit(t, unit)
		case '+', '-':
			n, unit, err := parseGap(token)
			if err != nil {
				return time.Time{}, err
			}
			if op == '-' {
				n = -n
			}
			t = addUnit(t, n, unit)
		default:
			return time.Time{}, fmt.Errorf("unexpected %q in %q", op, s)
		}
	}
	return t, nil
}

// parseGap reads an optional sign, a count and a unit: +1YEAR, 3DAYS.
func parseGap(s string) (int, string, error) {
	s = strings.TrimPrefix(s, "+")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("missing count in %q", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", err
	}
	unit, err := normalizeUnit(s[i:])
	if err != nil {
		return 0, "", err
	}
	return n, unit, nil
}

func normalizeUnit(u string) (string, error) {
	u = strings.TrimSuffix(strings.ToUpper(u), "S")
	switch u {
	case "YEAR", "MONTH", "DAY", "HOUR", "MINUTE", "SECOND":
		return u, nil
	case "DATE":
		return "DAY", nil
	}
	return "", fmt.Errorf("unknown unit %q", u)
}

func addUnit(t time.Time, n int, unit string) time.Time {
	switch unit {
	case "YEAR":
		return t.AddDate(n, 0, 0)
	case "MONTH":
		return t.AddDate(0, n, 0)
	case "DAY":
		return t.AddDate(0, 0, n)
	case "HOUR":
		return t.Add(time.Duration(n) * time.Hour)
	case "MINUTE":
		return t.Add(time.Duration(n) * time.Minute)
	default:
		return t.Add(time.Duration(n) * time.Second)
	}
}

func truncateUnit(t time.Time, unit string) time.Time {
	switch unit {
	case "YEAR":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case "MONTH":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case "DAY":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case "HOUR":
		return t.Truncate(time.Hour)
	case "MINUTE":
		return t.Truncate(time.Minute)
	default:
		return t.Truncate(time.Second)
	}
}
