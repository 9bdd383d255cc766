package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	ricectx "github.com/ricesearch/rice-facets/internal/pkg/context"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
	"github.com/ricesearch/rice-facets/internal/pkg/security"
	"github.com/ricesearch/rice-facets/internal/query"
)

// CorrelationHeader carries the request's correlation id to the backend.
const CorrelationHeader = "X-Correlation-ID"

// HTTPConfig configures the HTTP searcher.
type HTTPConfig struct {
	// Endpoint is the request handler URL, e.g. http://localhost:8983/solr/select.
	Endpoint string

	// HighlightField is sent as hl.fl.
	HighlightField string

	// Timeout bounds one backend round trip.
	Timeout time.Duration

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Endpoint:        "http://localhost:8983/solr/select",
		HighlightField:  "text",
		Timeout:         30 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// HTTPSearcher queries a Solr-compatible HTTP endpoint.
type HTTPSearcher struct {
	endpoint   string
	serializer query.Serializer
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	group      singleflight.Group
	log        *logger.Logger
}

// NewHTTPSearcher creates a searcher for the configured endpoint.
func NewHTTPSearcher(cfg HTTPConfig, log *logger.Logger) *HTTPSearcher {
	def := DefaultHTTPConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost / 5,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	s := &HTTPSearcher{
		endpoint:   cfg.Endpoint,
		serializer: query.Serializer{HighlightField: cfg.HighlightField},
		httpClient: &http.Client{Transport: transport},
		timeout:    cfg.Timeout,
		log:        log.WithComponent("http-searcher"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Endpoint returns the handler URL.
func (s *HTTPSearcher) Endpoint() string {
	return s.endpoint
}

// URL returns the full request URL for q.
func (s *HTTPSearcher) URL(q *query.Query) string {
	return s.endpoint + "?" + s.serializer.Serialize(q, false) + "&wt=json&json.nl=flat"
}

// Search sends q and parses the response. Identical concurrent requests
// share one round trip. A cancelled caller stops waiting without failing
// the others that share the flight.
func (s *HTTPSearcher) Search(ctx context.Context, q *query.Query) (*query.Result, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(errors.CodeRateLimited, "waiting for rate limiter", err)
		}
	}

	u := s.URL(q)
	ch := s.group.DoChan(u, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.get(fctx, u)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.log.WithContext(ctx).Debug("shared backend request", "url", security.MaskURL(u))
		}
		return r.Val.(*query.Result), nil
	}
}

func (s *HTTPSearcher) get(ctx context.Context, u string) (*query.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.TransportError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := ricectx.CorrelationID(ctx); id != "" {
		req.Header.Set(CorrelationHeader, id)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.TimeoutError("backend request")
		}
		return nil, errors.TransportError("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.TransportError("failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		return nil, errors.FromHTTPStatus(resp.StatusCode, string(body))
	}

	res, err := ParseSolrResponse(body)
	if err != nil {
		return nil, err
	}

	s.log.Debug("backend request complete",
		"status", resp.StatusCode,
		"num_found", res.NumFound,
		"duration", time.Since(start))
	return res, nil
}

type solrResponse struct {
	ResponseHeader struct {
		QTime int `json:"QTime"`
	} `json:"responseHeader"`
	Response struct {
		NumFound int              `json:"numFound"`
		Start    int              `json:"start"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	FacetCounts struct {
		FacetFields map[string][]any          `json:"facet_fields"`
		FacetDates  map[string]map[string]any `json:"facet_dates"`
	} `json:"facet_counts"`
	Highlighting map[string]map[string][]string `json:"highlighting"`
}

// Keys inside a facet_dates entry that describe the range, not a bucket.
var dateFacetMeta = map[string]bool{
	"gap": true, "start": true, "end": true,
	"before": true, "after": true, "between": true,
}

// ParseSolrResponse parses a wt=json&json.nl=flat response body.
func ParseSolrResponse(body []byte) (*query.Result, error) {
	var raw solrResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.TransportError("failed to unmarshal response", err)
	}

	res := &query.Result{
		NumFound:     raw.Response.NumFound,
		Start:        raw.Response.Start,
		Docs:         raw.Response.Docs,
		QTime:        raw.ResponseHeader.QTime,
		Highlighting: raw.Highlighting,
	}
	if res.Docs == nil {
		res.Docs = []map[string]any{}
	}

	if len(raw.FacetCounts.FacetFields) > 0 {
		res.FacetFields = make(map[string][]query.FacetCount, len(raw.FacetCounts.FacetFields))
		for field, flat := range raw.FacetCounts.FacetFields {
			counts, err := parseFlatCounts(flat)
			if err != nil {
				return nil, errors.TransportError(fmt.Sprintf("facet field %s", field), err)
			}
			res.FacetFields[field] = counts
		}
	}

	if len(raw.FacetCounts.FacetDates) > 0 {
		res.FacetDates = make(map[string][]query.FacetCount, len(raw.FacetCounts.FacetDates))
		for field, buckets := range raw.FacetCounts.FacetDates {
			counts := make([]query.FacetCount, 0, len(buckets))
			for k, v := range buckets {
				if dateFacetMeta[k] {
					continue
				}
				n, ok := v.(float64)
				if !ok {
					continue
				}
				counts = append(counts, query.FacetCount{Value: k, Count: int(n)})
			}
			sort.Slice(counts, func(i, j int) bool { return counts[i].Value < counts[j].Value })
			res.FacetDates[field] = counts
		}
	}

	return res, nil
}

// parseFlatCounts reads [value, count, value, count, ...].
func parseFlatCounts(flat []any) ([]query.FacetCount, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("odd number of entries: %d", len(flat))
	}
	counts := make([]query.FacetCount, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		n, ok := flat[i+1].(float64)
		if !ok {
			return nil, fmt.Errorf("count at %d is %T", i+1, flat[i+1])
		}
		counts = append(counts, query.FacetCount{Value: fmt.Sprint(flat[i]), Count: int(n)})
	}
	return counts, nil
}
