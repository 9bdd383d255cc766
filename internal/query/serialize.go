package query

import (
	"strconv"
	"strings"
)

// Fixed facet and highlighting parameters sent with every query.
const facetParams = "facet=true&facet.limit=40&facet.sort=true&facet.mincount=1&hl=true"

// Serializer renders a Query in the backend's query-string grammar.
type Serializer struct {
	HighlightField string
}

// Serialize returns the backend query string. Parameter order is fixed and
// must not change: existing backends and caches key on it. With
// skipEncoding the values are left readable, for display only.
func (s Serializer) Serialize(q *Query, skipEncoding bool) string {
	enc := Escape
	if skipEncoding {
		enc = func(v string) string { return v }
	}

	var b strings.Builder
	b.WriteString(facetParams)

	for _, f := range q.Fields {
		param(&b, "facet.field", enc(f))
	}

	for _, d := range q.Dates {
		field := enc(d.Field)
		param(&b, "facet.date", field)
		param(&b, "f."+field+".facet.date.start", enc(d.Start))
		param(&b, "f."+field+".facet.date.end", enc(d.End))
		param(&b, "f."+field+".facet.date.gap", enc(d.Gap))
	}

	for _, f := range q.FQ {
		param(&b, "fq", enc(f.Backend()))
	}

	var terms strings.Builder
	for _, item := range q.Q {
		terms.WriteString(item.Backend())
		terms.WriteByte(' ')
	}
	param(&b, "q", enc(terms.String()))

	fl := make([]string, 0, len(q.FL)+1)
	for _, f := range q.FL {
		fl = append(fl, enc(f))
	}
	fl = append(fl, "id")
	param(&b, "fl", strings.Join(fl, ","))

	param(&b, "rows", strconv.Itoa(q.Rows))
	param(&b, "start", strconv.Itoa(q.Start))

	if q.Sort != "" {
		param(&b, "sort", enc(q.Sort))
	}

	param(&b, "hl.fl", enc(s.HighlightField))

	return b.String()
}

func param(b *strings.Builder, name, value string) {
	b.WriteByte('&')
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
}
