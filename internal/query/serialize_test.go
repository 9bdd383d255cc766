package query

import (
	"strings"
	"testing"
)

func TestSerialize_FullShape(t *testing.T) {
	q := &Query{
		Q:      []Item{{Value: "cats"}, {Value: "dogs"}},
		FQ:     []FilterItem{{WidgetID: "color", Field: "color", Value: "red"}},
		FL:     []string{"title"},
		Fields: []string{"color", "size"},
		Dates:  []DateFacet{{Field: "date", Start: "2020-01-01T00:00:00Z", End: "NOW", Gap: "+1YEAR"}},
		Start:  20,
		Rows:   0,
		Sort:   "date desc",
	}

	got := Serializer{HighlightField: "body"}.Serialize(q, false)
	want := "facet=true&facet.limit=40&facet.sort=true&facet.mincount=1&hl=true" +
		"&facet.field=color&facet.field=size" +
		"&facet.date=date" +
		"&f.date.facet.date.start=2020-01-01T00%3A00%3A00Z" +
		"&f.date.facet.date.end=NOW" +
		"&f.date.facet.date.gap=%2B1YEAR" +
		"&fq=color%3Ared" +
		"&q=cats%20dogs%20" +
		"&fl=title,id" +
		"&rows=0&start=20" +
		"&sort=date%20desc" +
		"&hl.fl=body"

	if got != want {
		t.Errorf("Serialize() =\n%s\nwant\n%s", got, want)
	}
}

func TestSerialize_SkipEncoding(t *testing.T) {
	q := &Query{
		Q:  []Item{{Value: "big cats"}},
		FQ: []FilterItem{{Field: "place", Value: "new york"}},
	}

	got := Serializer{HighlightField: "text"}.Serialize(q, true)

	for _, want := range []string{`&fq=place:"new york"`, "&q=big cats ", "&fl=id"} {
		if !strings.Contains(got, want) {
			t.Errorf("Serialize() = %s, missing %s", got, want)
		}
	}
}

func TestSerialize_EmptyQuery(t *testing.T) {
	got := Serializer{HighlightField: "text"}.Serialize(&Query{}, false)
	want := "facet=true&facet.limit=40&facet.sort=true&facet.mincount=1&hl=true&q=&fl=id&rows=0&start=0&hl.fl=text"

	if got != want {
		t.Errorf("Serialize() = %s, want %s", got, want)
	}
}

func TestSerialize_CatsScenario(t *testing.T) {
	base := Base{FL: []string{"title"}}
	q := Build(base, 0, []Alterer{alterFunc(func(q *Query) {
		q.Q = append(q.Q, Item{Value: "cats"})
	})})

	got := Serializer{HighlightField: "text"}.Serialize(q, false)

	if !strings.Contains(got, "&q=cats%20&") {
		t.Errorf("Serialize() = %s, want q=cats%%20", got)
	}
	if !strings.Contains(got, "&fl=title,id&") {
		t.Errorf("Serialize() = %s, want fl=title,id", got)
	}
	if len(q.FL) != 1 {
		t.Errorf("Serialize() mutated FL: %v", q.FL)
	}
}
