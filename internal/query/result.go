package query

// FacetCount is one bucket of a facet.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Result is the backend response handed to every widget. The coordinator
// never looks inside it.
type Result struct {
	NumFound     int                            `json:"num_found"`
	Start        int                            `json:"start"`
	Docs         []map[string]any               `json:"docs"`
	FacetFields  map[string][]FacetCount        `json:"facet_fields,omitempty"`
	FacetDates   map[string][]FacetCount        `json:"facet_dates,omitempty"`
	Highlighting map[string]map[string][]string `json:"highlighting,omitempty"`
	QTime        int                            `json:"qtime"`
}
