package query

import (
	"strings"

	"github.com/ricesearch/rice-facets/internal/pkg/errors"
)

// Item is one free-text term.
type Item struct {
	Value string `json:"value"`
}

// Backend returns the term as it appears in the backend q parameter.
func (i Item) Backend() string {
	return i.Value
}

// Fragment returns the term encoded for the address fragment.
func (i Item) Fragment() string {
	return Escape(i.Value)
}

// ParseItemFragment decodes a term previously produced by Item.Fragment.
func ParseItemFragment(s string) (Item, error) {
	v, err := Unescape(s)
	if err != nil {
		return Item{}, errors.MalformedSegmentError(s, err)
	}
	return Item{Value: v}, nil
}

// FilterItem is one facet filter, tagged with the widget that owns it so a
// decoded fragment can be routed back to that widget.
type FilterItem struct {
	WidgetID string `json:"widget_id"`
	Field    string `json:"field"`
	Value    string `json:"value"`
}

// Backend returns the filter in field:value form. Values containing
// whitespace are quoted unless they already are quoted or are a range.
func (f FilterItem) Backend() string {
	return f.Field + ":" + quoteValue(f.Value)
}

// Fragment returns widgetID:value encoded for the address fragment.
func (f FilterItem) Fragment() string {
	return Escape(f.WidgetID + ":" + f.Value)
}

// ParseFilterFragment decodes a filter previously produced by
// FilterItem.Fragment. Field is left empty; the owning widget knows it.
func ParseFilterFragment(s string) (FilterItem, error) {
	raw, err := Unescape(s)
	if err != nil {
		return FilterItem{}, errors.MalformedSegmentError(s, err)
	}

	id, value, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return FilterItem{}, errors.MalformedSegmentError(s, errors.ValidationError("missing widget id"))
	}

	return FilterItem{WidgetID: id, Value: value}, nil
}

// ParseFilter splits a raw field:value filter, as written in configuration.
func ParseFilter(raw string) (FilterItem, error) {
	field, value, ok := strings.Cut(raw, ":")
	if !ok || field == "" {
		return FilterItem{}, errors.ValidationError("filter must be field:value: " + raw)
	}
	return FilterItem{Field: field, Value: value}, nil
}

func quoteValue(v string) string {
	if !strings.ContainsAny(v, " \t\n") {
		return v
	}
	if strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) && len(v) > 1 {
		return v
	}
	if strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
