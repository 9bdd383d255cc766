package security

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateWidgetID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "color", false},
		{"with separators", "pub_date.year-range", false},
		{"digits", "facet2", false},
		{"empty", "", true},
		{"colon", "color:red", true},
		{"ampersand", "a&b", true},
		{"leading dash", "-color", true},
		{"space", "my color", true},
		{"too long", strings.Repeat("a", MaxWidgetIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWidgetID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWidgetID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := ValidateWidgetID("a:b")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %T, want *ValidationError", err)
	}
	if ve.Field != "widget id" || ve.Value != "a:b" {
		t.Errorf("ValidationError = %+v", ve)
	}
	if !strings.Contains(err.Error(), "got: a:b") {
		t.Errorf("Error() = %q", err.Error())
	}

	if msg := ValidateWidgetID("").Error(); msg != "validation failed for widget id: required" {
		t.Errorf("Error() = %q", msg)
	}
}
