package security

import (
	"fmt"
	"regexp"
)

// MaxWidgetIDLength bounds widget ids, which travel in every fragment filter.
const MaxWidgetIDLength = 64

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// widgetIDRegex matches valid widget ids. A ':' would be read back as the
// end of the id when a fragment filter is decoded.
var widgetIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateWidgetID validates a widget id.
// Requirements: required, at most 64 chars, alphanumeric plus '_', '.' and
// '-', starting with an alphanumeric.
func ValidateWidgetID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:      "widget id",
			Constraint: "required",
		}
	}

	if len(id) > MaxWidgetIDLength {
		return &ValidationError{
			Field:      "widget id",
			Value:      len(id),
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxWidgetIDLength),
		}
	}

	if !widgetIDRegex.MatchString(id) {
		return &ValidationError{
			Field:      "widget id",
			Value:      id,
			Constraint: "must contain only alphanumeric characters, '_', '.' and '-', and start with alphanumeric",
		}
	}

	return nil
}
