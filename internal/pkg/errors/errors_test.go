package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeInternal, "something failed", errors.New("underlying")),
			want: "INTERNAL_ERROR: something failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeInternal, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is() = false, want true")
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeValidation, "invalid").WithDetail("field", "name")

	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %s, want name", err.Details["field"])
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"rejected", RejectedError("facet"), CodeRegistrationRejected},
		{"duplicate", DuplicateWidgetError("facet"), CodeDuplicateWidget},
		{"transport missing", TransportMissingError(), CodeTransportMissing},
		{"stale", StaleResponseError(1, 2), CodeStaleResponse},
		{"malformed", MalformedSegmentError("fq=%zz", errors.New("bad escape")), CodeMalformedSegment},
		{"transport", TransportError("request failed", errors.New("refused")), CodeTransport},
		{"not found", NotFoundError("widget"), CodeNotFound},
		{"timeout", TimeoutError("search"), CodeTimeout},
		{"unavailable", ServiceUnavailableError("solr"), CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
		})
	}
}

func TestStaleResponseError_Details(t *testing.T) {
	err := StaleResponseError(3, 5)
	if err.Details["seq"] != "3" || err.Details["latest"] != "5" {
		t.Errorf("Details = %v, want seq=3 latest=5", err.Details)
	}
}

func TestIsCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("handling result: %w", StaleResponseError(1, 2))

	if !IsStale(err) {
		t.Error("IsStale() = false for wrapped stale error")
	}
	if IsRejected(err) {
		t.Error("IsRejected() = true for stale error")
	}
	if IsCode(errors.New("plain"), CodeStaleResponse) {
		t.Error("IsCode() = true for plain error")
	}
	if got := CodeOf(err); got != CodeStaleResponse {
		t.Errorf("CodeOf() = %q, want %q", got, CodeStaleResponse)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestIsHelpers(t *testing.T) {
	if !IsNotFound(NotFoundError("widget")) {
		t.Error("IsNotFound() = false")
	}
	if !IsValidation(ValidationError("bad")) {
		t.Error("IsValidation() = false")
	}
	if !IsRejected(RejectedError("w")) {
		t.Error("IsRejected() = false")
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, CodeValidation},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusTooManyRequests, CodeRateLimited},
		{http.StatusServiceUnavailable, CodeUnavailable},
		{http.StatusBadGateway, CodeUnavailable},
		{http.StatusGatewayTimeout, CodeTimeout},
		{http.StatusInternalServerError, CodeTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromHTTPStatus(tt.status, "boom")
			if err.Code != tt.code {
				t.Errorf("Code = %s, want %s", err.Code, tt.code)
			}
			if err.Details["body"] != "boom" {
				t.Errorf("Details[body] = %q, want boom", err.Details["body"])
			}
		})
	}
}

func TestFromHTTPStatus_TruncatesBody(t *testing.T) {
	body := make([]byte, 2048)
	for i := range body {
		body[i] = 'x'
	}
	err := FromHTTPStatus(http.StatusInternalServerError, string(body))
	if got := len(err.Details["body"]); got != 512 {
		t.Errorf("len(body) = %d, want 512", got)
	}
}
