package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
			},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &APIError{Code: "TEST", Message: "test", Err: underlying}

	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}

	errNoWrap := &APIError{Code: "TEST", Message: "test"}
	if errNoWrap.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no wrapped error")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NewNotFoundError("goal"), "NOT_FOUND", 404, ErrNotFound},
		{"validation", NewValidationError("goal", "missing currency"), "VALIDATION_ERROR", 400, ErrInvalidRequest},
		{"invalid token", NewInvalidTokenError("token rejected"), "INVALID_TOKEN", 401, ErrInvalidToken},
		{"remote unavailable", NewRemoteUnavailableError("Plausible", errors.New("dial tcp")), "REMOTE_UNAVAILABLE", 502, ErrRemoteUnavailable},
		{"missing prerequisite", NewMissingPrerequisiteError("api token"), "MISSING_PREREQUISITE", 412, ErrMissingPrerequisite},
		{"rate limited", NewRateLimitError("Plausible"), "RATE_LIMITED", 429, ErrRateLimited},
		{"internal", NewInternalError(ErrPartialBulk), "INTERNAL_ERROR", 500, ErrPartialBulk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.status)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("error should wrap %v", tt.sentinel)
			}
		})
	}
}

func TestNewValidationErrorMessage(t *testing.T) {
	err := NewValidationError("goal", "missing currency")
	if err.Message != "invalid goal: missing currency" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("creating goals: %w", NewInvalidTokenError("rejected"))

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find APIError in chain")
	}
	if apiErr.Code != "INVALID_TOKEN" {
		t.Errorf("Code = %q, want INVALID_TOKEN", apiErr.Code)
	}
	if !errors.Is(wrapped, ErrInvalidToken) {
		t.Error("wrapped error should match ErrInvalidToken")
	}
}

func TestRemoteUnavailableKeepsCause(t *testing.T) {
	err := NewRemoteUnavailableError("Plausible", errors.New("connection refused"))
	if got := err.Err.Error(); got != "remote api unavailable: connection refused" {
		t.Errorf("Err = %q", got)
	}
}
