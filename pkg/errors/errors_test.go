package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"formatted", New(ErrCodeTargetNotFound, "Element with ID %q not found", "review-mockup"),
			`TARGET_NOT_FOUND: Element with ID "review-mockup" not found`},
		{"literal percent", New(ErrCodeInvalidInput, "opacity 50%"), "INVALID_INPUT: opacity 50%"},
		{"with cause", Wrap(ErrCodeSinkFailed, errors.New("denied"), "Failed to copy to clipboard"),
			"SINK_FAILED: Failed to copy to clipboard: denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrCodeNetwork, cause, "GET %s", "https://ui-avatars.com/api/")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want cause", errors.Unwrap(err))
	}
	if !errors.Is(fmt.Errorf("proxy: %w", err), cause) {
		t.Error("std errors.Is should reach the cause through Wrap")
	}
	if err.Message != "GET https://ui-avatars.com/api/" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestIs(t *testing.T) {
	nested := Wrap(ErrCodeRasterFailed, New(ErrCodeTimeout, "slow"), "All rasterization methods failed")

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"outer code", nested, ErrCodeRasterFailed, true},
		{"inner code", nested, ErrCodeTimeout, true},
		{"absent code", nested, ErrCodeCORS, false},
		{"through fmt wrap", fmt.Errorf("export: %w", nested), ErrCodeTimeout, true},
		{"plain error", errors.New("plain"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is(%v) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestGetCodeIsOutermost(t *testing.T) {
	err := Wrap(ErrCodeSinkFailed, New(ErrCodeCORS, "blocked"), "Failed to download image")
	if got := GetCode(err); got != ErrCodeSinkFailed {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeSinkFailed)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %q, want empty", got)
	}
}

func TestIsPrecondition(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ErrCodeTargetNotFound, "missing"), true},
		{New(ErrCodeTargetZeroSize, "empty"), true},
		{fmt.Errorf("export: %w", New(ErrCodeTargetHidden, "hidden")), true},
		{New(ErrCodeSinkFailed, "sink"), false},
		{errors.New("Element not found"), false},
	}

	for _, tt := range tests {
		if got := IsPrecondition(tt.err); got != tt.want {
			t.Errorf("IsPrecondition(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"coded", New(ErrCodeInvalidFormat, "Unsupported format %q", "gif"), `Unsupported format "gif"`},
		{"plain", errors.New("boom"), "boom"},
		{"chain", Wrap(ErrCodeSinkFailed, Wrap(ErrCodeRasterFailed, errors.New("tainted"), "All methods failed"), "Failed to download image"),
			"Failed to download image: All methods failed: tainted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(ErrCodeInvalidURL, "bad"), http.StatusBadRequest},
		{New(ErrCodeSecurity, "blocked"), http.StatusForbidden},
		{New(ErrCodeNotFound, "gone"), http.StatusNotFound},
		{New(ErrCodeTimeout, "slow"), http.StatusGatewayTimeout},
		{New(ErrCodeUpstream, "502"), http.StatusBadGateway},
		{New(ErrCodeRasterFailed, "x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
