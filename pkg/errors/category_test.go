package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryUnknown},
		{"coded cors", New(ErrCodeCORS, "blocked"), CategoryCORS},
		{"coded timeout", New(ErrCodeTimeout, "slow"), CategoryNetwork},
		{"coded upstream", New(ErrCodeUpstream, "502"), CategoryNetwork},
		{"coded security", New(ErrCodeSecurity, "nope"), CategorySecurity},
		{"precondition", New(ErrCodeTargetNotFound, "missing"), CategoryPrecondition},
		{"code in cause", Wrap(ErrCodeSinkFailed, New(ErrCodeCORS, "x"), "Failed to download image"), CategoryCORS},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), CategoryNetwork},
		{"text cross-origin", errors.New("Cross-Origin request blocked"), CategoryCORS},
		{"text network", errors.New("NetworkError when attempting to fetch resource"), CategoryNetwork},
		{"text tainted", errors.New("The canvas has been tainted by cross-origin data"), CategoryCORS},
		{"text security", errors.New("SecurityError: operation is insecure"), CategorySecurity},
		{"other", errors.New("boom"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFriendly(t *testing.T) {
	t.Run("precondition verbatim", func(t *testing.T) {
		err := Wrap(ErrCodeSinkFailed, New(ErrCodeTargetNotFound, `Element with ID "x" not found`), "Failed to download image")
		got := Friendly(err)
		if got != `Element with ID "x" not found` {
			t.Errorf("Friendly() = %q", got)
		}
	})

	t.Run("categorized with hint", func(t *testing.T) {
		for _, err := range []error{
			New(ErrCodeCORS, "x"),
			New(ErrCodeNetwork, "x"),
			New(ErrCodeSecurity, "x"),
			errors.New("boom"),
		} {
			got := Friendly(err)
			if !strings.HasSuffix(got, Hint) {
				t.Errorf("Friendly(%v) = %q, want hint suffix", err, got)
			}
			if strings.Contains(got, "goroutine") {
				t.Errorf("Friendly(%v) leaked a stack trace", err)
			}
		}
	})

	t.Run("unknown keeps message", func(t *testing.T) {
		got := Friendly(New(ErrCodeRasterFailed, "all tiers failed"))
		if !strings.HasPrefix(got, "all tiers failed") {
			t.Errorf("Friendly() = %q", got)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if got := Friendly(nil); got != "" {
			t.Errorf("Friendly(nil) = %q, want empty", got)
		}
	})
}
