// Package cascade runs ordered fallback strategies.
//
// The rasterizer, the export sinks and the image normalizer all degrade the
// same way: try the best option, and on failure try the next one. A cascade is
// a plain slice of [Strategy] values, so each tier can be tested on its own
// and the order is visible in one place.
//
// A tier may carry its own Timeout so one stalled tier cannot use up the
// caller's deadline. Detached tiers run even when the caller's context is
// already done; they are meant for local work that must always get a turn.
//
//	res, tier, err := cascade.Run(ctx, "raster", []cascade.Strategy[Result]{
//	    {Name: "primary", Attempt: primary, Timeout: 15 * time.Second},
//	    {Name: "blank", Attempt: blank, Detached: true},
//	}, nil)
package cascade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/observability"
)

// Strategy is one tier of a cascade.
type Strategy[T any] struct {
	Name    string
	Attempt func(ctx context.Context) (T, error)

	// Timeout bounds one attempt. Zero leaves only the caller's deadline.
	Timeout time.Duration

	// Detached tiers ignore cancellation of the caller's context.
	Detached bool
}

func (s Strategy[T]) run(ctx context.Context) (T, error) {
	if s.Detached {
		ctx = context.WithoutCancel(ctx)
	}
	if s.Timeout <= 0 {
		return s.Attempt(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	v, err := s.Attempt(tctx)
	if err != nil && ctx.Err() == nil && tctx.Err() == context.DeadlineExceeded {
		err = errors.Wrap(errors.ErrCodeTimeout, err, "%s gave up after %s", s.Name, s.Timeout)
	}
	return v, err
}

// Observer is told about every failed or skipped tier before the next one
// runs.
type Observer func(tier string, err error)

// Failure records why a tier was skipped.
type Failure struct {
	Tier string
	Err  error
}

// ExhaustedError is returned when every tier failed.
type ExhaustedError struct {
	Cascade  string
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Tier, f.Err)
	}
	return fmt.Sprintf("%s: all %d strategies failed (%s)", e.Cascade, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every tier error to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Last returns the error of the final tier that ran, or nil.
func (e *ExhaustedError) Last() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// Run tries each strategy in order and returns the first success together
// with the name of the tier that produced it. Once ctx is done only detached
// tiers still run; the others are recorded as failed with ctx's error.
func Run[T any](ctx context.Context, name string, strategies []Strategy[T], observe Observer) (T, string, error) {
	var zero T
	exhausted := &ExhaustedError{Cascade: name}

	fail := func(tier string, err error) {
		exhausted.Failures = append(exhausted.Failures, Failure{Tier: tier, Err: err})
		observability.Export().OnTierFailed(ctx, name, tier, err)
		if observe != nil {
			observe(tier, err)
		}
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil && !s.Detached {
			fail(s.Name, err)
			continue
		}

		v, err := s.run(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		fail(s.Name, err)
	}

	if len(strategies) == 0 {
		exhausted.Failures = append(exhausted.Failures, Failure{Tier: "none", Err: errors.New(errors.ErrCodeInternal, "no strategies")})
	}
	return zero, "", exhausted
}
