// Package raster turns a DOM snapshot into a PNG or JPEG.
//
// [Rasterizer.Rasterize] walks a fixed cascade and only fails when all of
// it fails:
//
//  1. primary: serialize the node with full options and draw it to a canvas
//  2. reduced: the same with [Options.Reduced]
//  3. canvas: capture the node's pixels directly and encode them in Go
//  4. blank: a canvas of the target size labelled "image unavailable"
//
// A tier that returns the empty data URI "data:," has failed. The browser
// tiers each run under [DefaultTierTimeout]; blank runs even after the
// caller's deadline has passed, so a stalled page still yields an image.
package raster

import (
	"context"
	"image"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/cascade"
	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/dom"
	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// Tier names.
const (
	TierPrimary = "primary"
	TierReduced = "reduced"
	TierCanvas  = "canvas"
	TierBlank   = "blank"
)

// DefaultTierTimeout bounds each browser tier.
const DefaultTierTimeout = 15 * time.Second

// Capturer renders nodes of a live document.
type Capturer interface {
	// Render serializes node with opts and returns an encoded data URI.
	Render(ctx context.Context, node dom.Ref, format Format, opts Options) (string, error)

	// CaptureCanvas returns the node's pixels as currently painted.
	CaptureCanvas(ctx context.Context, node dom.Ref) (image.Image, error)
}

// Target is the node to rasterize and what is known about it for logging.
type Target struct {
	Node      dom.Ref
	ElementID string
	Width     float64
	Height    float64
	Children  int
}

// TargetOf describes a snapshot.
func TargetOf(s *dom.Snapshot) Target {
	return Target{Node: s.Node, ElementID: s.ElementID, Width: s.Width, Height: s.Height, Children: s.Children}
}

// Rasterizer runs the capture cascade.
type Rasterizer struct {
	capturer    Capturer
	logger      *log.Logger
	tierTimeout time.Duration
}

// Option configures a Rasterizer.
type Option func(*Rasterizer)

// WithTierTimeout sets how long each browser tier may take. Values <= 0
// keep the default.
func WithTierTimeout(d time.Duration) Option {
	return func(r *Rasterizer) {
		if d > 0 {
			r.tierTimeout = d
		}
	}
}

// New creates a Rasterizer. A nil capturer leaves only the blank tier.
func New(c Capturer, logger *log.Logger, opts ...Option) *Rasterizer {
	if logger == nil {
		logger = log.Default()
	}
	r := &Rasterizer{capturer: c, logger: logger, tierTimeout: DefaultTierTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rasterize encodes t in format.
func (r *Rasterizer) Rasterize(ctx context.Context, t Target, format Format, opts Options) (Result, error) {
	tiers := []cascade.Strategy[Result]{
		{Name: TierPrimary, Timeout: r.tierTimeout, Attempt: func(ctx context.Context) (Result, error) {
			return r.render(ctx, t, format, opts)
		}},
		{Name: TierReduced, Timeout: r.tierTimeout, Attempt: func(ctx context.Context) (Result, error) {
			return r.render(ctx, t, format, opts.Reduced())
		}},
		{Name: TierCanvas, Timeout: r.tierTimeout, Attempt: func(ctx context.Context) (Result, error) {
			return r.canvas(ctx, t, format, opts)
		}},
		{Name: TierBlank, Detached: true, Attempt: func(context.Context) (Result, error) {
			return Blank(int(t.Width), int(t.Height), format)
		}},
	}

	res, tier, err := cascade.Run(ctx, "raster", tiers, func(tier string, err error) {
		r.logger.Warn("raster tier failed",
			"tier", tier,
			"element", t.ElementID,
			"width", t.Width,
			"height", t.Height,
			"children", t.Children,
			"err", err)
	})
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeRasterFailed, err, "rasterize %q", t.ElementID)
	}
	res.Tier = tier
	if tier != TierPrimary {
		r.logger.Info("rasterized with fallback", "tier", tier, "element", t.ElementID)
	}
	return res, nil
}

func (r *Rasterizer) render(ctx context.Context, t Target, format Format, opts Options) (Result, error) {
	if r.capturer == nil {
		return Result{}, errors.New(errors.ErrCodeUnsupported, "no capturer")
	}
	uri, err := r.capturer.Render(ctx, t.Node, format, opts)
	if err != nil {
		return Result{}, err
	}
	if !datauri.Valid(uri) {
		return Result{}, errors.New(errors.ErrCodeInternal, "Failed to generate image data URL - empty result")
	}
	return Result{DataURI: uri, Format: format}, nil
}

func (r *Rasterizer) canvas(ctx context.Context, t Target, format Format, opts Options) (Result, error) {
	if r.capturer == nil {
		return Result{}, errors.New(errors.ErrCodeUnsupported, "no capturer")
	}
	img, err := r.capturer.CaptureCanvas(ctx, t.Node)
	if err != nil {
		return Result{}, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return Result{}, errors.New(errors.ErrCodeInternal, "captured canvas is empty")
	}
	uri, err := Encode(img, format, parseColor(opts.Background), opts.Quality)
	if err != nil {
		return Result{}, err
	}
	return Result{DataURI: uri, Format: format}, nil
}
