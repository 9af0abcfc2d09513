// Package pipeline runs the export of a rendered review card.
//
// Both entry points, [Runner.Download] and [Runner.CopyToClipboard], drive
// the same stages against a [dom.Document]:
//
//  1. Cloning: look up the target, enforce its preconditions and clone it
//     into an off-screen container
//  2. Converting: normalize every image in the clone (package normalize)
//  3. Rasterizing: capture the clone as PNG or JPEG (package raster)
//  4. Sinking: save the file or write the clipboard (package sink)
//
// Stages degrade instead of failing: images fall back to synthesized avatars,
// captures fall back through cheaper strategies, sinks through older APIs.
// Only a precondition violation (missing, zero-size or hidden target) or an
// exhausted cascade ends an export in [Failed]. The off-screen container is
// removed on every path.
//
// # Usage
//
//	runner := pipeline.NewRunner(pipeline.Config{
//	    Document:   page,
//	    Normalizer: normalize.New(normalize.Config{Loader: page}),
//	    Rasterizer: raster.New(page, logger),
//	    Downloads:  sink.NewDownloads(dir, page, logger),
//	    Clipboard:  sink.NewClipboard(page, logger),
//	    Logger:     logger,
//	})
//	out, err := runner.Download(ctx, "review-preview", "reddit-review", raster.PNG)
//	if err != nil {
//	    fmt.Println(errors.Friendly(err))
//	}
package pipeline

import (
	"time"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/normalize"
	"github.com/matzehuels/reviewcraft/pkg/raster"
	"github.com/matzehuels/reviewcraft/pkg/sink"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultElementID is the id of the review card on the preview page.
	DefaultElementID = "review-preview"

	// DefaultImageWait bounds how long the clone's images may take to load
	// before rasterizing.
	DefaultImageWait = 3 * time.Second

	// DefaultSettle lets layout and paint finish after images loaded.
	DefaultSettle = 500 * time.Millisecond

	// DefaultCopySettle is the shorter settle used before clipboard copies.
	DefaultCopySettle = 100 * time.Millisecond

	// DefaultDownloadPixelRatio keeps downloads at CSS pixel size.
	DefaultDownloadPixelRatio = 1.0

	// DefaultCopyPixelRatio doubles clipboard images for high-DPI pastes.
	DefaultCopyPixelRatio = 2.0
)

// =============================================================================
// State Machine
// =============================================================================

// State is a stage of one export call.
type State string

const (
	Idle        State = "idle"
	Cloning     State = "cloning"
	Converting  State = "converting"
	Rasterizing State = "rasterizing"
	Sinking     State = "sinking"
	Succeeded   State = "succeeded"
	Failed      State = "failed"
)

// Terminal reports whether s ends an export.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// next lists the legal transitions. Any non-terminal state may fail.
var next = map[State]State{
	Idle:        Cloning,
	Cloning:     Converting,
	Converting:  Rasterizing,
	Rasterizing: Sinking,
	Sinking:     Succeeded,
}

// CanTransition reports whether an export may move from s to to.
func (s State) CanTransition(to State) bool {
	if s.Terminal() {
		return false
	}
	return to == Failed || next[s] == to
}

// Op names an entry point.
type Op string

const (
	OpDownload Op = "download"
	OpCopy     Op = "copy"
)

// failurePrefix is the message every failed export starts with.
func (o Op) failurePrefix() string {
	if o == OpCopy {
		return "Failed to copy to clipboard"
	}
	return "Failed to download image"
}

// =============================================================================
// Options
// =============================================================================

// Options tunes waits and capture settings. Zero values take defaults.
type Options struct {
	ImageWait          time.Duration
	Settle             time.Duration
	CopySettle         time.Duration
	DownloadPixelRatio float64
	CopyPixelRatio     float64
	Background         string
}

// ValidateAndSetDefaults fills zero values and validates the rest.
func (o *Options) ValidateAndSetDefaults() error {
	if o.ImageWait <= 0 {
		o.ImageWait = DefaultImageWait
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.CopySettle <= 0 {
		o.CopySettle = DefaultCopySettle
	}
	if o.DownloadPixelRatio <= 0 {
		o.DownloadPixelRatio = DefaultDownloadPixelRatio
	}
	if o.CopyPixelRatio <= 0 {
		o.CopyPixelRatio = DefaultCopyPixelRatio
	}
	if o.Background == "" {
		o.Background = raster.DefaultBackground
	}
	if o.DownloadPixelRatio > 4 || o.CopyPixelRatio > 4 {
		return errors.New(errors.ErrCodeInvalidInput, "pixel ratio must be at most 4")
	}
	return errors.ValidateHexColor(o.Background)
}

// =============================================================================
// Outcome
// =============================================================================

// Stats records per-stage durations.
type Stats struct {
	CloneTime   time.Duration
	ConvertTime time.Duration
	RasterTime  time.Duration
	SinkTime    time.Duration
}

// Outcome describes a finished export.
type Outcome struct {
	RunID  string
	Op     Op
	State  State
	Trace  []State // every state entered, in order
	Result raster.Result

	// Path is where a download was saved.
	Path string
	// Representation is what a copy put on the clipboard.
	Representation sink.Representation

	Images normalize.Stats
	Stats  Stats
}
