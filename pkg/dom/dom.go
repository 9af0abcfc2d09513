// Package dom models the parts of a rendered document the export pipeline
// touches: the export target, its images and an off-screen working copy.
//
// The live document is treated as read-only input. Everything the pipeline
// mutates (image sources, layout during capture) happens on a [Snapshot]
// created by [Clone] and torn down by the release function it returns.
package dom

import (
	"context"
	"time"

	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// Ref identifies a node in a Document. Refs stay valid until the node is
// removed. Documents track refs on their side and never write them into the
// page's markup.
type Ref string

// Element is the export target as measured by the document.
type Element struct {
	ID       string
	Ref      Ref
	Width    float64 // rendered CSS pixels
	Height   float64
	Visible  bool // false when display:none or detached from layout
	Children int  // direct element children
}

// ImageRef describes one <img> inside a node, in document order.
type ImageRef struct {
	Index         int
	Src           string // resolved absolute source
	OriginalSrc   string // the src attribute as written
	Alt           string
	Complete      bool
	NaturalWidth  int
	NaturalHeight int
}

// Snapshot is an off-screen clone of an Element. Container is the hidden
// wrapper appended to the document body; Node is the cloned target inside it.
type Snapshot struct {
	Container Ref
	Node      Ref
	ElementID string
	Width     float64
	Height    float64
	Children  int
}

// Document is the rendered page the pipeline exports from.
// Implementations must be safe for concurrent use.
type Document interface {
	// Origin returns the scheme://host[:port] the document was loaded from.
	Origin() string

	// Lookup measures the element with the given id. A missing element is
	// an ErrCodeTargetNotFound error.
	Lookup(ctx context.Context, id string) (Element, error)

	// Clone deep-copies el into a new container positioned off-screen with
	// zero opacity and no pointer events, sized to el's width.
	Clone(ctx context.Context, el Element) (Snapshot, error)

	// Images lists the <img> elements under node.
	Images(ctx context.Context, node Ref) ([]ImageRef, error)

	// SetImageSource replaces the src of the index-th image under node.
	SetImageSource(ctx context.Context, node Ref, index int, src string) error

	// Remove detaches the node from the document. Removing a node that is
	// already gone is not an error.
	Remove(ctx context.Context, ref Ref) error

	// WaitImages blocks until every image under node has loaded or failed,
	// or until timeout. Images that never settle are not an error.
	WaitImages(ctx context.Context, node Ref, timeout time.Duration) error

	// Settle gives the renderer d to finish layout and paint.
	Settle(ctx context.Context, d time.Duration) error
}

// Check enforces the export preconditions on a measured element.
func Check(el Element) error {
	if el.Width <= 0 || el.Height <= 0 {
		return errors.New(errors.ErrCodeTargetZeroSize,
			"Element has zero dimensions. Make sure it's visible and has content.")
	}
	if !el.Visible {
		return errors.New(errors.ErrCodeTargetHidden,
			"Element with ID %q is hidden. Make sure it's visible and has content.", el.ID)
	}
	return nil
}

// NotFound is the error Lookup implementations return for a missing id.
func NotFound(id string) error {
	return errors.New(errors.ErrCodeTargetNotFound, "Element with ID %q not found", id)
}

// releaseTimeout bounds teardown, which runs even after ctx is cancelled.
const releaseTimeout = 5 * time.Second

// Clone snapshots el and returns a release function that removes the
// container again. Release is idempotent and must be called on every path,
// typically with defer.
func Clone(ctx context.Context, doc Document, el Element) (*Snapshot, func() error, error) {
	snap, err := doc.Clone(ctx, el)
	if err != nil {
		return nil, func() error { return nil }, errors.Wrap(errors.ErrCodeInternal, err, "clone element %q", el.ID)
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		return doc.Remove(rctx, snap.Container)
	}
	return &snap, release, nil
}
