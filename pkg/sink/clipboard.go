package sink

import (
	"context"
	"io"
	"time"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/cascade"
	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/raster"
)

// Representation is what ended up on the clipboard.
type Representation string

const (
	ImagePNG Representation = "image/png"
	// TextDataURI is a text/plain entry holding the data URI.
	TextDataURI Representation = "text/plain"
)

// Tier names of the clipboard cascade.
const (
	TierImage    = "image"
	TierText     = "text"
	TierLegacy   = "legacy"
	TierTerminal = "terminal"
)

// Clipboard is the system clipboard as seen from the page.
type Clipboard interface {
	// WriteImage stores a PNG image entry.
	WriteImage(ctx context.Context, png []byte) error
	// WriteText stores a plain-text entry.
	WriteText(ctx context.Context, text string) error
	// LegacyCopy selects text in a temporary field and runs the copy command.
	LegacyCopy(ctx context.Context, text string) error
}

// ClipboardSink copies images to a Clipboard.
type ClipboardSink struct {
	clipboard Clipboard
	terminal  io.Writer
	logger    *log.Logger
	timeout   time.Duration
}

// ClipboardOption configures a ClipboardSink.
type ClipboardOption func(*ClipboardSink)

// WithTerminal adds a final tier that sends the data URI to w as an OSC 52
// sequence, which many terminals forward to the local clipboard.
func WithTerminal(w io.Writer) ClipboardOption {
	return func(s *ClipboardSink) { s.terminal = w }
}

// WithClipboardTimeout bounds each page clipboard tier. Values <= 0 keep
// [DefaultTierTimeout].
func WithClipboardTimeout(d time.Duration) ClipboardOption {
	return func(s *ClipboardSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewClipboard creates a clipboard sink.
func NewClipboard(cb Clipboard, logger *log.Logger, opts ...ClipboardOption) *ClipboardSink {
	if logger == nil {
		logger = log.Default()
	}
	s := &ClipboardSink{clipboard: cb, logger: logger, timeout: DefaultTierTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver copies res and reports which representation was written.
func (s *ClipboardSink) Deliver(ctx context.Context, res raster.Result) (Representation, error) {
	tiers := []cascade.Strategy[Representation]{
		{Name: TierImage, Timeout: s.timeout, Attempt: func(ctx context.Context) (Representation, error) {
			if s.clipboard == nil {
				return "", errors.New(errors.ErrCodeUnsupported, "no clipboard")
			}
			mime, png, err := datauri.Decode(res.DataURI)
			if err != nil {
				return "", err
			}
			if mime != "image/png" {
				return "", errors.New(errors.ErrCodeInvalidFormat, "clipboard images must be PNG, got %s", mime)
			}
			return ImagePNG, s.clipboard.WriteImage(ctx, png)
		}},
		{Name: TierText, Timeout: s.timeout, Attempt: func(ctx context.Context) (Representation, error) {
			if s.clipboard == nil {
				return "", errors.New(errors.ErrCodeUnsupported, "no clipboard")
			}
			return TextDataURI, s.clipboard.WriteText(ctx, res.DataURI)
		}},
		{Name: TierLegacy, Timeout: s.timeout, Attempt: func(ctx context.Context) (Representation, error) {
			if s.clipboard == nil {
				return "", errors.New(errors.ErrCodeUnsupported, "no clipboard")
			}
			return TextDataURI, s.clipboard.LegacyCopy(ctx, res.DataURI)
		}},
	}
	if s.terminal != nil {
		tiers = append(tiers, cascade.Strategy[Representation]{Name: TierTerminal, Detached: true, Attempt: func(context.Context) (Representation, error) {
			_, err := osc52.New(res.DataURI).WriteTo(s.terminal)
			return TextDataURI, err
		}})
	}

	rep, tier, err := cascade.Run(ctx, "clipboard", tiers, func(tier string, err error) {
		s.logger.Warn("clipboard tier failed", "tier", tier, "err", err)
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSinkFailed, err, "write clipboard")
	}
	if tier != TierImage {
		s.logger.Info("copied image as data URI text", "tier", tier)
	}
	return rep, nil
}
