// Package avatar synthesizes initials avatars for images that cannot be loaded.
//
// [Synthesizer.Synthesize] never fails: when drawing is impossible it returns
// [Placeholder], a valid 1×1 PNG.
package avatar

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/fogleman/gg"

	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/fonts"
)

// DefaultSize is the edge length of a synthesized avatar in pixels.
const DefaultSize = 300

// DefaultInitial is used when no initials can be derived.
const DefaultInitial = "U"

// Placeholder is a minimal valid 1×1 PNG data URI.
const Placeholder = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// Palette holds the background colors, as hex without the leading '#'.
var Palette = []string{
	"FF6B6B", "4ECDC4", "45B7D1", "96CEB4", "FECA57",
	"FF9FF3", "54A0FF", "5F27CD", "00D2D3", "FF9F43",
}

// RenderFunc draws initials on a square of the given size and returns PNG bytes.
type RenderFunc func(initials string, bg color.Color, size int) ([]byte, error)

// Synthesizer produces avatar data URIs.
type Synthesizer struct {
	size   int
	render RenderFunc
	logger *log.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSize sets the avatar edge length.
func WithSize(px int) Option {
	return func(s *Synthesizer) {
		if px > 0 {
			s.size = px
		}
	}
}

// WithRender replaces the drawing function.
func WithRender(fn RenderFunc) Option {
	return func(s *Synthesizer) {
		if fn != nil {
			s.render = fn
		}
	}
}

// WithLogger sets the logger used to report drawing failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synthesizer drawing with [Render].
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{size: DefaultSize, render: Render, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns a PNG data URI showing the initials of alt.
func (s *Synthesizer) Synthesize(alt string) (uri string) {
	initials := Initials(alt)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("avatar render panicked, using placeholder", "initials", initials, "panic", r)
			uri = Placeholder
		}
	}()

	png, err := s.render(initials, Color(alt), s.size)
	if err != nil || len(png) == 0 {
		s.logger.Warn("avatar render failed, using placeholder", "initials", initials, "err", err)
		return Placeholder
	}
	return datauri.Encode("image/png", png)
}

// Initials returns up to two uppercased word-initial letters of text,
// or [DefaultInitial] when there are none.
func Initials(text string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(text) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToUpper(r))
				n++
				break
			}
		}
		if n == 2 {
			break
		}
	}
	if n == 0 {
		return DefaultInitial
	}
	return b.String()
}

// ColorHex returns the palette entry for text. The same text always maps to
// the same color.
func ColorHex(text string) string {
	return Palette[xxhash.Sum64String(strings.TrimSpace(text))%uint64(len(Palette))]
}

// Color is ColorHex as a color.Color.
func Color(text string) color.Color {
	c, err := parseHex(ColorHex(text))
	if err != nil {
		return color.Gray{Y: 0x80}
	}
	return c
}

func parseHex(hex string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Render is the default RenderFunc: white bold initials centered on a
// solid square.
func Render(initials string, bg color.Color, size int) ([]byte, error) {
	dc := gg.NewContext(size, size)
	dc.SetColor(bg)
	dc.Clear()

	face, err := fonts.Face(fonts.Bold, float64(size)*0.4)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	defer face.Close()
	dc.SetFontFace(face)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(initials, float64(size)/2, float64(size)/2, 0.5, 0.35)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
