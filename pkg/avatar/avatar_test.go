package avatar

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/datauri"
)

func TestInitials(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Smith", "JS"},
		{"jane doe", "JD"},
		{"Mary Ann Lee", "MA"},
		{"Cher", "C"},
		{"  élodie   durand ", "ÉD"},
		{"@jane (doe)", "JD"},
		{"", "U"},
		{"   ", "U"},
		{"--- ...", "U"},
	}

	for _, tt := range tests {
		if got := Initials(tt.in); got != tt.want {
			t.Errorf("Initials(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColorDeterministic(t *testing.T) {
	if ColorHex("Jane Doe") != ColorHex("Jane Doe") {
		t.Error("ColorHex should be deterministic")
	}

	seen := map[string]bool{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		hex := ColorHex(name)
		found := false
		for _, p := range Palette {
			if p == hex {
				found = true
			}
		}
		if !found {
			t.Fatalf("ColorHex(%q) = %q not in palette", name, hex)
		}
		seen[hex] = true
	}
	if len(seen) < 2 {
		t.Error("different names should spread over the palette")
	}

	want, _ := parseHex(ColorHex("Jane Doe"))
	if Color("Jane Doe") != want {
		t.Errorf("Color() = %v, want %v", Color("Jane Doe"), want)
	}
}

func TestSynthesize(t *testing.T) {
	s := New()
	uri := s.Synthesize("John Smith")

	mime, data, err := datauri.Decode(uri)
	if err != nil {
		t.Fatalf("Synthesize() returned undecodable URI: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q", mime)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != DefaultSize || b.Dy() != DefaultSize {
		t.Errorf("size = %v, want %dx%d", b, DefaultSize, DefaultSize)
	}

	// Corner pixel carries the background color.
	r, g, b, _ := img.At(0, 0).RGBA()
	wr, wg, wb, _ := Color("John Smith").RGBA()
	if r != wr || g != wg || b != wb {
		t.Errorf("corner color = %d,%d,%d want %d,%d,%d", r, g, b, wr, wg, wb)
	}
}

func TestSynthesizeDrawsInitials(t *testing.T) {
	var gotInitials string
	var gotSize int
	spy := func(initials string, bg color.Color, size int) ([]byte, error) {
		gotInitials, gotSize = initials, size
		return Render(initials, bg, size)
	}

	New(WithRender(spy), WithSize(64)).Synthesize("John Smith")
	if gotInitials != "JS" {
		t.Errorf("rendered initials = %q, want JS", gotInitials)
	}
	if gotSize != 64 {
		t.Errorf("rendered size = %d, want 64", gotSize)
	}
}

func TestSynthesizeFallsBackToPlaceholder(t *testing.T) {
	quiet := log.New(io.Discard)
	tests := []struct {
		name   string
		render RenderFunc
	}{
		{"error", func(string, color.Color, int) ([]byte, error) { return nil, errors.New("no canvas") }},
		{"empty", func(string, color.Color, int) ([]byte, error) { return nil, nil }},
		{"panic", func(string, color.Color, int) ([]byte, error) { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(WithRender(tt.render), WithLogger(quiet)).Synthesize("Jane")
			if got != Placeholder {
				t.Errorf("Synthesize() = %q, want placeholder", got)
			}
		})
	}
}

func TestPlaceholderIsValidPNG(t *testing.T) {
	_, data, err := datauri.Decode(Placeholder)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 1 || img.Bounds().Dy() != 1 {
		t.Errorf("placeholder bounds = %v", img.Bounds())
	}
	if !strings.HasPrefix(Placeholder, "data:image/png;base64,") {
		t.Error("placeholder must be a PNG data URI")
	}
}
