package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/dom"
	rcerrors "github.com/matzehuels/reviewcraft/pkg/errors"
)

// fakeCapturer fails Render calls by position and counts calls.
type fakeCapturer struct {
	renders    []Options
	renderErrs []error // per call; missing entries succeed
	renderURI  string
	canvas     image.Image
	canvasErr  error
	canvasHits int
}

func (f *fakeCapturer) Render(ctx context.Context, node dom.Ref, format Format, opts Options) (string, error) {
	i := len(f.renders)
	f.renders = append(f.renders, opts)
	if i < len(f.renderErrs) && f.renderErrs[i] != nil {
		return "", f.renderErrs[i]
	}
	return f.renderURI, nil
}

func (f *fakeCapturer) CaptureCanvas(ctx context.Context, node dom.Ref) (image.Image, error) {
	f.canvasHits++
	if f.canvasErr != nil {
		return nil, f.canvasErr
	}
	return f.canvas, nil
}

var target = Target{Node: "clone", ElementID: "review-preview", Width: 120, Height: 80, Children: 3}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	return img
}

func TestRasterizeCascade(t *testing.T) {
	good := datauri.Encode("image/png", []byte("png"))
	boom := errors.New("boom")

	tests := []struct {
		name        string
		capturer    *fakeCapturer
		wantTier    string
		wantRenders int
		wantCanvas  int
	}{
		{
			name:     "primary",
			capturer: &fakeCapturer{renderURI: good},
			wantTier: TierPrimary, wantRenders: 1,
		},
		{
			name:     "reduced after throw",
			capturer: &fakeCapturer{renderURI: good, renderErrs: []error{boom}},
			wantTier: TierReduced, wantRenders: 2,
		},
		{
			name:     "empty sentinel falls through",
			capturer: &fakeCapturer{renderURI: datauri.Empty, renderErrs: []error{nil, boom}, canvas: solid(4, 4)},
			wantTier: TierCanvas, wantRenders: 2, wantCanvas: 1,
		},
		{
			name:     "canvas",
			capturer: &fakeCapturer{renderErrs: []error{boom, boom}, canvas: solid(4, 4)},
			wantTier: TierCanvas, wantRenders: 2, wantCanvas: 1,
		},
		{
			name:     "blank",
			capturer: &fakeCapturer{renderErrs: []error{boom, boom}, canvasErr: boom},
			wantTier: TierBlank, wantRenders: 2, wantCanvas: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.capturer, log.New(io.Discard))
			res, err := r.Rasterize(context.Background(), target, PNG, PrimaryOptions(PNG, 120, 80, 1))
			if err != nil {
				t.Fatalf("Rasterize() error: %v", err)
			}
			if res.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", res.Tier, tt.wantTier)
			}
			if !datauri.Valid(res.DataURI) || res.Format != PNG {
				t.Errorf("result = %+v", res)
			}
			if len(tt.capturer.renders) != tt.wantRenders || tt.capturer.canvasHits != tt.wantCanvas {
				t.Errorf("renders = %d, canvas = %d", len(tt.capturer.renders), tt.capturer.canvasHits)
			}
		})
	}
}

func TestRasterizeReducedOptions(t *testing.T) {
	c := &fakeCapturer{renderURI: datauri.Encode("image/png", []byte("x")), renderErrs: []error{errors.New("font load failed")}}
	r := New(c, log.New(io.Discard))
	if _, err := r.Rasterize(context.Background(), target, JPEG, PrimaryOptions(JPEG, 120, 80, 2)); err != nil {
		t.Fatal(err)
	}

	primary, reduced := c.renders[0], c.renders[1]
	if primary.Quality != 0.95 || primary.PixelRatio != 2 || !primary.EmbedFonts || primary.Width != 120 {
		t.Errorf("primary options = %+v", primary)
	}
	if strings.Join(primary.Exclude, ",") != "script,link,style" {
		t.Errorf("primary exclude = %v", primary.Exclude)
	}
	if reduced.EmbedFonts || !reduced.SkipCrossOrigin || reduced.PixelRatio != 1 || reduced.Width != 0 {
		t.Errorf("reduced options = %+v", reduced)
	}
	if strings.Join(reduced.Exclude, ",") != "script" || reduced.Background != DefaultBackground {
		t.Errorf("reduced filter = %v, bg %q", reduced.Exclude, reduced.Background)
	}
}

func TestRasterizeLogsTierContext(t *testing.T) {
	var buf bytes.Buffer
	c := &fakeCapturer{renderURI: datauri.Encode("image/png", []byte("x")), renderErrs: []error{errors.New("tainted canvas")}}
	r := New(c, log.New(&buf))
	if _, err := r.Rasterize(context.Background(), target, PNG, PrimaryOptions(PNG, 120, 80, 1)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"tier=primary", "element=review-preview", "width=120", "height=80", "children=3", "tainted canvas"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestRasterizeWithoutCapturer(t *testing.T) {
	res, err := New(nil, log.New(io.Discard)).Rasterize(context.Background(), target, JPEG, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Tier != TierBlank || !strings.HasPrefix(res.DataURI, "data:image/jpeg;base64,") {
		t.Errorf("result = %s %q", res.Tier, res.DataURI[:30])
	}
}

func TestRasterizeCancelledFallsToBlank(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &fakeCapturer{}
	res, err := New(c, log.New(io.Discard)).Rasterize(ctx, target, PNG, Options{})
	if err != nil {
		t.Fatalf("Rasterize() error = %v, want blank result", err)
	}
	if res.Tier != TierBlank {
		t.Errorf("tier = %q, want %q", res.Tier, TierBlank)
	}
	if len(c.renders) != 0 || c.canvasHits != 0 {
		t.Errorf("capturer used after cancel: renders %d canvas %d", len(c.renders), c.canvasHits)
	}
}

// stalledCapturer never answers until its context ends.
type stalledCapturer struct{}

func (stalledCapturer) Render(ctx context.Context, _ dom.Ref, _ Format, _ Options) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (stalledCapturer) CaptureCanvas(ctx context.Context, _ dom.Ref) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRasterizeStalledCapturer(t *testing.T) {
	tests := []struct {
		name     string
		deadline time.Duration
		opts     []Option
	}{
		// The first tier eats the whole export deadline.
		{"caller deadline", 200 * time.Millisecond, nil},
		// Each tier gives up on its own well before the caller's deadline.
		{"tier timeout", 10 * time.Second, []Option{WithTierTimeout(30 * time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), tt.deadline)
			defer cancel()

			start := time.Now()
			res, err := New(stalledCapturer{}, log.New(io.Discard), tt.opts...).Rasterize(ctx, target, PNG, Options{})
			if err != nil {
				t.Fatalf("Rasterize() error = %v, want blank result", err)
			}
			if res.Tier != TierBlank || !datauri.Valid(res.DataURI) {
				t.Errorf("result = %q %q", res.Tier, res.DataURI)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("took %v", elapsed)
			}
		})
	}
}

func TestBlank(t *testing.T) {
	tests := []struct {
		w, h   int
		format Format
		wantW  int
		wantH  int
	}{
		{300, 200, PNG, 300, 200},
		{300, 200, JPEG, 300, 200},
		{0, 0, PNG, 1, 1},
		{-5, 40, PNG, 1, 40},
	}

	for _, tt := range tests {
		res, err := Blank(tt.w, tt.h, tt.format)
		if err != nil {
			t.Fatalf("Blank(%d, %d) error: %v", tt.w, tt.h, err)
		}
		data, err := res.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		var img image.Image
		if tt.format == JPEG {
			img, err = jpeg.Decode(bytes.NewReader(data))
		} else {
			img, err = png.Decode(bytes.NewReader(data))
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Blank(%d, %d) bounds = %v", tt.w, tt.h, b)
		}
	}
}

func TestEncodeFlattensBackground(t *testing.T) {
	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	uri, err := Encode(transparent, PNG, parseColor("#336699"), 1)
	if err != nil {
		t.Fatal(err)
	}
	_, data, _ := datauri.Decode(uri)
	img, _ := png.Decode(bytes.NewReader(data))
	r, g, b, a := img.At(0, 0).RGBA()
	if r>>8 != 0x33 || g>>8 != 0x66 || b>>8 != 0x99 || a>>8 != 0xff {
		t.Errorf("pixel = %x %x %x %x", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"png": PNG, "PNG": PNG, "": PNG, "jpeg": JPEG, "jpg": JPEG}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("gif"); !rcerrors.Is(err, rcerrors.ErrCodeInvalidFormat) {
		t.Errorf("ParseFormat(gif) error = %v", err)
	}
	if JPEG.MIME() != "image/jpeg" || PNG.MIME() != "image/png" {
		t.Error("MIME mismatch")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ffffff", color.RGBA{0xff, 0xff, 0xff, 0xff}},
		{"#336699", color.RGBA{0x33, 0x66, 0x99, 0xff}},
		{"#f00", color.RGBA{0xff, 0, 0, 0xff}},
	}
	for _, tt := range tests {
		if got := parseColor(tt.in); got != tt.want {
			t.Errorf("parseColor(%q) = %v", tt.in, got)
		}
	}
	if parseColor("red") != color.White {
		t.Error("unparsable colors should be white")
	}
}
