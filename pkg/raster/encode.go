package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/fonts"
)

// Encode flattens img onto bg and encodes it as a data URI. quality is in
// 0..1 and only affects JPEG.
func Encode(img image.Image, format Format, bg color.Color, quality float64) (string, error) {
	b := img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), bg)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	var err error
	switch format {
	case JPEG:
		q := int(math.Round(quality * 100))
		if q <= 0 || q > 100 {
			q = 95
		}
		err = imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(q))
	default:
		err = imaging.Encode(&buf, flat, imaging.PNG)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encode %s", format)
	}
	return datauri.Encode(format.MIME(), buf.Bytes()), nil
}

// BlankLabel is drawn on the last-resort canvas.
const BlankLabel = "image unavailable"

// Blank draws a white canvas of w×h with [BlankLabel] centered on it.
// Non-positive sizes are clamped to 1.
func Blank(w, h int, format Format) (Result, error) {
	w, h = max(w, 1), max(h, 1)
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	size := math.Min(float64(h)/8, 24)
	if size >= 6 {
		face, err := fonts.Face(fonts.Regular, size)
		if err == nil {
			dc.SetFontFace(face)
			dc.SetColor(color.Gray{Y: 0x88})
			dc.DrawStringAnchored(BlankLabel, float64(w)/2, float64(h)/2, 0.5, 0.5)
			face.Close()
		}
	}

	uri, err := Encode(dc.Image(), format, color.White, 0.95)
	if err != nil {
		return Result{}, err
	}
	return Result{DataURI: uri, Format: format, Tier: TierBlank}, nil
}

// parseColor reads "#rrggbb" or "#rgb"; anything else is white.
func parseColor(s string) color.Color {
	var r, g, b uint8
	switch len(s) {
	case 7:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err == nil {
			return color.RGBA{R: r, G: g, B: b, A: 0xff}
		}
	case 4:
		if _, err := fmt.Sscanf(s, "#%1x%1x%1x", &r, &g, &b); err == nil {
			return color.RGBA{R: r * 17, G: g * 17, B: b * 17, A: 0xff}
		}
	}
	return color.White
}
