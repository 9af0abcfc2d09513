// Package fonts provides font faces for raster drawing.
//
// The Go fonts are compiled into the binary by golang.org/x/image, so avatar
// and placeholder rendering never depends on fonts installed on the host.
package fonts

import (
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Weight selects one of the embedded faces.
type Weight int

const (
	Regular Weight = iota
	Bold
)

// Parsed fonts are cached; faces are cheap to create but not safe to share
// between goroutines, so Face returns a new one on every call.
var (
	parseOnce sync.Once
	parsed    map[Weight]*truetype.Font
	parseErr  error
)

func load() (map[Weight]*truetype.Font, error) {
	parseOnce.Do(func() {
		regular, err := truetype.Parse(goregular.TTF)
		if err != nil {
			parseErr = err
			return
		}
		bold, err := truetype.Parse(gobold.TTF)
		if err != nil {
			parseErr = err
			return
		}
		parsed = map[Weight]*truetype.Font{Regular: regular, Bold: bold}
	})
	return parsed, parseErr
}

// Face returns a new face of the given weight and point size.
func Face(w Weight, size float64) (font.Face, error) {
	fonts, err := load()
	if err != nil {
		return nil, err
	}
	f, ok := fonts[w]
	if !ok {
		f = fonts[Regular]
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull}), nil
}

// FontFamily is the CSS font-family used by the preview page.
const FontFamily = `-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif`
