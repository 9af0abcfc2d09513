package raster

// DefaultBackground fills transparent regions, which JPEG cannot encode.
const DefaultBackground = "#ffffff"

// Options control a capture. Zero Width and Height use the node's own size.
type Options struct {
	Width      float64
	Height     float64
	Background string
	PixelRatio float64
	Quality    float64 // 0..1, JPEG only

	// Exclude lists lowercase tag names left out of the capture.
	Exclude []string
	// SkipCrossOrigin leaves out http(s) images from other origins.
	SkipCrossOrigin bool
	// EmbedFonts inlines web fonts into the serialized document.
	EmbedFonts bool
	// CacheBust appends a query to resource URLs so stale responses
	// without CORS headers are not reused.
	CacheBust bool
}

// PrimaryOptions returns the full-fidelity options for a target of the
// given size.
func PrimaryOptions(format Format, width, height, pixelRatio float64) Options {
	quality := 1.0
	if format == JPEG {
		quality = 0.95
	}
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	return Options{
		Width:      width,
		Height:     height,
		Background: DefaultBackground,
		PixelRatio: pixelRatio,
		Quality:    quality,
		Exclude:    []string{"script", "link", "style"},
		EmbedFonts: true,
		CacheBust:  true,
	}
}

// Reduced returns the option set used when the primary capture fails:
// no font embedding, only scripts filtered, foreign images dropped.
func (o Options) Reduced() Options {
	return Options{
		Background:      o.Background,
		PixelRatio:      1,
		Quality:         o.Quality,
		Exclude:         []string{"script"},
		SkipCrossOrigin: true,
	}
}
