package normalize

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/dom"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/httputil"
)

// Drawer draws an image that has already loaded in the document onto a
// canvas and returns the canvas as a PNG data URI. It fails when the image
// is incomplete, has no natural size, or taints the canvas.
type Drawer interface {
	DrawLoaded(ctx context.Context, node dom.Ref, index int) (string, error)
}

// Loader loads src anonymously, without credentials, and returns it as a
// PNG data URI. Implementations must honour ctx cancellation.
type Loader interface {
	Load(ctx context.Context, src string) (string, error)
}

// DrawerFunc adapts a function to Drawer.
type DrawerFunc func(ctx context.Context, node dom.Ref, index int) (string, error)

// DrawLoaded implements Drawer.
func (f DrawerFunc) DrawLoaded(ctx context.Context, node dom.Ref, index int) (string, error) {
	return f(ctx, node, index)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (string, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, src string) (string, error) {
	return f(ctx, src)
}

// HTTPLoader fetches images from Go instead of the page. The result never
// touches a canvas, so it cannot be tainted.
type HTTPLoader struct {
	client *httputil.Client

	// MaxDimension downsizes larger images, keeping aspect ratio.
	// Zero keeps the original size.
	MaxDimension int
}

// NewHTTPLoader creates a loader on top of client.
func NewHTTPLoader(client *httputil.Client) *HTTPLoader {
	return &HTTPLoader{client: client, MaxDimension: 600}
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, src string) (string, error) {
	body, _, err := l.client.Get(ctx, src)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeImageLoad, err, "decode image")
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return "", errors.New(errors.ErrCodeImageLoad, "image has no pixels")
	}
	if m := l.MaxDimension; m > 0 && (img.Bounds().Dx() > m || img.Bounds().Dy() > m) {
		img = imaging.Fit(img, m, m, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", errors.Wrap(errors.ErrCodeImageLoad, err, "encode image")
	}
	return datauri.Encode("image/png", buf.Bytes()), nil
}

var _ Loader = (*HTTPLoader)(nil)
