package browser

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"

	"github.com/matzehuels/reviewcraft/pkg/dom"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/normalize"
	"github.com/matzehuels/reviewcraft/pkg/raster"
	"github.com/matzehuels/reviewcraft/pkg/sink"
)

//go:embed scripts/export.js
var exportJS string

// defaultLoadTimeout applies to Load when ctx carries no deadline.
const defaultLoadTimeout = 2 * time.Second

// Page is a loaded document in the browser. It implements dom.Document,
// raster.Capturer, normalize.Drawer, normalize.Loader, sink.Downloader and
// sink.Clipboard.
type Page struct {
	page    *rod.Page
	browser *rod.Browser
	origin  string
	url     string
	logger  *log.Logger
}

// Open creates a tab, navigates it to pageURL and installs the export
// helpers. The manager must be started.
func Open(ctx context.Context, mgr *Manager, pageURL string) (*Page, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, errors.New(errors.ErrCodeInternal, "browser: no active browser")
	}
	cfg := mgr.cfg

	origin, err := originOf(pageURL)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "browser: create tab")
	}

	p := &Page{page: page, browser: b, origin: origin, url: pageURL, logger: cfg.Logger}
	if err := p.setup(ctx, cfg); err != nil {
		_ = page.Close()
		return nil, err
	}
	return p, nil
}

func (p *Page) setup(ctx context.Context, cfg Config) error {
	if err := p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "browser: set viewport")
	}

	if _, err := p.page.EvalOnNewDocument(exportJS); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "browser: install helpers")
	}

	// Clipboard writes need an explicit grant in headless mode.
	if err := (proto.BrowserGrantPermissions{
		Permissions: []proto.BrowserPermissionType{
			proto.BrowserPermissionTypeClipboardReadWrite,
			proto.BrowserPermissionTypeClipboardSanitizedWrite,
		},
		Origin: p.origin,
	}).Call(p.browser); err != nil {
		p.logger.Warn("browser: clipboard permission not granted", "origin", p.origin, "err", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()

	if err := p.page.Context(navCtx).Navigate(p.url); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "browser: navigate %s", p.url)
	}
	if err := p.page.Context(navCtx).WaitLoad(); err != nil {
		p.logger.Warn("browser: wait load", "url", p.url, "err", err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

// Origin implements dom.Document.
func (p *Page) Origin() string { return p.origin }

// Reload navigates the tab to its URL again and waits for load.
func (p *Page) Reload(ctx context.Context) error {
	if err := p.page.Context(ctx).Navigate(p.url); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "browser: navigate %s", p.url)
	}
	return p.page.Context(ctx).WaitLoad()
}

// call invokes a helper from scripts/export.js and returns its result.
func (p *Page) call(ctx context.Context, fn string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := p.page.Context(ctx).Eval(`(...a) => window.__rc.`+fn+`(...a)`, args...)
	if err != nil {
		return nil, errors.Wrap(classify(ctx, err), err, "browser: %s", fn)
	}
	return res, nil
}

// callJSON invokes a helper that returns a JSON string and decodes it.
func (p *Page) callJSON(ctx context.Context, v any, fn string, args ...any) error {
	res, err := p.call(ctx, fn, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), v); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "browser: decode %s result", fn)
	}
	return nil
}

// Lookup implements dom.Document.
func (p *Page) Lookup(ctx context.Context, id string) (dom.Element, error) {
	var out struct {
		Found    bool    `json:"found"`
		Ref      string  `json:"ref"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		Visible  bool    `json:"visible"`
		Children int     `json:"children"`
	}
	if err := p.callJSON(ctx, &out, "lookup", id, uuid.NewString()); err != nil {
		return dom.Element{}, err
	}
	if !out.Found {
		return dom.Element{}, dom.NotFound(id)
	}
	return dom.Element{
		ID:       id,
		Ref:      dom.Ref(out.Ref),
		Width:    out.Width,
		Height:   out.Height,
		Visible:  out.Visible,
		Children: out.Children,
	}, nil
}

// Clone implements dom.Document.
func (p *Page) Clone(ctx context.Context, el dom.Element) (dom.Snapshot, error) {
	container, node := uuid.NewString(), uuid.NewString()
	if _, err := p.call(ctx, "clone", string(el.Ref), container, node); err != nil {
		return dom.Snapshot{}, err
	}
	return dom.Snapshot{
		Container: dom.Ref(container),
		Node:      dom.Ref(node),
		ElementID: el.ID,
		Width:     el.Width,
		Height:    el.Height,
		Children:  el.Children,
	}, nil
}

// Images implements dom.Document.
func (p *Page) Images(ctx context.Context, node dom.Ref) ([]dom.ImageRef, error) {
	var out []struct {
		Index         int    `json:"index"`
		Src           string `json:"src"`
		OriginalSrc   string `json:"originalSrc"`
		Alt           string `json:"alt"`
		Complete      bool   `json:"complete"`
		NaturalWidth  int    `json:"naturalWidth"`
		NaturalHeight int    `json:"naturalHeight"`
	}
	if err := p.callJSON(ctx, &out, "images", string(node)); err != nil {
		return nil, err
	}
	imgs := make([]dom.ImageRef, len(out))
	for i, o := range out {
		imgs[i] = dom.ImageRef(o)
	}
	return imgs, nil
}

// SetImageSource implements dom.Document.
func (p *Page) SetImageSource(ctx context.Context, node dom.Ref, index int, src string) error {
	_, err := p.call(ctx, "setImageSource", string(node), index, src)
	return err
}

// Remove implements dom.Document.
func (p *Page) Remove(ctx context.Context, ref dom.Ref) error {
	_, err := p.call(ctx, "remove", string(ref))
	return err
}

// WaitImages implements dom.Document.
func (p *Page) WaitImages(ctx context.Context, node dom.Ref, timeout time.Duration) error {
	_, err := p.call(ctx, "waitImages", string(node), timeout.Milliseconds())
	return err
}

// Settle implements dom.Document.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DrawLoaded implements normalize.Drawer.
func (p *Page) DrawLoaded(ctx context.Context, node dom.Ref, index int) (string, error) {
	res, err := p.call(ctx, "drawLoaded", string(node), index)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Load implements normalize.Loader. The image is fetched by the page
// anonymously, so it counts against the page's CORS rules.
func (p *Page) Load(ctx context.Context, src string) (string, error) {
	timeout := defaultLoadTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	res, err := p.call(ctx, "load", src, timeout.Milliseconds())
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

type renderOptions struct {
	Mime            string   `json:"mime"`
	Width           float64  `json:"width"`
	Height          float64  `json:"height"`
	Background      string   `json:"background"`
	PixelRatio      float64  `json:"pixelRatio"`
	Quality         float64  `json:"quality"`
	Exclude         []string `json:"exclude"`
	SkipCrossOrigin bool     `json:"skipCrossOrigin"`
	EmbedFonts      bool     `json:"embedFonts"`
	CacheBust       bool     `json:"cacheBust"`
}

// Render implements raster.Capturer by serializing the node into an SVG
// foreignObject and drawing it on a canvas inside the page.
func (p *Page) Render(ctx context.Context, node dom.Ref, format raster.Format, opts raster.Options) (string, error) {
	exclude := opts.Exclude
	if exclude == nil {
		exclude = []string{}
	}
	res, err := p.call(ctx, "render", string(node), renderOptions{
		Mime:            format.MIME(),
		Width:           opts.Width,
		Height:          opts.Height,
		Background:      opts.Background,
		PixelRatio:      opts.PixelRatio,
		Quality:         opts.Quality,
		Exclude:         exclude,
		SkipCrossOrigin: opts.SkipCrossOrigin,
		EmbedFonts:      opts.EmbedFonts,
		CacheBust:       opts.CacheBust,
	})
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// CaptureCanvas implements raster.Capturer. The snapshot container is moved
// on-screen for the duration of a DevTools screenshot of the node.
func (p *Page) CaptureCanvas(ctx context.Context, node dom.Ref) (image.Image, error) {
	if _, err := p.call(ctx, "stage", string(node), true); err != nil {
		return nil, err
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := p.call(uctx, "stage", string(node), false); err != nil {
			p.logger.Warn("browser: unstage capture", "node", node, "err", err)
		}
	}()

	el, err := p.page.Context(ctx).ElementByJS(rod.Eval(`(ref) => window.__rc.node(ref)`, string(node)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "browser: find node %s", node)
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRasterFailed, err, "browser: screenshot")
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRasterFailed, err, "browser: decode screenshot")
	}
	return img, nil
}

// Download implements sink.Downloader: a temporary anchor with the
// download attribute is clicked and the resulting browser download is
// moved to dir/name.
func (p *Page) Download(ctx context.Context, dataURI, name, dir string) (string, error) {
	// Chrome resolves the download directory itself, so it must be absolute.
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", dir)
	}
	dir = abs
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeSinkFailed, err, "create %s", dir)
	}

	wait := p.browser.Context(ctx).WaitDownload(dir)
	if _, err := p.call(ctx, "download", dataURI, name); err != nil {
		return "", err
	}
	info := wait()
	if info == nil {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(errors.ErrCodeTimeout, err, "browser: download %s", name)
		}
		return "", errors.New(errors.ErrCodeSinkFailed, "browser: download %s did not start", name)
	}

	// Downloads land under their GUID with AllowAndName behaviour.
	dest := filepath.Join(dir, name)
	if err := os.Rename(filepath.Join(dir, info.GUID), dest); err != nil {
		return "", errors.Wrap(errors.ErrCodeSinkFailed, err, "move download to %s", dest)
	}
	return dest, nil
}

// WriteImage implements sink.Clipboard using the async clipboard API.
func (p *Page) WriteImage(ctx context.Context, data []byte) error {
	if err := p.focus(); err != nil {
		return err
	}
	_, err := p.call(ctx, "writeImage", base64.StdEncoding.EncodeToString(data))
	return err
}

// WriteText implements sink.Clipboard.
func (p *Page) WriteText(ctx context.Context, text string) error {
	if err := p.focus(); err != nil {
		return err
	}
	_, err := p.call(ctx, "writeText", text)
	return err
}

// LegacyCopy implements sink.Clipboard with document.execCommand("copy").
func (p *Page) LegacyCopy(ctx context.Context, text string) error {
	_, err := p.call(ctx, "legacyCopy", text)
	return err
}

// ReadText returns the clipboard's text entry.
func (p *Page) ReadText(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => navigator.clipboard.readText()`)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSecurity, err, "browser: read clipboard")
	}
	return res.Value.Str(), nil
}

// Leftovers reports export containers and download anchors still attached
// to the document.
func (p *Page) Leftovers(ctx context.Context) (containers, anchors int, err error) {
	var out struct {
		Containers int `json:"containers"`
		Anchors    int `json:"anchors"`
	}
	if err := p.callJSON(ctx, &out, "counts"); err != nil {
		return 0, 0, err
	}
	return out.Containers, out.Anchors, nil
}

// focus brings the tab to the front; the clipboard API rejects writes from
// unfocused documents.
func (p *Page) focus() error {
	if _, err := p.page.Activate(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "browser: activate tab")
	}
	return nil
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errors.New(errors.ErrCodeInvalidURL, "browser: %q is not an absolute URL", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// classify maps page-side failures onto error codes.
func classify(ctx context.Context, err error) errors.Code {
	if ctx.Err() != nil {
		return errors.ErrCodeTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "SecurityError"), strings.Contains(msg, "tainted"),
		strings.Contains(msg, "NotAllowedError"):
		return errors.ErrCodeSecurity
	case strings.Contains(msg, "timeout loading"):
		return errors.ErrCodeTimeout
	case strings.Contains(msg, "network error"):
		return errors.ErrCodeImageLoad
	case strings.Contains(msg, "not found"):
		return errors.ErrCodeNotFound
	case strings.Contains(msg, "unavailable"):
		return errors.ErrCodeUnsupported
	default:
		return errors.ErrCodeInternal
	}
}

var (
	_ dom.Document     = (*Page)(nil)
	_ raster.Capturer  = (*Page)(nil)
	_ normalize.Drawer = (*Page)(nil)
	_ normalize.Loader = (*Page)(nil)
	_ sink.Downloader  = (*Page)(nil)
	_ sink.Clipboard   = (*Page)(nil)
)
