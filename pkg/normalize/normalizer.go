package normalize

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/reviewcraft/pkg/avatar"
	"github.com/matzehuels/reviewcraft/pkg/cascade"
	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/dom"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/observability"
)

// DefaultTimeout bounds each conversion attempt of a single image.
const DefaultTimeout = 2 * time.Second

// Resolution says how an image source was settled.
type Resolution string

const (
	Unchanged Resolution = "unchanged"
	Cached    Resolution = "cache"
	Drawn     Resolution = "draw"
	Loaded    Resolution = "load"
	Avatar    Resolution = "avatar"
)

// Result is the outcome of normalizing one image.
type Result struct {
	Src        string
	Resolution Resolution
	// Err is the last conversion failure when Resolution is Avatar.
	Err error
}

// Changed reports whether the image source must be replaced.
func (r Result) Changed(original string) bool {
	return r.Src != original
}

// Config configures a Normalizer.
type Config struct {
	Origin   string // scheme://host of the page; defaults to the document origin
	Cache    Cache
	Drawer   Drawer // optional
	Loader   Loader // optional
	Rewriter Rewriter
	Avatars  *avatar.Synthesizer
	Timeout  time.Duration
	Logger   *log.Logger
}

// Normalizer converts image sources to data URIs. It is safe for
// concurrent use; concurrent conversions of the same source share one
// attempt.
type Normalizer struct {
	cfg    Config
	flight singleflight.Group
}

// New creates a Normalizer. Missing collaborators get defaults: a memory
// cache, a default avatar synthesizer and [DefaultTimeout].
func New(cfg Config) *Normalizer {
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Avatars == nil {
		cfg.Avatars = avatar.New(avatar.WithLogger(cfg.Logger))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Normalizer{cfg: cfg}
}

// Normalize resolves the source of img, the index-th image under node.
// It never fails.
func (n *Normalizer) Normalize(ctx context.Context, node dom.Ref, img dom.ImageRef) Result {
	return n.normalizeFrom(ctx, n.cfg.Origin, node, img)
}

func (n *Normalizer) normalizeFrom(ctx context.Context, origin string, node dom.Ref, img dom.ImageRef) Result {
	start := time.Now()
	res := n.normalize(ctx, origin, node, img)
	observability.Export().OnImageNormalized(ctx, string(res.Resolution), time.Since(start))
	return res
}

func (n *Normalizer) normalize(ctx context.Context, origin string, node dom.Ref, img dom.ImageRef) Result {
	src := img.Src
	if src == "" {
		src = img.OriginalSrc
	}
	if src == "" {
		return Result{Src: n.cfg.Avatars.Synthesize(img.Alt), Resolution: Avatar,
			Err: errors.New(errors.ErrCodeImageLoad, "image has no source")}
	}
	if datauri.Is(src) || SameOrigin(origin, src) {
		return Result{Src: img.Src, Resolution: Unchanged}
	}

	if uri, ok := n.cfg.Cache.Get(ctx, src); ok {
		return Result{Src: uri, Resolution: Cached}
	}

	v, _, _ := n.flight.Do(src, func() (any, error) {
		// A flight that finished between the lookup above and Do has
		// already filled the cache.
		if uri, ok := n.cfg.Cache.Get(ctx, src); ok {
			return Result{Src: uri, Resolution: Cached}, nil
		}
		return n.convert(ctx, node, img, src), nil
	})
	return v.(Result)
}

// convert runs the draw, load and avatar tiers for a cache miss.
func (n *Normalizer) convert(ctx context.Context, node dom.Ref, img dom.ImageRef, src string) Result {
	logger := n.cfg.Logger.With("src", src, "alt", img.Alt)
	target := n.cfg.Rewriter.Rewrite(src)

	var tiers []cascade.Strategy[string]
	if n.cfg.Drawer != nil && img.Complete && img.NaturalWidth > 0 && img.NaturalHeight > 0 {
		tiers = append(tiers, cascade.Strategy[string]{
			Name: string(Drawn),
			Attempt: n.bounded(func(ctx context.Context) (string, error) {
				return n.cfg.Drawer.DrawLoaded(ctx, node, img.Index)
			}),
			Timeout: n.cfg.Timeout,
		})
	}
	if n.cfg.Loader != nil {
		tiers = append(tiers, cascade.Strategy[string]{
			Name: string(Loaded),
			Attempt: n.bounded(func(ctx context.Context) (string, error) {
				return n.cfg.Loader.Load(ctx, target)
			}),
			Timeout: n.cfg.Timeout,
		})
	}
	tiers = append(tiers, cascade.Strategy[string]{
		Name: string(Avatar),
		Attempt: func(context.Context) (string, error) {
			return n.cfg.Avatars.Synthesize(img.Alt), nil
		},
		Detached: true,
	})

	var lastErr error
	uri, tier, _ := cascade.Run(ctx, "normalize", tiers, func(tier string, err error) {
		logger.Debug("image conversion failed", "tier", tier, "via", target, "err", err)
		lastErr = err
	})

	res := Result{Src: uri, Resolution: Resolution(tier)}
	if res.Resolution != Avatar {
		n.cfg.Cache.Put(ctx, src, uri)
		return res
	}
	if lastErr == nil {
		lastErr = errors.New(errors.ErrCodeImageLoad, "no conversion strategy available")
	}
	logger.Warn("image replaced by fallback avatar", "err", lastErr)
	res.Err = lastErr
	return res
}

// bounded returns fn as a tier attempt that gives up when ctx is done, even
// if fn itself ignores ctx, and rejects empty results.
func (n *Normalizer) bounded(fn func(context.Context) (string, error)) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		type out struct {
			uri string
			err error
		}
		done := make(chan out, 1)
		go func() {
			uri, err := fn(ctx)
			done <- out{uri, err}
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case o := <-done:
			if o.err != nil {
				return "", o.err
			}
			if !datauri.Valid(o.uri) {
				return "", errors.New(errors.ErrCodeImageLoad, "conversion produced an empty image")
			}
			return o.uri, nil
		}
	}
}

// Stats summarizes a NormalizeAll run.
type Stats struct {
	Total       int
	Resolutions map[Resolution]int
	// SetFailures counts images whose new source could not be applied.
	SetFailures int
}

// NormalizeAll normalizes every image under node concurrently and writes
// changed sources back into the document. node must belong to a snapshot,
// never to the live target.
func (n *Normalizer) NormalizeAll(ctx context.Context, doc dom.Document, node dom.Ref) Stats {
	stats := Stats{Resolutions: make(map[Resolution]int)}
	origin := n.cfg.Origin
	if origin == "" {
		origin = doc.Origin()
	}

	imgs, err := doc.Images(ctx, node)
	if err != nil {
		n.cfg.Logger.Warn("could not enumerate images, rasterizing as is", "err", err)
		return stats
	}
	stats.Total = len(imgs)

	var mu sync.Mutex
	var g errgroup.Group
	for _, img := range imgs {
		g.Go(func() error {
			res := n.normalizeFrom(ctx, origin, node, img)
			setErr := error(nil)
			if res.Changed(img.Src) {
				setErr = doc.SetImageSource(ctx, node, img.Index, res.Src)
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Resolutions[res.Resolution]++
			if setErr != nil {
				stats.SetFailures++
				n.cfg.Logger.Warn("could not replace image source", "index", img.Index, "err", setErr)
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats
}
