package normalize

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/cache"
	"github.com/matzehuels/reviewcraft/pkg/observability"
)

// Cache memoizes conversions by original source URL.
type Cache interface {
	Get(ctx context.Context, src string) (string, bool)
	Put(ctx context.Context, src, dataURI string)
}

// ConversionCache adapts a byte-level cache.Cache to [Cache]. Backend
// errors are logged and treated as misses.
type ConversionCache struct {
	backend cache.Cache
	keys    cache.Keyer
	logger  *log.Logger
}

// NewConversionCache wraps backend. A nil keyer uses cache.DefaultKeyer.
func NewConversionCache(backend cache.Cache, keys cache.Keyer, logger *log.Logger) *ConversionCache {
	if keys == nil {
		keys = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConversionCache{backend: backend, keys: keys, logger: logger}
}

// NewMemoryCache returns a session-scoped conversion cache.
func NewMemoryCache() *ConversionCache {
	return NewConversionCache(cache.NewMemoryCache(), nil, nil)
}

// Get implements Cache.
func (c *ConversionCache) Get(ctx context.Context, src string) (string, bool) {
	data, hit, err := c.backend.Get(ctx, c.keys.ImageKey(src))
	if err != nil {
		c.logger.Warn("conversion cache read failed", "src", src, "err", err)
		return "", false
	}
	if !hit || len(data) == 0 {
		observability.Cache().OnCacheMiss(ctx, "image")
		return "", false
	}
	observability.Cache().OnCacheHit(ctx, "image")
	return string(data), true
}

// Put implements Cache.
func (c *ConversionCache) Put(ctx context.Context, src, dataURI string) {
	if err := c.backend.Set(ctx, c.keys.ImageKey(src), []byte(dataURI), cache.TTLImage); err != nil {
		c.logger.Warn("conversion cache write failed", "src", src, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "image", len(dataURI))
}

var _ Cache = (*ConversionCache)(nil)
