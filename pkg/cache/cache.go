// Package cache provides byte-level cache backends and key generation.
//
// The export pipeline memoizes image conversions (source URL → data URI) and
// the image proxy can memoize upstream bodies. Both go through the [Cache]
// interface so the backend is a deployment choice:
//
//   - [MemoryCache]: process-scoped map, no eviction (the default)
//   - [FileCache]: JSON entries under a directory, survives restarts
//   - [RedisCache]: shared across processes
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer], so callers never build key strings by hand and
// multi-tenant deployments can prefix every key with [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// TTLs used by callers. Zero means the entry never expires.
const (
	// TTLImage is the lifetime of a converted image. Conversions are pure
	// functions of the source URL within a session, so they never expire.
	TTLImage time.Duration = 0

	// TTLProxy matches the public max-age the proxy advertises.
	TTLProxy = time.Hour
)

// Cache is a byte-oriented key/value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero stores without expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// ImageKey is the key of a converted image, identified by its original
	// source URL (never the rewritten or proxied one).
	ImageKey(sourceURL string) string

	// ProxyKey is the key of an upstream body fetched by the image proxy.
	ProxyKey(upstreamURL string) string
}

// DefaultKeyer produces "image:<sha256>" and "proxy:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ImageKey implements Keyer.
func (DefaultKeyer) ImageKey(sourceURL string) string {
	return hashKey("image", sourceURL)
}

// ProxyKey implements Keyer.
func (DefaultKeyer) ProxyKey(upstreamURL string) string {
	return hashKey("proxy", upstreamURL)
}

var _ Keyer = DefaultKeyer{}
