// Package observability carries instrumentation events out of the export
// pipeline without tying library packages to a metrics backend.
//
// Libraries emit through the accessors [Export], [Cache] and [HTTP]. Only
// main (or a test) installs implementations; until then every event goes to
// a no-op. [Metrics] is the Prometheus implementation used by the CLI.
//
//	m := observability.NewMetrics(reg)
//	m.Register()
//
//	observability.Export().OnTierFailed(ctx, "raster", "primary", err)
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// ExportHooks receives export pipeline events.
type ExportHooks interface {
	// op is "download" or "copy"; stage is one of the pipeline stages.
	OnStageStart(ctx context.Context, op, stage string)
	OnStageComplete(ctx context.Context, op, stage string, duration time.Duration, err error)

	// OnTierFailed fires for every tier that failed before the next one ran.
	OnTierFailed(ctx context.Context, cascade, tier string, err error)

	// resolution is unchanged, cache, draw, load or avatar.
	OnImageNormalized(ctx context.Context, resolution string, duration time.Duration)
}

// CacheHooks receives conversion cache events. keyType is "image" or "proxy".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives outgoing request events from httputil.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopExportHooks discards export events. Embed it to implement a subset.
type NoopExportHooks struct{}

func (NoopExportHooks) OnStageStart(context.Context, string, string)                          {}
func (NoopExportHooks) OnStageComplete(context.Context, string, string, time.Duration, error) {}
func (NoopExportHooks) OnTierFailed(context.Context, string, string, error)                   {}
func (NoopExportHooks) OnImageNormalized(context.Context, string, time.Duration)              {}

// NoopCacheHooks discards cache events.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks discards HTTP events.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// hookSet is replaced as a whole on every Set call, so readers never lock.
type hookSet struct {
	export ExportHooks
	cache  CacheHooks
	http   HTTPHooks
}

var current atomic.Pointer[hookSet]

func init() { Reset() }

func update(fn func(*hookSet)) {
	for {
		old := current.Load()
		next := *old
		fn(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetExportHooks installs h. Nil is ignored.
func SetExportHooks(h ExportHooks) {
	if h != nil {
		update(func(s *hookSet) { s.export = h })
	}
}

// SetCacheHooks installs h. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(s *hookSet) { s.cache = h })
	}
}

// SetHTTPHooks installs h. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(s *hookSet) { s.http = h })
	}
}

func Export() ExportHooks { return current.Load().export }
func Cache() CacheHooks   { return current.Load().cache }
func HTTP() HTTPHooks     { return current.Load().http }

// Reset restores the no-op hooks.
func Reset() {
	current.Store(&hookSet{
		export: NoopExportHooks{},
		cache:  NoopCacheHooks{},
		http:   NoopHTTPHooks{},
	})
}
