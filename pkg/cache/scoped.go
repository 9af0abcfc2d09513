package cache

// ScopedKeyer prefixes every key of an inner Keyer, so several reviewcraft
// installations can share one Redis without reading each other's entries.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ImageKey(sourceURL string) string {
	return k.prefix + k.inner.ImageKey(sourceURL)
}

func (k *ScopedKeyer) ProxyKey(upstreamURL string) string {
	return k.prefix + k.inner.ProxyKey(upstreamURL)
}
