// Package proxy serves remote images from the page's own origin so the
// browser can draw them onto a canvas without tainting it.
//
// The handler answers GET requests of the form
//
//	/api/image-proxy?url=https://ui-avatars.com/api/?name=Jane
//
// by fetching the URL server-side, without cookies, and returning the body
// with a permissive Access-Control-Allow-Origin header.
//
// Only the URL scheme is checked by default. A host allow-list, a per-client
// rate limit and an upstream cache are available through [Config] and are
// off unless configured.
package proxy

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/cache"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/httputil"
)

// Path is the route the handler is mounted on.
const Path = "/api/image-proxy"

// Upstream request and client response headers.
const (
	UserAgent          = "review-craft-image-proxy"
	Accept             = "image/*,*/*;q=0.8"
	CacheControl       = "public, max-age=3600, stale-while-revalidate=86400"
	DefaultContentType = "image/jpeg"
)

var httpScheme = regexp.MustCompile(`(?i)^https?://`)

// Config configures the proxy.
type Config struct {
	// AllowedHosts restricts upstream hosts. A leading "." matches any
	// subdomain. Empty allows every host.
	AllowedHosts []string

	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables limiting.
	RateLimit float64
	Burst     int

	// MaxBytes caps upstream bodies. Default: httputil.DefaultMaxBytes.
	MaxBytes int64

	// Timeout bounds one upstream request. Default: httputil.DefaultTimeout.
	Timeout time.Duration

	// Cache stores upstream bodies for cache.TTLProxy. Nil disables caching.
	Cache cache.Cache
	Keys  cache.Keyer

	Logger *log.Logger
}

// Handler is the image proxy http.Handler.
type Handler struct {
	cfg     Config
	client  *httputil.Client
	limiter *limiter
	logger  *log.Logger
}

// Option configures a Handler beyond Config.
type Option func(*Handler)

// WithHTTPClient sets the client used for upstream requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Handler) {
		h.client = newClient(h.cfg, hc)
	}
}

// New creates the proxy handler.
func New(cfg Config, opts ...Option) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Cache != nil && cfg.Keys == nil {
		cfg.Keys = cache.NewDefaultKeyer()
	}

	h := &Handler{
		cfg:    cfg,
		client: newClient(cfg, nil),
		logger: cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		h.limiter = newLimiter(cfg.RateLimit, cfg.Burst)
	}
	for _, opt := range opts {
		opt(h)
	}

	if len(cfg.AllowedHosts) == 0 {
		h.logger.Warn("proxy: no host allow-list, any http(s) URL will be fetched")
	}
	if h.limiter == nil {
		h.logger.Warn("proxy: rate limiting is off")
	}
	return h
}

func newClient(cfg Config, hc *http.Client) *httputil.Client {
	headers := map[string]string{
		"User-Agent": UserAgent,
		"Accept":     Accept,
	}
	var opts []httputil.Option
	if hc != nil {
		opts = append(opts, httputil.WithHTTPClient(hc))
	}
	opts = append(opts, httputil.WithMaxBytes(cfg.MaxBytes), httputil.WithTimeout(cfg.Timeout))
	return httputil.NewClient(headers, opts...)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		plain(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		plain(w, http.StatusBadRequest, "Missing url parameter")
		return
	}
	if !httpScheme.MatchString(target) {
		plain(w, http.StatusBadRequest, "Invalid url")
		return
	}
	if !h.hostAllowed(target) {
		h.logger.Warn("proxy: host not allowed", "url", target)
		plain(w, http.StatusForbidden, "Host not allowed")
		return
	}
	if h.limiter != nil && !h.limiter.allow(clientIP(r)) {
		plain(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if ct, body, ok := h.cached(r.Context(), target); ok {
		writeImage(w, r, ct, body)
		return
	}

	resp, err := h.client.Fetch(r.Context(), target)
	if err != nil {
		h.logger.Warn("proxy: upstream fetch failed", "url", target, "err", err)
		plain(w, http.StatusInternalServerError, "Proxy error: "+errors.UserMessage(err))
		return
	}
	if !resp.OK() {
		plain(w, resp.StatusCode, "Upstream error: "+resp.Status)
		return
	}
	if len(resp.Body) == 0 {
		plain(w, http.StatusBadGateway, "Empty upstream body")
		return
	}

	ct := resp.ContentType
	if ct == "" {
		ct = DefaultContentType
	}
	h.store(r.Context(), target, ct, resp.Body)
	writeImage(w, r, ct, resp.Body)
}

func (h *Handler) hostAllowed(target string) bool {
	if len(h.cfg.AllowedHosts) == 0 {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range h.cfg.AllowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || (strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed)) {
			return true
		}
	}
	return false
}

// Cached entries are stored as "<content-type>\n<body>".
func (h *Handler) cached(ctx context.Context, target string) (string, []byte, bool) {
	if h.cfg.Cache == nil {
		return "", nil, false
	}
	data, ok, err := h.cfg.Cache.Get(ctx, h.cfg.Keys.ProxyKey(target))
	if err != nil || !ok {
		return "", nil, false
	}
	ct, body, found := bytes.Cut(data, []byte{'\n'})
	if !found || len(body) == 0 {
		return "", nil, false
	}
	return string(ct), body, true
}

func (h *Handler) store(ctx context.Context, target, ct string, body []byte) {
	if h.cfg.Cache == nil {
		return
	}
	entry := make([]byte, 0, len(ct)+1+len(body))
	entry = append(append(append(entry, ct...), '\n'), body...)
	if err := h.cfg.Cache.Set(ctx, h.cfg.Keys.ProxyKey(target), entry, cache.TTLProxy); err != nil {
		h.logger.Debug("proxy: cache write failed", "err", err)
	}
}

func writeImage(w http.ResponseWriter, r *http.Request, ct string, body []byte) {
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", CacheControl)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func plain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
