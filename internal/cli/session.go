package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/reviewcraft/pkg/avatar"
	"github.com/matzehuels/reviewcraft/pkg/browser"
	"github.com/matzehuels/reviewcraft/pkg/cache"
	"github.com/matzehuels/reviewcraft/pkg/httputil"
	"github.com/matzehuels/reviewcraft/pkg/normalize"
	"github.com/matzehuels/reviewcraft/pkg/observability"
	"github.com/matzehuels/reviewcraft/pkg/pipeline"
	"github.com/matzehuels/reviewcraft/pkg/proxy"
	"github.com/matzehuels/reviewcraft/pkg/raster"
	"github.com/matzehuels/reviewcraft/pkg/review"
	"github.com/matzehuels/reviewcraft/pkg/server"
	"github.com/matzehuels/reviewcraft/pkg/sink"
)

// session is one browser tab showing a review served by a local preview
// server, plus the export runner bound to that tab.
type session struct {
	cfg    *Config
	logger *log.Logger

	backend cache.Cache
	server  *server.Server
	browser *browser.Manager
	page    *browser.Page
	runner  *pipeline.Runner

	baseURL string
}

// sessionOptions tune a session per command.
type sessionOptions struct {
	addr     string    // preview server address; empty picks a free port
	outDir   string    // download directory
	terminal io.Writer // OSC 52 fallback for the clipboard, may be nil
	metrics  bool
}

// newCache builds the backend named by cfg.Cache.Backend.
func newCache(ctx context.Context, cfg CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case backendNone:
		return cache.NewNullCache(), nil
	case backendFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			dir = d
		}
		return cache.NewFileCache(dir)
	case backendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return cache.NewMemoryCache(), nil
	}
}

func keyer(cfg CacheConfig) cache.Keyer {
	if cfg.Scope == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, cfg.Scope+":")
}

// newProxy builds the image proxy handler. Upstream bodies share the
// conversion cache backend when cfg.Proxy.Cache is set.
func newProxy(cfg *Config, backend cache.Cache, logger *log.Logger) *proxy.Handler {
	pc := proxy.Config{
		AllowedHosts: cfg.Proxy.AllowedHosts,
		RateLimit:    cfg.Proxy.RateLimit,
		Burst:        cfg.Proxy.Burst,
		MaxBytes:     cfg.Proxy.MaxBytes,
		Logger:       logger,
	}
	if cfg.Proxy.Cache {
		pc.Cache = backend
		pc.Keys = keyer(cfg.Cache)
	}
	return proxy.New(pc)
}

// newServer builds the preview server for rv with the image proxy mounted.
func newServer(cfg *Config, rv *review.Review, backend cache.Cache, addr string, withMetrics bool, logger *log.Logger) *server.Server {
	sc := server.Config{
		Addr:   addr,
		Review: rv,
		Proxy:  newProxy(cfg, backend, logger),
		Logger: logger,

		TrustForwarded: cfg.Proxy.TrustForwarded,
	}
	if withMetrics {
		reg := prometheus.NewRegistry()
		m := observability.NewMetrics(reg)
		m.Register()
		sc.Metrics = m
		sc.Gatherer = reg
	}
	return server.New(sc)
}

// openSession starts the preview server and the browser, opens the preview
// page and binds an export runner to it. Callers must Close the session.
func (c *CLI) openSession(ctx context.Context, cfg *Config, rv *review.Review, opts sessionOptions) (_ *session, err error) {
	s := &session{cfg: cfg, logger: c.Logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.backend, err = newCache(ctx, cfg.Cache); err != nil {
		return nil, err
	}

	s.server = newServer(cfg, rv, s.backend, opts.addr, opts.metrics, c.Logger)
	if s.baseURL, err = s.server.Start(ctx); err != nil {
		return nil, err
	}
	c.Logger.Debug("preview server started", "url", s.baseURL)

	s.browser = browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.RemoteURL,
		Bin:       cfg.Browser.Bin,
		Headful:   cfg.Browser.Headful,
		NoSandbox: cfg.Browser.NoSandbox,
		Stealth:   cfg.Browser.Stealth,
		Logger:    c.Logger,
	})
	if _, err = s.browser.Start(ctx); err != nil {
		return nil, err
	}
	if s.page, err = browser.Open(ctx, s.browser, s.baseURL+"/preview"); err != nil {
		return nil, err
	}

	s.runner, err = pipeline.NewRunner(pipeline.Config{
		Document:   s.page,
		Normalizer: c.newNormalizer(cfg, s.page, s.backend),
		Rasterizer: raster.New(s.page, c.Logger, raster.WithTierTimeout(cfg.tierTimeout())),
		Downloads:  sink.NewDownloads(opts.outDir, s.page, c.Logger),
		Clipboard:  sink.NewClipboard(s.page, c.Logger, sink.WithTerminal(opts.terminal)),
		Options: pipeline.Options{
			ImageWait:          cfg.imageTimeout(),
			DownloadPixelRatio: cfg.Export.PixelRatio,
			CopyPixelRatio:     cfg.Export.CopyPixelRatio,
			Background:         cfg.Export.Background,
		},
		Logger: c.Logger,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *CLI) newNormalizer(cfg *Config, page *browser.Page, backend cache.Cache) *normalize.Normalizer {
	nc := normalize.Config{
		Origin:  page.Origin(),
		Cache:   normalize.NewConversionCache(backend, keyer(cfg.Cache), c.Logger),
		Drawer:  page,
		Loader:  page,
		Avatars: avatar.New(avatar.WithLogger(c.Logger)),
		Timeout: cfg.imageTimeout(),
		Logger:  c.Logger,
	}
	if cfg.Export.Loader == loaderHTTP {
		client := httputil.NewClient(map[string]string{
			"User-Agent": proxy.UserAgent,
			"Accept":     proxy.Accept,
		}, httputil.WithTimeout(cfg.imageTimeout()), httputil.WithRetry(2, 200*time.Millisecond))
		nc.Loader = normalize.NewHTTPLoader(client)
	} else {
		// The page fetches through the preview server, which shares its origin.
		nc.Rewriter = normalize.Rewriter{Proxy: proxy.Path}
	}
	return normalize.New(nc)
}

// reload swaps the served review and reloads the page.
func (s *session) reload(ctx context.Context, rv *review.Review) error {
	s.server.SetReview(rv)
	return s.page.Reload(ctx)
}

// Close releases the page, the browser, the server and the cache.
func (s *session) Close() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.logger.Debug("close page", "error", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("close browser", "error", err)
		}
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Debug("shutdown server", "error", err)
		}
		cancel()
	}
	if s.backend != nil {
		_ = s.backend.Close()
	}
}
