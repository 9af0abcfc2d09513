package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/raster"
)

// envPrefix prefixes every environment override.
const envPrefix = "REVIEWCRAFT_"

// Config is the file-backed configuration. Precedence, lowest first:
// defaults, config.toml, .env and REVIEWCRAFT_* variables, command flags.
type Config struct {
	Export  ExportConfig  `toml:"export"`
	Cache   CacheConfig   `toml:"cache"`
	Browser BrowserConfig `toml:"browser"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Server  ServerConfig  `toml:"server"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Format         string  `toml:"format"`
	OutDir         string  `toml:"out_dir"`
	Background     string  `toml:"background"`
	PixelRatio     float64 `toml:"pixel_ratio"`
	CopyPixelRatio float64 `toml:"copy_pixel_ratio"`
	ImageTimeout   string  `toml:"image_timeout"`
	Timeout        string  `toml:"timeout"`
	TierTimeout    string  `toml:"tier_timeout"` // per browser raster tier
	Loader         string  `toml:"loader"` // browser or http
}

// CacheConfig selects the conversion cache backend.
type CacheConfig struct {
	Backend       string `toml:"backend"` // memory, file, redis or none
	Dir           string `toml:"dir"`
	Scope         string `toml:"scope"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// BrowserConfig configures Chromium.
type BrowserConfig struct {
	RemoteURL string `toml:"remote_url"`
	Bin       string `toml:"bin"`
	Headful   bool   `toml:"headful"`
	NoSandbox bool   `toml:"no_sandbox"`
	Stealth   bool   `toml:"stealth"`
}

// ProxyConfig holds the image proxy hardening knobs. All are off by default.
type ProxyConfig struct {
	AllowedHosts []string `toml:"allowed_hosts"`
	RateLimit    float64  `toml:"rate_limit"`
	Burst        int      `toml:"burst"`
	MaxBytes     int64    `toml:"max_bytes"`
	Cache        bool     `toml:"cache"`
	// TrustForwarded keys rate limits on X-Forwarded-For instead of the
	// peer address.
	TrustForwarded bool `toml:"trust_forwarded"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	Metrics bool   `toml:"metrics"`
}

// Image loaders.
const (
	loaderBrowser = "browser"
	loaderHTTP    = "http"
)

// Cache backends.
const (
	backendMemory = "memory"
	backendFile   = "file"
	backendRedis  = "redis"
	backendNone   = "none"
)

// ValidateAndSetDefaults fills zero values and rejects invalid settings.
func (c *Config) ValidateAndSetDefaults() error {
	e := &c.Export
	if e.Format == "" {
		e.Format = string(raster.PNG)
	}
	if _, err := raster.ParseFormat(e.Format); err != nil {
		return err
	}
	if e.OutDir == "" {
		e.OutDir = "."
	}
	if e.Background == "" {
		e.Background = raster.DefaultBackground
	}
	if err := errors.ValidateHexColor(e.Background); err != nil {
		return err
	}
	if e.PixelRatio <= 0 {
		e.PixelRatio = 1
	}
	if e.CopyPixelRatio <= 0 {
		e.CopyPixelRatio = 2
	}
	if e.ImageTimeout == "" {
		e.ImageTimeout = "2s"
	}
	switch e.Loader {
	case "":
		e.Loader = loaderBrowser
	case loaderBrowser, loaderHTTP:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown image loader %q", e.Loader)
	}
	if e.Timeout == "" {
		e.Timeout = "2m"
	}
	if e.TierTimeout == "" {
		e.TierTimeout = "15s"
	}
	for _, d := range []string{e.ImageTimeout, e.Timeout, e.TierTimeout} {
		if _, err := time.ParseDuration(d); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid duration %q", d)
		}
	}

	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = backendMemory
	case backendMemory, backendFile, backendRedis, backendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == backendRedis && c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}

	if c.Proxy.RateLimit < 0 || c.Proxy.Burst < 0 || c.Proxy.MaxBytes < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "proxy limits cannot be negative")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	return nil
}

func (c *Config) imageTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Export.ImageTimeout)
	return d
}

func (c *Config) tierTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Export.TierTimeout)
	return d
}

func (c *Config) exportTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Export.Timeout)
	return d
}

// loadConfig reads path, or the default config file when path is empty.
// A missing default file is not an error; a missing explicit one is.
func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err == nil {
			path = filepath.Join(dir, "config.toml")
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) || explicit {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "load config %s", path)
			}
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from REVIEWCRAFT_* variables.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v := getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s%s", envPrefix, name)
		}
		*dst = b
		return nil
	}
	float := func(name string, dst *float64) error {
		v := getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s%s", envPrefix, name)
		}
		*dst = f
		return nil
	}

	str("FORMAT", &cfg.Export.Format)
	str("OUT_DIR", &cfg.Export.OutDir)
	str("BACKGROUND", &cfg.Export.Background)
	str("LOADER", &cfg.Export.Loader)
	str("CACHE_BACKEND", &cfg.Cache.Backend)
	str("CACHE_DIR", &cfg.Cache.Dir)
	str("CACHE_SCOPE", &cfg.Cache.Scope)
	str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	str("BROWSER_URL", &cfg.Browser.RemoteURL)
	str("BROWSER_BIN", &cfg.Browser.Bin)
	str("SERVER_ADDR", &cfg.Server.Addr)
	if v := getenv(envPrefix + "PROXY_ALLOWED_HOSTS"); v != "" {
		cfg.Proxy.AllowedHosts = nil
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.Proxy.AllowedHosts = append(cfg.Proxy.AllowedHosts, h)
			}
		}
	}

	for _, err := range []error{
		boolean("NO_SANDBOX", &cfg.Browser.NoSandbox),
		boolean("HEADFUL", &cfg.Browser.Headful),
		boolean("STEALTH", &cfg.Browser.Stealth),
		boolean("PROXY_CACHE", &cfg.Proxy.Cache),
		boolean("PROXY_TRUST_FORWARDED", &cfg.Proxy.TrustForwarded),
		float("PIXEL_RATIO", &cfg.Export.PixelRatio),
		float("PROXY_RATE_LIMIT", &cfg.Proxy.RateLimit),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
