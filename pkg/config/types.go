// Package config loads the swcache configuration from defaults, an optional
// YAML file and SWCACHE_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/smartattend/swcache/pkg/lifecycle"
	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/route"
	"github.com/smartattend/swcache/pkg/syncq"
)

// EnvPrefix prefixes every environment override (SWCACHE_LISTEN__PORT=8080).
const EnvPrefix = "SWCACHE"

// Config is the complete runtime configuration.
type Config struct {
	Version      string             `koanf:"version"`
	StorePrefix  string             `koanf:"storePrefix"`
	Upstream     string             `koanf:"upstream"`
	OfflinePath  string             `koanf:"offlinePath"`
	Manifest     []string           `koanf:"manifest"`
	Listen       ListenConfig       `koanf:"listen"`
	Routes       RoutesConfig       `koanf:"routes"`
	Sync         SyncConfig         `koanf:"sync"`
	Store        StoreConfig        `koanf:"store"`
	Queue        QueueConfig        `koanf:"queue"`
	Logging      LoggingConfig      `koanf:"logging"`
	Precache     PrecacheConfig     `koanf:"precache"`
	Network      NetworkConfig      `koanf:"network"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
}

// ListenConfig is the proxy listen address.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// RoutesConfig holds the routing tables.
type RoutesConfig struct {
	NetworkFirst []string `koanf:"networkFirst"`
	CacheFirst   []string `koanf:"cacheFirst"`
}

// SyncConfig configures deferred-write submission.
type SyncConfig struct {
	// Base is the API base the batch endpoint is appended to.
	// Relative bases resolve against Upstream.
	Base  string      `koanf:"base"`
	Tag   string      `koanf:"tag"`
	Retry RetryConfig `koanf:"retry"`
}

// RetryConfig mirrors network.RetryConfig.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"maxAttempts"`
	InitialBackoff    time.Duration `koanf:"initialBackoff"`
	MaxBackoff        time.Duration `koanf:"maxBackoff"`
	BackoffMultiplier float64       `koanf:"backoffMultiplier"`
}

// StoreConfig selects the cache store backend.
type StoreConfig struct {
	Backend string      `koanf:"backend"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig configures the redis store backend.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// QueueConfig selects the pending-write storage.
type QueueConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`

	// Components overrides Level per component, e.g. {"syncq": "debug"}.
	Components map[string]string `koanf:"components"`
}

// PrecacheConfig configures install.
type PrecacheConfig struct {
	Concurrency int         `koanf:"concurrency"`
	Retry       RetryConfig `koanf:"retry"`
}

// NetworkConfig configures the network client.
type NetworkConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"userAgent"`
}

// ConnectivityConfig configures offline detection.
type ConnectivityConfig struct {
	FailureThreshold int           `koanf:"failureThreshold"`
	ProbeInterval    time.Duration `koanf:"probeInterval"`
	ProbePath        string        `koanf:"probePath"`
}

// Store and queue backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	tables := route.DefaultTables()
	retry := network.DefaultRetryConfig()
	return Config{
		Version:     "1.0.0",
		StorePrefix: lifecycle.DefaultPrefix,
		Upstream:    "http://localhost:3000",
		OfflinePath: "/offline.html",
		Manifest:    lifecycle.DefaultManifest(),
		Listen:      ListenConfig{Address: "0.0.0.0", Port: 8080},
		Routes: RoutesConfig{
			NetworkFirst: tables.NetworkFirst,
			CacheFirst:   tables.CacheFirst,
		},
		Sync: SyncConfig{
			Base:  "/api",
			Tag:   syncq.DefaultTag,
			Retry: fromRetry(retry),
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Address: "localhost:6379", Prefix: "swcache:"},
		},
		Queue:   QueueConfig{Backend: BackendSQLite, Path: "swcache-queue.db"},
		Logging: LoggingConfig{Level: "info"},
		Precache: PrecacheConfig{
			Concurrency: 4,
			Retry:       fromRetry(retry),
		},
		Network: NetworkConfig{Timeout: 30 * time.Second, UserAgent: "swcache/1.0"},
		Connectivity: ConnectivityConfig{
			FailureThreshold: 1,
			ProbeInterval:    5 * time.Second,
			ProbePath:        "/",
		},
	}
}

func fromRetry(r network.RetryConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts:       r.MaxAttempts,
		InitialBackoff:    r.InitialBackoff,
		MaxBackoff:        r.MaxBackoff,
		BackoffMultiplier: r.BackoffMultiplier,
	}
}

// Network returns the retry settings as a network.RetryConfig.
func (r RetryConfig) Network() network.RetryConfig {
	return network.RetryConfig{
		MaxAttempts:       r.MaxAttempts,
		InitialBackoff:    r.InitialBackoff,
		MaxBackoff:        r.MaxBackoff,
		BackoffMultiplier: r.BackoffMultiplier,
	}
}

// Validate rejects configurations the runtime cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("config: version is required")
	}
	if _, err := c.Origin(); err != nil {
		return err
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Listen.Port)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("config: store.redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Queue.Backend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.Queue.Path) == "" {
			return fmt.Errorf("config: queue.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("config: unknown queue backend %q", c.Queue.Backend)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	for component, level := range c.Logging.Components {
		if _, err := logging.ParseLevel(level); err != nil {
			return fmt.Errorf("config: logging.components.%s: %w", component, err)
		}
	}
	if c.Precache.Concurrency <= 0 {
		return fmt.Errorf("config: precache.concurrency must be positive")
	}
	return nil
}

// Origin parses Upstream.
func (c Config) Origin() (*url.URL, error) {
	u, err := url.Parse(c.Upstream)
	if err != nil {
		return nil, fmt.Errorf("config: parse upstream: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("config: upstream %q must be an absolute http(s) URL", c.Upstream)
	}
	return u, nil
}

// SyncEndpoint returns the absolute batch endpoint.
func (c Config) SyncEndpoint() (string, error) {
	origin, err := c.Origin()
	if err != nil {
		return "", err
	}
	base, err := url.Parse(c.Sync.Base)
	if err != nil {
		return "", fmt.Errorf("config: parse sync base: %w", err)
	}
	return syncq.Endpoint(origin.ResolveReference(base).String()), nil
}

// RouteTables returns the configured routing tables.
func (c Config) RouteTables() route.Tables {
	return route.Tables{
		NetworkFirst: append([]string(nil), c.Routes.NetworkFirst...),
		CacheFirst:   append([]string(nil), c.Routes.CacheFirst...),
	}
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Address, c.Listen.Port)
}

// LoggerConfig returns the settings for logging.Setup.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		Pretty:     c.Logging.Pretty,
		Components: c.Logging.Components,
	}
}
