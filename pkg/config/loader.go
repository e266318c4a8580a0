package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the configuration with env > file > default precedence.
type Loader struct {
	envPrefix string
	file      string
}

// NewLoader prepares a loader. path may be empty.
func NewLoader(envPrefix, path string) *Loader {
	return &Loader{envPrefix: envPrefix, file: path}
}

// Path returns the configuration file path, if any.
func (l *Loader) Path() string {
	return l.file
}

// Load assembles and validates the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	// koanf keys are case sensitive; env names are not
	canonical := make(map[string]string)
	for _, key := range k.Keys() {
		canonical[strings.ToLower(key)] = key
	}

	if l.file != "" {
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(l.file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", l.file)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", l.file, err)
		}
		if err := k.Load(file.Provider(l.file), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", l.file, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			// double underscores nest: SWCACHE_LISTEN__PORT -> listen.port
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			key = strings.ToLower(strings.ReplaceAll(key, "_", ""))
			if mapped, ok := canonical[key]; ok {
				return mapped
			}
			return key
		}
		if err := k.Load(env.Provider(l.envPrefix+"_", ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts cfg into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	retry := func(r RetryConfig) map[string]any {
		return map[string]any{
			"maxAttempts":       r.MaxAttempts,
			"initialBackoff":    r.InitialBackoff,
			"maxBackoff":        r.MaxBackoff,
			"backoffMultiplier": r.BackoffMultiplier,
		}
	}
	return map[string]any{
		"version":     cfg.Version,
		"storePrefix": cfg.StorePrefix,
		"upstream":    cfg.Upstream,
		"offlinePath": cfg.OfflinePath,
		"manifest":    cfg.Manifest,
		"listen": map[string]any{
			"address": cfg.Listen.Address,
			"port":    cfg.Listen.Port,
		},
		"routes": map[string]any{
			"networkFirst": cfg.Routes.NetworkFirst,
			"cacheFirst":   cfg.Routes.CacheFirst,
		},
		"sync": map[string]any{
			"base":  cfg.Sync.Base,
			"tag":   cfg.Sync.Tag,
			"retry": retry(cfg.Sync.Retry),
		},
		"store": map[string]any{
			"backend": cfg.Store.Backend,
			"redis": map[string]any{
				"address":  cfg.Store.Redis.Address,
				"username": cfg.Store.Redis.Username,
				"password": cfg.Store.Redis.Password,
				"db":       cfg.Store.Redis.DB,
				"prefix":   cfg.Store.Redis.Prefix,
			},
		},
		"queue": map[string]any{
			"backend": cfg.Queue.Backend,
			"path":    cfg.Queue.Path,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"pretty": cfg.Logging.Pretty,
		},
		"precache": map[string]any{
			"concurrency": cfg.Precache.Concurrency,
			"retry":       retry(cfg.Precache.Retry),
		},
		"network": map[string]any{
			"timeout":   cfg.Network.Timeout,
			"userAgent": cfg.Network.UserAgent,
		},
		"connectivity": map[string]any{
			"failureThreshold": cfg.Connectivity.FailureThreshold,
			"probeInterval":    cfg.Connectivity.ProbeInterval,
			"probePath":        cfg.Connectivity.ProbePath,
		},
	}
}
