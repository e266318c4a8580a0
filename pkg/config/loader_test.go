package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "").Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Version != def.Version || cfg.Listen.Port != 8080 {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if len(cfg.Manifest) != 7 {
		t.Errorf("Manifest len = %d, want 7", len(cfg.Manifest))
	}
	if cfg.Sync.Tag != "attendance-sync" {
		t.Errorf("Sync.Tag = %q", cfg.Sync.Tag)
	}
	if cfg.Network.Timeout != 30*time.Second {
		t.Errorf("Network.Timeout = %v", cfg.Network.Timeout)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "swcache.yaml", `
version: "2.0.0"
upstream: https://attendance.example.com
listen:
  port: 9000
routes:
  networkFirst:
    - /api/
    - /reports/
store:
  backend: redis
  redis:
    address: redis:6379
sync:
  retry:
    initialBackoff: 2s
logging:
  level: warn
  components:
    syncq: debug
`)
	t.Setenv("SWCACHE_LISTEN__PORT", "9100")
	t.Setenv("SWCACHE_STORE_PREFIX", "campus")
	t.Setenv("SWCACHE_QUEUE__BACKEND", "memory")

	cfg, err := NewLoader(EnvPrefix, path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file version", cfg.Version, "2.0.0"},
		{"file upstream", cfg.Upstream, "https://attendance.example.com"},
		{"env beats file", cfg.Listen.Port, 9100},
		{"env camelCase key", cfg.StorePrefix, "campus"},
		{"env nested", cfg.Queue.Backend, "memory"},
		{"file backend", cfg.Store.Backend, "redis"},
		{"file duration", cfg.Sync.Retry.InitialBackoff, 2 * time.Second},
		{"default kept", cfg.Sync.Retry.MaxAttempts, 5},
		{"file list", strings.Join(cfg.Routes.NetworkFirst, ","), "/api/,/reports/"},
		{"file log level", cfg.LoggerConfig().Level, "warn"},
		{"file component level", cfg.LoggerConfig().Components["syncq"], "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader("", filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty version", func(c *Config) { c.Version = " " }, "version"},
		{"relative upstream", func(c *Config) { c.Upstream = "/app" }, "absolute"},
		{"bad port", func(c *Config) { c.Listen.Port = 70000 }, "port"},
		{"unknown store backend", func(c *Config) { c.Store.Backend = "disk" }, "store backend"},
		{"redis without address", func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Store.Redis.Address = ""
		}, "redis.address"},
		{"unknown queue backend", func(c *Config) { c.Queue.Backend = "kafka" }, "queue backend"},
		{"sqlite without path", func(c *Config) { c.Queue.Path = "" }, "queue.path"},
		{"zero concurrency", func(c *Config) { c.Precache.Concurrency = 0 }, "concurrency"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"unknown component level", func(c *Config) {
			c.Logging.Components = map[string]string{"syncq": "chatty"}
		}, "logging.components.syncq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSyncEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"/api", "http://localhost:3000/api/attendance/sync"},
		{"https://sync.example.com/v2", "https://sync.example.com/v2/attendance/sync"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Sync.Base = tt.base
		got, err := cfg.SyncEndpoint()
		if err != nil {
			t.Fatalf("SyncEndpoint() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("SyncEndpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "swcache.yaml", "routes:\n  networkFirst: [/api/]\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	w, err := NewLoader("", path).Watch(ctx, func(c Config) { changes <- c }, nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Stop()

	writeFile(t, dir, "swcache.yaml", "routes:\n  networkFirst: [/api/, /reports/]\n")

	select {
	case cfg := <-changes:
		if len(cfg.Routes.NetworkFirst) != 2 {
			t.Errorf("NetworkFirst = %v, want 2 entries", cfg.Routes.NetworkFirst)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after file change")
	}
}

func TestWatch_InvalidReloadReported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "swcache.yaml", "version: \"1\"\n")

	errs := make(chan error, 4)
	w, err := NewLoader("", path).Watch(context.Background(), func(Config) {}, func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Stop()

	writeFile(t, dir, "swcache.yaml", "version: \"\"\n")

	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "version") {
			t.Errorf("error = %v, want validation failure", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invalid reload was not reported")
	}
}

func TestWatch_RequiresFile(t *testing.T) {
	if _, err := NewLoader("", "").Watch(context.Background(), func(Config) {}, nil); err == nil {
		t.Error("Watch without a file should fail")
	}
}
