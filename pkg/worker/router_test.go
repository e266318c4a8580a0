package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/smartattend/swcache/internal/testutil"
	"github.com/smartattend/swcache/pkg/clients"
	"github.com/smartattend/swcache/pkg/lifecycle"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/route"
	"github.com/smartattend/swcache/pkg/store"
	"github.com/smartattend/swcache/pkg/strategy"
	"github.com/smartattend/swcache/pkg/syncq"
)

type fixture struct {
	router   *Router
	origin   *testutil.MockOrigin
	stores   *store.Manager
	ctrl     *lifecycle.Controller
	queue    *syncq.Queue
	registry *clients.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	base, _ := url.Parse(origin.URL())

	client := network.New(network.Config{Timeout: 2 * time.Second})
	stores := store.NewManager(store.NewMemoryBackend())
	registry := clients.NewRegistry()
	ctrl := lifecycle.New(stores, client, registry, lifecycle.Config{
		Version:  "1.0.0",
		Origin:   base,
		Manifest: []string{"/index.html"},
	})
	names := ctrl.Names()
	exec := strategy.New(stores, client, strategy.Config{
		Stores: strategy.Stores{Static: names.Static, Dynamic: names.Dynamic},
	})
	queue := syncq.New(syncq.NewMemoryStorage(), client, syncq.Endpoint(origin.URL()+"/api"), registry)

	return &fixture{
		router: New(Config{
			Executor:  exec,
			Lifecycle: ctrl,
			Queue:     queue,
			Fetcher:   client,
		}),
		origin:   origin,
		stores:   stores,
		ctrl:     ctrl,
		queue:    queue,
		registry: registry,
	}
}

func mustRequest(t *testing.T, method, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, rawURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestNew_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New should panic with missing dependencies")
		}
	}()
	New(Config{})
}

func TestRouter_InstallThenActivate(t *testing.T) {
	f := newFixture(t)
	f.origin.SetResponse("/index.html", testutil.MockResponse{Body: "<html></html>"})
	ctx := context.Background()
	if _, err := f.stores.Open(ctx, "smartattend-static-v0.9.0"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.router.Install(ctx).Await(ctx); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	deleted, err := f.router.Activate(ctx).Await(ctx)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "smartattend-static-v0.9.0" {
		t.Errorf("deleted = %v", deleted)
	}
	if f.ctrl.Phase() != lifecycle.PhaseActive {
		t.Errorf("Phase() = %s, want active", f.ctrl.Phase())
	}
}

func TestRouter_InstallFailureNamesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.router.Install(ctx).Await(ctx)
	if !errors.Is(err, lifecycle.ErrPrecache) {
		t.Fatalf("error = %v, want ErrPrecache", err)
	}
	if !strings.HasPrefix(err.Error(), SlotInstall) {
		t.Errorf("error = %q, want %s prefix", err, SlotInstall)
	}
}

func TestRouter_FetchDispatch(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantSource strategy.Source
		wantBody   string
	}{
		{"network-first serves network", http.MethodGet, "/api/students", strategy.SourceNetwork, "students"},
		{"cache-first serves cache", http.MethodGet, "/static/js/bundle.js", strategy.SourceCache, "cached bundle"},
		{"bypass goes to network", http.MethodPost, "/api/attendance", strategy.SourceNetwork, "marked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.origin.SetResponse("/api/students", testutil.MockResponse{Body: "students"})
			f.origin.SetResponse("/api/attendance", testutil.MockResponse{Body: "marked"})

			static, _ := f.stores.Open(ctx, f.ctrl.Names().Static)
			_ = static.Put(ctx, store.KeyForURL(f.origin.URL()+"/static/js/bundle.js"), &store.Entry{
				Data:       []byte("cached bundle"),
				StatusCode: http.StatusOK,
				Headers:    http.Header{},
			})

			tk := f.router.Fetch(ctx, mustRequest(t, tt.method, f.origin.URL()+tt.path))
			res, err := tk.Await(ctx)
			if err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			defer res.Response.Body.Close()
			body, _ := io.ReadAll(res.Response.Body)
			if res.Source != tt.wantSource || string(body) != tt.wantBody {
				t.Errorf("got %s %q, want %s %q", res.Source, body, tt.wantSource, tt.wantBody)
			}
			_ = tk.Wait(ctx)
		})
	}
}

func TestRouter_BypassIsNeverCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.origin.SetResponse("/api/attendance", testutil.MockResponse{Body: "ok"})

	res, err := f.router.Fetch(ctx, mustRequest(t, http.MethodPut, f.origin.URL()+"/api/attendance")).Await(ctx)
	if err != nil {
		t.Fatal(err)
	}
	res.Response.Body.Close()

	names, _ := f.stores.ListStores(ctx)
	if len(names) != 0 {
		t.Errorf("stores = %v, want none touched", names)
	}
}

func TestRouter_SetPolicy(t *testing.T) {
	f := newFixture(t)
	req := mustRequest(t, http.MethodGet, "http://app.test/reports/today")

	if got := f.router.Classify(req); got != route.StaleWhileRevalidate {
		t.Errorf("Classify() = %s, want stale-while-revalidate", got)
	}
	f.router.SetPolicy(route.NewPolicy(route.Tables{NetworkFirst: []string{"/reports/"}}))
	if got := f.router.Classify(req); got != route.NetworkFirst {
		t.Errorf("Classify() after swap = %s, want network-first", got)
	}
	f.router.SetPolicy(nil)
	if got := f.router.Classify(req); got != route.NetworkFirst {
		t.Errorf("SetPolicy(nil) should keep the current policy, got %s", got)
	}
}

func TestRouter_Sync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.origin.SetResponse("/api/attendance/sync", testutil.MockResponse{Body: "{}"})
	if _, err := f.queue.Enqueue(ctx, "/api/attendance", []byte(`{"present":true}`)); err != nil {
		t.Fatal(err)
	}

	n, err := f.router.Sync(ctx, "other-tag").Await(ctx)
	if err != nil || n != 0 {
		t.Errorf("unknown tag = %d, %v; want 0, nil", n, err)
	}
	if c := f.origin.RequestCount("/api/attendance/sync"); c != 0 {
		t.Errorf("unknown tag reached the server %d times", c)
	}

	n, err = f.router.Sync(ctx, syncq.DefaultTag).Await(ctx)
	if err != nil || n != 1 {
		t.Errorf("Sync = %d, %v; want 1, nil", n, err)
	}
}

func TestRouter_MessageSkipWait(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.router.Message(ctx, clients.Message{Type: "unknown"}).Await(ctx); err != nil {
		t.Fatalf("unknown message failed: %v", err)
	}
	select {
	case <-f.ctrl.Promoted():
		t.Fatal("unknown message must not promote")
	default:
	}

	if _, err := f.router.Message(ctx, clients.Message{Type: clients.TypeSkipWait}).Await(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.ctrl.Promoted():
	default:
		t.Error("skip-wait should request promotion")
	}
}
