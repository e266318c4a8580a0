package strategy

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/smartattend/swcache/internal/testutil"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

func TestCacheFirst_HitSkipsNetwork(t *testing.T) {
	tests := []struct {
		name  string
		store string
	}{
		{"static store", staticStore},
		{"dynamic store", dynamicStore},
		{"legacy store", "smartattend-v1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
			origin.SetResponse("/static/css/main.css", testutil.MockResponse{Body: "network"})
			url := origin.URL() + "/static/css/main.css"
			seed(t, manager, tt.store, url, "body{}")

			res, err := exec.CacheFirst(context.Background(), newRequest(t, url, nil))
			if err != nil {
				t.Fatalf("CacheFirst failed: %v", err)
			}
			if body := readBody(t, res.Response); body != "body{}" {
				t.Errorf("body = %q, want cached", body)
			}
			if n := origin.RequestCount("/static/css/main.css"); n != 0 {
				t.Errorf("origin saw %d requests, want 0", n)
			}
		})
	}
}

func TestCacheFirst_MissFetchesAndStores(t *testing.T) {
	exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
	origin.SetResponse("/assets/logo.png", testutil.MockResponse{
		Body:    "png-bytes",
		Headers: map[string]string{"Content-Type": "image/png"},
	})
	url := origin.URL() + "/assets/logo.png"

	res, err := exec.CacheFirst(context.Background(), newRequest(t, url, nil))
	if err != nil {
		t.Fatalf("CacheFirst failed: %v", err)
	}
	if res.Source != SourceNetwork {
		t.Errorf("Source = %s, want network", res.Source)
	}
	if body := readBody(t, res.Response); body != "png-bytes" {
		t.Errorf("body = %q", body)
	}
	if body, ok := stored(t, manager, staticStore, url); !ok || body != "png-bytes" {
		t.Errorf("static store = %q, %v", body, ok)
	}

	// second resolution is served from the store
	res, err = exec.CacheFirst(context.Background(), newRequest(t, url, nil))
	if err != nil {
		t.Fatalf("CacheFirst failed: %v", err)
	}
	readBody(t, res.Response)
	if n := origin.RequestCount("/assets/logo.png"); n != 1 {
		t.Errorf("origin saw %d requests, want 1", n)
	}
}

func TestCacheFirst_NonOKNotStored(t *testing.T) {
	exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
	url := origin.URL() + "/assets/missing.png"

	res, err := exec.CacheFirst(context.Background(), newRequest(t, url, nil))
	if err != nil {
		t.Fatalf("CacheFirst failed: %v", err)
	}
	if res.Response.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", res.Response.StatusCode)
	}
	readBody(t, res.Response)
	if _, ok := stored(t, manager, staticStore, url); ok {
		t.Error("404 response should not be stored")
	}
}

func TestCacheFirst_OfflineMissPropagates(t *testing.T) {
	exec, _, origin := newTestExecutor(t, store.NewMemoryBackend())
	origin.SetOffline(true)

	_, err := exec.CacheFirst(context.Background(), newRequest(t, origin.URL()+"/assets/icon.svg", nil))
	if !errors.Is(err, network.ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}
