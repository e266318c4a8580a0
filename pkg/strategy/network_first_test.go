package strategy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/smartattend/swcache/internal/testutil"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

func TestNetworkFirst_CachesOKResponse(t *testing.T) {
	exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
	origin.SetResponse("/api/students", testutil.MockResponse{Body: `[{"id":1}]`})
	url := origin.URL() + "/api/students"

	res, err := exec.NetworkFirst(context.Background(), newRequest(t, url, nil))
	if err != nil {
		t.Fatalf("NetworkFirst failed: %v", err)
	}
	if res.Source != SourceNetwork {
		t.Errorf("Source = %s, want %s", res.Source, SourceNetwork)
	}
	if body := readBody(t, res.Response); body != `[{"id":1}]` {
		t.Errorf("body = %q", body)
	}

	if body, ok := stored(t, manager, dynamicStore, url); !ok || body != `[{"id":1}]` {
		t.Errorf("dynamic store = %q, %v; want network body", body, ok)
	}
}

func TestNetworkFirst_NonOKNotCached(t *testing.T) {
	exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
	origin.SetResponse("/api/report", testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: "boom"})
	url := origin.URL() + "/api/report"
	seed(t, manager, dynamicStore, url, "old report")

	res, err := exec.NetworkFirst(context.Background(), newRequest(t, url, nil))
	if err != nil {
		t.Fatalf("NetworkFirst failed: %v", err)
	}
	if res.Response.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", res.Response.StatusCode)
	}
	readBody(t, res.Response)

	if body, _ := stored(t, manager, dynamicStore, url); body != "old report" {
		t.Errorf("dynamic store = %q, want previous copy kept", body)
	}
}

func TestNetworkFirst_OfflineServesCachedCopy(t *testing.T) {
	exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
	url := origin.URL() + "/api/students"
	cached := `[{"id":1,"name":"Asha"}]`
	seed(t, manager, dynamicStore, url, cached)
	origin.SetOffline(true)

	res, err := exec.NetworkFirst(context.Background(), newRequest(t, url, nil))
	if err != nil {
		t.Fatalf("NetworkFirst failed: %v", err)
	}
	if res.Source != SourceCache {
		t.Errorf("Source = %s, want %s", res.Source, SourceCache)
	}
	if body := readBody(t, res.Response); body != cached {
		t.Errorf("body = %q, want byte-identical cached copy %q", body, cached)
	}
}

func TestNetworkFirst_OfflineIgnoresStaticStore(t *testing.T) {
	exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
	url := origin.URL() + "/api/students"
	seed(t, manager, staticStore, url, "static copy")
	origin.SetOffline(true)

	_, err := exec.NetworkFirst(context.Background(), newRequest(t, url, nil))
	if !errors.Is(err, network.ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestNetworkFirst_OfflineDocument(t *testing.T) {
	tests := []struct {
		name        string
		seedOffline bool
		want        string
	}{
		{"inline placeholder", false, OfflineHTML},
		{"cached offline page", true, "<html>cached offline page</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, manager, origin := newTestExecutor(t, store.NewMemoryBackend())
			if tt.seedOffline {
				seed(t, manager, staticStore, origin.URL()+"/offline.html", tt.want)
			}
			origin.SetOffline(true)

			req := newRequest(t, origin.URL()+"/dashboard/today", map[string]string{"Accept": "text/html"})
			res, err := exec.NetworkFirst(context.Background(), req)
			if err != nil {
				t.Fatalf("NetworkFirst failed: %v", err)
			}
			if res.Source != SourceOffline {
				t.Errorf("Source = %s, want %s", res.Source, SourceOffline)
			}
			if body := readBody(t, res.Response); body != tt.want {
				t.Errorf("body = %q, want %q", body, tt.want)
			}
		})
	}
}

func TestNetworkFirst_OfflineNonDocumentPropagates(t *testing.T) {
	exec, _, origin := newTestExecutor(t, store.NewMemoryBackend())
	origin.SetOffline(true)

	req := newRequest(t, origin.URL()+"/api/students", map[string]string{"Accept": "application/json"})
	_, err := exec.NetworkFirst(context.Background(), req)
	if !errors.Is(err, network.ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestNetworkFirst_StorageFailureIsMiss(t *testing.T) {
	exec, _, origin := newTestExecutor(t, brokenBackend{})
	origin.SetResponse("/api/students", testutil.MockResponse{Body: "fresh"})

	res, err := exec.NetworkFirst(context.Background(), newRequest(t, origin.URL()+"/api/students", nil))
	if err != nil {
		t.Fatalf("NetworkFirst failed despite network success: %v", err)
	}
	if body := readBody(t, res.Response); body != "fresh" {
		t.Errorf("body = %q, want fresh", body)
	}

	origin.SetOffline(true)
	req := newRequest(t, origin.URL()+"/attendance", map[string]string{"Sec-Fetch-Dest": "document"})
	res, err = exec.NetworkFirst(context.Background(), req)
	if err != nil {
		t.Fatalf("NetworkFirst failed: %v", err)
	}
	if body := readBody(t, res.Response); !strings.Contains(body, "offline") {
		t.Errorf("body = %q, want offline placeholder", body)
	}
}
