// Package testutil provides test helpers for the offline cache.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock origin path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request observed by the origin.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// MockOrigin is a configurable origin server for testing.
// While offline, every connection is dropped without a response so that
// clients observe a network failure rather than an HTTP status.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	offline  bool
	requests []RecordedRequest
	counts   map[string]int
}

// NewMockOrigin starts a new mock origin.
func NewMockOrigin() *MockOrigin {
	m := &MockOrigin{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockOrigin) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	offline := m.offline
	if !offline {
		m.requests = append(m.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		m.counts[r.URL.Path]++
	}
	handler, ok := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if offline {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}

	if ok {
		handler(w, r)
		return
	}
	http.NotFound(w, r)
}

// URL returns the origin base URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Client returns an HTTP client bound to the origin.
func (m *MockOrigin) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the origin.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// SetOffline toggles simulated loss of connectivity.
func (m *MockOrigin) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// SetHandler sets a custom handler for path.
func (m *MockOrigin) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns how many requests reached path while online.
func (m *MockOrigin) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// Requests returns a copy of every request observed while online.
func (m *MockOrigin) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// Reset clears recorded requests and counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.counts = make(map[string]int)
}
