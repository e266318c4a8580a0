package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/metrics"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/strategy"
)

// Response headers set by the proxy.
const (
	HeaderSource = "X-Swcache-Source"
	HeaderQueued = "X-Swcache-Queued"
)

// ControlPrefix is the path prefix of the control endpoints.
const ControlPrefix = "/__swcache/"

// maxBodyBytes bounds request bodies buffered for queueing.
const maxBodyBytes = 1 << 20

// hop-by-hop headers are not forwarded.
var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// ProxyConfig configures the proxy.
type ProxyConfig struct {
	// Upstream is the origin every request is forwarded to.
	Upstream *url.URL

	// QueuePaths lists path prefixes whose failed writes are queued for sync.
	QueuePaths []string
}

// Proxy turns incoming HTTP requests into fetch events.
type Proxy struct {
	runtime *Runtime
	config  ProxyConfig
	control *http.ServeMux
	logger  zerolog.Logger
}

// NewProxy creates a Proxy for runtime.
func NewProxy(runtime *Runtime, cfg ProxyConfig) *Proxy {
	if runtime == nil {
		panic("runtime cannot be nil")
	}
	if cfg.Upstream == nil {
		panic("upstream cannot be nil")
	}
	if cfg.QueuePaths == nil {
		cfg.QueuePaths = []string{"/api/attendance"}
	}
	p := &Proxy{
		runtime: runtime,
		config:  cfg,
		control: http.NewServeMux(),
		logger:  logging.NewLogger("proxy"),
	}
	p.routes()
	return p
}

func (p *Proxy) routes() {
	p.control.HandleFunc("POST "+ControlPrefix+"message", p.handleMessage)
	p.control.HandleFunc("POST "+ControlPrefix+"sync", p.handleSync)
	p.control.HandleFunc("GET "+ControlPrefix+"events", p.handleEvents)
	p.control.HandleFunc("GET "+ControlPrefix+"stores", p.handleStores)
	p.control.HandleFunc("GET "+ControlPrefix+"queue", p.handleQueue)
	p.control.HandleFunc("GET "+ControlPrefix+"health", p.handleHealth)
	p.control.Handle("GET "+ControlPrefix+"metrics", metrics.Handler())
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, ControlPrefix) {
		p.control.ServeHTTP(w, r)
		return
	}

	var body []byte
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		body = data
	}

	out, err := p.outgoing(r, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tk := p.runtime.Router().Fetch(r.Context(), out)
	res, err := tk.Await(r.Context())
	if err != nil {
		p.handleFetchError(w, r, body, err)
		return
	}
	p.writeResult(w, res)
}

// outgoing builds the upstream request for r.
func (p *Proxy) outgoing(r *http.Request, body []byte) (*http.Request, error) {
	target := *p.config.Upstream
	target.Path = singleJoin(p.config.Upstream.Path, r.URL.Path)
	target.RawPath = ""
	target.RawQuery = r.URL.RawQuery

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	return out, nil
}

func (p *Proxy) writeResult(w http.ResponseWriter, res *strategy.Result) {
	resp := res.Response
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}
	w.Header().Set(HeaderSource, string(res.Source))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug().Err(err).Msg("Client went away while copying response")
	}
}

func (p *Proxy) handleFetchError(w http.ResponseWriter, r *http.Request, body []byte, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, network.ErrNetwork) && p.queueable(r) {
		rec, qerr := p.runtime.Queue().Enqueue(r.Context(), r.URL.Path, body)
		if qerr == nil {
			p.runtime.RegisterSync(p.runtime.Router().SyncTag())
			w.Header().Set(HeaderQueued, "true")
			writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "id": rec.ID})
			return
		}
		p.logger.Warn().Err(qerr).Str("path", r.URL.Path).Msg("Failed to queue offline write")
	}

	p.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Request could not be resolved")
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

// queueable reports whether a failed write to r's path is deferred.
func (p *Proxy) queueable(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	for _, prefix := range p.config.QueuePaths {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

func singleJoin(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	}
	return a + b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
