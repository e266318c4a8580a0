package host

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/smartattend/swcache/pkg/clients"
)

func (p *Proxy) handleMessage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}
	msg, err := clients.ParseMessage(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.runtime.Deliver(r.Context(), msg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Proxy) handleSync(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		tag = p.runtime.Router().SyncTag()
	}
	p.runtime.RegisterSync(tag)
	writeJSON(w, http.StatusAccepted, map[string]string{"tag": tag})
}

// handleEvents streams client messages as server-sent events.
func (p *Proxy) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	registry := p.runtime.Registry()
	client := registry.Connect(r.URL.Query().Get("client"))
	defer registry.Disconnect(client.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: hello\ndata: {\"client\":%q}\n\n", client.ID())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				p.logger.Warn().Err(err).Msg("Failed to encode client message")
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (p *Proxy) handleStores(w http.ResponseWriter, r *http.Request) {
	names, err := p.runtime.Stores().ListStores(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": names})
}

func (p *Proxy) handleQueue(w http.ResponseWriter, r *http.Request) {
	records, err := p.runtime.Queue().Pending(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": len(records), "records": records})
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctrl := p.runtime.Lifecycle()
	state := p.runtime.Tracker().State()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  ctrl.Version(),
		"phase":    ctrl.Phase().String(),
		"online":   state.Online,
		"syncTags": p.runtime.Registered(),
		"clients":  len(p.runtime.Registry().MatchAll()),
	})
}
