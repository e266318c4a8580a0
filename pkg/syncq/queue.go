package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/clients"
	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
)

var (
	recordsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swcache_sync_records_enqueued_total",
		Help: "Total pending writes enqueued",
	})

	recordsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swcache_sync_records_synced_total",
		Help: "Total pending writes acknowledged by the server",
	})

	flushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_sync_flush_total",
		Help: "Total flush attempts by result",
	}, []string{"result"})
)

// SyncPath is appended to the API base to form the batch endpoint.
const SyncPath = "/attendance/sync"

// Endpoint returns the batch endpoint for an API base such as
// "https://app.example.com/api".
func Endpoint(base string) string {
	return strings.TrimRight(base, "/") + SyncPath
}

// Notifier broadcasts messages to connected clients.
type Notifier interface {
	Broadcast(msg clients.Message) int
}

// Queue holds pending writes and flushes them to the server.
type Queue struct {
	storage  Storage
	fetcher  network.Fetcher
	endpoint string
	notifier Notifier
	logger   zerolog.Logger

	// serializes flushes so one batch is in flight at a time
	flushMu sync.Mutex
}

// New creates a Queue that submits batches to endpoint.
func New(storage Storage, fetcher network.Fetcher, endpoint string, notifier Notifier) *Queue {
	if storage == nil {
		panic("queue storage cannot be nil")
	}
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	return &Queue{
		storage:  storage,
		fetcher:  fetcher,
		endpoint: endpoint,
		notifier: notifier,
		logger:   logging.NewLogger("syncq"),
	}
}

// Enqueue records a write that could not reach endpoint.
func (q *Queue) Enqueue(ctx context.Context, endpoint string, payload []byte) (Record, error) {
	if !json.Valid(payload) {
		return Record{}, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidRecord)
	}
	rec := Record{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	if err := q.storage.Add(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("enqueue pending write: %w", err)
	}
	recordsEnqueued.Inc()
	q.logger.Info().Str("id", rec.ID).Str("endpoint", endpoint).Msg("Pending write queued")
	return rec, nil
}

// Pending returns every queued record, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Record, error) {
	return q.storage.List(ctx)
}

// Flush submits every pending record in one batch. On acknowledgement it
// removes exactly the submitted records, notifies every client and returns
// the number of records synced. On failure the queue is left unchanged and
// a *SubmissionError is returned. An empty queue is a no-op.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	records, err := q.storage.List(ctx)
	if err != nil {
		flushTotal.WithLabelValues("storage_error").Inc()
		return 0, fmt.Errorf("read pending writes: %w", err)
	}
	if len(records) == 0 {
		flushTotal.WithLabelValues("empty").Inc()
		return 0, nil
	}

	if err := q.submit(ctx, records); err != nil {
		flushTotal.WithLabelValues("failed").Inc()
		q.logger.Warn().Err(err).Int("records", len(records)).Msg("Sync submission failed")
		return 0, err
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := q.storage.Remove(ctx, ids); err != nil {
		// the server has the batch; leftovers are re-sent and de-duplicated
		flushTotal.WithLabelValues("storage_error").Inc()
		return 0, fmt.Errorf("remove synced writes: %w", err)
	}

	flushTotal.WithLabelValues("ok").Inc()
	recordsSynced.Add(float64(len(records)))
	q.logger.Info().Int("records", len(records)).Msg("Pending writes synced")

	if q.notifier != nil {
		q.notifier.Broadcast(clients.SyncSuccessMessage(len(records)))
	}
	return len(records), nil
}

func (q *Queue) submit(ctx context.Context, records []Record) error {
	body, err := json.Marshal(records)
	if err != nil {
		return &SubmissionError{Records: len(records), Err: fmt.Errorf("encode batch: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.endpoint, bytes.NewReader(body))
	if err != nil {
		return &SubmissionError{Records: len(records), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.fetcher.Fetch(req)
	if err != nil {
		return &SubmissionError{Records: len(records), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !network.IsOK(resp) {
		return &SubmissionError{
			StatusCode: resp.StatusCode,
			Records:    len(records),
			Err:        network.StatusError(q.endpoint, resp.StatusCode),
		}
	}
	return nil
}
