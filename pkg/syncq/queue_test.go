package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/smartattend/swcache/internal/testutil"
	"github.com/smartattend/swcache/pkg/clients"
	"github.com/smartattend/swcache/pkg/network"
)

// recordingNotifier captures broadcast messages.
type recordingNotifier struct {
	messages []clients.Message
}

func (n *recordingNotifier) Broadcast(msg clients.Message) int {
	n.messages = append(n.messages, msg)
	return 1
}

func newTestQueue(t *testing.T, status int) (*Queue, *testutil.MockOrigin, *recordingNotifier) {
	t.Helper()
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	origin.SetResponse("/api"+SyncPath, testutil.MockResponse{StatusCode: status, Body: `{"ok":true}`})

	notifier := &recordingNotifier{}
	q := New(NewMemoryStorage(), network.New(network.Config{Timeout: 2 * time.Second}), Endpoint(origin.URL()+"/api"), notifier)
	return q, origin, notifier
}

func enqueueN(t *testing.T, q *Queue, n int) []Record {
	t.Helper()
	var out []Record
	for i := 0; i < n; i++ {
		rec, err := q.Enqueue(context.Background(), "/api/attendance", []byte(`{"student":"s1","present":true}`))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"/api", "/api/attendance/sync"},
		{"/api/", "/api/attendance/sync"},
		{"https://app.example.com/api", "https://app.example.com/api/attendance/sync"},
	}
	for _, tt := range tests {
		if got := Endpoint(tt.base); got != tt.want {
			t.Errorf("Endpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestEnqueue_RejectsInvalidJSON(t *testing.T) {
	q, _, _ := newTestQueue(t, http.StatusOK)
	_, err := q.Enqueue(context.Background(), "/api/attendance", []byte("not json"))
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("error = %v, want ErrInvalidRecord", err)
	}
}

func TestEnqueue_AssignsUniqueIDs(t *testing.T) {
	q, _, _ := newTestQueue(t, http.StatusOK)
	recs := enqueueN(t, q, 2)
	if recs[0].ID == "" || recs[0].ID == recs[1].ID {
		t.Errorf("ids = %q, %q; want distinct", recs[0].ID, recs[1].ID)
	}
}

func TestFlush_Acknowledged(t *testing.T) {
	q, origin, notifier := newTestQueue(t, http.StatusOK)
	submitted := enqueueN(t, q, 3)

	n, err := q.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Flush() = %d, want 3", n)
	}

	pending, _ := q.Pending(context.Background())
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	requests := origin.Requests()
	if len(requests) != 1 {
		t.Fatalf("origin saw %d requests, want exactly 1", len(requests))
	}
	if requests[0].Method != http.MethodPost {
		t.Errorf("method = %s, want POST", requests[0].Method)
	}
	var batch []Record
	if err := json.Unmarshal(requests[0].Body, &batch); err != nil {
		t.Fatalf("batch is not a JSON array of records: %v", err)
	}
	if len(batch) != 3 || batch[0].ID != submitted[0].ID {
		t.Errorf("batch = %+v, want the 3 submitted records", batch)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if msg.Type != clients.TypeSyncSuccess {
		t.Errorf("Type = %q, want %q", msg.Type, clients.TypeSyncSuccess)
	}
	var data clients.SyncSuccess
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.RecordCount != 3 {
		t.Errorf("data = %s, want recordCount 3", msg.Data)
	}
}

func TestFlush_Rejected(t *testing.T) {
	q, _, notifier := newTestQueue(t, http.StatusInternalServerError)
	enqueueN(t, q, 2)

	n, err := q.Flush(context.Background())
	if n != 0 {
		t.Errorf("Flush() = %d, want 0", n)
	}
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("error = %v, want ErrSubmission", err)
	}
	var subErr *SubmissionError
	if !errors.As(err, &subErr) || subErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %#v, want SubmissionError with status 500", err)
	}
	if !errors.Is(err, network.ErrNetwork) {
		t.Errorf("error = %v, want wrapped NetworkError", err)
	}

	pending, _ := q.Pending(context.Background())
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2 untouched", len(pending))
	}
	if len(notifier.messages) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifier.messages))
	}
}

func TestFlush_Offline(t *testing.T) {
	q, origin, notifier := newTestQueue(t, http.StatusOK)
	enqueueN(t, q, 1)
	origin.SetOffline(true)

	_, err := q.Flush(context.Background())
	var subErr *SubmissionError
	if !errors.As(err, &subErr) || subErr.StatusCode != 0 {
		t.Fatalf("error = %v, want SubmissionError without status", err)
	}
	pending, _ := q.Pending(context.Background())
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
	if len(notifier.messages) != 0 {
		t.Error("no notification expected on failure")
	}

	origin.SetOffline(false)
	if n, err := q.Flush(context.Background()); err != nil || n != 1 {
		t.Errorf("retry Flush() = %d, %v; want 1, nil", n, err)
	}
}

func TestFlush_EmptyIsNoop(t *testing.T) {
	q, origin, notifier := newTestQueue(t, http.StatusOK)

	n, err := q.Flush(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Flush() = %d, %v; want 0, nil", n, err)
	}
	if c := origin.RequestCount("/api" + SyncPath); c != 0 {
		t.Errorf("origin saw %d requests, want 0", c)
	}
	if len(notifier.messages) != 0 {
		t.Error("no notification expected for an empty queue")
	}
}

func TestFlush_KeepsRecordsAddedDuringSubmission(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	storage := NewMemoryStorage()
	q := New(storage, network.New(network.Config{Timeout: 2 * time.Second}), Endpoint(origin.URL()+"/api"), nil)
	enqueueN(t, q, 2)

	origin.SetHandler("/api"+SyncPath, func(w http.ResponseWriter, r *http.Request) {
		// a write arrives while the batch is in flight
		_ = storage.Add(context.Background(), Record{ID: "late", Endpoint: "/api/attendance", Payload: []byte(`{}`)})
		w.WriteHeader(http.StatusOK)
	})

	if n, err := q.Flush(context.Background()); err != nil || n != 2 {
		t.Fatalf("Flush() = %d, %v; want 2, nil", n, err)
	}
	pending, _ := q.Pending(context.Background())
	if len(pending) != 1 || pending[0].ID != "late" {
		t.Errorf("pending = %+v, want only the late record", pending)
	}
}

func TestNew_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New should panic with nil storage")
		}
	}()
	New(nil, network.New(network.DefaultConfig()), "/api/attendance/sync", nil)
}
