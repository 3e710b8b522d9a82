package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printrelay/printrelay/internal/dispatch"
	"github.com/printrelay/printrelay/internal/escpos"
	"github.com/printrelay/printrelay/internal/jobs"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/queue"
	"github.com/printrelay/printrelay/internal/retry"
	"github.com/printrelay/printrelay/internal/ws"
)

func TestMain(m *testing.M) {
	logger.Init("api-test", "error", "console")
	m.Run()
}

type nullTransport struct{}

func (nullTransport) Send(ctx context.Context, raw []byte) error { return nil }

// newTestServer builds a server around a live queue. The dispatcher is
// never started so queued jobs stay put for the handlers to see.
func newTestServer(t *testing.T) (*Server, *queue.Queue) {
	t.Helper()
	q := queue.New()
	pol := retry.NewPolicy(3, time.Millisecond, 10*time.Millisecond, 1)
	d := dispatch.New(q, escpos.New(48, nil, nil), nullTransport{}, pol, time.Second)
	hub := ws.NewHub()
	return NewServer(q, d, hub, 0, time.Second, time.Second), q
}

func testReceipt() *jobs.Receipt {
	return &jobs.Receipt{
		PurchaseID: 7,
		Items: []jobs.PurchasedItem{
			{Item: jobs.Item{Name: "Caffe", Price: 1.2}, Quantity: 1},
		},
		Total:         1.2,
		PaymentMethod: "CONTANTI",
		GivenAmount:   1.2,
	}
}

func enqueue(t *testing.T, q *queue.Queue, id string) {
	t.Helper()
	require.NoError(t, q.Enqueue(&jobs.PrintJob{ID: id, Receipt: testReceipt(), EnqueuedAt: time.Now()}))
}

func TestListJobs(t *testing.T) {
	s, q := newTestServer(t)
	enqueue(t, q, "purchase-1")
	enqueue(t, q, "purchase-2")

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Jobs  []jobs.PrintJob `json:"jobs"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Jobs, 2)
}

func TestGetJob(t *testing.T) {
	s, q := newTestServer(t)
	enqueue(t, q, "purchase-7")

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/purchase-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job jobs.PrintJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "purchase-7", job.ID)
	assert.Equal(t, jobs.StatePending, job.State)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJob(t *testing.T) {
	s, q := newTestServer(t)
	enqueue(t, q, "purchase-7")

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/purchase-7", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, q.Depth())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/purchase-7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelInFlightJobConflicts(t *testing.T) {
	s, q := newTestServer(t)
	enqueue(t, q, "purchase-7")
	_, ok := q.DequeueReady(time.Now())
	require.True(t, ok)

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/purchase-7", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJobsRejectsOtherMethods(t *testing.T) {
	s, _ := newTestServer(t)

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/purchase-1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func TestHealthEndpoints(t *testing.T) {
	s, q := newTestServer(t)
	enqueue(t, q, "purchase-1")

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status     string `json:"status"`
		Service    string `json:"service"`
		QueueDepth int    `json:"queue_depth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "printrelay", health.Service)
	assert.Equal(t, 1, health.QueueDepth)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessReportsFailingPinger(t *testing.T) {
	q := queue.New()
	pol := retry.NewPolicy(3, time.Millisecond, 10*time.Millisecond, 1)
	d := dispatch.New(q, escpos.New(48, nil, nil), nullTransport{}, pol, time.Second)

	s := NewServer(q, d, ws.NewHub(), 0, time.Second, time.Second, fakePinger{err: errors.New("printer offline")})

	mux := http.NewServeMux()
	s.addRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
