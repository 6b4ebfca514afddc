package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

func sampleMetric() domain.Metric {
	return domain.Metric{
		Path:         "/api/tasks/1",
		Method:       "GET",
		StatusCode:   200,
		ResponseTime: 33.2,
		Timestamp:    time.Date(2026, time.August, 30, 10, 0, 0, 0, time.UTC),
		Service:      "task-service",
	}
}

func TestEmitPostsMetric(t *testing.T) {
	var got domain.Metric
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode failed: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new emitter failed: %v", err)
	}
	if err := e.Emit(context.Background(), sampleMetric()); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if path != "/metrics/store" {
		t.Fatalf("expected POST to /metrics/store, got %s", path)
	}
	if got.Path != "/api/tasks/1" || got.StatusCode != 200 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestEmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new emitter failed: %v", err)
	}
	if err := e.Emit(context.Background(), sampleMetric()); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestEmitDoesNotRetryValidationRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "path required", http.StatusBadRequest)
	}))
	defer srv.Close()

	e, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new emitter failed: %v", err)
	}
	err = e.Emit(context.Background(), sampleMetric())
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("   ", nil); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
