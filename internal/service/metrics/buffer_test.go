package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

func testMetric(path string) domain.Metric {
	return domain.Metric{
		Path:         path,
		Method:       "GET",
		StatusCode:   200,
		ResponseTime: 12.5,
		Timestamp:    time.Date(2026, time.August, 30, 10, 0, 0, 0, time.UTC),
		Service:      "task-service",
	}
}

func TestBufferEvictsOldestBeyondCapacity(t *testing.T) {
	buf := NewBuffer(1000)
	for i := 0; i < 1001; i++ {
		buf.Append(testMetric(fmt.Sprintf("/api/tasks/%d", i)))
	}
	if buf.Len() != 1000 {
		t.Fatalf("expected buffer length 1000, got %d", buf.Len())
	}
	entries := buf.Snapshot()
	if entries[0].Metric.Path != "/api/tasks/1" {
		t.Fatalf("expected oldest entry evicted, first is %s", entries[0].Metric.Path)
	}
	if entries[len(entries)-1].Metric.Path != "/api/tasks/1000" {
		t.Fatalf("expected newest entry kept, last is %s", entries[len(entries)-1].Metric.Path)
	}
}

func TestBufferSnapshotDoesNotRemove(t *testing.T) {
	buf := NewBuffer(10)
	buf.Append(testMetric("/api/tasks"))
	buf.Append(testMetric("/api/members"))

	first := buf.Snapshot()
	second := buf.Snapshot()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both snapshots to hold 2 entries, got %d and %d", len(first), len(second))
	}
	if buf.Len() != 2 {
		t.Fatalf("expected buffer untouched by snapshots, got length %d", buf.Len())
	}
}

func TestBufferRemoveConfirmedOnly(t *testing.T) {
	buf := NewBuffer(10)
	for i := 0; i < 5; i++ {
		buf.Append(testMetric(fmt.Sprintf("/api/tasks/%d", i)))
	}
	snapshot := buf.Snapshot()

	// A later append must survive removal of snapshot entries.
	buf.Append(testMetric("/api/tasks/late"))

	confirmed := []uint64{snapshot[0].Seq, snapshot[2].Seq, snapshot[4].Seq}
	buf.Remove(confirmed)

	remaining := buf.Snapshot()
	if len(remaining) != 3 {
		t.Fatalf("expected 3 entries after removal, got %d", len(remaining))
	}
	paths := map[string]bool{}
	for _, entry := range remaining {
		paths[entry.Metric.Path] = true
	}
	for _, want := range []string{"/api/tasks/1", "/api/tasks/3", "/api/tasks/late"} {
		if !paths[want] {
			t.Fatalf("expected %s to remain, have %v", want, paths)
		}
	}
}

func TestBufferRemoveEmptyNoop(t *testing.T) {
	buf := NewBuffer(10)
	buf.Append(testMetric("/api/tasks"))
	buf.Remove(nil)
	if buf.Len() != 1 {
		t.Fatalf("expected buffer unchanged, got length %d", buf.Len())
	}
}
