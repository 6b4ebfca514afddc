package metrics

import (
	"testing"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

func metricAt(path, method string, status int, latency float64, ts time.Time) domain.Metric {
	return domain.Metric{
		Path:         path,
		Method:       method,
		StatusCode:   status,
		ResponseTime: latency,
		Timestamp:    ts,
		Service:      ClassifyService(path),
	}
}

func TestBuildDashboardSummary(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks", "GET", 200, 100, now.Add(-time.Minute)),
		metricAt("/api/tasks", "POST", 201, 200, now.Add(-2*time.Minute)),
		metricAt("/api/members", "GET", 500, 300, now.Add(-3*time.Minute)),
	}

	d := BuildDashboard(snapshot, now)
	if d.TotalRequests != 3 {
		t.Fatalf("expected 3 total requests, got %d", d.TotalRequests)
	}
	if d.AvgResponseTime != 200 {
		t.Fatalf("expected average 200ms, got %f", d.AvgResponseTime)
	}
	wantRate := float64(2) / 3 * 100
	if d.SuccessRate != wantRate {
		t.Fatalf("expected success rate %.2f, got %.2f", wantRate, d.SuccessRate)
	}
	if len(d.RecentMetrics) != 3 {
		t.Fatalf("expected 3 recent metrics, got %d", len(d.RecentMetrics))
	}
}

func TestBuildDashboardEmptySnapshot(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	d := BuildDashboard(nil, now)
	if d.TotalRequests != 0 || d.AvgResponseTime != 0 || d.SuccessRate != 0 {
		t.Fatalf("expected zeroed summary, got %+v", d)
	}
	if len(d.TimeSeriesData) != 24 {
		t.Fatalf("expected 24 zero-filled buckets, got %d", len(d.TimeSeriesData))
	}
	for _, point := range d.TimeSeriesData {
		if point.RequestCount != 0 || point.AvgResponseTime != 0 {
			t.Fatalf("expected empty bucket, got %+v", point)
		}
	}
	if len(d.RecentMetrics) != 0 {
		t.Fatalf("expected no recent metrics, got %d", len(d.RecentMetrics))
	}
}

func TestTimeSeriesBucketPlacement(t *testing.T) {
	// 14:10 reference: a request at 12:40 (90 minutes earlier) belongs to
	// the 12:00 bucket, two buckets before the current one.
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks", "GET", 200, 80, now.Add(-90*time.Minute)),
	}

	points := timeSeries(snapshot, now)
	if len(points) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(points))
	}
	last := points[len(points)-1]
	if last.Timestamp != now.Truncate(time.Hour) {
		t.Fatalf("expected newest bucket at %v, got %v", now.Truncate(time.Hour), last.Timestamp)
	}
	target := points[len(points)-3]
	if target.RequestCount != 1 {
		t.Fatalf("expected request in bucket two hours prior, got %+v", points)
	}
	if target.AvgResponseTime != 80 {
		t.Fatalf("expected bucket average 80ms, got %f", target.AvgResponseTime)
	}
	if last.RequestCount != 0 {
		t.Fatalf("expected newest bucket empty, got %d", last.RequestCount)
	}
}

func TestTimeSeriesIgnoresOutOfWindow(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks", "GET", 200, 80, now.Add(-25*time.Hour)),
		metricAt("/api/tasks", "GET", 200, 80, now.Add(time.Hour)),
	}
	points := timeSeries(snapshot, now)
	for _, point := range points {
		if point.RequestCount != 0 {
			t.Fatalf("expected no in-window requests, got %+v", point)
		}
	}
}

func TestServiceRollupsSortedByCount(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks", "GET", 200, 100, now),
		metricAt("/api/tasks", "GET", 200, 200, now),
		metricAt("/api/tasks", "GET", 502, 300, now),
		metricAt("/api/members", "GET", 200, 50, now),
	}

	rollups := serviceRollups(snapshot)
	if len(rollups) != 2 {
		t.Fatalf("expected 2 services, got %d", len(rollups))
	}
	if rollups[0].Service != "task-service" || rollups[0].Count != 3 {
		t.Fatalf("expected task-service first with count 3, got %+v", rollups[0])
	}
	if rollups[0].AvgResponseTime != 200 {
		t.Fatalf("expected task-service average 200ms, got %f", rollups[0].AvgResponseTime)
	}
	wantSuccess := float64(2) / 3 * 100
	if rollups[0].SuccessRate != wantSuccess {
		t.Fatalf("expected success rate %.2f, got %.2f", wantSuccess, rollups[0].SuccessRate)
	}
	if rollups[0].ErrorRate != 100-wantSuccess {
		t.Fatalf("expected error rate to complement success rate, got %.2f", rollups[0].ErrorRate)
	}
}

func TestEndpointRollups(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks/1", "GET", 200, 100, now.Add(-time.Minute)),
		metricAt("/api/tasks/1", "GET", 200, 200, now.Add(-2*time.Minute)),
		metricAt("/api/tasks/1", "DELETE", 404, 50, now.Add(-3*time.Minute)),
		metricAt("/api/members", "GET", 200, 10, now.Add(-4*time.Minute)),
	}

	rollups := endpointRollups(snapshot)
	if len(rollups) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(rollups))
	}
	top := rollups[0]
	if top.Path != "/api/tasks/1" || top.RequestCount != 3 {
		t.Fatalf("expected /api/tasks/1 first with 3 requests, got %+v", top)
	}
	if top.MostCommonStatusCode != 200 {
		t.Fatalf("expected most common status 200, got %d", top.MostCommonStatusCode)
	}
	if len(top.Methods) != 2 || top.Methods[0].Method != "GET" || top.Methods[0].Count != 2 {
		t.Fatalf("unexpected method breakdown %+v", top.Methods)
	}
	if top.MostRecentTimestamp != now.Add(-time.Minute) {
		t.Fatalf("expected most recent timestamp %v, got %v", now.Add(-time.Minute), top.MostRecentTimestamp)
	}
	if len(top.Metrics) != 3 {
		t.Fatalf("expected 3 raw records, got %d", len(top.Metrics))
	}
}

func TestEndpointRollupsLimitsRawRecords(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := make([]domain.Metric, 0, 15)
	for i := 0; i < 15; i++ {
		snapshot = append(snapshot, metricAt("/api/tasks", "GET", 200, 100, now.Add(-time.Duration(i)*time.Minute)))
	}
	rollups := endpointRollups(snapshot)
	if len(rollups[0].Metrics) != 10 {
		t.Fatalf("expected raw records capped at 10, got %d", len(rollups[0].Metrics))
	}
	// The snapshot arrives newest first, so the cap keeps the newest rows.
	if rollups[0].Metrics[0].Timestamp != now {
		t.Fatalf("expected newest raw record first, got %v", rollups[0].Metrics[0].Timestamp)
	}
}

func TestStatusCodeDistributionSorted(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks", "GET", 200, 1, now),
		metricAt("/api/tasks", "GET", 200, 1, now),
		metricAt("/api/tasks", "GET", 404, 1, now),
		metricAt("/api/tasks", "GET", 500, 1, now),
		metricAt("/api/tasks", "GET", 500, 1, now),
		metricAt("/api/tasks", "GET", 500, 1, now),
	}
	dist := statusCodeDistribution(snapshot)
	if len(dist) != 3 {
		t.Fatalf("expected 3 status codes, got %d", len(dist))
	}
	if dist[0].Code != 500 || dist[0].Count != 3 {
		t.Fatalf("expected 500 first with count 3, got %+v", dist[0])
	}
	if dist[2].Code != 404 || dist[2].Count != 1 {
		t.Fatalf("expected 404 last, got %+v", dist[2])
	}
}

func TestRecentMetricsCapped(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := make([]domain.Metric, 0, 150)
	for i := 0; i < 150; i++ {
		snapshot = append(snapshot, metricAt("/api/tasks", "GET", 200, 1, now.Add(-time.Duration(i)*time.Second)))
	}
	recent := recentMetrics(snapshot)
	if len(recent) != 100 {
		t.Fatalf("expected 100 recent metrics, got %d", len(recent))
	}
	if recent[0].Timestamp != now {
		t.Fatalf("expected newest metric first, got %v", recent[0].Timestamp)
	}
}

func TestBuildDashboardIdempotent(t *testing.T) {
	now := time.Date(2026, time.August, 30, 14, 10, 0, 0, time.UTC)
	snapshot := []domain.Metric{
		metricAt("/api/tasks", "GET", 200, 100, now.Add(-time.Minute)),
		metricAt("/api/members", "GET", 503, 300, now.Add(-2*time.Minute)),
	}
	first := BuildDashboard(snapshot, now)
	second := BuildDashboard(snapshot, now)
	if first.TotalRequests != second.TotalRequests ||
		first.AvgResponseTime != second.AvgResponseTime ||
		first.SuccessRate != second.SuccessRate ||
		len(first.ServiceMetrics) != len(second.ServiceMetrics) {
		t.Fatalf("expected identical dashboards for identical snapshots")
	}
}
