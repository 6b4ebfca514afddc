package metrics

import (
	"sort"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

const (
	timeSeriesHours    = 24
	recentMetricsLimit = 100
	endpointDrillLimit = 10
)

// TimeSeriesPoint is one hourly bucket of the 24-hour dashboard chart.
type TimeSeriesPoint struct {
	Hour            int       `json:"hour"`
	Timestamp       time.Time `json:"timestamp"`
	RequestCount    int       `json:"requestCount"`
	AvgResponseTime float64   `json:"avgResponseTime"`
}

// ServiceRollup summarises one service bucket.
type ServiceRollup struct {
	Service         string  `json:"service"`
	Count           int     `json:"count"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	SuccessRate     float64 `json:"successRate"`
	ErrorRate       float64 `json:"errorRate"`
}

// MethodCount is a per-verb request count within an endpoint rollup.
type MethodCount struct {
	Method string `json:"method"`
	Count  int    `json:"count"`
}

// StatusCodeCount is a per-status request count.
type StatusCodeCount struct {
	Code  int `json:"code"`
	Count int `json:"count"`
}

// EndpointRollup summarises one path across all methods.
type EndpointRollup struct {
	Path                 string            `json:"path"`
	RequestCount         int               `json:"requestCount"`
	AvgResponseTime      float64           `json:"avgResponseTime"`
	Methods              []MethodCount     `json:"methods"`
	StatusCodes          []StatusCodeCount `json:"statusCodes"`
	MostCommonStatusCode int               `json:"mostCommonStatusCode"`
	SuccessRate          float64           `json:"successRate"`
	MostRecentTimestamp  time.Time         `json:"mostRecentTimestamp"`
	Metrics              []domain.Metric   `json:"metrics"`
}

// Dashboard bundles every aggregation computed over one snapshot. Numbers are
// windowed to the fetched snapshot, not absolute over the whole table.
type Dashboard struct {
	TotalRequests          int               `json:"totalRequests"`
	AvgResponseTime        float64           `json:"avgResponseTime"`
	SuccessRate            float64           `json:"successRate"`
	TimeSeriesData         []TimeSeriesPoint `json:"timeSeriesData"`
	ServiceMetrics         []ServiceRollup   `json:"serviceMetrics"`
	EndpointMetrics        []EndpointRollup  `json:"endpointMetrics"`
	StatusCodeDistribution []StatusCodeCount `json:"statusCodeDistribution"`
	RecentMetrics          []domain.Metric   `json:"recentMetrics"`
	Timestamp              time.Time         `json:"timestamp"`
}

// BuildDashboard computes every aggregation from the same snapshot so the
// dashboard views are internally consistent. The snapshot is expected to be
// ordered by timestamp descending, as the repository returns it.
func BuildDashboard(snapshot []domain.Metric, now time.Time) Dashboard {
	successful := 0
	totalLatency := 0.0
	for _, m := range snapshot {
		totalLatency += m.ResponseTime
		if m.Succeeded() {
			successful++
		}
	}
	d := Dashboard{
		TotalRequests:          len(snapshot),
		TimeSeriesData:         timeSeries(snapshot, now),
		ServiceMetrics:         serviceRollups(snapshot),
		EndpointMetrics:        endpointRollups(snapshot),
		StatusCodeDistribution: statusCodeDistribution(snapshot),
		RecentMetrics:          recentMetrics(snapshot),
		Timestamp:              now,
	}
	if len(snapshot) > 0 {
		d.AvgResponseTime = totalLatency / float64(len(snapshot))
		d.SuccessRate = float64(successful) / float64(len(snapshot)) * 100
	}
	return d
}

// timeSeries buckets the snapshot into the 24 most recent one-hour windows
// ending now. Empty buckets are reported with zero counts, not omitted.
func timeSeries(snapshot []domain.Metric, now time.Time) []TimeSeriesPoint {
	newest := now.Truncate(time.Hour)
	points := make([]TimeSeriesPoint, timeSeriesHours)
	sums := make([]float64, timeSeriesHours)
	for i := range points {
		start := newest.Add(-time.Duration(timeSeriesHours-1-i) * time.Hour)
		points[i] = TimeSeriesPoint{Hour: start.Hour(), Timestamp: start}
	}
	for _, m := range snapshot {
		offset := int(newest.Sub(m.Timestamp.Truncate(time.Hour)).Hours())
		if offset < 0 || offset >= timeSeriesHours {
			continue
		}
		idx := timeSeriesHours - 1 - offset
		points[idx].RequestCount++
		sums[idx] += m.ResponseTime
	}
	for i := range points {
		if points[i].RequestCount > 0 {
			points[i].AvgResponseTime = sums[i] / float64(points[i].RequestCount)
		}
	}
	return points
}

func serviceRollups(snapshot []domain.Metric) []ServiceRollup {
	type acc struct {
		count        int
		totalLatency float64
		success      int
	}
	groups := make(map[string]*acc)
	for _, m := range snapshot {
		service := m.Service
		if service == "" {
			service = UnknownService
		}
		g := groups[service]
		if g == nil {
			g = &acc{}
			groups[service] = g
		}
		g.count++
		g.totalLatency += m.ResponseTime
		if m.Succeeded() {
			g.success++
		}
	}
	rollups := make([]ServiceRollup, 0, len(groups))
	for service, g := range groups {
		r := ServiceRollup{
			Service:         service,
			Count:           g.count,
			AvgResponseTime: g.totalLatency / float64(g.count),
			SuccessRate:     float64(g.success) / float64(g.count) * 100,
		}
		r.ErrorRate = 100 - r.SuccessRate
		rollups = append(rollups, r)
	}
	sort.SliceStable(rollups, func(i, j int) bool {
		if rollups[i].Count != rollups[j].Count {
			return rollups[i].Count > rollups[j].Count
		}
		return rollups[i].Service < rollups[j].Service
	})
	return rollups
}

func endpointRollups(snapshot []domain.Metric) []EndpointRollup {
	groups := make(map[string][]domain.Metric)
	order := make([]string, 0)
	for _, m := range snapshot {
		if _, ok := groups[m.Path]; !ok {
			order = append(order, m.Path)
		}
		groups[m.Path] = append(groups[m.Path], m)
	}
	rollups := make([]EndpointRollup, 0, len(groups))
	for _, path := range order {
		group := groups[path]
		totalLatency := 0.0
		success := 0
		methodCounts := make(map[string]int)
		statusCounts := make(map[int]int)
		mostRecent := group[0].Timestamp
		for _, m := range group {
			totalLatency += m.ResponseTime
			if m.Succeeded() {
				success++
			}
			methodCounts[m.Method]++
			statusCounts[m.StatusCode]++
			if m.Timestamp.After(mostRecent) {
				mostRecent = m.Timestamp
			}
		}
		drill := group
		if len(drill) > endpointDrillLimit {
			drill = drill[:endpointDrillLimit]
		}
		r := EndpointRollup{
			Path:                 path,
			RequestCount:         len(group),
			AvgResponseTime:      totalLatency / float64(len(group)),
			Methods:              sortedMethodCounts(methodCounts),
			StatusCodes:          sortedStatusCounts(statusCounts),
			MostCommonStatusCode: mostCommonStatus(statusCounts),
			SuccessRate:          float64(success) / float64(len(group)) * 100,
			MostRecentTimestamp:  mostRecent,
			Metrics:              append([]domain.Metric(nil), drill...),
		}
		rollups = append(rollups, r)
	}
	sort.SliceStable(rollups, func(i, j int) bool {
		if rollups[i].RequestCount != rollups[j].RequestCount {
			return rollups[i].RequestCount > rollups[j].RequestCount
		}
		return rollups[i].Path < rollups[j].Path
	})
	return rollups
}

func statusCodeDistribution(snapshot []domain.Metric) []StatusCodeCount {
	counts := make(map[int]int)
	for _, m := range snapshot {
		counts[m.StatusCode]++
	}
	return sortedStatusCounts(counts)
}

func recentMetrics(snapshot []domain.Metric) []domain.Metric {
	recent := snapshot
	if len(recent) > recentMetricsLimit {
		recent = recent[:recentMetricsLimit]
	}
	return append([]domain.Metric(nil), recent...)
}

func sortedMethodCounts(counts map[string]int) []MethodCount {
	out := make([]MethodCount, 0, len(counts))
	for method, count := range counts {
		out = append(out, MethodCount{Method: method, Count: count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func sortedStatusCounts(counts map[int]int) []StatusCodeCount {
	out := make([]StatusCodeCount, 0, len(counts))
	for code, count := range counts {
		out = append(out, StatusCodeCount{Code: code, Count: count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func mostCommonStatus(counts map[int]int) int {
	best := 0
	bestCount := 0
	for code, count := range counts {
		if count > bestCount || (count == bestCount && code < best) {
			best = code
			bestCount = count
		}
	}
	return best
}
