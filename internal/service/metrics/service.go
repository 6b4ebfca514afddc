package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/repository"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/ws"
)

const (
	// StreamTopic is the hub topic live metric events are broadcast on.
	StreamTopic = "api-metrics"

	defaultFetchLimit  = 1000
	defaultRetention   = 30 * 24 * time.Hour
	defaultSinkTimeout = 5 * time.Second
)

// DrainResult summarises one resync pass over the volatile buffer.
type DrainResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"error"`
}

// Collector is the ingestion and query service for API request metrics. It
// writes to the durable sink, falls back to the volatile buffer when the sink
// is unavailable, and serves the aggregated dashboard.
type Collector struct {
	repo        repository.MetricRepository
	buffer      *Buffer
	hub         *ws.Hub
	logger      *slog.Logger
	fetchLimit  int
	retention   time.Duration
	sinkTimeout time.Duration
	now         func() time.Time

	recordedTotal *prometheus.CounterVec
	syncedTotal   *prometheus.CounterVec
	bufferDepth   prometheus.Gauge
}

// NewCollector constructs a Collector with sane defaults.
func NewCollector(repo repository.MetricRepository, buffer *Buffer, hub *ws.Hub, logger *slog.Logger, fetchLimit int, retention time.Duration) *Collector {
	if buffer == nil {
		buffer = NewBuffer(DefaultBufferCapacity)
	}
	if hub == nil {
		hub = ws.NewHub()
	}
	if logger != nil {
		logger = logger.With("component", "metrics_collector")
	}
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	c := &Collector{
		repo:        repo,
		buffer:      buffer,
		hub:         hub,
		logger:      logger,
		fetchLimit:  fetchLimit,
		retention:   retention,
		sinkTimeout: defaultSinkTimeout,
		now:         time.Now,
	}
	c.initInstruments()
	return c
}

// Record normalises and stores one metric observed by the capture middleware.
// A sink failure is not an error for the caller: the metric is parked in the
// volatile buffer and picked up by the next resync pass. Live subscribers
// receive the event either way.
func (c *Collector) Record(ctx context.Context, metric domain.Metric) error {
	if c == nil {
		return errors.New("metrics collector not initialised")
	}
	metric, err := c.normalize(metric)
	if err != nil {
		return err
	}

	sinkCtx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()
	if err := c.repo.InsertMetric(sinkCtx, metric); err != nil {
		if errors.Is(err, repository.ErrInvalidArgument) {
			return err
		}
		c.buffer.Append(metric)
		c.bufferDepth.Set(float64(c.buffer.Len()))
		c.recordedTotal.WithLabelValues("buffered").Inc()
		if c.logger != nil {
			c.logger.Warn("metric sink unavailable, buffered", "error", err, "path", metric.Path, "buffered", c.buffer.Len())
		}
		c.broadcast(metric)
		return nil
	}
	c.recordedTotal.WithLabelValues("stored").Inc()
	c.broadcast(metric)
	return nil
}

// Store writes one externally shipped metric straight to the sink. Unlike
// Record there is no buffer fallback: the caller holds the metric and retries,
// so a sink failure surfaces as an error.
func (c *Collector) Store(ctx context.Context, metric domain.Metric) error {
	if c == nil {
		return errors.New("metrics collector not initialised")
	}
	metric, err := c.normalize(metric)
	if err != nil {
		return err
	}

	sinkCtx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()
	if err := c.repo.InsertMetric(sinkCtx, metric); err != nil {
		return err
	}
	c.recordedTotal.WithLabelValues("stored").Inc()
	c.broadcast(metric)
	return nil
}

func (c *Collector) normalize(metric domain.Metric) (domain.Metric, error) {
	metric.Path = strings.TrimSpace(metric.Path)
	metric.Method = strings.ToUpper(strings.TrimSpace(metric.Method))
	if metric.Timestamp.IsZero() {
		metric.Timestamp = c.now().UTC()
	} else {
		metric.Timestamp = metric.Timestamp.UTC()
	}
	if metric.Service == "" {
		metric.Service = ClassifyService(metric.Path)
	}
	if err := metric.Validate(); err != nil {
		return domain.Metric{}, err
	}
	return metric, nil
}

// Drain attempts to persist every buffered metric. Entries are removed from
// the buffer only once their insert is confirmed, so a partial failure keeps
// the unpersisted remainder for the next pass.
func (c *Collector) Drain(ctx context.Context) (DrainResult, error) {
	if c == nil {
		return DrainResult{}, errors.New("metrics collector not initialised")
	}
	snapshot := c.buffer.Snapshot()
	result := DrainResult{Total: len(snapshot)}
	if len(snapshot) == 0 {
		return result, nil
	}

	confirmed := make([]uint64, 0, len(snapshot))
	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := c.repo.InsertMetric(ctx, entry.Metric); err != nil {
			result.Failed++
			if c.logger != nil {
				c.logger.Warn("failed to resync buffered metric", "error", err, "path", entry.Metric.Path)
			}
			continue
		}
		confirmed = append(confirmed, entry.Seq)
		result.Success++
	}
	c.buffer.Remove(confirmed)
	c.bufferDepth.Set(float64(c.buffer.Len()))
	c.syncedTotal.WithLabelValues("success").Add(float64(result.Success))
	c.syncedTotal.WithLabelValues("failed").Add(float64(result.Failed))
	if c.logger != nil {
		c.logger.Info("metrics resync completed", "total", result.Total, "success", result.Success, "failed", result.Failed, "remaining", c.buffer.Len())
	}
	return result, nil
}

// Dashboard sweeps expired rows, fetches the most recent window, and computes
// every aggregation over that single snapshot. A failed sweep degrades to a
// warning so a delete hiccup cannot take the dashboard down.
func (c *Collector) Dashboard(ctx context.Context) (Dashboard, error) {
	if c == nil {
		return Dashboard{}, errors.New("metrics collector not initialised")
	}
	now := c.now().UTC()
	cutoff := now.Add(-c.retention)
	if deleted, err := c.repo.DeleteMetricsBefore(ctx, cutoff); err != nil {
		if c.logger != nil {
			c.logger.Warn("retention sweep failed", "error", err, "cutoff", cutoff)
		}
	} else if deleted > 0 && c.logger != nil {
		c.logger.Info("retention sweep removed expired metrics", "deleted", deleted, "cutoff", cutoff)
	}
	snapshot, err := c.repo.ListRecentMetrics(ctx, c.fetchLimit)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(snapshot, now), nil
}

// BufferLen reports the number of metrics waiting for resync.
func (c *Collector) BufferLen() int {
	return c.buffer.Len()
}

// Hub exposes the stream hub for WebSocket and SSE consumers.
func (c *Collector) Hub() *ws.Hub {
	if c == nil {
		return nil
	}
	return c.hub
}

func (c *Collector) broadcast(metric domain.Metric) {
	if c.hub == nil {
		return
	}
	payload, err := json.Marshal(metric)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to marshal metric for stream", "error", err)
		}
		return
	}
	c.hub.Broadcast(StreamTopic, payload)
}

func (c *Collector) initInstruments() {
	c.recordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proker",
		Subsystem: "metrics",
		Name:      "recorded_total",
		Help:      "Count of ingested metrics by outcome",
	}, []string{"outcome"})
	c.syncedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proker",
		Subsystem: "metrics",
		Name:      "synced_total",
		Help:      "Count of buffered metrics processed by resync passes",
	}, []string{"outcome"})
	c.bufferDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "proker",
		Subsystem: "metrics",
		Name:      "buffer_depth",
		Help:      "Number of metrics currently parked in the volatile buffer",
	})

	if err := prometheus.Register(c.recordedTotal); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			c.recordedTotal = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	if err := prometheus.Register(c.syncedTotal); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			c.syncedTotal = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	if err := prometheus.Register(c.bufferDepth); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			c.bufferDepth = are.ExistingCollector.(prometheus.Gauge)
		}
	}
}
