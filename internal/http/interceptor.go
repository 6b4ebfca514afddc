package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

// captureExemptPrefixes lists paths the capture middleware never records:
// the metrics surface itself, high-churn auth endpoints, infrastructure
// probes, and streaming upgrades. Everything else is observed.
var captureExemptPrefixes = []string{
	"/metrics",
	"/auth/login",
	"/auth/register",
	"/auth/forgot-password",
	"/api/swagger",
	"/healthz",
	"/ws",
	"/favicon.ico",
}

const captureRecordTimeout = 5 * time.Second

func captureExempt(path string) bool {
	for _, prefix := range captureExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// capture observes every completed non-exempt request as a metric. Recording
// happens after the response is written and off the request goroutine, so a
// slow sink can never delay a response. Failures degrade to buffering inside
// the collector and are invisible to the caller.
func (r *Router) capture(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if captureExempt(req.URL.Path) {
			next(w, req)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metric := domain.Metric{
			Path:         req.URL.Path,
			Method:       req.Method,
			StatusCode:   status,
			ResponseTime: float64(elapsed.Microseconds()) / 1000.0,
			Timestamp:    time.Now().UTC(),
		}
		if ip := clientIP(req); ip != "" {
			metric.IPAddress = &ip
		}
		if ua := strings.TrimSpace(req.Header.Get("User-Agent")); ua != "" {
			metric.UserAgent = &ua
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), captureRecordTimeout)
			defer cancel()
			if err := r.collector.Record(ctx, metric); err != nil {
				r.logger.Warn("request capture dropped", "error", err, "path", metric.Path)
			}
		}()
	}
}
