package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMetric marks a metric rejected by validation. Callers can
// distinguish a bad payload from a sink failure with errors.Is.
var ErrInvalidMetric = errors.New("metric: invalid")

// Metric captures one completed HTTP request observed by the gateway.
// A Metric is immutable once constructed; it is either persisted durably
// or parked in the volatile buffer until a resync run drains it.
type Metric struct {
	Path         string    `json:"path"`
	Method       string    `json:"method"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime float64   `json:"responseTime"`
	Timestamp    time.Time `json:"timestamp"`
	Service      string    `json:"service"`
	UserID       *int64    `json:"userId,omitempty"`
	IPAddress    *string   `json:"ipAddress,omitempty"`
	UserAgent    *string   `json:"userAgent,omitempty"`
}

// Validate reports whether the metric is well formed enough to store.
// Malformed metrics are rejected outright, never buffered: a record that
// cannot be inserted today cannot be inserted on retry either.
func (m Metric) Validate() error {
	if strings.TrimSpace(m.Path) == "" {
		return fmt.Errorf("%w: path required", ErrInvalidMetric)
	}
	if strings.TrimSpace(m.Method) == "" {
		return fmt.Errorf("%w: method required", ErrInvalidMetric)
	}
	if m.StatusCode < 100 || m.StatusCode > 599 {
		return fmt.Errorf("%w: status code %d outside valid range", ErrInvalidMetric, m.StatusCode)
	}
	if m.ResponseTime < 0 {
		return fmt.Errorf("%w: negative response time %f", ErrInvalidMetric, m.ResponseTime)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp required", ErrInvalidMetric)
	}
	return nil
}

// Succeeded reports whether the observed response was a 2xx.
func (m Metric) Succeeded() bool {
	return m.StatusCode >= 200 && m.StatusCode < 300
}
