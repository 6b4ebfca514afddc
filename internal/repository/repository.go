package repository

import (
	"context"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

// MetricRepository persists and reads API request metrics.
type MetricRepository interface {
	// InsertMetric durably writes one metric row. Duplicate inserts on
	// retry are tolerated: metrics are append-only telemetry.
	InsertMetric(ctx context.Context, metric domain.Metric) error
	// ListRecentMetrics returns up to limit rows ordered by timestamp
	// descending. All dashboard aggregations run over one such snapshot.
	ListRecentMetrics(ctx context.Context, limit int) ([]domain.Metric, error)
	// DeleteMetricsBefore removes rows older than cutoff and reports how
	// many were deleted.
	DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository persists dashboard accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}
