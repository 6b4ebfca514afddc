package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.MetricRepository = (*Repository)(nil)
	_ repository.UserRepository   = (*Repository)(nil)
)

// InsertMetric durably writes one metric row.
func (r *Repository) InsertMetric(ctx context.Context, metric domain.Metric) error {
	const query = `INSERT INTO api_metrics
		(path, method, status_code, response_time, timestamp, service, user_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	service := metric.Service
	if service == "" {
		service = "unknown-service"
	}
	_, err := r.pool.Exec(ctx, query,
		metric.Path,
		metric.Method,
		metric.StatusCode,
		metric.ResponseTime,
		metric.Timestamp.UTC(),
		service,
		int64PtrToNil(metric.UserID),
		stringPtrToNil(metric.IPAddress),
		stringPtrToNil(metric.UserAgent),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return err
	}
	return nil
}

// ListRecentMetrics returns up to limit rows ordered by timestamp descending.
func (r *Repository) ListRecentMetrics(ctx context.Context, limit int) ([]domain.Metric, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `SELECT path, method, status_code, response_time, timestamp, service, user_id, ip_address, user_agent
		FROM api_metrics
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := make([]domain.Metric, 0)
	for rows.Next() {
		var (
			m         domain.Metric
			userID    sql.NullInt64
			ipAddress sql.NullString
			userAgent sql.NullString
		)
		if err := rows.Scan(
			&m.Path,
			&m.Method,
			&m.StatusCode,
			&m.ResponseTime,
			&m.Timestamp,
			&m.Service,
			&userID,
			&ipAddress,
			&userAgent,
		); err != nil {
			return nil, err
		}
		if userID.Valid {
			value := userID.Int64
			m.UserID = &value
		}
		if ipAddress.Valid {
			value := ipAddress.String
			m.IPAddress = &value
		}
		if userAgent.Valid {
			value := userAgent.String
			m.UserAgent = &value
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// DeleteMetricsBefore removes rows older than cutoff.
func (r *Repository) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM api_metrics WHERE timestamp < $1`
	cmdTag, err := r.pool.Exec(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// CreateUser inserts a dashboard account.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrInvalidArgument
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func int64PtrToNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtrToNil(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
