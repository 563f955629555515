package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
)

const deviceColumns = `id, merchant_id, channel, label, suspended_at, revoked_at, last_seen_at, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListByMerchant returns all devices for the given merchant. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID string) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE merchant_id = $1 ORDER BY created_at, id`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create persists the device to the database. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, merchant_id, channel, label, suspended_at, revoked_at, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.MerchantID, d.Channel, d.Label,
		timeToNullTime(d.SuspendedAt), timeToNullTime(d.RevokedAt), timeToNullTime(d.LastSeenAt), createdAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateID
	}
	return err
}

// Suspend sets suspended_at for the device. Revoked devices stay revoked and return ErrRevoked.
func (r *PostgresRepository) Suspend(ctx context.Context, id string, at time.Time) error {
	return r.updateLive(ctx, `UPDATE devices SET suspended_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
}

// Reinstate clears suspended_at. Revoked devices return ErrRevoked.
func (r *PostgresRepository) Reinstate(ctx context.Context, id string) error {
	return r.updateLive(ctx, `UPDATE devices SET suspended_at = NULL WHERE id = $1 AND revoked_at IS NULL`, id)
}

// Revoke sets revoked_at for the device if it is not already revoked. Revoking twice is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateLastSeen sets the device's last-seen timestamp for the given id.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// updateLive runs a state change guarded on revoked_at IS NULL and tells missing apart from revoked.
func (r *PostgresRepository) updateLive(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	d, err := r.GetByID(ctx, args[0].(string))
	if err != nil {
		return err
	}
	if d == nil {
		return ErrNotFound
	}
	return ErrRevoked
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*domain.Device, error) {
	var d domain.Device
	var suspendedAt, revokedAt, lastSeen sql.NullTime
	if err := s.Scan(&d.ID, &d.MerchantID, &d.Channel, &d.Label, &suspendedAt, &revokedAt, &lastSeen, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.SuspendedAt = nullTimeToPtr(suspendedAt)
	d.RevokedAt = nullTimeToPtr(revokedAt)
	d.LastSeenAt = nullTimeToPtr(lastSeen)
	return &d, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
