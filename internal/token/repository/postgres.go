package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

const uniqueViolation = "23505"

const recordColumns = `token_id, payee_id, amount, currency, reference, issued_at, expires_at, offline_capable,
	redemption_state, redeemed_at, redeemed_by, settlement_reference, redemption_channel,
	redemption_device_id, redeemed_amount, created_at`

// PostgresRepository stores tokens in the payment_tokens table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Issue inserts rec in state ISSUED. Returns ErrDuplicateID on a primary key conflict.
func (r *PostgresRepository) Issue(ctx context.Context, rec *domain.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_tokens (token_id, payee_id, amount, currency, reference, issued_at, expires_at,
			offline_capable, redemption_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'ISSUED', $9)`,
		rec.ID, rec.PayeeID, rec.Amount, rec.Currency, rec.Reference, rec.IssuedAt, rec.ExpiresAt,
		rec.OfflineCapable, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert payment token: %w", err)
	}
	return nil
}

// Lookup returns the record for tokenID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Lookup(ctx context.Context, tokenID string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM payment_tokens WHERE token_id = $1`, tokenID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Claim moves the record to REDEEMED with one conditional UPDATE guarded on state and expiry,
// so concurrent claims across processes are serialized by Postgres row locking.
func (r *PostgresRepository) Claim(ctx context.Context, p ClaimParams) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE payment_tokens
		SET redemption_state = 'REDEEMED', redeemed_at = $2, redeemed_by = $3,
			settlement_reference = NULLIF($4, ''), redemption_channel = NULLIF($5, ''),
			redemption_device_id = NULLIF($6, ''), redeemed_amount = $7
		WHERE token_id = $1 AND redemption_state = 'ISSUED' AND expires_at > $2
		RETURNING `+recordColumns,
		p.TokenID, p.At, p.ClaimedBy, p.SettlementReference, string(p.Channel), p.DeviceID, p.Amount,
	)
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim payment token: %w", err)
	}
	current, err := r.Lookup(ctx, p.TokenID)
	if err != nil {
		return nil, err
	}
	return nil, classifyClaimMiss(current, p.At)
}

// AttachSettlement sets settlement_reference on a REDEEMED record. The state is never changed.
func (r *PostgresRepository) AttachSettlement(ctx context.Context, tokenID, reference string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_tokens SET settlement_reference = $2
		WHERE token_id = $1 AND redemption_state = 'REDEEMED'`,
		tokenID, reference,
	)
	if err != nil {
		return fmt.Errorf("attach settlement reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByPayee returns up to limit records for payeeID ordered by created_at descending.
func (r *PostgresRepository) ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM payment_tokens
		WHERE payee_id = $1 ORDER BY created_at DESC, token_id LIMIT $2 OFFSET $3`, payeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var (
		rec            domain.Record
		amount         decimal.NullDecimal
		redeemedAmount decimal.NullDecimal
		state          string
		redeemedAt     sql.NullTime
		redeemedBy     sql.NullString
		settlementRef  sql.NullString
		channel        sql.NullString
		deviceID       sql.NullString
	)
	err := s.Scan(
		&rec.ID, &rec.PayeeID, &amount, &rec.Currency, &rec.Reference, &rec.IssuedAt, &rec.ExpiresAt,
		&rec.OfflineCapable, &state, &redeemedAt, &redeemedBy, &settlementRef, &channel,
		&deviceID, &redeemedAmount, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Amount = amount
	rec.RedeemedAmount = redeemedAmount
	rec.State = domain.RedemptionState(state)
	if redeemedAt.Valid {
		t := redeemedAt.Time
		rec.RedeemedAt = &t
	}
	rec.RedeemedBy = redeemedBy.String
	rec.SettlementReference = settlementRef.String
	rec.RedemptionChannel = domain.Channel(channel.String)
	rec.RedemptionDeviceID = deviceID.String
	return &rec, nil
}
