/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the SQL used by the risk pipeline: transaction merges, the velocity
 * count, the flag/alert merge-upserts and the device token registry.
 *
 * @notes
 * - Every write is a single statement, so each one is atomic per key. Nothing spans
 *   the flag, alert and device registry writes.
 * - `created_at` and `status` are only ever set by the INSERT arm of an upsert; the
 *   ON CONFLICT arm leaves them alone, so re-evaluating a transaction never resets them.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/fraud-service/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertTransaction stores the record, merging its JSON payload over the stored one
// so fields missing from a correction keep their previous value.
func (r *PostgresRepository) UpsertTransaction(ctx context.Context, record domain.TransactionRecord, timestampMillis int64) (*domain.TransactionRecord, error) {
	record.Timestamp = timestampMillis
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction payload: %w", err)
	}

	query := `
		INSERT INTO transactions (txn_id, user_id, timestamp_ms, payload)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (txn_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			timestamp_ms = EXCLUDED.timestamp_ms,
			payload = transactions.payload || EXCLUDED.payload,
			updated_at = now()
		RETURNING payload
	`
	var merged []byte
	if err := r.db.QueryRow(ctx, query, record.TxnID, record.UserID, timestampMillis, string(payload)).Scan(&merged); err != nil {
		return nil, err
	}

	var after domain.TransactionRecord
	if err := json.Unmarshal(merged, &after); err != nil {
		return nil, fmt.Errorf("decode merged transaction: %w", err)
	}
	return &after, nil
}

// ListTransactions returns transactions newest first, optionally for one user.
func (r *PostgresRepository) ListTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.StoredTransaction, error) {
	query, args := buildListTransactionsQuery(opts)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.StoredTransaction, 0)
	for rows.Next() {
		var (
			item    domain.StoredTransaction
			payload []byte
		)
		if err := rows.Scan(&item.ID, &payload, &item.Timestamp); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &item.Payload); err != nil {
				return nil, fmt.Errorf("decode transaction %s: %w", item.ID, err)
			}
		}
		transactions = append(transactions, item)
	}
	return transactions, rows.Err()
}

func buildListTransactionsQuery(opts domain.TransactionListOptions) (string, []any) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	args := []any{}
	query := `SELECT txn_id, payload, timestamp_ms FROM transactions`
	if userID := strings.TrimSpace(opts.UserID); userID != "" {
		args = append(args, userID)
		query += fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY timestamp_ms DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return query, args
}

// CountTransactionsSince counts the user's transactions with timestamp >= sinceMillis.
func (r *PostgresRepository) CountTransactionsSince(ctx context.Context, userID string, sinceMillis int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND timestamp_ms >= $2`
	if err := r.db.QueryRow(ctx, query, userID, sinceMillis).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountRecentTransactions lets the repository serve as the pipeline's activity counter.
func (r *PostgresRepository) CountRecentTransactions(ctx context.Context, userID string, sinceMillis int64) (int, error) {
	return r.CountTransactionsSince(ctx, userID, sinceMillis)
}

// Conflict branches never assign status or created_at.
const (
	upsertFlagQuery = `
	INSERT INTO fraud_flags (txn_id, user_id, card_id, merchant, amount, reasons, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (txn_id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		card_id = COALESCE(EXCLUDED.card_id, fraud_flags.card_id),
		merchant = COALESCE(EXCLUDED.merchant, fraud_flags.merchant),
		amount = COALESCE(EXCLUDED.amount, fraud_flags.amount),
		reasons = EXCLUDED.reasons,
		updated_at = now()
	RETURNING txn_id, user_id, card_id, merchant, amount, reasons, status, created_at, updated_at, (xmax = 0) AS inserted
`

	upsertAlertQuery = `
	INSERT INTO fraud_alerts (txn_id, user_id, card_id, merchant, amount, reasons, type, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (txn_id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		card_id = COALESCE(EXCLUDED.card_id, fraud_alerts.card_id),
		merchant = COALESCE(EXCLUDED.merchant, fraud_alerts.merchant),
		amount = COALESCE(EXCLUDED.amount, fraud_alerts.amount),
		reasons = EXCLUDED.reasons,
		type = EXCLUDED.type,
		updated_at = now()
	RETURNING txn_id, user_id, card_id, merchant, amount, reasons, type, status, created_at, updated_at, (xmax = 0) AS inserted
`
)

// UpsertFlag creates the flag in `pending` or merges the new fields into the existing one.
func (r *PostgresRepository) UpsertFlag(ctx context.Context, fields domain.FlagUpsert) (*domain.Flag, bool, error) {
	var (
		flag     domain.Flag
		inserted bool
	)
	err := r.db.QueryRow(ctx, upsertFlagQuery,
		fields.TxnID,
		fields.UserID,
		fields.CardID,
		fields.Merchant,
		fields.Amount,
		reasonsOrEmpty(fields.Reasons),
		domain.FlagStatusPending,
	).Scan(
		&flag.TxnID,
		&flag.UserID,
		&flag.CardID,
		&flag.Merchant,
		&flag.Amount,
		&flag.Reasons,
		&flag.Status,
		&flag.CreatedAt,
		&flag.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	flag.TransactionID = flag.TxnID
	return &flag, inserted, nil
}

// UpsertAlert creates the alert as `unread` or merges the new fields into the existing one.
func (r *PostgresRepository) UpsertAlert(ctx context.Context, fields domain.FlagUpsert) (*domain.Alert, bool, error) {
	var (
		alert    domain.Alert
		inserted bool
	)
	err := r.db.QueryRow(ctx, upsertAlertQuery,
		fields.TxnID,
		fields.UserID,
		fields.CardID,
		fields.Merchant,
		fields.Amount,
		reasonsOrEmpty(fields.Reasons),
		domain.AlertTypeSuspiciousTransaction,
		domain.AlertStatusUnread,
	).Scan(
		&alert.TxnID,
		&alert.UserID,
		&alert.CardID,
		&alert.Merchant,
		&alert.Amount,
		&alert.Reasons,
		&alert.Type,
		&alert.Status,
		&alert.CreatedAt,
		&alert.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	alert.TransactionID = alert.TxnID
	return &alert, inserted, nil
}

// ListDeviceTokens returns the user's registered push tokens. No rows is an empty set.
func (r *PostgresRepository) ListDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT token FROM user_device_tokens WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// RemoveDeviceToken deletes exactly one (user, token) pair if present.
func (r *PostgresRepository) RemoveDeviceToken(ctx context.Context, userID, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_device_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func reasonsOrEmpty(reasons []string) []string {
	if reasons == nil {
		return []string{}
	}
	return reasons
}
