/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the fraud-service. The risk pipeline and the
 * ingress handlers depend on this interface only, which keeps the PostgreSQL details
 * out of the business logic and lets tests substitute small in-memory stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/transfa/fraud-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Transaction methods
	// UpsertTransaction merges the record into any stored record with the same txn id
	// and returns the full record after the write.
	UpsertTransaction(ctx context.Context, record domain.TransactionRecord, timestampMillis int64) (*domain.TransactionRecord, error)
	ListTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.StoredTransaction, error)
	CountTransactionsSince(ctx context.Context, userID string, sinceMillis int64) (int, error)

	// Flag and alert methods. Both are merge-upserts keyed by txn id; the bool reports
	// whether the record was created by this call.
	UpsertFlag(ctx context.Context, fields domain.FlagUpsert) (*domain.Flag, bool, error)
	UpsertAlert(ctx context.Context, fields domain.FlagUpsert) (*domain.Alert, bool, error)

	// Device registry methods
	ListDeviceTokens(ctx context.Context, userID string) ([]string, error)
	// RemoveDeviceToken is a set-remove; removing an absent token is not an error.
	RemoveDeviceToken(ctx context.Context, userID, token string) (bool, error)
}
