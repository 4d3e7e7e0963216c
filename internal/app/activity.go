package app

import (
	"context"

	"github.com/transfa/fraud-service/internal/domain"
)

// ActivityCounter answers the velocity question: how many of the user's transactions
// have a timestamp at or after sinceMillis. There is no upper bound.
type ActivityCounter interface {
	CountRecentTransactions(ctx context.Context, userID string, sinceMillis int64) (int, error)
}

// ActivityTracker is implemented by counters that keep their own index and must be
// told about each transaction before counting.
type ActivityTracker interface {
	TrackTransaction(ctx context.Context, txn domain.Transaction) error
}
