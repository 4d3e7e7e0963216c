package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/transfa/fraud-service/internal/domain"
)

const defaultVelocityRetention = time.Hour

// The member is the txn id, so a redelivered event only refreshes its score.
var trackTransactionScript = redis.NewScript(`
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return redis.call("ZCARD", KEYS[1])
`)

// RedisActivityCounter keeps a per-user sorted set of recent transactions scored by
// their normalized timestamp.
type RedisActivityCounter struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

func NewRedisActivityCounter(client redis.UniversalClient, prefix string) *RedisActivityCounter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "fraud:velocity"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisActivityCounter{
		client:    client,
		prefix:    trimmedPrefix,
		retention: defaultVelocityRetention,
		now:       time.Now,
	}
}

func (r *RedisActivityCounter) key(userID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, strings.TrimSpace(userID))
}

// TrackTransaction adds the transaction to the user's window and drops entries older
// than the retention period.
func (r *RedisActivityCounter) TrackTransaction(ctx context.Context, txn domain.Transaction) error {
	if r == nil || r.client == nil {
		return nil
	}
	if strings.TrimSpace(txn.UserID) == "" || strings.TrimSpace(txn.TxnID) == "" {
		return nil
	}

	pruneBefore := r.now().Add(-r.retention).UnixMilli()
	retentionMs := r.retention.Milliseconds()
	if retentionMs < 1000 {
		retentionMs = 1000
	}

	_, err := trackTransactionScript.Run(ctx, r.client,
		[]string{r.key(txn.UserID)},
		txn.Timestamp,
		txn.TxnID,
		pruneBefore,
		retentionMs,
	).Result()
	return err
}

// CountRecentTransactions counts tracked transactions with score >= sinceMillis.
func (r *RedisActivityCounter) CountRecentTransactions(ctx context.Context, userID string, sinceMillis int64) (int, error) {
	if r == nil || r.client == nil {
		return 0, fmt.Errorf("redis activity counter not configured")
	}
	count, err := r.client.ZCount(ctx, r.key(userID), strconv.FormatInt(sinceMillis, 10), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
