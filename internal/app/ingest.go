package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/fraud-service/internal/domain"
	"github.com/transfa/fraud-service/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// IngestService writes incoming transactions and announces each write on the bus.
type IngestService struct {
	repo      store.Repository
	publisher EventPublisher
	exchange  string
	processor TransactionProcessor
	now       func() time.Time
}

func NewIngestService(repo store.Repository, publisher EventPublisher, exchange string, processor TransactionProcessor) *IngestService {
	return &IngestService{
		repo:      repo,
		publisher: publisher,
		exchange:  exchange,
		processor: processor,
		now:       time.Now,
	}
}

// IngestTransaction stores the record and publishes transaction.written. When the
// event cannot be published the pipeline runs inline on the stored record.
func (s *IngestService) IngestTransaction(ctx context.Context, record domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	timestampMillis := NormalizeTimestamp(record.Timestamp, now)
	record.Timestamp = timestampMillis

	stored, err := s.repo.UpsertTransaction(ctx, record, timestampMillis)
	if err != nil {
		return nil, fmt.Errorf("upsert transaction: %w", err)
	}

	event := domain.TransactionWrittenEvent{
		EventID:     uuid.NewString(),
		TxnID:       stored.TxnID,
		Transaction: *stored,
		OccurredAt:  now.UTC(),
	}

	if s.publisher != nil && s.exchange != "" {
		pubErr := s.publisher.Publish(ctx, s.exchange, domain.RoutingKeyTransactionWritten, event)
		if pubErr == nil {
			return stored, nil
		}
		log.Printf("level=warn component=ingest msg=\"transaction event publish failed; evaluating inline\" txn_id=%s err=%v", stored.TxnID, pubErr)
	}

	if s.processor != nil {
		if _, err := s.processor.Process(ctx, *stored); err != nil {
			log.Printf("level=error component=ingest msg=\"inline evaluation failed\" txn_id=%s err=%v", stored.TxnID, err)
		}
	}
	return stored, nil
}

// ListTransactions returns a page of stored transactions, newest first.
func (s *IngestService) ListTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.StoredTransaction, domain.TransactionListOptions, error) {
	opts = normalizeListOptions(opts)
	txns, err := s.repo.ListTransactions(ctx, opts)
	if err != nil {
		return nil, opts, fmt.Errorf("list transactions: %w", err)
	}
	if txns == nil {
		txns = []domain.StoredTransaction{}
	}
	return txns, opts, nil
}

func normalizeListOptions(opts domain.TransactionListOptions) domain.TransactionListOptions {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
