package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/transfa/fraud-service/internal/domain"
)

const defaultPipelineTimeout = 30 * time.Second

// TransactionProcessor is the part of Pipeline the consumer depends on.
type TransactionProcessor interface {
	Process(ctx context.Context, record domain.TransactionRecord) (domain.Verdict, error)
}

// TransactionEventConsumer feeds transaction.written events into the risk pipeline.
type TransactionEventConsumer struct {
	processor TransactionProcessor
	timeout   time.Duration
}

func NewTransactionEventConsumer(processor TransactionProcessor, timeout time.Duration) *TransactionEventConsumer {
	if timeout <= 0 {
		timeout = defaultPipelineTimeout
	}
	return &TransactionEventConsumer{processor: processor, timeout: timeout}
}

// HandleMessage returns true to ack and false to requeue. Payloads that can never
// succeed are acked and dropped.
func (c *TransactionEventConsumer) HandleMessage(body []byte) bool {
	var event domain.TransactionWrittenEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=transaction_consumer msg=\"failed to unmarshal payload\" err=%v", err)
		return true
	}

	record := event.Transaction
	if record.TxnID == "" {
		record.TxnID = event.TxnID
	}
	if err := record.Validate(); err != nil {
		log.Printf("level=warn component=transaction_consumer msg=\"dropping invalid transaction event\" event_id=%s txn_id=%s err=%v",
			event.EventID, record.TxnID, err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	verdict, err := c.processor.Process(ctx, record)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			return true
		}
		log.Printf("level=error component=transaction_consumer msg=\"pipeline failed; requeueing\" txn_id=%s err=%v", record.TxnID, err)
		return false
	}

	if verdict.Suspicious {
		log.Printf("level=info component=transaction_consumer msg=\"suspicious transaction processed\" txn_id=%s reasons=%d", record.TxnID, len(verdict.Reasons))
	}
	return true
}
