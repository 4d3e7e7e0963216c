package domain

import "time"

const (
	RoutingKeyTransactionWritten = "transaction.written"
	RoutingKeyAlertRecorded      = "fraud.alert.recorded"
)

// TransactionWrittenEvent is published after every write to the transactions table.
// It carries the full record after the write so consumers never re-read it.
type TransactionWrittenEvent struct {
	EventID     string            `json:"event_id"`
	TxnID       string            `json:"txn_id"`
	Transaction TransactionRecord `json:"transaction"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// AlertRecordedEvent is published once the flag and alert for a transaction are durable.
type AlertRecordedEvent struct {
	EventID    string    `json:"event_id"`
	TxnID      string    `json:"txn_id"`
	UserID     string    `json:"user_id"`
	Reasons    []string  `json:"reasons"`
	Created    bool      `json:"created"`
	OccurredAt time.Time `json:"occurred_at"`
}
