package domain

import "time"

const (
	FlagStatusPending  = "pending"
	FlagStatusResolved = "resolved"

	AlertStatusUnread = "unread"
	AlertStatusRead   = "read"

	AlertTypeSuspiciousTransaction = "suspicious_transaction"
)

// Reason labels emitted by the risk evaluator, in evaluation order.
const (
	ReasonLargeAmount  = "Large amount"
	ReasonOddHour      = "Odd hour"
	ReasonTestMerchant = "Test merchant"
	ReasonHighVelocity = "High velocity"
)

// Verdict is the outcome of evaluating one transaction.
type Verdict struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons"`
}

// Flag is the review record kept for a suspicious transaction, one per txn id.
// TransactionID mirrors TxnID for readers that key on transactionId.
type Flag struct {
	TxnID         string    `json:"txnId"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	CardID        *string   `json:"cardId,omitempty"`
	Merchant      *string   `json:"merchant,omitempty"`
	Amount        *float64  `json:"amount,omitempty"`
	Reasons       []string  `json:"reasons"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Alert is the inbox record shown to the user, one per txn id.
type Alert struct {
	TxnID         string    `json:"txnId"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	CardID        *string   `json:"cardId,omitempty"`
	Merchant      *string   `json:"merchant,omitempty"`
	Amount        *float64  `json:"amount,omitempty"`
	Reasons       []string  `json:"reasons"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FlagUpsert carries the fields written on every suspicious evaluation. Nil pointers
// leave the stored value untouched. Status and CreatedAt are never part of an update.
type FlagUpsert struct {
	TxnID    string
	UserID   string
	CardID   *string
	Merchant *string
	Amount   *float64
	Reasons  []string
}

// RecordResult reports what the alert recorder persisted.
type RecordResult struct {
	Flag         Flag
	Alert        Alert
	FlagCreated  bool
	AlertCreated bool
}
