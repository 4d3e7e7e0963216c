/**
 * @description
 * This file defines the core domain models for the fraud-service.
 * These structs represent the transaction records evaluated by the risk pipeline,
 * the flag and alert records it produces, and the payloads exchanged with the
 * event bus and the push provider.
 *
 * @notes
 * - Transaction timestamps are canonical epoch milliseconds once normalized.
 *   `TransactionRecord` keeps the raw, untyped timestamp exactly as it arrived.
 * - Amounts are plain numbers because upstream bank webhooks send them that way.
 */

package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidTransaction is returned when a transaction record lacks its identifying fields.
var ErrInvalidTransaction = errors.New("invalid transaction payload")

// Transaction is a transaction record with its timestamp already normalized.
type Transaction struct {
	TxnID     string  `json:"txnId"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
	Merchant  string  `json:"merchant"`
	CardID    string  `json:"cardId,omitempty"`
	Timestamp int64   `json:"timestamp"` // epoch millis
}

// TransactionRecord is the full record as written by the ingress layer. The timestamp
// may be epoch millis, a {seconds, nanoseconds} object or missing entirely. Fields the
// struct does not model survive in Extra so merges never drop them.
type TransactionRecord struct {
	TxnID      string         `json:"txnId"`
	UserID     string         `json:"userId"`
	Amount     *float64       `json:"amount,omitempty"`
	Merchant   *string        `json:"merchant,omitempty"`
	CardID     *string        `json:"cardId,omitempty"`
	CardNumber *string        `json:"cardNumber,omitempty"`
	Timestamp  any            `json:"timestamp,omitempty"`
	Extra      map[string]any `json:"-"`
}

var knownRecordFields = map[string]struct{}{
	"txnId": {}, "userId": {}, "amount": {}, "merchant": {},
	"cardId": {}, "cardNumber": {}, "timestamp": {},
}

// UnmarshalJSON decodes the modelled fields and keeps the rest in Extra.
func (r *TransactionRecord) UnmarshalJSON(data []byte) error {
	type plain TransactionRecord
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range knownRecordFields {
		delete(all, key)
	}
	if len(all) > 0 {
		decoded.Extra = all
	}

	*r = TransactionRecord(decoded)
	return nil
}

// MarshalJSON writes Extra back alongside the modelled fields.
func (r TransactionRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+7)
	for key, value := range r.Extra {
		out[key] = value
	}
	out["txnId"] = r.TxnID
	out["userId"] = r.UserID
	if r.Amount != nil {
		out["amount"] = *r.Amount
	}
	if r.Merchant != nil {
		out["merchant"] = *r.Merchant
	}
	if r.CardID != nil {
		out["cardId"] = *r.CardID
	}
	if r.CardNumber != nil {
		out["cardNumber"] = *r.CardNumber
	}
	if r.Timestamp != nil {
		out["timestamp"] = r.Timestamp
	}
	return json.Marshal(out)
}

// Validate checks the fields every record must carry.
func (r TransactionRecord) Validate() error {
	if strings.TrimSpace(r.TxnID) == "" || strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidTransaction
	}
	return nil
}

// ResolvedCardID returns cardId, falling back to cardNumber for older bank payloads.
func (r TransactionRecord) ResolvedCardID() string {
	if r.CardID != nil && strings.TrimSpace(*r.CardID) != "" {
		return *r.CardID
	}
	if r.CardNumber != nil {
		return *r.CardNumber
	}
	return ""
}

// TransactionListOptions controls paging for transaction listings.
type TransactionListOptions struct {
	UserID string
	Limit  int
	Offset int
}

// StoredTransaction is a transaction row as returned by listings.
type StoredTransaction struct {
	ID        string         `json:"id"`
	Payload   map[string]any `json:"-"`
	Timestamp int64          `json:"timestamp"`
}

// MarshalJSON flattens the stored payload so listings look like the webhook input.
func (t StoredTransaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Payload)+2)
	for key, value := range t.Payload {
		out[key] = value
	}
	out["id"] = t.ID
	out["timestamp"] = t.Timestamp
	return json.Marshal(out)
}
