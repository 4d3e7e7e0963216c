package app

import (
	"context"
	"sync"
	"time"

	"github.com/transfa/fraud-service/internal/domain"
	"github.com/transfa/fraud-service/internal/store"
)

// memoryRepo mirrors the merge-upsert semantics of the PostgreSQL repository.
type memoryRepo struct {
	store.Repository

	mu           sync.Mutex
	transactions map[string]domain.TransactionRecord
	timestamps   map[string]int64
	flags        map[string]domain.Flag
	alerts       map[string]domain.Alert
	tokens       map[string][]string

	upsertTxnErr error
	flagErr      error
	alertErr     error
	listTokenErr error
	removeErr    error
	listErr      error

	countCalls int
	countErr   error
	lastSince  int64
	removed    []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		transactions: map[string]domain.TransactionRecord{},
		timestamps:   map[string]int64{},
		flags:        map[string]domain.Flag{},
		alerts:       map[string]domain.Alert{},
		tokens:       map[string][]string{},
	}
}

func (m *memoryRepo) UpsertTransaction(ctx context.Context, record domain.TransactionRecord, timestampMillis int64) (*domain.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertTxnErr != nil {
		return nil, m.upsertTxnErr
	}
	record.Timestamp = timestampMillis
	if existing, ok := m.transactions[record.TxnID]; ok {
		if record.Amount == nil {
			record.Amount = existing.Amount
		}
		if record.Merchant == nil {
			record.Merchant = existing.Merchant
		}
		if record.CardID == nil {
			record.CardID = existing.CardID
		}
		if record.CardNumber == nil {
			record.CardNumber = existing.CardNumber
		}
	}
	m.transactions[record.TxnID] = record
	m.timestamps[record.TxnID] = timestampMillis
	return &record, nil
}

func (m *memoryRepo) ListTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.StoredTransaction, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return nil, nil
}

func (m *memoryRepo) CountRecentTransactions(ctx context.Context, userID string, sinceMillis int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	m.lastSince = sinceMillis
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for txnID, record := range m.transactions {
		if record.UserID == userID && m.timestamps[txnID] >= sinceMillis {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) UpsertFlag(ctx context.Context, fields domain.FlagUpsert) (*domain.Flag, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flagErr != nil {
		return nil, false, m.flagErr
	}
	now := time.Now()
	flag, exists := m.flags[fields.TxnID]
	if !exists {
		flag = domain.Flag{TxnID: fields.TxnID, TransactionID: fields.TxnID, Status: domain.FlagStatusPending, CreatedAt: now}
	}
	flag.UserID = fields.UserID
	flag.CardID = coalesce(fields.CardID, flag.CardID)
	flag.Merchant = coalesce(fields.Merchant, flag.Merchant)
	if fields.Amount != nil {
		flag.Amount = fields.Amount
	}
	flag.Reasons = fields.Reasons
	flag.UpdatedAt = now
	m.flags[fields.TxnID] = flag
	return &flag, !exists, nil
}

func (m *memoryRepo) UpsertAlert(ctx context.Context, fields domain.FlagUpsert) (*domain.Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alertErr != nil {
		return nil, false, m.alertErr
	}
	now := time.Now()
	alert, exists := m.alerts[fields.TxnID]
	if !exists {
		alert = domain.Alert{
			TxnID:         fields.TxnID,
			TransactionID: fields.TxnID,
			Type:          domain.AlertTypeSuspiciousTransaction,
			Status:        domain.AlertStatusUnread,
			CreatedAt:     now,
		}
	}
	alert.UserID = fields.UserID
	alert.CardID = coalesce(fields.CardID, alert.CardID)
	alert.Merchant = coalesce(fields.Merchant, alert.Merchant)
	if fields.Amount != nil {
		alert.Amount = fields.Amount
	}
	alert.Reasons = fields.Reasons
	alert.UpdatedAt = now
	m.alerts[fields.TxnID] = alert
	return &alert, !exists, nil
}

func (m *memoryRepo) ListDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listTokenErr != nil {
		return nil, m.listTokenErr
	}
	return append([]string(nil), m.tokens[userID]...), nil
}

func (m *memoryRepo) RemoveDeviceToken(ctx context.Context, userID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return false, m.removeErr
	}
	m.removed = append(m.removed, token)
	kept := m.tokens[userID][:0]
	removed := false
	for _, existing := range m.tokens[userID] {
		if existing == token {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	m.tokens[userID] = kept
	return removed, nil
}

func coalesce(next, current *string) *string {
	if next != nil {
		return next
	}
	return current
}

// recordingSender fails the tokens listed in errs and records every attempt.
type recordingSender struct {
	mu       sync.Mutex
	errs     map[string]error
	attempts []string
	sent     []domain.PushNotification
}

func (s *recordingSender) Send(ctx context.Context, token string, notification domain.PushNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, token)
	if err := s.errs[token]; err != nil {
		return err
	}
	s.sent = append(s.sent, notification)
	return nil
}

type publishedEvent struct {
	exchange   string
	routingKey string
	payload    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, payload: payload})
	return p.err
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }
