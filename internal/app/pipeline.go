package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/fraud-service/internal/domain"
)

const (
	fraudAlertTitle       = "Fraud Alert"
	androidPriorityHigh   = "high"
	apnsPriorityImmediate = "10"
)

// EventPublisher publishes a JSON event to an exchange.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error
}

// Pipeline evaluates one transaction write and, when it is suspicious, records the
// flag/alert pair before notifying the user's devices.
type Pipeline struct {
	counter    ActivityCounter
	evaluator  *RiskEvaluator
	recorder   *AlertRecorder
	dispatcher *NotificationDispatcher
	publisher  EventPublisher
	exchange   string
	now        func() time.Time
}

func NewPipeline(
	counter ActivityCounter,
	evaluator *RiskEvaluator,
	recorder *AlertRecorder,
	dispatcher *NotificationDispatcher,
	publisher EventPublisher,
	exchange string,
) *Pipeline {
	if evaluator == nil {
		evaluator = NewRiskEvaluator(nil)
	}
	return &Pipeline{
		counter:    counter,
		evaluator:  evaluator,
		recorder:   recorder,
		dispatcher: dispatcher,
		publisher:  publisher,
		exchange:   exchange,
		now:        time.Now,
	}
}

// Process runs received -> normalized -> evaluated -> (done | recorded -> notified).
// It is safe to call repeatedly for the same txn id; the only repeated side effect is
// a duplicate push.
func (p *Pipeline) Process(ctx context.Context, record domain.TransactionRecord) (domain.Verdict, error) {
	if err := record.Validate(); err != nil {
		return domain.Verdict{}, err
	}

	now := p.now()
	txn := domain.Transaction{
		TxnID:     record.TxnID,
		UserID:    record.UserID,
		Amount:    derefFloat(record.Amount),
		Merchant:  derefString(record.Merchant),
		CardID:    record.ResolvedCardID(),
		Timestamp: NormalizeTimestamp(record.Timestamp, now),
	}

	if tracker, ok := p.counter.(ActivityTracker); ok {
		if err := tracker.TrackTransaction(ctx, txn); err != nil {
			return domain.Verdict{}, fmt.Errorf("track transaction: %w", err)
		}
	}

	recentCount, err := p.counter.CountRecentTransactions(ctx, txn.UserID, velocityFloor(now))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("count recent transactions: %w", err)
	}

	verdict := p.evaluator.Evaluate(txn, recentCount)
	if !verdict.Suspicious {
		return verdict, nil
	}

	result, err := p.recorder.Record(ctx, record, verdict)
	if err != nil {
		return verdict, fmt.Errorf("record alert: %w", err)
	}

	p.publishAlertRecorded(ctx, txn, verdict, result)

	if p.dispatcher != nil {
		report, err := p.dispatcher.Dispatch(ctx, txn.UserID, FraudAlertNotification(txn.TxnID))
		if err != nil {
			log.Printf("level=warn component=pipeline msg=\"notification dispatch skipped\" txn_id=%s user_id=%s err=%v", txn.TxnID, txn.UserID, err)
		} else if report.Attempted > 0 {
			log.Printf("level=info component=pipeline msg=\"notifications dispatched\" txn_id=%s user_id=%s attempted=%d delivered=%d pruned=%d",
				txn.TxnID, txn.UserID, report.Attempted, report.Delivered, len(report.Pruned))
		}
	}

	return verdict, nil
}

func (p *Pipeline) publishAlertRecorded(ctx context.Context, txn domain.Transaction, verdict domain.Verdict, result *domain.RecordResult) {
	if p.publisher == nil || p.exchange == "" {
		return
	}
	event := domain.AlertRecordedEvent{
		EventID:    uuid.NewString(),
		TxnID:      txn.TxnID,
		UserID:     txn.UserID,
		Reasons:    verdict.Reasons,
		Created:    result != nil && result.AlertCreated,
		OccurredAt: p.now().UTC(),
	}
	if err := p.publisher.Publish(ctx, p.exchange, domain.RoutingKeyAlertRecorded, event); err != nil {
		log.Printf("level=warn component=pipeline msg=\"alert recorded event publish failed\" txn_id=%s err=%v", txn.TxnID, err)
	}
}

// FraudAlertNotification builds the push sent for a suspicious transaction.
func FraudAlertNotification(txnID string) domain.PushNotification {
	return domain.PushNotification{
		Title: fraudAlertTitle,
		Body:  fmt.Sprintf("Suspicious transaction: %s", txnID),
		Data: map[string]string{
			"alertId": txnID,
			"txnId":   txnID,
		},
		AndroidPriority: androidPriorityHigh,
		APNSHeaders: map[string]string{
			"apns-priority": apnsPriorityImmediate,
		},
	}
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
