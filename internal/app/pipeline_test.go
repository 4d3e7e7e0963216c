package app

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/transfa/fraud-service/internal/domain"
)

var pipelineNoon = time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)

type pipelineFixture struct {
	repo      *memoryRepo
	sender    *recordingSender
	publisher *recordingPublisher
	pipeline  *Pipeline
}

func newPipelineFixture(counter ActivityCounter) *pipelineFixture {
	repo := newMemoryRepo()
	repo.tokens["u1"] = []string{"token-1"}
	if counter == nil {
		counter = repo
	}
	sender := &recordingSender{}
	publisher := &recordingPublisher{}

	pipeline := NewPipeline(
		counter,
		NewRiskEvaluator(time.UTC),
		NewAlertRecorder(repo),
		NewNotificationDispatcher(repo, sender, time.Second),
		publisher,
		"transfa.events",
	)
	pipeline.now = func() time.Time { return pipelineNoon }

	return &pipelineFixture{repo: repo, sender: sender, publisher: publisher, pipeline: pipeline}
}

func suspiciousRecord() domain.TransactionRecord {
	return domain.TransactionRecord{
		TxnID:     "t1",
		UserID:    "u1",
		Amount:    floatPtr(6000),
		Merchant:  stringPtr("Acme"),
		Timestamp: pipelineNoon.UnixMilli(),
	}
}

func TestPipelineRecordsAndNotifiesSuspiciousTransaction(t *testing.T) {
	f := newPipelineFixture(nil)

	verdict, err := f.pipeline.Process(context.Background(), suspiciousRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Suspicious || !reflect.DeepEqual(verdict.Reasons, []string{domain.ReasonLargeAmount}) {
		t.Fatalf("unexpected verdict %+v", verdict)
	}

	flag, ok := f.repo.flags["t1"]
	if !ok {
		t.Fatal("expected flag for t1")
	}
	if flag.Status != domain.FlagStatusPending || flag.UserID != "u1" || *flag.Amount != 6000 || *flag.Merchant != "Acme" {
		t.Fatalf("unexpected flag %+v", flag)
	}
	if !reflect.DeepEqual(flag.Reasons, []string{domain.ReasonLargeAmount}) {
		t.Fatalf("unexpected flag reasons %v", flag.Reasons)
	}
	if flag.TransactionID != "t1" {
		t.Fatalf("expected flag transactionId t1, got %q", flag.TransactionID)
	}

	alert, ok := f.repo.alerts["t1"]
	if !ok {
		t.Fatal("expected alert for t1")
	}
	if alert.Status != domain.AlertStatusUnread || alert.Type != domain.AlertTypeSuspiciousTransaction || alert.TransactionID != "t1" {
		t.Fatalf("unexpected alert %+v", alert)
	}

	if len(f.sender.sent) != 1 || f.sender.sent[0].Body != "Suspicious transaction: t1" {
		t.Fatalf("expected one fraud alert push, got %+v", f.sender.sent)
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].routingKey != domain.RoutingKeyAlertRecorded {
		t.Fatalf("expected alert recorded event, got %+v", f.publisher.events)
	}
	event := f.publisher.events[0].payload.(domain.AlertRecordedEvent)
	if event.TxnID != "t1" || !event.Created {
		t.Fatalf("unexpected alert event %+v", event)
	}
}

func TestPipelineIsIdempotentPerTransaction(t *testing.T) {
	f := newPipelineFixture(nil)

	if _, err := f.pipeline.Process(context.Background(), suspiciousRecord()); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	firstCreated := f.repo.flags["t1"].CreatedAt

	redelivered := suspiciousRecord()
	redelivered.Merchant = nil
	if _, err := f.pipeline.Process(context.Background(), redelivered); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if len(f.repo.flags) != 1 || len(f.repo.alerts) != 1 {
		t.Fatalf("expected exactly one flag and alert, got %d and %d", len(f.repo.flags), len(f.repo.alerts))
	}
	flag := f.repo.flags["t1"]
	if !flag.CreatedAt.Equal(firstCreated) {
		t.Fatalf("expected createdAt preserved, got %s want %s", flag.CreatedAt, firstCreated)
	}
	if flag.Merchant == nil || *flag.Merchant != "Acme" {
		t.Fatalf("expected merchant kept from first write, got %v", flag.Merchant)
	}

	second := f.publisher.events[1].payload.(domain.AlertRecordedEvent)
	if second.Created {
		t.Fatal("expected second alert event to report an update")
	}
}

func TestPipelineIgnoresCleanTransaction(t *testing.T) {
	f := newPipelineFixture(nil)
	record := domain.TransactionRecord{
		TxnID:     "t2",
		UserID:    "u1",
		Amount:    floatPtr(20),
		Merchant:  stringPtr("Grocer"),
		Timestamp: pipelineNoon.UnixMilli(),
	}

	verdict, err := f.pipeline.Process(context.Background(), record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Suspicious {
		t.Fatalf("expected clean verdict, got %+v", verdict)
	}
	if len(f.repo.flags) != 0 || len(f.repo.alerts) != 0 || len(f.sender.attempts) != 0 || len(f.publisher.events) != 0 {
		t.Fatal("expected no side effects for a clean transaction")
	}
}

func TestPipelineCountsFromFiveMinutesBeforeNow(t *testing.T) {
	f := newPipelineFixture(nil)
	record := suspiciousRecord()
	record.Timestamp = nil

	if _, err := f.pipeline.Process(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := pipelineNoon.Add(-5 * time.Minute).UnixMilli(); f.repo.lastSince != want {
		t.Fatalf("expected since %d, got %d", want, f.repo.lastSince)
	}
}

func TestPipelineHighVelocity(t *testing.T) {
	f := newPipelineFixture(nil)
	for i, txnID := range []string{"a", "b", "c", "d"} {
		ts := pipelineNoon.Add(-time.Duration(i) * time.Minute).UnixMilli()
		if _, err := f.repo.UpsertTransaction(context.Background(), domain.TransactionRecord{TxnID: txnID, UserID: "u1"}, ts); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	record := domain.TransactionRecord{TxnID: "e", UserID: "u1", Amount: floatPtr(10), Merchant: stringPtr("Acme"), Timestamp: pipelineNoon.UnixMilli()}
	verdict, err := f.pipeline.Process(context.Background(), record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(verdict.Reasons, []string{domain.ReasonHighVelocity}) {
		t.Fatalf("expected high velocity, got %v", verdict.Reasons)
	}
}

func TestPipelineStopsWhenCountFails(t *testing.T) {
	f := newPipelineFixture(nil)
	f.repo.countErr = errors.New("db down")

	if _, err := f.pipeline.Process(context.Background(), suspiciousRecord()); err == nil {
		t.Fatal("expected error when the velocity count fails")
	}
	if len(f.repo.flags) != 0 || len(f.sender.attempts) != 0 {
		t.Fatal("expected nothing recorded or sent")
	}
}

func TestPipelineDoesNotNotifyWhenRecordFails(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *memoryRepo)
	}{
		{name: "flag write fails", setup: func(r *memoryRepo) { r.flagErr = errors.New("db down") }},
		{name: "alert write fails", setup: func(r *memoryRepo) { r.alertErr = errors.New("db down") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPipelineFixture(nil)
			tc.setup(f.repo)

			if _, err := f.pipeline.Process(context.Background(), suspiciousRecord()); err == nil {
				t.Fatal("expected error")
			}
			if len(f.sender.attempts) != 0 || len(f.publisher.events) != 0 {
				t.Fatal("expected no notification when recording fails")
			}
		})
	}
}

func TestPipelineSucceedsWhenNotificationFails(t *testing.T) {
	f := newPipelineFixture(nil)
	f.repo.listTokenErr = errors.New("db down")
	f.publisher.err = errors.New("broker down")

	if _, err := f.pipeline.Process(context.Background(), suspiciousRecord()); err != nil {
		t.Fatalf("expected notification problems to be swallowed, got %v", err)
	}
	if _, ok := f.repo.alerts["t1"]; !ok {
		t.Fatal("expected alert to stay recorded")
	}
}

func TestPipelineRejectsInvalidRecord(t *testing.T) {
	f := newPipelineFixture(nil)

	_, err := f.pipeline.Process(context.Background(), domain.TransactionRecord{TxnID: "t1"})
	if !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}
	if f.repo.countCalls != 0 {
		t.Fatal("expected no count for an invalid record")
	}
}

type trackingCounter struct {
	tracked []domain.Transaction
	count   int
}

func (c *trackingCounter) TrackTransaction(ctx context.Context, txn domain.Transaction) error {
	c.tracked = append(c.tracked, txn)
	return nil
}

func (c *trackingCounter) CountRecentTransactions(ctx context.Context, userID string, sinceMillis int64) (int, error) {
	return c.count, nil
}

func TestPipelineTracksBeforeCounting(t *testing.T) {
	counter := &trackingCounter{count: 1}
	f := newPipelineFixture(counter)

	record := suspiciousRecord()
	record.CardID = nil
	record.CardNumber = stringPtr("4111")
	if _, err := f.pipeline.Process(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counter.tracked) != 1 {
		t.Fatalf("expected the transaction tracked once, got %d", len(counter.tracked))
	}
	tracked := counter.tracked[0]
	if tracked.Timestamp != pipelineNoon.UnixMilli() || tracked.CardID != "4111" {
		t.Fatalf("unexpected tracked transaction %+v", tracked)
	}
	if got := f.repo.flags["t1"].CardID; got == nil || *got != "4111" {
		t.Fatalf("expected flag card id from cardNumber, got %v", got)
	}
}
