package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/transfa/fraud-service/internal/domain"
	"github.com/transfa/fraud-service/internal/store"
)

// AlertRecorder persists the flag and alert pair for a suspicious transaction.
// Both writes are merge-upserts keyed by txn id, so recording the same transaction
// any number of times leaves exactly one flag and one alert.
type AlertRecorder struct {
	repo store.Repository
}

func NewAlertRecorder(repo store.Repository) *AlertRecorder {
	return &AlertRecorder{repo: repo}
}

// Record writes the flag, then the alert. A failure on either is returned and the
// caller must not notify.
func (r *AlertRecorder) Record(ctx context.Context, record domain.TransactionRecord, verdict domain.Verdict) (*domain.RecordResult, error) {
	fields := domain.FlagUpsert{
		TxnID:    record.TxnID,
		UserID:   record.UserID,
		CardID:   optionalString(record.ResolvedCardID()),
		Merchant: record.Merchant,
		Amount:   record.Amount,
		Reasons:  append([]string(nil), verdict.Reasons...),
	}

	flag, flagCreated, err := r.repo.UpsertFlag(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}

	alert, alertCreated, err := r.repo.UpsertAlert(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("upsert alert: %w", err)
	}

	log.Printf("level=info component=recorder msg=\"fraud alert recorded\" txn_id=%s user_id=%s flag_created=%t alert_created=%t flag_status=%s reasons=%q",
		record.TxnID, record.UserID, flagCreated, alertCreated, flag.Status, strings.Join(verdict.Reasons, ","))

	return &domain.RecordResult{
		Flag:         *flag,
		Alert:        *alert,
		FlagCreated:  flagCreated,
		AlertCreated: alertCreated,
	}, nil
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
