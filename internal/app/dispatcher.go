package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/transfa/fraud-service/internal/domain"
	"github.com/transfa/fraud-service/internal/store"
)

const defaultSendTimeout = 10 * time.Second

// PushSender delivers one notification to one device token. Implementations wrap
// domain.ErrInvalidDeviceToken when the provider says the token is gone for good.
type PushSender interface {
	Send(ctx context.Context, token string, notification domain.PushNotification) error
}

// NotificationDispatcher fans a notification out to every device of a user and prunes
// tokens the provider rejects permanently.
type NotificationDispatcher struct {
	repo        store.Repository
	sender      PushSender
	sendTimeout time.Duration
}

func NewNotificationDispatcher(repo store.Repository, sender PushSender, sendTimeout time.Duration) *NotificationDispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &NotificationDispatcher{
		repo:        repo,
		sender:      sender,
		sendTimeout: sendTimeout,
	}
}

// Dispatch attempts every token. One token failing never stops the others. The only
// error returned is a failure to load the token set.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, userID string, notification domain.PushNotification) (domain.DispatchReport, error) {
	var report domain.DispatchReport

	tokens, err := d.repo.ListDeviceTokens(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return report, nil
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		result := d.deliver(ctx, token, notification)
		report.Attempted++

		switch result.Outcome {
		case domain.Delivered:
			report.Delivered++
		case domain.PermanentlyInvalid:
			report.Failed++
			d.prune(ctx, userID, token, result.Err)
			report.Pruned = append(report.Pruned, token)
		default:
			report.Failed++
			log.Printf("level=warn component=dispatcher msg=\"push delivery failed\" user_id=%s token=%s err=%v",
				userID, maskToken(token), result.Err)
		}
	}

	return report, nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, token string, notification domain.PushNotification) domain.DeliveryResult {
	if d.sender == nil {
		return domain.DeliveryResult{Token: token, Outcome: domain.TransientFailure, Err: errors.New("push sender not configured")}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.sender.Send(sendCtx, token, notification)
	return domain.DeliveryResult{Token: token, Outcome: classifyDelivery(err), Err: err}
}

func (d *NotificationDispatcher) prune(ctx context.Context, userID, token string, cause error) {
	removed, err := d.repo.RemoveDeviceToken(ctx, userID, token)
	if err != nil {
		log.Printf("level=error component=dispatcher msg=\"stale token removal failed\" user_id=%s token=%s err=%v",
			userID, maskToken(token), err)
		return
	}
	log.Printf("level=info component=dispatcher msg=\"stale token pruned\" user_id=%s token=%s removed=%t cause=%q",
		userID, maskToken(token), removed, errString(cause))
}

func classifyDelivery(err error) domain.DeliveryOutcome {
	switch {
	case err == nil:
		return domain.Delivered
	case errors.Is(err, domain.ErrInvalidDeviceToken):
		return domain.PermanentlyInvalid
	default:
		return domain.TransientFailure
	}
}

// maskToken keeps push tokens out of logs.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
