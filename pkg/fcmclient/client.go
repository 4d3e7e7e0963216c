/**
 * @description
 * Thin client over Firebase Cloud Messaging used to deliver fraud alerts to a user's
 * registered devices. It translates provider errors into the service's delivery
 * classification so the dispatcher never has to know about Firebase.
 *
 * @dependencies
 * - firebase.google.com/go/v4: Firebase Admin SDK (messaging).
 * - google.golang.org/api/option: Service account credentials.
 */
package fcmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/transfa/fraud-service/internal/domain"
)

// messageSender is the subset of *messaging.Client the client uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client sends push notifications through FCM.
type Client struct {
	sender messageSender
}

// NewClient initializes a Firebase app from a service account JSON document.
func NewClient(ctx context.Context, serviceAccountJSON string) (*Client, error) {
	credentials := strings.TrimSpace(serviceAccountJSON)
	if credentials == "" {
		return nil, errors.New("firebase service account credentials are required")
	}

	return newClient(ctx, nil, option.WithCredentialsJSON([]byte(credentials)))
}

func newClient(ctx context.Context, config *firebase.Config, opts ...option.ClientOption) (*Client, error) {
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase messaging: %w", err)
	}

	return &Client{sender: messagingClient}, nil
}

// Send delivers the notification to a single token. Tokens the provider reports as
// unregistered, or rejects as malformed registration tokens, come back wrapped in
// domain.ErrInvalidDeviceToken.
func (c *Client) Send(ctx context.Context, token string, notification domain.PushNotification) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty device token: %w", domain.ErrInvalidDeviceToken)
	}

	_, err := c.sender.Send(ctx, buildMessage(token, notification))
	if err == nil {
		return nil
	}
	if isPermanentTokenError(err) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidDeviceToken, err)
	}
	return fmt.Errorf("fcm send: %w", err)
}

func buildMessage(token string, notification domain.PushNotification) *messaging.Message {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
	}
	if len(notification.Data) > 0 {
		message.Data = notification.Data
	}
	if notification.AndroidPriority != "" {
		message.Android = &messaging.AndroidConfig{Priority: notification.AndroidPriority}
	}
	if len(notification.APNSHeaders) > 0 {
		message.APNS = &messaging.APNSConfig{Headers: notification.APNSHeaders}
	}
	return message
}

// isPermanentTokenError expects the error exactly as the messaging client returned it.
// INVALID_ARGUMENT also covers bad payload fields, so it only counts against the
// token when the provider message names the registration token.
func isPermanentTokenError(err error) bool {
	if messaging.IsUnregistered(err) {
		return true
	}
	return messaging.IsInvalidArgument(err) &&
		strings.Contains(strings.ToLower(err.Error()), "registration token")
}
