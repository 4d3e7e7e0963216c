package fcmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/transfa/fraud-service/internal/domain"
)

type stubSender struct {
	err  error
	sent []*messaging.Message
}

func (s *stubSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	s.sent = append(s.sent, message)
	if s.err != nil {
		return "", s.err
	}
	return "projects/test/messages/1", nil
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// fcmResponder answers every messages:send call with the given status and body.
func fcmResponder(status int, body string, calls *int) roundTripperFunc {
	return func(req *http.Request) (*http.Response, error) {
		*calls++
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func fcmErrorBody(code int, status, errorCode, message string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":%q,"status":%q,"details":[`+
		`{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":%q}]}}`,
		code, message, status, errorCode)
}

func newTestClient(t *testing.T, rt http.RoundTripper) *Client {
	t.Helper()
	client, err := newClient(context.Background(),
		&firebase.Config{ProjectID: "fraud-test"},
		option.WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	return client
}

func testNotification() domain.PushNotification {
	return domain.PushNotification{
		Title:           "Fraud Alert",
		Body:            "Suspicious transaction: t1",
		Data:            map[string]string{"alertId": "t1", "txnId": "t1"},
		AndroidPriority: "high",
		APNSHeaders:     map[string]string{"apns-priority": "10"},
	}
}

func TestSendBuildsMessage(t *testing.T) {
	sender := &stubSender{}
	client := &Client{sender: sender}

	if err := client.Send(context.Background(), "token-a", testNotification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}

	msg := sender.sent[0]
	if msg.Token != "token-a" {
		t.Fatalf("expected token-a, got %q", msg.Token)
	}
	if msg.Notification == nil || msg.Notification.Title != "Fraud Alert" || msg.Notification.Body != "Suspicious transaction: t1" {
		t.Fatalf("unexpected notification: %+v", msg.Notification)
	}
	if msg.Data["alertId"] != "t1" || msg.Data["txnId"] != "t1" {
		t.Fatalf("unexpected data: %+v", msg.Data)
	}
	if msg.Android == nil || msg.Android.Priority != "high" {
		t.Fatalf("expected high android priority, got %+v", msg.Android)
	}
	if msg.APNS == nil || msg.APNS.Headers["apns-priority"] != "10" {
		t.Fatalf("expected apns-priority 10, got %+v", msg.APNS)
	}
}

func TestSendClassifiesProviderErrors(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		status      int
		body        string
		wantCalls   int
		wantInvalid bool
		wantErr     bool
	}{
		{
			name:      "delivered",
			token:     "token-a",
			status:    http.StatusOK,
			body:      `{"name":"projects/fraud-test/messages/1"}`,
			wantCalls: 1,
		},
		{
			name:        "unregistered token",
			token:       "token-a",
			status:      http.StatusNotFound,
			body:        fcmErrorBody(404, "NOT_FOUND", "UNREGISTERED", "Requested entity was not found."),
			wantCalls:   1,
			wantInvalid: true,
			wantErr:     true,
		},
		{
			name:        "malformed registration token",
			token:       "token-a",
			status:      http.StatusBadRequest,
			body:        fcmErrorBody(400, "INVALID_ARGUMENT", "INVALID_ARGUMENT", "The registration token is not a valid FCM registration token"),
			wantCalls:   1,
			wantInvalid: true,
			wantErr:     true,
		},
		{
			name:      "invalid payload field keeps token",
			token:     "token-a",
			status:    http.StatusBadRequest,
			body:      fcmErrorBody(400, "INVALID_ARGUMENT", "INVALID_ARGUMENT", "Invalid value at 'message.data[0].value' (TYPE_STRING)"),
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "provider auth failure",
			token:     "token-a",
			status:    http.StatusUnauthorized,
			body:      fcmErrorBody(401, "UNAUTHENTICATED", "THIRD_PARTY_AUTH_ERROR", "Auth error from APNS or Web Push Service"),
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:        "empty token",
			token:       " ",
			wantCalls:   0,
			wantInvalid: true,
			wantErr:     true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			client := newTestClient(t, fcmResponder(tc.status, tc.body, &calls))

			err := client.Send(context.Background(), tc.token, testNotification())
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%t, got %v", tc.wantErr, err)
			}
			if got := errors.Is(err, domain.ErrInvalidDeviceToken); got != tc.wantInvalid {
				t.Fatalf("expected invalid token=%t, got %t (err=%v)", tc.wantInvalid, got, err)
			}
			if calls != tc.wantCalls {
				t.Fatalf("expected %d provider calls, got %d", tc.wantCalls, calls)
			}
		})
	}
}
