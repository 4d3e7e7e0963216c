package domain

import "errors"

// ErrInvalidDeviceToken marks a push failure the provider reports as permanent:
// the token is unregistered or malformed and will never succeed again.
var ErrInvalidDeviceToken = errors.New("device token permanently invalid")

// PushNotification is the provider-agnostic message fanned out to a user's devices.
type PushNotification struct {
	Title           string
	Body            string
	Data            map[string]string
	AndroidPriority string
	APNSHeaders     map[string]string
}

// DeliveryOutcome classifies the result of one send attempt.
type DeliveryOutcome int

const (
	Delivered DeliveryOutcome = iota
	PermanentlyInvalid
	TransientFailure
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case PermanentlyInvalid:
		return "permanently_invalid"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// DeliveryResult is the per-token result folded by the dispatcher.
type DeliveryResult struct {
	Token   string
	Outcome DeliveryOutcome
	Err     error
}

// DispatchReport summarises one fan-out.
type DispatchReport struct {
	Attempted int
	Delivered int
	Failed    int
	Pruned    []string
}
