package rabbitmq

import (
	"errors"
	"net/url"
	"strings"
)

var errInvalidScheme = errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")

// sanitizeURL trims quotes and stray leading characters that env files tend to leave
// around the broker URL.
func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errInvalidScheme
	}
	if parsed.Path == "" {
		clean += "/"
	}
	return clean, nil
}
