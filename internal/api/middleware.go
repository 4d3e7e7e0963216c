/**
 * @description
 * This file contains custom middleware for the HTTP router: the shared-secret check
 * guarding the bank webhook and listing endpoints, request id propagation and the
 * request body limit.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5/middleware: Request id context key used by the access log.
 * - github.com/google/uuid: Request id generation.
 */

package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	apiKeyHeader    = "x-api-key"
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// APIKeyMiddleware rejects requests whose x-api-key does not match requiredKey.
// An empty requiredKey rejects everything.
func APIKeyMiddleware(requiredKey string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(requiredKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(r.Header.Get(apiKeyHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware reuses an inbound X-Request-ID or mints one, echoes it on the
// response and stores it where chi's logger looks for it.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BodyLimitMiddleware caps request bodies at 1 MiB.
func BodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
