/**
 * @description
 * This file contains the HTTP handlers for the fraud-service. The webhook handler is
 * the ingress for bank transaction writes; the listing handler backs the dashboard.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/domain: Transaction models and validation errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/transfa/fraud-service/internal/domain"
)

// TransactionService is what the handlers need from the ingest layer.
type TransactionService interface {
	IngestTransaction(ctx context.Context, record domain.TransactionRecord) (*domain.TransactionRecord, error)
	ListTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.StoredTransaction, domain.TransactionListOptions, error)
}

// TransactionHandlers holds the service that handlers will use.
type TransactionHandlers struct {
	service TransactionService
}

func NewTransactionHandlers(service TransactionService) *TransactionHandlers {
	return &TransactionHandlers{service: service}
}

type listTransactionsResponse struct {
	Success bool                       `json:"success"`
	Data    []domain.StoredTransaction `json:"data"`
	Total   int                        `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// TransactionWebhookHandler accepts one transaction write from the bank.
func (h *TransactionHandlers) TransactionWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var record domain.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if err := record.Validate(); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if _, err := h.service.IngestTransaction(r.Context(), record); err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		log.Printf("level=error component=api msg=\"transaction ingest failed\" txn_id=%s err=%v", record.TxnID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ListTransactionsHandler returns stored transactions newest first.
func (h *TransactionHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := domain.TransactionListOptions{
		UserID: strings.TrimSpace(query.Get("userId")),
		Limit:  parseIntQuery(query.Get("limit")),
		Offset: parseIntQuery(query.Get("offset")),
	}

	txns, applied, err := h.service.ListTransactions(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api msg=\"list transactions failed\" user_id=%s err=%v", opts.UserID, err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Success: false, Error: "Internal Server Error"})
		return
	}

	h.writeJSON(w, http.StatusOK, listTransactionsResponse{
		Success: true,
		Data:    txns,
		Total:   len(txns),
		Limit:   applied.Limit,
		Offset:  applied.Offset,
	})
}

func parseIntQuery(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

// writeJSON is a helper for writing JSON responses.
func (h *TransactionHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
