/**
 * @description
 * This file contains the HTTP handlers for the ledger service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/app"
	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/domain"
	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/store"
)

// TransactionService is the application surface the handlers depend on.
type TransactionService interface {
	ProcessDeposit(ctx context.Context, req domain.DepositRequest) (*app.Result, error)
	ProcessWithdraw(ctx context.Context, req domain.WithdrawRequest) (*app.Result, error)
	ProcessTransfer(ctx context.Context, req domain.TransferRequest) (*app.Result, error)
	GetStatement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}

// TransactionHandlers holds the application service that handlers will use.
type TransactionHandlers struct {
	service TransactionService
}

// NewTransactionHandlers creates a new instance of TransactionHandlers.
func NewTransactionHandlers(service TransactionService) *TransactionHandlers {
	return &TransactionHandlers{service: service}
}

// transactionView is one ledger record as rendered to API clients. Amounts go
// out both as decimal major-unit strings and raw minor units.
type transactionView struct {
	TransactionID string  `json:"transaction_id"`
	AccountID     string  `json:"account_id"`
	Type          string  `json:"txn_type"`
	Amount        string  `json:"amount"`
	AmountMinor   int64   `json:"amount_minor"`
	Counterparty  *string `json:"counterparty,omitempty"`
	BalanceAfter  string  `json:"balance_after"`
	CreatedAt     string  `json:"created_at"`
}

type transactionResponse struct {
	Message     string           `json:"message"`
	Transaction transactionView  `json:"transaction"`
	Credit      *transactionView `json:"credit,omitempty"`
}

func buildTransactionView(txn *domain.Transaction) transactionView {
	return transactionView{
		TransactionID: txn.ID.String(),
		AccountID:     txn.AccountID.String(),
		Type:          txn.Type,
		Amount:        domain.FormatAmount(txn.Amount),
		AmountMinor:   txn.Amount,
		Counterparty:  txn.Counterparty,
		BalanceAfter:  domain.FormatAmount(txn.BalanceAfter),
		CreatedAt:     txn.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// DepositHandler handles requests to credit an account.
func (h *TransactionHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	fillIdempotencyKey(&req.IdempotencyKey, r)

	result, err := h.service.ProcessDeposit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, result)
}

// WithdrawHandler handles requests to debit an account.
func (h *TransactionHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	fillIdempotencyKey(&req.IdempotencyKey, r)

	result, err := h.service.ProcessWithdraw(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, result)
}

// TransferHandler handles requests to move funds between two accounts.
func (h *TransactionHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	fillIdempotencyKey(&req.IdempotencyKey, r)

	result, err := h.service.ProcessTransfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, result)
}

// StatementHandler returns a page of an account's ledger records, newest first.
// Query params: limit (default 50, max 100) and offset (default 0).
func (h *TransactionHandlers) StatementHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	transactions, err := h.service.GetStatement(r.Context(), accountID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeTransactionList(w, accountID, transactions)
}

// HistoryHandler returns all of an account's ledger records, newest first.
func (h *TransactionHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.GetTransactionHistory(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeTransactionList(w, accountID, transactions)
}

func (h *TransactionHandlers) parseAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return uuid.Nil, false
	}
	return accountID, true
}

// fillIdempotencyKey lets clients supply the key via the Idempotency-Key
// header instead of the request body.
func fillIdempotencyKey(key *string, r *http.Request) {
	if *key == "" {
		*key = r.Header.Get("Idempotency-Key")
	}
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// writeResult renders a committed operation. A replayed request gets 200 with
// an "already processed" message; a fresh commit gets 201.
func (h *TransactionHandlers) writeResult(w http.ResponseWriter, result *app.Result) {
	status := http.StatusCreated
	message := "Transaction processed"
	if result.Replayed {
		status = http.StatusOK
		message = "already processed"
	}

	resp := transactionResponse{
		Message:     message,
		Transaction: buildTransactionView(result.Transaction),
	}
	if result.Credit != nil {
		credit := buildTransactionView(result.Credit)
		resp.Credit = &credit
	}
	h.writeJSON(w, status, resp)
}

func (h *TransactionHandlers) writeTransactionList(w http.ResponseWriter, accountID uuid.UUID, transactions []domain.Transaction) {
	views := make([]transactionView, 0, len(transactions))
	for i := range transactions {
		views = append(views, buildTransactionView(&transactions[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":   accountID.String(),
		"count":        len(views),
		"transactions": views,
	})
}

// writeServiceError maps business errors to HTTP statuses. Anything
// unrecognized is an infrastructure failure and reported as 503.
func (h *TransactionHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrIdempotencyKeyRequired):
		h.writeError(w, http.StatusBadRequest, "Idempotency key is required")
	case errors.Is(err, domain.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "Amount must be a positive decimal with at most two fraction digits")
	case errors.Is(err, app.ErrSameAccountTransfer):
		h.writeError(w, http.StatusBadRequest, "Cannot transfer to the same account")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrAccountFrozen):
		h.writeError(w, http.StatusForbidden, "Account is frozen")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient funds")
	case errors.Is(err, store.ErrDailyLimitExceeded):
		h.writeError(w, http.StatusUnprocessableEntity, "Daily debit limit exceeded")
	default:
		log.Printf("level=error component=api msg=\"transaction processing failed\" err=%v", err)
		h.writeError(w, http.StatusServiceUnavailable, "Transaction could not be processed, please retry")
	}
}

func (h *TransactionHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

func (h *TransactionHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
