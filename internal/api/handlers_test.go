package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/app"
	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/domain"
	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/store"
)

// stubService lets each test script the engine's behavior per operation.
type stubService struct {
	depositFn  func(ctx context.Context, req domain.DepositRequest) (*app.Result, error)
	withdrawFn func(ctx context.Context, req domain.WithdrawRequest) (*app.Result, error)
	transferFn func(ctx context.Context, req domain.TransferRequest) (*app.Result, error)
	statement  func(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	history    func(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}

func (s *stubService) ProcessDeposit(ctx context.Context, req domain.DepositRequest) (*app.Result, error) {
	return s.depositFn(ctx, req)
}

func (s *stubService) ProcessWithdraw(ctx context.Context, req domain.WithdrawRequest) (*app.Result, error) {
	return s.withdrawFn(ctx, req)
}

func (s *stubService) ProcessTransfer(ctx context.Context, req domain.TransferRequest) (*app.Result, error) {
	return s.transferFn(ctx, req)
}

func (s *stubService) GetStatement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return s.statement(ctx, accountID, limit, offset)
}

func (s *stubService) GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return s.history(ctx, accountID)
}

func serveRequest(t *testing.T, service TransactionService, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	TransactionRoutes(NewTransactionHandlers(service)).ServeHTTP(rec, req)
	return rec
}

func sampleTransaction(accountID uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Amount:       250075,
		Type:         domain.TxnTypeDeposit,
		BalanceAfter: 350075,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDepositHandler_FreshCommitReturns201(t *testing.T) {
	accountID := uuid.New()
	service := &stubService{
		depositFn: func(ctx context.Context, req domain.DepositRequest) (*app.Result, error) {
			if req.IdempotencyKey != "dep-1" {
				t.Fatalf("unexpected idempotency key %q", req.IdempotencyKey)
			}
			return &app.Result{Transaction: sampleTransaction(accountID)}, nil
		},
	}

	rec := serveRequest(t, service, http.MethodPost, "/deposit", map[string]interface{}{
		"account_id":      accountID.String(),
		"amount":          "2500.75",
		"idempotency_key": "dep-1",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message     string `json:"message"`
		Transaction struct {
			Amount       string `json:"amount"`
			AmountMinor  int64  `json:"amount_minor"`
			BalanceAfter string `json:"balance_after"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Transaction.Amount != "2500.75" || resp.Transaction.AmountMinor != 250075 {
		t.Fatalf("unexpected amount rendering: %+v", resp.Transaction)
	}
	if resp.Transaction.BalanceAfter != "3500.75" {
		t.Fatalf("unexpected balance rendering: %q", resp.Transaction.BalanceAfter)
	}
}

func TestDepositHandler_ReplayReturns200(t *testing.T) {
	accountID := uuid.New()
	service := &stubService{
		depositFn: func(ctx context.Context, req domain.DepositRequest) (*app.Result, error) {
			return &app.Result{Transaction: sampleTransaction(accountID), Replayed: true}, nil
		},
	}

	rec := serveRequest(t, service, http.MethodPost, "/deposit", map[string]interface{}{
		"account_id":      accountID.String(),
		"amount":          "2500.75",
		"idempotency_key": "dep-1",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for replay, got %d", rec.Code)
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "already processed" {
		t.Fatalf("unexpected replay message %q", resp.Message)
	}
}

func TestDepositHandler_IdempotencyKeyHeaderFallback(t *testing.T) {
	accountID := uuid.New()
	var gotKey string
	service := &stubService{
		depositFn: func(ctx context.Context, req domain.DepositRequest) (*app.Result, error) {
			gotKey = req.IdempotencyKey
			return &app.Result{Transaction: sampleTransaction(accountID)}, nil
		},
	}

	rec := serveRequest(t, service, http.MethodPost, "/deposit", map[string]interface{}{
		"account_id": accountID.String(),
		"amount":     "10.00",
	}, map[string]string{"Idempotency-Key": "header-key"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotKey != "header-key" {
		t.Fatalf("expected header fallback key, got %q", gotKey)
	}
}

func TestWithdrawHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing idempotency key", app.ErrIdempotencyKeyRequired, http.StatusBadRequest},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"account not found", store.ErrAccountNotFound, http.StatusNotFound},
		{"account frozen", store.ErrAccountFrozen, http.StatusForbidden},
		{"insufficient funds", store.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"daily limit exceeded", store.ErrDailyLimitExceeded, http.StatusUnprocessableEntity},
		{"infrastructure failure", context.DeadlineExceeded, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &stubService{
				withdrawFn: func(ctx context.Context, req domain.WithdrawRequest) (*app.Result, error) {
					return nil, tt.err
				},
			}

			rec := serveRequest(t, service, http.MethodPost, "/withdraw", map[string]interface{}{
				"account_id":      uuid.New().String(),
				"amount":          "10.00",
				"idempotency_key": "wd-1",
			}, nil)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTransferHandler_IncludesCreditLeg(t *testing.T) {
	fromID := uuid.New()
	toID := uuid.New()
	service := &stubService{
		transferFn: func(ctx context.Context, req domain.TransferRequest) (*app.Result, error) {
			return &app.Result{
				Transaction: &domain.Transaction{ID: uuid.New(), AccountID: fromID, Amount: -7500, Type: domain.TxnTypeTransferOut, BalanceAfter: 2500},
				Credit:      &domain.Transaction{ID: uuid.New(), AccountID: toID, Amount: 7500, Type: domain.TxnTypeTransferIn, BalanceAfter: 7500},
			}, nil
		},
	}

	rec := serveRequest(t, service, http.MethodPost, "/transfer", map[string]interface{}{
		"from_account_id": fromID.String(),
		"to_account_id":   toID.String(),
		"amount":          "75.00",
		"idempotency_key": "tr-1",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Credit *struct {
			Amount string `json:"amount"`
		} `json:"credit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Credit == nil || resp.Credit.Amount != "75.00" {
		t.Fatalf("expected credit leg in response, got %+v", resp.Credit)
	}
}

func TestStatementHandler_ParsesPagination(t *testing.T) {
	accountID := uuid.New()
	var gotLimit, gotOffset int
	service := &stubService{
		statement: func(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
			gotLimit, gotOffset = limit, offset
			return []domain.Transaction{*sampleTransaction(accountID)}, nil
		},
	}

	rec := serveRequest(t, service, http.MethodGet, "/statement/"+accountID.String()+"?limit=10&offset=30", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 10 || gotOffset != 30 {
		t.Fatalf("expected limit=10 offset=30, got limit=%d offset=%d", gotLimit, gotOffset)
	}
}

func TestStatementHandler_InvalidAccountID(t *testing.T) {
	service := &stubService{}
	rec := serveRequest(t, service, http.MethodGet, "/statement/not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHistoryHandler_UnknownAccountReturns404(t *testing.T) {
	service := &stubService{
		history: func(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
			return nil, store.ErrAccountNotFound
		},
	}

	rec := serveRequest(t, service, http.MethodGet, "/history/"+uuid.New().String(), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	rec := serveRequest(t, &stubService{}, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
