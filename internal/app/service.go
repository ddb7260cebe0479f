/**
 * @description
 * This file contains the core business logic for the ledger service: the
 * transaction engine. It orchestrates validation, idempotent replay
 * resolution, daily limit checks, the atomic store mutations and event
 * publication for deposits, withdrawals and transfers.
 *
 * Key features:
 * - Idempotency: a request whose key is already registered returns the
 *   original result without re-executing. A concurrent duplicate that loses
 *   the unique-constraint race is resolved the same way.
 * - Validation runs before any database transaction is opened; the store
 *   re-verifies every invariant under the account row lock.
 * - Event publication happens after commit and never fails the operation.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/domain"
	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/store"
	"github.com/himanshugy2j/Banking-Transaction-Microservices/pkg/rabbitmq"
)

// Request validation errors. The store's business errors (not found, frozen,
// insufficient funds, limit exceeded) pass through the engine unchanged.
var (
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrSameAccountTransfer    = errors.New("cannot transfer to the same account")
)

// Result is the outcome of a processed operation. Credit is set for
// transfers only. Replayed is true when the result was resolved from a
// previously committed request with the same idempotency key.
type Result struct {
	Transaction *domain.Transaction `json:"transaction"`
	Credit      *domain.Transaction `json:"credit,omitempty"`
	Replayed    bool                `json:"-"`
}

// Service provides the transaction engine operations.
type Service struct {
	repo      store.Repository
	publisher rabbitmq.Publisher
	limits    *LimitPolicy
	cache     IdempotencyReplayCache
}

// NewService creates a new transaction engine. cache may be a nil
// *RedisReplayCache when Redis is not configured.
func NewService(repo store.Repository, publisher rabbitmq.Publisher, limits *LimitPolicy, cache IdempotencyReplayCache) *Service {
	return &Service{repo: repo, publisher: publisher, limits: limits, cache: cache}
}

// ProcessDeposit credits an account.
func (s *Service) ProcessDeposit(ctx context.Context, req domain.DepositRequest) (*Result, error) {
	amount, err := s.validate(req.IdempotencyKey, req.Amount)
	if err != nil {
		s.publishErrorEvent(ctx, req.AccountID, err)
		return nil, err
	}

	if replay, err := s.resolveReplay(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	txn, err := s.repo.Deposit(ctx, store.DepositParams{
		AccountID:      req.AccountID,
		Amount:         amount,
		IdempotencyKey: req.IdempotencyKey,
		Counterparty:   req.Counterparty,
	})
	if err != nil {
		if errors.Is(err, store.ErrIdempotencyConflict) {
			return s.resolveConflict(ctx, req.IdempotencyKey)
		}
		s.publishErrorEvent(ctx, req.AccountID, err)
		return nil, err
	}

	result := &Result{Transaction: txn}
	s.finishCommit(ctx, req.IdempotencyKey, domain.EventTypeDeposit, txn, result)
	return result, nil
}

// ProcessWithdraw debits an account, subject to the balance and the daily
// debit ceiling.
func (s *Service) ProcessWithdraw(ctx context.Context, req domain.WithdrawRequest) (*Result, error) {
	amount, err := s.validate(req.IdempotencyKey, req.Amount)
	if err != nil {
		s.publishErrorEvent(ctx, req.AccountID, err)
		return nil, err
	}

	if replay, err := s.resolveReplay(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	// Fail fast before opening a transaction. The store repeats this check
	// under the row lock, so a race here can only cause a spurious pass,
	// never a spurious charge.
	if err := s.limits.CheckDailyLimit(ctx, req.AccountID, amount, time.Now()); err != nil {
		if errors.Is(err, store.ErrDailyLimitExceeded) {
			s.publishErrorEvent(ctx, req.AccountID, err)
			return nil, err
		}
		return nil, err
	}

	txn, err := s.repo.Withdraw(ctx, store.WithdrawParams{
		AccountID:       req.AccountID,
		Amount:          amount,
		IdempotencyKey:  req.IdempotencyKey,
		Counterparty:    req.Counterparty,
		DailyDebitLimit: s.limits.LimitMinor,
	})
	if err != nil {
		if errors.Is(err, store.ErrIdempotencyConflict) {
			return s.resolveConflict(ctx, req.IdempotencyKey)
		}
		s.publishErrorEvent(ctx, req.AccountID, err)
		return nil, err
	}

	result := &Result{Transaction: txn}
	s.finishCommit(ctx, req.IdempotencyKey, domain.EventTypeWithdraw, txn, result)
	return result, nil
}

// ProcessTransfer moves funds between two accounts. Both ledger legs commit
// atomically; the debit leg is subject to the balance and daily limit checks.
func (s *Service) ProcessTransfer(ctx context.Context, req domain.TransferRequest) (*Result, error) {
	amount, err := s.validate(req.IdempotencyKey, req.Amount)
	if err != nil {
		s.publishErrorEvent(ctx, req.FromAccountID, err)
		return nil, err
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrSameAccountTransfer
	}

	if replay, err := s.resolveReplay(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	if err := s.limits.CheckDailyLimit(ctx, req.FromAccountID, amount, time.Now()); err != nil {
		if errors.Is(err, store.ErrDailyLimitExceeded) {
			s.publishErrorEvent(ctx, req.FromAccountID, err)
			return nil, err
		}
		return nil, err
	}

	transfer, err := s.repo.Transfer(ctx, store.TransferParams{
		FromAccountID:   req.FromAccountID,
		ToAccountID:     req.ToAccountID,
		Amount:          amount,
		IdempotencyKey:  req.IdempotencyKey,
		Counterparty:    req.Counterparty,
		DailyDebitLimit: s.limits.LimitMinor,
	})
	if err != nil {
		if errors.Is(err, store.ErrIdempotencyConflict) {
			return s.resolveConflict(ctx, req.IdempotencyKey)
		}
		s.publishErrorEvent(ctx, req.FromAccountID, err)
		return nil, err
	}

	result := &Result{Transaction: transfer.Debit, Credit: transfer.Credit}
	s.cache.Put(ctx, req.IdempotencyKey, result)
	s.publish(ctx, domain.EventTypeTransfer, domain.TransferEventPayload{
		Debit:  transfer.Debit,
		Credit: transfer.Credit,
	})
	return result, nil
}

// GetStatement returns a page of the account's ledger records.
func (s *Service) GetStatement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return s.repo.GetStatement(ctx, accountID, limit, offset)
}

// GetTransactionHistory returns all of the account's ledger records.
func (s *Service) GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return s.repo.GetTransactionHistory(ctx, accountID)
}

func (s *Service) validate(idempotencyKey, amount string) (int64, error) {
	if idempotencyKey == "" {
		return 0, ErrIdempotencyKeyRequired
	}
	return domain.ParseAmount(amount)
}

// resolveReplay returns the committed result bound to key, or (nil, nil) when
// the key is unseen and the operation should proceed.
func (s *Service) resolveReplay(ctx context.Context, key string) (*Result, error) {
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}

	record, err := s.repo.FindIdempotencyRecord(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrIdempotencyKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	result, err := s.loadResult(ctx, record)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, result)
	return result, nil
}

// resolveConflict handles the loser of a concurrent duplicate-key race: the
// winner committed between our replay check and our insert, so return the
// winner's result.
func (s *Service) resolveConflict(ctx context.Context, key string) (*Result, error) {
	record, err := s.repo.FindIdempotencyRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.loadResult(ctx, record)
}

func (s *Service) loadResult(ctx context.Context, record *domain.IdempotencyRecord) (*Result, error) {
	txn, err := s.repo.FindTransactionByID(ctx, record.TxnID)
	if err != nil {
		return nil, err
	}
	result := &Result{Transaction: txn, Replayed: true}
	if record.CreditTxnID != nil {
		credit, err := s.repo.FindTransactionByID(ctx, *record.CreditTxnID)
		if err != nil {
			return nil, err
		}
		result.Credit = credit
	}
	return result, nil
}

func (s *Service) finishCommit(ctx context.Context, key, eventType string, txn *domain.Transaction, result *Result) {
	s.cache.Put(ctx, key, result)
	s.publish(ctx, eventType, txn)
}

// publish sends an event and logs failures without failing the operation.
// The money has already moved; the event stream is best-effort.
func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		log.Printf("level=error component=service msg=\"failed to publish event\" event_type=%s error=%q", eventType, err)
	}
}

// publishErrorEvent emits a transaction.error event for business failures.
// Infrastructure errors are not announced on the event stream.
func (s *Service) publishErrorEvent(ctx context.Context, accountID uuid.UUID, opErr error) {
	code := businessErrorCode(opErr)
	if code == "" {
		return
	}
	s.publish(ctx, domain.EventTypeError, domain.ErrorEventPayload{
		AccountID: accountID,
		ErrorCode: code,
	})
}

func businessErrorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, store.ErrAccountFrozen):
		return "ACCOUNT_FROZEN"
	case errors.Is(err, store.ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, store.ErrDailyLimitExceeded):
		return "DAILY_LIMIT_EXCEEDED"
	case errors.Is(err, ErrIdempotencyKeyRequired):
		return "IDEMPOTENCY_KEY_REQUIRED"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "INVALID_AMOUNT"
	default:
		return ""
	}
}
