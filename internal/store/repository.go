/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access required by the ledger service. The interface decouples the
 * transaction engine from the PostgreSQL implementation and lets the engine
 * be tested against mocks.
 *
 * Every financial mutation (Deposit, Withdraw, Transfer) is a single atomic
 * unit: the account row lock, invariant checks, ledger insert, balance update
 * and idempotency registration all commit or abort together.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/domain"
)

// Business errors returned by the store. Handlers map these to HTTP statuses;
// anything else that comes out of a repository method is an infrastructure
// error and is retryable by the caller.
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountFrozen          = errors.New("account is frozen")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrDailyLimitExceeded     = errors.New("daily debit limit exceeded")
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	ErrTransactionNotFound    = errors.New("transaction not found")

	// ErrIdempotencyConflict is returned when the idempotency key unique
	// constraint fires inside an atomic unit: a concurrent request with the
	// same key committed first. The caller must resolve the key and return
	// the winner's result instead of surfacing an error.
	ErrIdempotencyConflict = errors.New("idempotency key already registered")
)

// DepositParams describes one atomic deposit.
type DepositParams struct {
	AccountID      uuid.UUID
	Amount         int64 // positive, minor units
	IdempotencyKey string
	Counterparty   *string
}

// WithdrawParams describes one atomic withdrawal. DailyDebitLimit <= 0
// disables the ceiling check.
type WithdrawParams struct {
	AccountID       uuid.UUID
	Amount          int64 // positive, minor units
	IdempotencyKey  string
	Counterparty    *string
	DailyDebitLimit int64
}

// TransferParams describes one atomic two-leg transfer.
type TransferParams struct {
	FromAccountID   uuid.UUID
	ToAccountID     uuid.UUID
	Amount          int64 // positive, minor units
	IdempotencyKey  string
	Counterparty    *string
	DailyDebitLimit int64
}

// Repository defines the set of methods for interacting with the ledger store.
type Repository interface {
	// Account and lookup methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindTransactionByID(ctx context.Context, txnID uuid.UUID) (*domain.Transaction, error)
	FindIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error)

	// Atomic financial mutations
	Deposit(ctx context.Context, params DepositParams) (*domain.Transaction, error)
	Withdraw(ctx context.Context, params WithdrawParams) (*domain.Transaction, error)
	Transfer(ctx context.Context, params TransferParams) (*domain.TransferResult, error)

	// DailyDebitTotal sums the account's debits (withdrawals and outgoing
	// transfer legs) for the UTC calendar day containing asOf, as a positive
	// total in minor units.
	DailyDebitTotal(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error)

	// Read-only statement methods
	GetStatement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}
