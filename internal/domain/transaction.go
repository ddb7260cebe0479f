/**
 * @description
 * This file defines the core domain models for the ledger service. These structs
 * represent the ledger entities (accounts, transaction records, idempotency
 * records) and the data transfer objects used by the API layer.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit, which avoids
 *   floating-point inaccuracies with financial data.
 * - Transaction amounts are signed deltas: credits (DEPOSIT, TRANSFER_IN) are
 *   positive and debits (WITHDRAW, TRANSFER_OUT) are negative, so an account's
 *   balance always equals the sum of its transaction rows.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account status values.
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusFrozen = "FROZEN"
)

// Transaction type values.
const (
	TxnTypeDeposit     = "DEPOSIT"
	TxnTypeWithdraw    = "WITHDRAW"
	TxnTypeTransferOut = "TRANSFER_OUT"
	TxnTypeTransferIn  = "TRANSFER_IN"
)

// Account represents a ledger account. Its balance is mutated only by the
// transaction engine inside an atomic store operation.
type Account struct {
	ID        uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"` // minor units
	Status    string    `json:"status"`  // ACTIVE or FROZEN
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is one append-only ledger record. Rows are never updated or
// deleted after creation; corrections are new offsetting records.
type Transaction struct {
	ID           uuid.UUID `json:"txn_id"`
	AccountID    uuid.UUID `json:"account_id"`
	Amount       int64     `json:"amount"` // signed delta in minor units
	Type         string    `json:"txn_type"`
	Counterparty *string   `json:"counterparty,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// TransferResult carries both legs of a committed transfer.
type TransferResult struct {
	Debit  *Transaction `json:"debit"`
	Credit *Transaction `json:"credit"`
}

// IdempotencyRecord binds a client-supplied idempotency key to the committed
// transaction(s) it produced. CreditTxnID is set for transfers only.
type IdempotencyRecord struct {
	Key         string     `json:"idempotency_key"`
	TxnID       uuid.UUID  `json:"txn_id"`
	CreditTxnID *uuid.UUID `json:"credit_txn_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DepositRequest is the DTO for incoming deposit API requests. Amount is a
// decimal string in major units (e.g. "2500.75").
type DepositRequest struct {
	AccountID      uuid.UUID `json:"account_id"`
	Amount         string    `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
	Counterparty   *string   `json:"counterparty,omitempty"`
}

// WithdrawRequest is the DTO for incoming withdrawal API requests.
type WithdrawRequest struct {
	AccountID      uuid.UUID `json:"account_id"`
	Amount         string    `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
	Counterparty   *string   `json:"counterparty,omitempty"`
}

// TransferRequest is the DTO for incoming transfer API requests.
type TransferRequest struct {
	FromAccountID  uuid.UUID `json:"from_account_id"`
	ToAccountID    uuid.UUID `json:"to_account_id"`
	Amount         string    `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
	Counterparty   *string   `json:"counterparty,omitempty"`
}
