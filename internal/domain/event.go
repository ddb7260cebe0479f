package domain

import "github.com/google/uuid"

// Event types published to the broker, one message per completed or failed
// operation. Consumers must be idempotent on (type, txn_id).
const (
	EventTypeDeposit  = "transaction.deposit"
	EventTypeWithdraw = "transaction.withdraw"
	EventTypeTransfer = "transaction.transfer"
	EventTypeError    = "transaction.error"
)

// TransferEventPayload is the payload for transaction.transfer events.
type TransferEventPayload struct {
	Debit  *Transaction `json:"debit"`
	Credit *Transaction `json:"credit"`
}

// ErrorEventPayload is the payload for transaction.error events. ErrorCode is
// one of the business error codes (ACCOUNT_NOT_FOUND, ACCOUNT_FROZEN,
// INSUFFICIENT_FUNDS, DAILY_LIMIT_EXCEEDED, IDEMPOTENCY_KEY_REQUIRED).
type ErrorEventPayload struct {
	AccountID uuid.UUID `json:"account_id"`
	ErrorCode string    `json:"error_code"`
}
