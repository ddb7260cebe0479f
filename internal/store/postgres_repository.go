/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for accounts, transactions and
 * idempotency records.
 *
 * Concurrency notes:
 * - Every mutation locks the account row(s) with SELECT ... FOR UPDATE before
 *   reading the balance, so two concurrent operations on one account
 *   serialize at the row lock and never act on a stale snapshot.
 * - Transfers lock both rows in ascending account-id order to prevent
 *   circular wait when two transfers cross in opposite directions.
 * - The unique index on transaction_idempotency.idempotency_key is the
 *   backstop against two concurrent requests with the same key both
 *   committing; the loser gets ErrIdempotencyConflict.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface
// for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindAccountByID retrieves an account without locking it. Used by read paths;
// mutations always re-read the row FOR UPDATE inside their own transaction.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT account_id, balance, status, created_at, updated_at FROM accounts WHERE account_id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID, &account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindTransactionByID retrieves a single ledger record.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, txnID uuid.UUID) (*domain.Transaction, error) {
	var txn domain.Transaction
	query := `
		SELECT txn_id, account_id, amount, txn_type, counterparty, balance_after, created_at
		FROM transactions
		WHERE txn_id = $1
	`
	err := r.db.QueryRow(ctx, query, txnID).Scan(
		&txn.ID, &txn.AccountID, &txn.Amount, &txn.Type, &txn.Counterparty, &txn.BalanceAfter, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// FindIdempotencyRecord looks up a previously registered idempotency key.
func (r *PostgresRepository) FindIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	query := `SELECT idempotency_key, txn_id, credit_txn_id, created_at FROM transaction_idempotency WHERE idempotency_key = $1`
	err := r.db.QueryRow(ctx, query, key).Scan(
		&record.Key, &record.TxnID, &record.CreditTxnID, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdempotencyKeyNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Deposit credits an account in one atomic unit: lock the row, verify status,
// insert the ledger record with its balance snapshot, update the balance and
// register the idempotency key.
func (r *PostgresRepository) Deposit(ctx context.Context, params DepositParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance + params.Amount
	record, err := insertTransaction(ctx, tx, domain.Transaction{
		ID:           uuid.New(),
		AccountID:    params.AccountID,
		Amount:       params.Amount,
		Type:         domain.TxnTypeDeposit,
		Counterparty: params.Counterparty,
		BalanceAfter: newBalance,
	})
	if err != nil {
		return nil, err
	}

	if err := updateBalance(ctx, tx, params.AccountID, newBalance); err != nil {
		return nil, err
	}
	if err := registerIdempotencyKey(ctx, tx, params.IdempotencyKey, record.ID, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// Withdraw debits an account in one atomic unit. The daily debit ceiling and
// the overdraft check both run under the row lock so concurrent requests
// cannot slip past them on a stale balance.
func (r *PostgresRepository) Withdraw(ctx context.Context, params WithdrawParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	if err := checkDailyLimit(ctx, tx, params.AccountID, params.Amount, params.DailyDebitLimit); err != nil {
		return nil, err
	}
	if account.Balance < params.Amount {
		return nil, ErrInsufficientFunds
	}

	newBalance := account.Balance - params.Amount
	record, err := insertTransaction(ctx, tx, domain.Transaction{
		ID:           uuid.New(),
		AccountID:    params.AccountID,
		Amount:       -params.Amount,
		Type:         domain.TxnTypeWithdraw,
		Counterparty: params.Counterparty,
		BalanceAfter: newBalance,
	})
	if err != nil {
		return nil, err
	}

	if err := updateBalance(ctx, tx, params.AccountID, newBalance); err != nil {
		return nil, err
	}
	if err := registerIdempotencyKey(ctx, tx, params.IdempotencyKey, record.ID, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// Transfer moves funds between two accounts in one atomic unit. Both legs
// commit or neither does; a debit is never left without its matching credit.
func (r *PostgresRepository) Transfer(ctx context.Context, params TransferParams) (*domain.TransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock both rows in a fixed global order (ascending account id) so two
	// transfers crossing in opposite directions cannot deadlock.
	first, second := orderAccountIDs(params.FromAccountID, params.ToAccountID)
	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range []uuid.UUID{first, second} {
		account, err := lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	source := locked[params.FromAccountID]
	destination := locked[params.ToAccountID]

	if err := checkDailyLimit(ctx, tx, params.FromAccountID, params.Amount, params.DailyDebitLimit); err != nil {
		return nil, err
	}
	if source.Balance < params.Amount {
		return nil, ErrInsufficientFunds
	}

	sourceBalance := source.Balance - params.Amount
	destinationBalance := destination.Balance + params.Amount

	debit, err := insertTransaction(ctx, tx, domain.Transaction{
		ID:           uuid.New(),
		AccountID:    params.FromAccountID,
		Amount:       -params.Amount,
		Type:         domain.TxnTypeTransferOut,
		Counterparty: params.Counterparty,
		BalanceAfter: sourceBalance,
	})
	if err != nil {
		return nil, err
	}
	credit, err := insertTransaction(ctx, tx, domain.Transaction{
		ID:           uuid.New(),
		AccountID:    params.ToAccountID,
		Amount:       params.Amount,
		Type:         domain.TxnTypeTransferIn,
		Counterparty: params.Counterparty,
		BalanceAfter: destinationBalance,
	})
	if err != nil {
		return nil, err
	}

	if err := updateBalance(ctx, tx, params.FromAccountID, sourceBalance); err != nil {
		return nil, err
	}
	if err := updateBalance(ctx, tx, params.ToAccountID, destinationBalance); err != nil {
		return nil, err
	}
	if err := registerIdempotencyKey(ctx, tx, params.IdempotencyKey, debit.ID, &credit.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.TransferResult{Debit: debit, Credit: credit}, nil
}

// DailyDebitTotal sums the account's debits for the UTC calendar day
// containing asOf. Exposed for the engine's fail-fast limit check; the
// authoritative check runs inside the atomic units.
func (r *PostgresRepository) DailyDebitTotal(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error) {
	start, end := dayWindowUTC(asOf)
	var total int64
	err := r.db.QueryRow(ctx, dailyDebitTotalQuery, accountID, start, end).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// GetStatement returns a page of the account's ledger records, newest first.
func (r *PostgresRepository) GetStatement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if err := r.ensureAccountExists(ctx, accountID); err != nil {
		return nil, err
	}
	limit, offset = clampPageBounds(limit, offset)

	query := `
		SELECT txn_id, account_id, amount, txn_type, counterparty, balance_after, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetTransactionHistory returns all of the account's ledger records, newest first.
func (r *PostgresRepository) GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	if err := r.ensureAccountExists(ctx, accountID); err != nil {
		return nil, err
	}

	query := `
		SELECT txn_id, account_id, amount, txn_type, counterparty, balance_after, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *PostgresRepository) ensureAccountExists(ctx context.Context, accountID uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1)", accountID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return nil
}

// lockAccount reads an account row FOR UPDATE and verifies it is operational.
// The returned balance snapshot is safe to mutate against: no concurrent
// operation can commit against this account until our transaction ends.
func lockAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT account_id, balance, status, created_at, updated_at FROM accounts WHERE account_id = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, query, accountID).Scan(
		&account.ID, &account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if account.Status == domain.AccountStatusFrozen {
		return nil, ErrAccountFrozen
	}
	return &account, nil
}

const dailyDebitTotalQuery = `
	SELECT COALESCE(SUM(-amount), 0)
	FROM transactions
	WHERE account_id = $1
	  AND txn_type IN ('WITHDRAW', 'TRANSFER_OUT')
	  AND created_at >= $2
	  AND created_at < $3
`

func checkDailyLimit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount, limit int64) error {
	if limit <= 0 {
		return nil
	}
	start, end := dayWindowUTC(time.Now())
	var total int64
	if err := tx.QueryRow(ctx, dailyDebitTotalQuery, accountID, start, end).Scan(&total); err != nil {
		return err
	}
	if total+amount > limit {
		return ErrDailyLimitExceeded
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (txn_id, account_id, amount, txn_type, counterparty, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		txn.ID, txn.AccountID, txn.Amount, txn.Type, txn.Counterparty, txn.BalanceAfter,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func updateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance int64) error {
	result, err := tx.Exec(ctx, "UPDATE accounts SET balance = $1, updated_at = NOW() WHERE account_id = $2", balance, accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func registerIdempotencyKey(ctx context.Context, tx pgx.Tx, key string, txnID uuid.UUID, creditTxnID *uuid.UUID) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO transaction_idempotency (idempotency_key, txn_id, credit_txn_id) VALUES ($1, $2, $3)",
		key, txnID, creditTxnID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// orderAccountIDs returns the two ids in ascending byte order, the global
// lock-acquisition order for multi-account operations.
func orderAccountIDs(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// dayWindowUTC returns the UTC calendar-day window containing at. Limit
// accounting is pinned to UTC so it never drifts with the process timezone.
func dayWindowUTC(at time.Time) (time.Time, time.Time) {
	utc := at.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Amount, &txn.Type, &txn.Counterparty, &txn.BalanceAfter, &txn.CreatedAt)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func clampPageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
