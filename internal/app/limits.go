/**
 * @description
 * This file implements the daily debit limit policy. The policy sums an
 * account's debits (withdrawals and outgoing transfer legs) for the current
 * UTC calendar day and rejects any debit that would push the total past the
 * configured ceiling.
 *
 * The engine uses this as a fail-fast check before opening a database
 * transaction; the store re-runs the same check under the account row lock,
 * which is the authoritative one.
 */

package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/store"
)

// LimitPolicy enforces the per-account daily debit ceiling.
// A LimitMinor <= 0 disables the check entirely.
type LimitPolicy struct {
	repo       store.Repository
	LimitMinor int64
}

// NewLimitPolicy creates a limit policy backed by the given repository.
func NewLimitPolicy(repo store.Repository, limitMinor int64) *LimitPolicy {
	return &LimitPolicy{repo: repo, LimitMinor: limitMinor}
}

// CheckDailyLimit returns store.ErrDailyLimitExceeded when adding amount to
// the account's debits for the UTC day containing asOf would exceed the
// ceiling.
func (p *LimitPolicy) CheckDailyLimit(ctx context.Context, accountID uuid.UUID, amount int64, asOf time.Time) error {
	if p.LimitMinor <= 0 {
		return nil
	}
	total, err := p.repo.DailyDebitTotal(ctx, accountID, asOf)
	if err != nil {
		return err
	}
	if exceedsDailyLimit(total, amount, p.LimitMinor) {
		return store.ErrDailyLimitExceeded
	}
	return nil
}

// exceedsDailyLimit reports whether spending amount on top of spentToday
// breaks the ceiling. A debit landing exactly on the ceiling is allowed.
func exceedsDailyLimit(spentToday, amount, limit int64) bool {
	return spentToday+amount > limit
}

// DayWindowUTC returns the UTC calendar-day window containing at.
func DayWindowUTC(at time.Time) (time.Time, time.Time) {
	utc := at.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
