// Package quota enforces the per-owner daily link creation limit.
// The counter lives on the user record keyed by calendar day, so the
// limit resets by key change at midnight rather than by mutation.
package quota

import (
	"context"
	"database/sql"
	"time"
)

// DayKeyLayout is the calendar-day key format of the per-user counters.
const DayKeyLayout = "2006-01-02"

type quotaKeeper interface {
	ConsumeDailyQuota(ctx context.Context, userID, day string, limit int, transaction *sql.Tx) (bool, error)
	ReleaseDailyQuota(ctx context.Context, userID, day string, transaction *sql.Tx) error
}

// Tracker decides whether an owner may create another link today and
// records the consumption. The check-and-increment is atomic per owner:
// the storage layer serializes it, so concurrent creations can never
// push the observed count past the limit.
type Tracker struct {
	db    quotaKeeper
	limit int
}

// New creates a Tracker with the given daily limit.
func New(db quotaKeeper, limit int) *Tracker {
	return &Tracker{
		db:    db,
		limit: limit,
	}
}

// DayKey returns the calendar-day key for the given instant in the
// service's local time zone.
func DayKey(when time.Time) string {
	return when.Format(DayKeyLayout)
}

// TryConsume admits one creation for the owner on the day of `when`,
// or reports false without mutating anything when the limit is reached.
func (t *Tracker) TryConsume(
	ctx context.Context,
	ownerID string,
	when time.Time,
	transaction *sql.Tx,
) (bool, error) {
	return t.db.ConsumeDailyQuota(ctx, ownerID, DayKey(when), t.limit, transaction)
}

// Release undoes one consumption for the owner on the day of `when`.
// It is the compensating action for a creation that failed after
// TryConsume admitted it.
func (t *Tracker) Release(
	ctx context.Context,
	ownerID string,
	when time.Time,
	transaction *sql.Tx,
) error {
	return t.db.ReleaseDailyQuota(ctx, ownerID, DayKey(when), transaction)
}

// Limit returns the configured daily limit.
func (t *Tracker) Limit() int {
	return t.limit
}
