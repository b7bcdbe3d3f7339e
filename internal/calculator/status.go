// Package calculator derives read-only status and progress figures from
// stored records and the current time. Nothing here performs I/O.
package calculator

import (
	"time"

	"paluwagan/internal/core"
)

const dayMillis = 24 * 60 * 60 * 1000

// IsLate reports whether the due date has passed and the collection is unpaid.
func IsLate(c core.Collection, now time.Time) bool {
	return c.DueDate.Before(now) && c.Status != core.CollectionPaid
}

// DaysOverdue returns the whole days elapsed since the due date of a late
// collection, 0 otherwise.
func DaysOverdue(c core.Collection, now time.Time) int {
	if !IsLate(c, now) {
		return 0
	}
	return int((now.UnixMilli() - c.DueDate.UnixMilli()) / dayMillis)
}

// NeedsReminder reports whether a late, open collection has not been reminded.
func NeedsReminder(c core.Collection, now time.Time) bool {
	return IsLate(c, now) &&
		!c.ReminderSent &&
		c.Status != core.CollectionPaid &&
		c.Status != core.CollectionCancelled
}

// DaysUntil returns whole days until t, negative once t has passed.
func DaysUntil(t, now time.Time) int {
	return int((t.UnixMilli() - now.UnixMilli()) / dayMillis)
}

// GroupProgress is collectedFunds as a percentage of totalFunds, 0 when the
// group has no target.
func GroupProgress(g core.Group) float64 {
	if g.TotalFunds.Cents <= 0 {
		return 0
	}
	return float64(g.CollectedFunds.Cents) / float64(g.TotalFunds.Cents) * 100
}
