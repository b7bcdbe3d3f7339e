package services

import (
	"time"

	"paluwagan/internal/calculator"
	"paluwagan/internal/core"
)

// DefaultReminderLead is how far ahead of the due date an upcoming-payment
// reminder becomes eligible.
const DefaultReminderLead = core.ReminderThresholdDays * 24 * time.Hour

// ReminderTrigger decides whether a collection warrants a reminder.
type ReminderTrigger struct {
	lead time.Duration
}

// NewReminderTrigger returns a trigger with the given lead window. A
// non-positive lead uses DefaultReminderLead.
func NewReminderTrigger(lead time.Duration) ReminderTrigger {
	if lead <= 0 {
		lead = DefaultReminderLead
	}
	return ReminderTrigger{lead: lead}
}

func (t ReminderTrigger) Lead() time.Duration { return t.lead }

// Evaluate returns the reminder to emit for c, if any. It never mutates c;
// recording that a reminder went out is up to the caller.
func (t ReminderTrigger) Evaluate(c core.Collection, g core.Group, now time.Time) (core.ReminderEvent, bool) {
	if c.ReminderSent {
		return core.ReminderEvent{}, false
	}

	event := core.ReminderEvent{
		CollectionID: c.ID,
		UserID:       c.UserID,
		GroupID:      c.GroupID,
		GroupName:    g.Name,
		Amount:       c.Amount,
		DueDate:      c.DueDate,
	}

	switch {
	case t.isUpcoming(c, now):
		event.Kind = core.UpcomingPayment
		return event, true
	case calculator.NeedsReminder(c, now):
		event.Kind = core.OverduePayment
		event.DaysOverdue = calculator.DaysOverdue(c, now)
		return event, true
	}
	return core.ReminderEvent{}, false
}

func (t ReminderTrigger) isUpcoming(c core.Collection, now time.Time) bool {
	if c.Status != core.CollectionPending {
		return false
	}
	return !c.DueDate.Before(now) && !c.DueDate.After(now.Add(t.lead))
}
