package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paluwagan/internal/core"
)

var triggerNow = time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

func dueCollection(due time.Time, status core.CollectionStatus, sent bool) core.Collection {
	c := core.NewCollection()
	c.ID = "col-1"
	c.GroupID = "grp-1"
	c.UserID = "usr-1"
	c.Amount = core.Money{Cents: 1500_00}
	c.DueDate = due
	c.Status = status
	c.ReminderSent = sent
	return c
}

func TestReminderTrigger_Evaluate(t *testing.T) {
	trigger := NewReminderTrigger(0)
	g := core.NewGroup()
	g.Name = "Barkada"

	tests := []struct {
		name     string
		c        core.Collection
		wantKind core.ReminderKind
		wantOK   bool
	}{
		{"due in two days", dueCollection(triggerNow.AddDate(0, 0, 2), core.CollectionPending, false), core.UpcomingPayment, true},
		{"due at end of window", dueCollection(triggerNow.AddDate(0, 0, 3), core.CollectionPending, false), core.UpcomingPayment, true},
		{"due now", dueCollection(triggerNow, core.CollectionPending, false), core.UpcomingPayment, true},
		{"outside window", dueCollection(triggerNow.AddDate(0, 0, 4), core.CollectionPending, false), "", false},
		{"late pending", dueCollection(triggerNow.AddDate(0, 0, -4), core.CollectionPending, false), core.OverduePayment, true},
		{"late overdue", dueCollection(triggerNow.AddDate(0, 0, -1), core.CollectionOverdue, false), core.OverduePayment, true},
		{"already sent upcoming", dueCollection(triggerNow.AddDate(0, 0, 1), core.CollectionPending, true), "", false},
		{"already sent overdue", dueCollection(triggerNow.AddDate(0, 0, -1), core.CollectionOverdue, true), "", false},
		{"paid", dueCollection(triggerNow.AddDate(0, 0, 1), core.CollectionPaid, false), "", false},
		{"paid late", dueCollection(triggerNow.AddDate(0, 0, -5), core.CollectionPaid, false), "", false},
		{"cancelled late", dueCollection(triggerNow.AddDate(0, 0, -5), core.CollectionCancelled, false), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := trigger.Evaluate(tt.c, g, triggerNow)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, event.Kind)
			if ok {
				assert.Equal(t, tt.c.ID, event.CollectionID)
				assert.Equal(t, "usr-1", event.UserID)
				assert.Equal(t, "Barkada", event.GroupName)
				assert.Equal(t, tt.c.Amount, event.Amount)
			}
		})
	}
}

func TestReminderTrigger_Idempotent(t *testing.T) {
	trigger := NewReminderTrigger(72 * time.Hour)
	g := core.NewGroup()
	c := dueCollection(triggerNow.AddDate(0, 0, -4), core.CollectionPending, false)

	first, ok1 := trigger.Evaluate(c, g, triggerNow)
	second, ok2 := trigger.Evaluate(c, g, triggerNow)
	assert.True(t, ok1)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
	assert.False(t, c.ReminderSent)
	assert.Equal(t, 4, first.DaysOverdue)
}

func TestReminderTrigger_UpcomingMessage(t *testing.T) {
	g := core.NewGroup()
	g.Name = "Office Paluwagan"
	c := dueCollection(time.Date(2024, 3, 17, 8, 0, 0, 0, time.UTC), core.CollectionPending, false)

	event, ok := NewReminderTrigger(0).Evaluate(c, g, triggerNow)
	assert.True(t, ok)
	assert.Equal(t, "Upcoming Payment", event.Title())
	assert.Equal(t, "Payment of ₱1,500.00 for group 'Office Paluwagan' is due on Mar 17, 2024", event.Message())
}

func TestReminderTrigger_CustomLead(t *testing.T) {
	trigger := NewReminderTrigger(24 * time.Hour)
	assert.Equal(t, 24*time.Hour, trigger.Lead())
	_, ok := trigger.Evaluate(dueCollection(triggerNow.AddDate(0, 0, 2), core.CollectionPending, false), core.NewGroup(), triggerNow)
	assert.False(t, ok)
}
