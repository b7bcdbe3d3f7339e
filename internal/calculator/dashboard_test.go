package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paluwagan/internal/core"
)

func group(id string, status core.GroupStatus, total, collected int64) core.Group {
	g := core.NewGroup()
	g.ID = id
	g.Name = "Group " + id
	g.Status = status
	g.TotalFunds = core.Money{Cents: total}
	g.CollectedFunds = core.Money{Cents: collected}
	return g
}

func owed(id, user string, due time.Time, status core.CollectionStatus, amount int64) core.Collection {
	c := core.NewCollection()
	c.ID = id
	c.UserID = user
	c.DueDate = due
	c.Status = status
	c.Amount = core.Money{Cents: amount}
	return c
}

func TestPaymentSplit(t *testing.T) {
	cs := []core.Collection{
		owed("1", "a", now, core.CollectionPaid, 100_00),
		owed("2", "b", now, core.CollectionPending, 200_00),
		owed("3", "c", now, core.CollectionOverdue, 300_00),
		owed("4", "d", now, core.CollectionCancelled, 400_00),
	}
	got := PaymentSplit(cs)
	assert.Equal(t, core.Money{Cents: 100_00}, got.Paid)
	assert.Equal(t, core.Money{Cents: 500_00}, got.Unpaid)
	assert.Equal(t, 1, got.PaidCount)
	assert.Equal(t, 2, got.UnpaidCount)
}

func TestUpcoming(t *testing.T) {
	var cs []core.Collection
	for i := 7; i >= 0; i-- {
		cs = append(cs, owed(string(rune('a'+i)), "u", now.AddDate(0, 0, i), core.CollectionPending, 100))
	}
	cs = append(cs, owed("paid", "u", now.AddDate(0, 0, -1), core.CollectionPaid, 100))

	got := Upcoming(cs, DefaultUpcomingLimit)
	assert.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].DueDate.Before(got[i-1].DueDate))
	}
	assert.Equal(t, "a", got[0].ID)
	assert.Len(t, Upcoming(cs, 0), 8)
}

func TestCompletionPercent(t *testing.T) {
	assert.Equal(t, 0, CompletionPercent(nil))
	groups := []core.Group{
		group("1", core.GroupCompleted, 0, 0),
		group("2", core.GroupActive, 0, 0),
		group("3", core.GroupActive, 0, 0),
	}
	assert.Equal(t, 33, CompletionPercent(groups))
}

func TestHeadDashboard(t *testing.T) {
	groups := []core.Group{
		group("g1", core.GroupActive, 12000_00, 3000_00),
		group("g2", core.GroupCompleted, 6000_00, 6000_00),
	}
	cs := []core.Collection{
		owed("1", "a", now.AddDate(0, 0, -2), core.CollectionPending, 1000_00),
		owed("2", "b", now.AddDate(0, 0, 2), core.CollectionPending, 1000_00),
		owed("3", "c", now.AddDate(0, 0, -9), core.CollectionPaid, 1000_00),
	}

	d := HeadDashboard("head", groups, cs, now)

	assert.Equal(t, "head", d.UserID)
	assert.Equal(t, 1, d.ActiveGroups)
	assert.Equal(t, core.Money{Cents: 18000_00}, d.TotalFunds)
	assert.Equal(t, core.Money{Cents: 9000_00}, d.CollectedFunds)
	assert.Equal(t, core.Money{Cents: 2000_00}, d.Payments.Unpaid)
	assert.Equal(t, 1, d.OverdueCount)
	assert.Len(t, d.Upcoming, 2)
	assert.Equal(t, 25.0, d.Groups[0].Progress)
}

func TestMemberDashboard(t *testing.T) {
	groups := []core.Group{group("g1", core.GroupActive, 12000_00, 0)}
	cs := []core.Collection{
		owed("1", "me", now.AddDate(0, 0, 3), core.CollectionPending, 500_00),
		owed("2", "me", now.AddDate(0, 0, -3), core.CollectionOverdue, 500_00),
		owed("3", "other", now.AddDate(0, 0, 1), core.CollectionPending, 500_00),
	}

	d := MemberDashboard("me", groups, cs)

	assert.Equal(t, core.Money{Cents: 1000_00}, d.AmountDue)
	assert.Len(t, d.Upcoming, 1)
	assert.Equal(t, "1", d.Upcoming[0].ID)
	assert.Equal(t, 0, d.CompletionPercent)
}
