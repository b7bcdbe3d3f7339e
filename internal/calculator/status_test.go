package calculator

import (
	"testing"
	"time"

	"paluwagan/internal/core"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func collection(due time.Time, status core.CollectionStatus, reminded bool) core.Collection {
	c := core.NewCollection()
	c.ID = "c1"
	c.DueDate = due
	c.Status = status
	c.ReminderSent = reminded
	c.Amount = core.Money{Cents: 500_00}
	return c
}

func TestIsLate(t *testing.T) {
	tests := []struct {
		name   string
		due    time.Time
		status core.CollectionStatus
		want   bool
	}{
		{"pending past due", now.Add(-time.Hour), core.CollectionPending, true},
		{"overdue past due", now.Add(-48 * time.Hour), core.CollectionOverdue, true},
		{"paid past due", now.Add(-48 * time.Hour), core.CollectionPaid, false},
		{"paid long ago", now.AddDate(-1, 0, 0), core.CollectionPaid, false},
		{"pending future", now.Add(time.Hour), core.CollectionPending, false},
		{"due exactly now", now, core.CollectionPending, false},
		{"cancelled past due", now.Add(-time.Hour), core.CollectionCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLate(collection(tt.due, tt.status, false), now); got != tt.want {
				t.Errorf("IsLate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"not late", now.Add(time.Hour), 0},
		{"late by hours", now.Add(-23 * time.Hour), 0},
		{"exactly one day", now.Add(-24 * time.Hour), 1},
		{"four days", now.AddDate(0, 0, -4), 4},
		{"four and a half days", now.Add(-108 * time.Hour), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysOverdue(collection(tt.due, core.CollectionPending, false), now); got != tt.want {
				t.Errorf("DaysOverdue() = %d, want %d", got, tt.want)
			}
		})
	}

	if got := DaysOverdue(collection(now.AddDate(0, 0, -10), core.CollectionPaid, false), now); got != 0 {
		t.Errorf("paid collection DaysOverdue() = %d, want 0", got)
	}
}

func TestDaysOverdue_Monotonic(t *testing.T) {
	c := collection(now.AddDate(0, 0, -2), core.CollectionPending, false)
	prev := DaysOverdue(c, now)
	for h := 1; h <= 24*30; h += 7 {
		cur := DaysOverdue(c, now.Add(time.Duration(h)*time.Hour))
		if cur < prev {
			t.Fatalf("DaysOverdue decreased from %d to %d at +%dh", prev, cur, h)
		}
		prev = cur
	}
}

func TestNeedsReminder(t *testing.T) {
	past := now.AddDate(0, 0, -4)
	tests := []struct {
		name string
		c    core.Collection
		want bool
	}{
		{"late pending not reminded", collection(past, core.CollectionPending, false), true},
		{"late overdue not reminded", collection(past, core.CollectionOverdue, false), true},
		{"already reminded", collection(past, core.CollectionPending, true), false},
		{"paid", collection(past, core.CollectionPaid, false), false},
		{"cancelled", collection(past, core.CollectionCancelled, false), false},
		{"not yet due", collection(now.AddDate(0, 0, 1), core.CollectionPending, false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsReminder(tt.c, now); got != tt.want {
				t.Errorf("NeedsReminder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScenario_FourDaysLate(t *testing.T) {
	c := collection(now.AddDate(0, 0, -4), core.CollectionPending, false)
	if !NeedsReminder(c, now) {
		t.Fatalf("expected reminder to be needed")
	}
	if got := DaysOverdue(c, now); got != 4 {
		t.Fatalf("DaysOverdue() = %d, want 4", got)
	}
}

func TestGroupProgress(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		collected int64
		want      float64
	}{
		{"quarter", 12000_00, 3000_00, 25.0},
		{"no target", 0, 500_00, 0},
		{"empty", 1000_00, 0, 0},
		{"complete", 1000_00, 1000_00, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := core.NewGroup()
			g.TotalFunds = core.Money{Cents: tt.total}
			g.CollectedFunds = core.Money{Cents: tt.collected}
			if got := GroupProgress(g); got != tt.want {
				t.Errorf("GroupProgress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupProgress_Bounds(t *testing.T) {
	for total := int64(1); total <= 10_000; total *= 7 {
		for collected := int64(0); collected <= total; collected += total/5 + 1 {
			g := core.Group{TotalFunds: core.Money{Cents: total}, CollectedFunds: core.Money{Cents: collected}}
			p := GroupProgress(g)
			if p < 0 || p > 100 {
				t.Fatalf("GroupProgress(%d/%d) = %v out of range", collected, total, p)
			}
		}
	}
}

func TestDaysUntil(t *testing.T) {
	if got := DaysUntil(now.AddDate(0, 0, 3), now); got != 3 {
		t.Errorf("DaysUntil(+3d) = %d", got)
	}
	if got := DaysUntil(now.Add(-25*time.Hour), now); got != -1 {
		t.Errorf("DaysUntil(-25h) = %d", got)
	}
}
