package calculator

import (
	"sort"
	"time"

	"paluwagan/internal/core"
)

// DefaultUpcomingLimit is how many pending collections a dashboard lists.
const DefaultUpcomingLimit = 5

func ActiveGroupCount(groups []core.Group) int {
	n := 0
	for _, g := range groups {
		if g.IsActive() {
			n++
		}
	}
	return n
}

func TotalFunds(groups []core.Group) core.Money {
	var total core.Money
	for _, g := range groups {
		total = total.Add(g.TotalFunds)
	}
	return total
}

func CollectedFunds(groups []core.Group) core.Money {
	var total core.Money
	for _, g := range groups {
		total = total.Add(g.CollectedFunds)
	}
	return total
}

// PaymentSplit sums paid collections against open ones. Cancelled
// collections count on neither side.
func PaymentSplit(collections []core.Collection) core.PaymentTotals {
	var t core.PaymentTotals
	for _, c := range collections {
		switch {
		case c.IsPaid():
			t.Paid = t.Paid.Add(c.Amount)
			t.PaidCount++
		case c.IsOpen():
			t.Unpaid = t.Unpaid.Add(c.Amount)
			t.UnpaidCount++
		}
	}
	return t
}

// CompletionPercent is the share of completed groups, truncated to an int.
func CompletionPercent(groups []core.Group) int {
	if len(groups) == 0 {
		return 0
	}
	completed := 0
	for _, g := range groups {
		if g.Status == core.GroupCompleted {
			completed++
		}
	}
	return completed * 100 / len(groups)
}

func LateCount(collections []core.Collection, now time.Time) int {
	n := 0
	for _, c := range collections {
		if c.IsOpen() && IsLate(c, now) {
			n++
		}
	}
	return n
}

// Upcoming returns pending collections ordered by due date, at most limit of
// them. A non-positive limit returns all of them.
func Upcoming(collections []core.Collection, limit int) []core.Collection {
	out := make([]core.Collection, 0, len(collections))
	for _, c := range collections {
		if c.Status == core.CollectionPending {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AmountDue sums the open collections owed by one user.
func AmountDue(collections []core.Collection, userID string) core.Money {
	var total core.Money
	for _, c := range collections {
		if c.UserID == userID && c.IsOpen() {
			total = total.Add(c.Amount)
		}
	}
	return total
}

func Summarize(g core.Group) core.GroupSummary {
	recipient, _ := g.Recipient(g.CurrentRound)
	return core.GroupSummary{
		Group:          g,
		Progress:       GroupProgress(g),
		RemainingSlots: g.RemainingSlots(),
		Recipient:      recipient,
	}
}

func summaries(groups []core.Group) []core.GroupSummary {
	out := make([]core.GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = Summarize(g)
	}
	return out
}

// HeadDashboard reduces the groups a head manages and their collections.
func HeadDashboard(userID string, groups []core.Group, collections []core.Collection, now time.Time) core.HeadDashboard {
	return core.HeadDashboard{
		UserID:         userID,
		ActiveGroups:   ActiveGroupCount(groups),
		TotalFunds:     TotalFunds(groups),
		CollectedFunds: CollectedFunds(groups),
		Payments:       PaymentSplit(collections),
		OverdueCount:   LateCount(collections, now),
		Groups:         summaries(groups),
		Upcoming:       Upcoming(collections, DefaultUpcomingLimit),
	}
}

// MemberDashboard reduces the groups a user belongs to. Only the user's own
// collections are listed as upcoming.
func MemberDashboard(userID string, groups []core.Group, collections []core.Collection) core.MemberDashboard {
	own := make([]core.Collection, 0, len(collections))
	for _, c := range collections {
		if c.UserID == userID {
			own = append(own, c)
		}
	}
	return core.MemberDashboard{
		UserID:            userID,
		ActiveGroups:      ActiveGroupCount(groups),
		TotalFunds:        TotalFunds(groups),
		CompletionPercent: CompletionPercent(groups),
		AmountDue:         AmountDue(own, userID),
		Groups:            summaries(groups),
		Upcoming:          Upcoming(own, DefaultUpcomingLimit),
	}
}
