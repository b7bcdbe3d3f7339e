package core

// PaymentTotals splits collection amounts into paid and unpaid.
type PaymentTotals struct {
	Paid        Money
	Unpaid      Money
	PaidCount   int
	UnpaidCount int
}

// GroupSummary is a group with its derived progress figures.
type GroupSummary struct {
	Group          Group
	Progress       float64 // percent of totalFunds collected
	RemainingSlots int
	Recipient      string // member receiving the current round, if known
}

// HeadDashboard aggregates the groups a head manages.
type HeadDashboard struct {
	UserID         string
	ActiveGroups   int
	TotalFunds     Money
	CollectedFunds Money
	Payments       PaymentTotals
	OverdueCount   int
	Groups         []GroupSummary
	Upcoming       []Collection
}

// MemberDashboard aggregates the groups a user belongs to.
type MemberDashboard struct {
	UserID            string
	ActiveGroups      int
	TotalFunds        Money
	CompletionPercent int // completed groups over all groups
	AmountDue         Money
	Groups            []GroupSummary
	Upcoming          []Collection
}
