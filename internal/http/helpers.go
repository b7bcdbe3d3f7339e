package http

import (
	"strconv"
	"time"

	"paluwagan/internal/core"
)

// moneyView renders an amount both as centavos and as display text.
type moneyView struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

func money(m core.Money) moneyView {
	return moneyView{Cents: m.Cents, Display: core.FormatPHP(m)}
}

// formatDate renders a calendar date, or "" for the zero time.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// timestamp renders an instant as RFC 3339, or nil for the zero time.
func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

type userView struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	PhoneNumber     string    `json:"phoneNumber"`
	Role            string    `json:"role,omitempty"`
	CreatedAt       *string   `json:"createdAt,omitempty"`
	RoleSelectedAt  *string   `json:"roleSelectedAt,omitempty"`
	ActiveGroups    []string  `json:"activeGroups"`
	TotalFunds      moneyView `json:"totalFunds"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	IsVerified      bool      `json:"isVerified"`
}

func toUserView(u core.User) userView {
	groups := u.ActiveGroups
	if groups == nil {
		groups = []string{}
	}
	return userView{
		ID:              u.ID,
		FullName:        u.FullName,
		Email:           u.Email,
		PhoneNumber:     core.FormatPhoneNumber(u.PhoneNumber),
		Role:            string(u.Role),
		CreatedAt:       timestamp(u.CreatedAt),
		RoleSelectedAt:  timestamp(u.RoleSelectedAt),
		ActiveGroups:    groups,
		TotalFunds:      money(u.TotalFunds),
		ProfileImageURL: u.ProfileImageURL,
		IsVerified:      u.IsVerified,
	}
}

type groupView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	HeadID             string    `json:"headId"`
	Members            []string  `json:"members"`
	ContributionAmount moneyView `json:"contributionAmount"`
	Frequency          string    `json:"frequency"`
	StartDate          string    `json:"startDate"`
	EndDate            string    `json:"endDate,omitempty"`
	TotalFunds         moneyView `json:"totalFunds"`
	CollectedFunds     moneyView `json:"collectedFunds"`
	NextCollectionDate string    `json:"nextCollectionDate,omitempty"`
	CollectionOrder    []string  `json:"collectionOrder"`
	CurrentRound       int       `json:"currentRound"`
	TotalRounds        int       `json:"totalRounds"`
	Status             string    `json:"status"`
	IsPublic           bool      `json:"isPublic"`
	MaxMembers         int       `json:"maxMembers"`
	CreatedAt          *string   `json:"createdAt,omitempty"`
}

func toGroupView(g core.Group) groupView {
	return groupView{
		ID:                 g.ID,
		Name:               g.Name,
		Description:        g.Description,
		HeadID:             g.HeadID,
		Members:            nonNil(g.Members),
		ContributionAmount: money(g.ContributionAmount),
		Frequency:          string(g.Frequency),
		StartDate:          formatDate(g.StartDate),
		EndDate:            formatDate(g.EndDate),
		TotalFunds:         money(g.TotalFunds),
		CollectedFunds:     money(g.CollectedFunds),
		NextCollectionDate: formatDate(g.NextCollectionDate),
		CollectionOrder:    nonNil(g.CollectionOrder),
		CurrentRound:       g.CurrentRound,
		TotalRounds:        g.TotalRounds,
		Status:             string(g.Status),
		IsPublic:           g.IsPublic,
		MaxMembers:         g.MaxMembers,
		CreatedAt:          timestamp(g.CreatedAt),
	}
}

type collectionView struct {
	ID               string    `json:"id"`
	GroupID          string    `json:"groupId"`
	UserID           string    `json:"userId"`
	Amount           moneyView `json:"amount"`
	DueDate          string    `json:"dueDate"`
	PaidDate         *string   `json:"paidDate,omitempty"`
	Status           string    `json:"status"`
	StatusLabel      string    `json:"statusLabel"`
	PaymentMethod    string    `json:"paymentMethod,omitempty"`
	PaymentReference string    `json:"paymentReference,omitempty"`
	Round            int       `json:"round"`
	ReminderSent     bool      `json:"reminderSent"`
	LastReminderDate *string   `json:"lastReminderDate,omitempty"`
	Notes            string    `json:"notes,omitempty"`
}

func toCollectionView(c core.Collection) collectionView {
	v := collectionView{
		ID:               c.ID,
		GroupID:          c.GroupID,
		UserID:           c.UserID,
		Amount:           money(c.Amount),
		DueDate:          formatDate(c.DueDate),
		Status:           string(c.Status),
		StatusLabel:      c.Status.Label(),
		PaymentMethod:    string(c.PaymentMethod),
		PaymentReference: c.PaymentReference,
		Round:            c.Round,
		ReminderSent:     c.ReminderSent,
		LastReminderDate: timestamp(c.LastReminderDate),
		Notes:            c.Notes,
	}
	if c.PaidDate != nil {
		v.PaidDate = timestamp(*c.PaidDate)
	}
	return v
}

func toCollectionViews(cs []core.Collection) []collectionView {
	out := make([]collectionView, len(cs))
	for i, c := range cs {
		out[i] = toCollectionView(c)
	}
	return out
}

type reminderView struct {
	Due          bool       `json:"due"`
	Kind         string     `json:"kind,omitempty"`
	Title        string     `json:"title,omitempty"`
	Message      string     `json:"message,omitempty"`
	DaysOverdue  int        `json:"daysOverdue,omitempty"`
	Amount       *moneyView `json:"amount,omitempty"`
	CollectionID string     `json:"collectionId"`
}

func toReminderView(collectionID string, e core.ReminderEvent, due bool) reminderView {
	v := reminderView{Due: due, CollectionID: collectionID}
	if !due {
		return v
	}
	amount := money(e.Amount)
	v.Kind = string(e.Kind)
	v.Title = e.Title()
	v.Message = e.Message()
	v.DaysOverdue = e.DaysOverdue
	v.Amount = &amount
	return v
}

type groupSummaryView struct {
	Group          groupView `json:"group"`
	Progress       string    `json:"progress"`
	RemainingSlots int       `json:"remainingSlots"`
	Recipient      string    `json:"recipient,omitempty"`
}

func toSummaryViews(ss []core.GroupSummary) []groupSummaryView {
	out := make([]groupSummaryView, len(ss))
	for i, s := range ss {
		out[i] = groupSummaryView{
			Group:          toGroupView(s.Group),
			Progress:       strconv.FormatFloat(s.Progress, 'f', 1, 64),
			RemainingSlots: s.RemainingSlots,
			Recipient:      s.Recipient,
		}
	}
	return out
}

type paymentTotalsView struct {
	Paid        moneyView `json:"paid"`
	Unpaid      moneyView `json:"unpaid"`
	PaidCount   int       `json:"paidCount"`
	UnpaidCount int       `json:"unpaidCount"`
}

type headDashboardView struct {
	UserID         string             `json:"userId"`
	ActiveGroups   int                `json:"activeGroups"`
	TotalFunds     moneyView          `json:"totalFunds"`
	CollectedFunds moneyView          `json:"collectedFunds"`
	Payments       paymentTotalsView  `json:"payments"`
	OverdueCount   int                `json:"overdueCount"`
	Groups         []groupSummaryView `json:"groups"`
	Upcoming       []collectionView   `json:"upcoming"`
}

func toHeadDashboardView(d core.HeadDashboard) headDashboardView {
	return headDashboardView{
		UserID:         d.UserID,
		ActiveGroups:   d.ActiveGroups,
		TotalFunds:     money(d.TotalFunds),
		CollectedFunds: money(d.CollectedFunds),
		Payments: paymentTotalsView{
			Paid:        money(d.Payments.Paid),
			Unpaid:      money(d.Payments.Unpaid),
			PaidCount:   d.Payments.PaidCount,
			UnpaidCount: d.Payments.UnpaidCount,
		},
		OverdueCount: d.OverdueCount,
		Groups:       toSummaryViews(d.Groups),
		Upcoming:     toCollectionViews(d.Upcoming),
	}
}

type memberDashboardView struct {
	UserID            string             `json:"userId"`
	ActiveGroups      int                `json:"activeGroups"`
	TotalFunds        moneyView          `json:"totalFunds"`
	CompletionPercent int                `json:"completionPercent"`
	AmountDue         moneyView          `json:"amountDue"`
	Groups            []groupSummaryView `json:"groups"`
	Upcoming          []collectionView   `json:"upcoming"`
}

func toMemberDashboardView(d core.MemberDashboard) memberDashboardView {
	return memberDashboardView{
		UserID:            d.UserID,
		ActiveGroups:      d.ActiveGroups,
		TotalFunds:        money(d.TotalFunds),
		CompletionPercent: d.CompletionPercent,
		AmountDue:         money(d.AmountDue),
		Groups:            toSummaryViews(d.Groups),
		Upcoming:          toCollectionViews(d.Upcoming),
	}
}

type ledgerEntryView struct {
	PaidAt       *string   `json:"paidAt,omitempty"`
	GroupID      string    `json:"groupId"`
	GroupName    string    `json:"groupName"`
	Round        int       `json:"round"`
	MemberID     string    `json:"memberId"`
	MemberName   string    `json:"memberName"`
	Amount       moneyView `json:"amount"`
	Method       string    `json:"method"`
	MethodLabel  string    `json:"methodLabel"`
	Reference    string    `json:"reference,omitempty"`
	CollectionID string    `json:"collectionId"`
}

func toLedgerEntryView(e core.LedgerEntry) ledgerEntryView {
	return ledgerEntryView{
		PaidAt:       timestamp(e.PaidAt),
		GroupID:      e.GroupID,
		GroupName:    e.GroupName,
		Round:        e.Round,
		MemberID:     e.MemberID,
		MemberName:   e.MemberName,
		Amount:       money(e.Amount),
		Method:       string(e.Method),
		MethodLabel:  e.Method.Label(),
		Reference:    e.Reference,
		CollectionID: e.CollectionID,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
