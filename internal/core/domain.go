package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly   Frequency = "WEEKLY"
	Biweekly Frequency = "BIWEEKLY"
	Monthly  Frequency = "MONTHLY"
)

const (
	RoleUnset  Role = ""
	RoleHead   Role = "head"
	RoleMember Role = "member"
)

const (
	GroupActive    GroupStatus = "ACTIVE"
	GroupCompleted GroupStatus = "COMPLETED"
	GroupCancelled GroupStatus = "CANCELLED"
)

const (
	CollectionPending   CollectionStatus = "PENDING"
	CollectionPaid      CollectionStatus = "PAID"
	CollectionOverdue   CollectionStatus = "OVERDUE"
	CollectionCancelled CollectionStatus = "CANCELLED"
)

const (
	MethodUnset   PaymentMethod = ""
	MethodGCash   PaymentMethod = "GCASH"
	MethodPayMaya PaymentMethod = "PAYMAYA"
	MethodBank    PaymentMethod = "BANK"
	MethodCash    PaymentMethod = "CASH"
)

// Record collection names shared by every storage backend.
const (
	UsersCollection       = "users"
	GroupsCollection      = "groups"
	CollectionsCollection = "collections"
)

const (
	MaxGroupMembers       = 12
	ReminderThresholdDays = 3
)

var (
	MinContribution = Money{Cents: 100_00}
	MaxContribution = Money{Cents: 50_000_00}
)

type (
	Frequency        string
	Role             string
	GroupStatus      string
	CollectionStatus string
	PaymentMethod    string

	Money struct {
		Cents int64
	}

	User struct {
		ID              string
		FullName        string
		Email           string
		PhoneNumber     string // local 10-digit form, e.g. 9171234567
		Role            Role
		CreatedAt       time.Time
		RoleSelectedAt  time.Time
		ActiveGroups    []string
		TotalFunds      Money
		ProfileImageURL string
		FCMToken        string
		IsVerified      bool
	}

	Group struct {
		ID                 string
		Name               string
		Description        string
		HeadID             string
		Members            []string
		ContributionAmount Money
		Frequency          Frequency
		StartDate          time.Time
		EndDate            time.Time
		TotalFunds         Money
		CollectedFunds     Money
		NextCollectionDate time.Time
		CollectionOrder    []string // rotation sequence of member ids
		CurrentRound       int
		TotalRounds        int
		Status             GroupStatus
		CreatedAt          time.Time
		UpdatedAt          time.Time
		IsPublic           bool
		MaxMembers         int
	}

	// Collection is one member's payment obligation for a single round.
	Collection struct {
		ID               string
		GroupID          string
		UserID           string
		Amount           Money
		DueDate          time.Time
		PaidDate         *time.Time
		Status           CollectionStatus
		PaymentMethod    PaymentMethod
		PaymentReference string
		Round            int
		CreatedAt        time.Time
		UpdatedAt        time.Time
		ReminderSent     bool
		LastReminderDate time.Time
		Notes            string
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownFrequency  = errors.New("unknown frequency")
)

// NewGroup returns a group carrying the documented defaults.
func NewGroup() Group {
	return Group{
		Frequency:    Monthly,
		CurrentRound: 1,
		TotalRounds:  1,
		Status:       GroupActive,
		MaxMembers:   MaxGroupMembers,
	}
}

// NewCollection returns a collection carrying the documented defaults.
func NewCollection() Collection {
	return Collection{
		Status: CollectionPending,
		Round:  1,
	}
}

func (f Frequency) IsValid() bool {
	switch f {
	case Weekly, Biweekly, Monthly:
		return true
	}
	return false
}

func (r Role) IsValid() bool {
	return r == RoleHead || r == RoleMember
}

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodGCash, MethodPayMaya, MethodBank, MethodCash:
		return true
	}
	return false
}

// Label is the human readable payment method name.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodGCash:
		return "GCash"
	case MethodPayMaya:
		return "PayMaya"
	case MethodBank:
		return "Bank Transfer"
	case MethodCash:
		return "Cash"
	}
	return string(m)
}

// Label is the human readable collection status.
func (s CollectionStatus) Label() string {
	switch s {
	case CollectionPending:
		return "Pending"
	case CollectionPaid:
		return "Paid"
	case CollectionOverdue:
		return "Overdue"
	case CollectionCancelled:
		return "Cancelled"
	}
	return string(s)
}

// IsTerminal reports whether no further transition is allowed.
func (s CollectionStatus) IsTerminal() bool {
	return s == CollectionPaid || s == CollectionCancelled
}

// CanTransition reports whether a collection may move from s to next.
// PENDING may become PAID, OVERDUE or CANCELLED; OVERDUE may become PAID or
// CANCELLED. Nothing returns to PENDING.
func (s CollectionStatus) CanTransition(next CollectionStatus) bool {
	switch s {
	case CollectionPending:
		return next == CollectionPaid || next == CollectionOverdue || next == CollectionCancelled
	case CollectionOverdue:
		return next == CollectionPaid || next == CollectionCancelled
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	ID   string
	From CollectionStatus
	To   CollectionStatus
}

func (e *TransitionError) Error() string {
	return "collection " + e.ID + ": cannot move from " + string(e.From) + " to " + string(e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CheckTransition returns a *TransitionError when c cannot move to next.
func (c Collection) CheckTransition(next CollectionStatus) error {
	if !c.Status.CanTransition(next) {
		return &TransitionError{ID: c.ID, From: c.Status, To: next}
	}
	return nil
}

func (c Collection) IsPaid() bool      { return c.Status == CollectionPaid }
func (c Collection) IsCancelled() bool { return c.Status == CollectionCancelled }
func (c Collection) IsOpen() bool {
	return c.Status == CollectionPending || c.Status == CollectionOverdue
}

func (g Group) IsActive() bool { return g.Status == GroupActive }

// IsFull reports whether the member cap has been reached.
func (g Group) IsFull() bool { return len(g.Members) >= g.MaxMembers }

func (g Group) RemainingSlots() int { return g.MaxMembers - len(g.Members) }

func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Recipient returns the member receiving the pot in the given round, if the
// rotation order covers it.
func (g Group) Recipient(round int) (string, bool) {
	if round < 1 || round > len(g.CollectionOrder) {
		return "", false
	}
	return g.CollectionOrder[round-1], true
}

// Validate checks the fields a head supplies when creating a group.
func (g Group) Validate() error {
	var errs ValidationErrors
	if len(strings.TrimSpace(g.Name)) < 2 {
		errs = append(errs, ValidationError{Field: "name", Message: "must be at least 2 characters"})
	}
	if len(g.Name) > 100 {
		errs = append(errs, ValidationError{Field: "name", Message: "must be at most 100 characters"})
	}
	if g.ContributionAmount.Cents < MinContribution.Cents || g.ContributionAmount.Cents > MaxContribution.Cents {
		errs = append(errs, ValidationError{
			Field:   "contributionAmount",
			Message: "must be between " + FormatPHP(MinContribution) + " and " + FormatPHP(MaxContribution),
		})
	}
	if !g.Frequency.IsValid() {
		errs = append(errs, ValidationError{Field: "frequency", Message: "must be WEEKLY, BIWEEKLY or MONTHLY"})
	}
	if g.MaxMembers < 1 || g.MaxMembers > MaxGroupMembers {
		errs = append(errs, ValidationError{Field: "maxMembers", Message: "must be between 1 and 12"})
	}
	if len(g.Members) > g.MaxMembers {
		errs = append(errs, ValidationError{Field: "members", Message: "exceeds maxMembers"})
	}
	if g.TotalRounds < 1 {
		errs = append(errs, ValidationError{Field: "totalRounds", Message: "must be at least 1"})
	}
	if strings.TrimSpace(g.HeadID) == "" {
		errs = append(errs, ValidationError{Field: "headId", Message: "is required"})
	}
	if g.StartDate.IsZero() {
		errs = append(errs, ValidationError{Field: "startDate", Message: "is required"})
	}
	if !g.EndDate.IsZero() && g.EndDate.Before(g.StartDate) {
		errs = append(errs, ValidationError{Field: "endDate", Message: "must not be before startDate"})
	}
	return errs.OrNil()
}
