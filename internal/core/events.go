package core

import (
	"fmt"
	"time"
)

const (
	UpcomingPayment ReminderKind = "UpcomingPayment"
	OverduePayment  ReminderKind = "OverduePayment"
)

// DisplayDateLayout matches the "MMM dd, yyyy" dates shown to users.
const DisplayDateLayout = "Jan 02, 2006"

type ReminderKind string

// ReminderEvent is a payment reminder addressed to the owing member.
type ReminderEvent struct {
	CollectionID string
	UserID       string
	GroupID      string
	GroupName    string
	Amount       Money
	DueDate      time.Time
	Kind         ReminderKind
	DaysOverdue  int
}

func (e ReminderEvent) Title() string {
	if e.Kind == OverduePayment {
		return "Overdue Payment"
	}
	return "Upcoming Payment"
}

func (e ReminderEvent) Message() string {
	due := e.DueDate.Format(DisplayDateLayout)
	if e.Kind == OverduePayment {
		return fmt.Sprintf("Payment of %s for group '%s' was due on %s (%d days overdue)",
			FormatPHP(e.Amount), e.GroupName, due, e.DaysOverdue)
	}
	return fmt.Sprintf("Payment of %s for group '%s' is due on %s", FormatPHP(e.Amount), e.GroupName, due)
}

// PaymentReceipt announces a recorded payment to the group head.
type PaymentReceipt struct {
	CollectionID string
	GroupID      string
	HeadID       string
	UserID       string
	Amount       Money
	Method       PaymentMethod
	Reference    string
	Round        int
	PaidAt       time.Time
}

func (r PaymentReceipt) Title() string { return "Payment Received" }

// Message renders the notification text; names are resolved by the caller.
func (r PaymentReceipt) Message(memberName, groupName string) string {
	return fmt.Sprintf("Received payment of %s from %s in group '%s'", FormatPHP(r.Amount), memberName, groupName)
}

// LedgerEntry is one exported row of the payment ledger.
type LedgerEntry struct {
	PaidAt       time.Time
	GroupID      string
	GroupName    string
	Round        int
	MemberID     string
	MemberName   string
	Amount       Money
	Method       PaymentMethod
	Reference    string
	CollectionID string
}
