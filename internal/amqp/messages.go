package amqp

import (
	"encoding/json"
	"time"

	"paluwagan/internal/core"
)

// AMQP Type property values used to route deliveries to handlers.
const (
	TypeReminder        = "paluwagan.reminder"
	TypePaymentRecorded = "paluwagan.payment_recorded"
)

// ReminderMessage carries a rendered-ready payment reminder for one member.
type ReminderMessage struct {
	CollectionID string    `json:"collection_id"`
	UserID       string    `json:"user_id"`
	GroupID      string    `json:"group_id"`
	GroupName    string    `json:"group_name"`
	AmountCents  int64     `json:"amount_cents"`
	DueDate      time.Time `json:"due_date"`
	Kind         string    `json:"kind"`
	DaysOverdue  int       `json:"days_overdue,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewReminderMessage(e core.ReminderEvent) *ReminderMessage {
	return &ReminderMessage{
		CollectionID: e.CollectionID,
		UserID:       e.UserID,
		GroupID:      e.GroupID,
		GroupName:    e.GroupName,
		AmountCents:  e.Amount.Cents,
		DueDate:      e.DueDate,
		Kind:         string(e.Kind),
		DaysOverdue:  e.DaysOverdue,
		Timestamp:    time.Now(),
	}
}

func (m *ReminderMessage) Event() core.ReminderEvent {
	return core.ReminderEvent{
		CollectionID: m.CollectionID,
		UserID:       m.UserID,
		GroupID:      m.GroupID,
		GroupName:    m.GroupName,
		Amount:       core.Money{Cents: m.AmountCents},
		DueDate:      m.DueDate,
		Kind:         core.ReminderKind(m.Kind),
		DaysOverdue:  m.DaysOverdue,
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PaymentRecordedMessage announces a payment so the ledger worker can export
// it and notify the group head.
type PaymentRecordedMessage struct {
	CollectionID string    `json:"collection_id"`
	GroupID      string    `json:"group_id"`
	HeadID       string    `json:"head_id"`
	UserID       string    `json:"user_id"`
	AmountCents  int64     `json:"amount_cents"`
	Method       string    `json:"method"`
	Reference    string    `json:"reference,omitempty"`
	Round        int       `json:"round"`
	PaidAt       time.Time `json:"paid_at"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewPaymentRecordedMessage(r core.PaymentReceipt) *PaymentRecordedMessage {
	return &PaymentRecordedMessage{
		CollectionID: r.CollectionID,
		GroupID:      r.GroupID,
		HeadID:       r.HeadID,
		UserID:       r.UserID,
		AmountCents:  r.Amount.Cents,
		Method:       string(r.Method),
		Reference:    r.Reference,
		Round:        r.Round,
		PaidAt:       r.PaidAt,
		Timestamp:    time.Now(),
	}
}

func (m *PaymentRecordedMessage) Receipt() core.PaymentReceipt {
	return core.PaymentReceipt{
		CollectionID: m.CollectionID,
		GroupID:      m.GroupID,
		HeadID:       m.HeadID,
		UserID:       m.UserID,
		Amount:       core.Money{Cents: m.AmountCents},
		Method:       core.PaymentMethod(m.Method),
		Reference:    m.Reference,
		Round:        m.Round,
		PaidAt:       m.PaidAt,
	}
}

func (m *PaymentRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentRecordedMessageFromJSON(data []byte) (*PaymentRecordedMessage, error) {
	var msg PaymentRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
