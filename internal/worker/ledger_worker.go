package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paluwagan/internal/amqp"
	"paluwagan/internal/core"
	"paluwagan/internal/sheets"
	"paluwagan/internal/storage"
)

// Notification is a rendered message for one user.
type Notification struct {
	UserID  string
	Title   string
	Message string
}

// Deliverer hands notifications to their recipient.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer logs notifications instead of pushing them to a device.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "Notification delivered",
		"user_id", n.UserID,
		"title", n.Title,
		"message", n.Message)
	return nil
}

// LedgerWorker handles messages published by the ledger service: payments
// are exported to the ledger sheet and reminders are delivered.
type LedgerWorker struct {
	store     storage.Store
	ledger    sheets.LedgerWriter
	deliverer Deliverer
}

func NewLedgerWorker(store storage.Store, ledger sheets.LedgerWriter, deliverer Deliverer) *LedgerWorker {
	if deliverer == nil {
		deliverer = LogDeliverer{}
	}
	return &LedgerWorker{store: store, ledger: ledger, deliverer: deliverer}
}

// Handlers wires the worker to an AMQP consumer.
func (w *LedgerWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		Reminder:        w.HandleReminder,
		PaymentRecorded: w.HandlePaymentRecorded,
	}
}

// HandlePaymentRecorded appends the payment to the ledger and notifies the
// group head. A returned error asks for redelivery; entries the ledger
// rejects as invalid are dropped.
func (w *LedgerWorker) HandlePaymentRecorded(ctx context.Context, msg *amqp.PaymentRecordedMessage) error {
	r := msg.Receipt()
	slog.InfoContext(ctx, "Processing payment message",
		"collection_id", r.CollectionID,
		"group_id", r.GroupID)

	groupName, headID, err := w.groupInfo(ctx, r.GroupID)
	if err != nil {
		return err
	}
	if r.HeadID != "" {
		headID = r.HeadID
	}
	memberName, err := w.userName(ctx, r.UserID)
	if err != nil {
		return err
	}

	entry := core.LedgerEntry{
		PaidAt:       r.PaidAt,
		GroupID:      r.GroupID,
		GroupName:    groupName,
		Round:        r.Round,
		MemberID:     r.UserID,
		MemberName:   memberName,
		Amount:       r.Amount,
		Method:       r.Method,
		Reference:    r.Reference,
		CollectionID: r.CollectionID,
	}
	ref, err := w.ledger.AppendEntry(ctx, entry)
	if errors.Is(err, sheets.ErrInvalidEntry) {
		slog.ErrorContext(ctx, "Dropping invalid ledger entry",
			"collection_id", r.CollectionID,
			"error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	slog.InfoContext(ctx, "Payment exported to ledger",
		"collection_id", r.CollectionID,
		"row_ref", ref)

	if headID == "" {
		return nil
	}
	// the export already happened; a failed notification must not redeliver it
	if err := w.deliverer.Deliver(ctx, Notification{
		UserID:  headID,
		Title:   r.Title(),
		Message: r.Message(memberName, groupName),
	}); err != nil {
		slog.WarnContext(ctx, "Failed to notify group head",
			"head_id", headID,
			"collection_id", r.CollectionID,
			"error", err)
	}
	return nil
}

// HandleReminder renders a reminder and delivers it to the owing member.
func (w *LedgerWorker) HandleReminder(ctx context.Context, msg *amqp.ReminderMessage) error {
	e := msg.Event()
	if err := w.deliverer.Deliver(ctx, Notification{
		UserID:  e.UserID,
		Title:   e.Title(),
		Message: e.Message(),
	}); err != nil {
		return fmt.Errorf("deliver reminder %s: %w", e.CollectionID, err)
	}
	return nil
}

// groupInfo returns the group's name and head. A missing group falls back to
// its id so the payment is still exported.
func (w *LedgerWorker) groupInfo(ctx context.Context, groupID string) (name, headID string, err error) {
	g, err := w.store.GetGroup(ctx, groupID)
	if err != nil {
		return "", "", fmt.Errorf("get group %s: %w", groupID, err)
	}
	if g == nil {
		slog.WarnContext(ctx, "Group not found for payment", "group_id", groupID)
		return groupID, "", nil
	}
	return g.Name, g.HeadID, nil
}

func (w *LedgerWorker) userName(ctx context.Context, userID string) (string, error) {
	u, err := w.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", userID, err)
	}
	if u == nil {
		slog.WarnContext(ctx, "User not found for payment", "user_id", userID)
		return userID, nil
	}
	return u.FullName, nil
}
