package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paluwagan/internal/amqp"
	"paluwagan/internal/core"
	sheetsmem "paluwagan/internal/sheets/memory"
	"paluwagan/internal/storage/memory"
)

var paidAt = time.Date(2024, 3, 17, 14, 30, 0, 0, time.UTC)

type recordingDeliverer struct {
	sent []Notification
	err  error
}

func (d *recordingDeliverer) Deliver(_ context.Context, n Notification) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

type failingLedger struct{ err error }

func (l failingLedger) AppendEntry(context.Context, core.LedgerEntry) (string, error) {
	return "", l.err
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.CreateUser(ctx, core.User{ID: "ana", FullName: "Ana Reyes"}))
	require.NoError(t, s.CreateUser(ctx, core.User{ID: "head", FullName: "Head Cruz"}))
	g := core.NewGroup()
	g.ID, g.Name, g.HeadID = "grp-1", "Office Paluwagan", "head"
	g.Members = []string{"head", "ana"}
	require.NoError(t, s.CreateGroup(ctx, g))
	return s
}

func paymentMessage() *amqp.PaymentRecordedMessage {
	return amqp.NewPaymentRecordedMessage(core.PaymentReceipt{
		CollectionID: "col-1",
		GroupID:      "grp-1",
		UserID:       "ana",
		Amount:       core.Money{Cents: 1500_00},
		Method:       core.MethodGCash,
		Reference:    "GC-7781",
		Round:        2,
		PaidAt:       paidAt,
	})
}

func TestLedgerWorker_HandlePaymentRecorded(t *testing.T) {
	ctx := context.Background()
	ledger := sheetsmem.New()
	deliverer := &recordingDeliverer{}
	w := NewLedgerWorker(seededStore(t), ledger, deliverer)

	require.NoError(t, w.HandlePaymentRecorded(ctx, paymentMessage()))
	// redelivery does not duplicate the row
	require.NoError(t, w.HandlePaymentRecorded(ctx, paymentMessage()))

	entries, err := ledger.ListEntries(ctx, "grp-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "Office Paluwagan", e.GroupName)
	assert.Equal(t, "Ana Reyes", e.MemberName)
	assert.Equal(t, 2, e.Round)
	assert.Equal(t, core.MethodGCash, e.Method)
	assert.Equal(t, "GC-7781", e.Reference)
	assert.True(t, e.PaidAt.Equal(paidAt))

	require.Len(t, deliverer.sent, 2)
	n := deliverer.sent[0]
	assert.Equal(t, "head", n.UserID)
	assert.Equal(t, "Payment Received", n.Title)
	assert.Equal(t, "Received payment of ₱1,500.00 from Ana Reyes in group 'Office Paluwagan'", n.Message)
}

func TestLedgerWorker_PaymentForUnknownRecords(t *testing.T) {
	ctx := context.Background()
	ledger := sheetsmem.New()
	deliverer := &recordingDeliverer{}
	w := NewLedgerWorker(memory.NewStore(), ledger, deliverer)

	require.NoError(t, w.HandlePaymentRecorded(ctx, paymentMessage()))

	entries, err := ledger.ListEntries(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "grp-1", entries[0].GroupName)
	assert.Equal(t, "ana", entries[0].MemberName)
	assert.Empty(t, deliverer.sent, "no head to notify")
}

func TestLedgerWorker_PaymentErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("ledger failure is returned for redelivery", func(t *testing.T) {
		w := NewLedgerWorker(seededStore(t), failingLedger{err: errors.New("quota exceeded")}, nil)
		err := w.HandlePaymentRecorded(ctx, paymentMessage())
		assert.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("invalid entry is dropped", func(t *testing.T) {
		msg := paymentMessage()
		msg.AmountCents = 0
		w := NewLedgerWorker(seededStore(t), sheetsmem.New(), nil)
		assert.NoError(t, w.HandlePaymentRecorded(ctx, msg))
	})

	t.Run("notification failure is not returned", func(t *testing.T) {
		w := NewLedgerWorker(seededStore(t), sheetsmem.New(), &recordingDeliverer{err: errors.New("offline")})
		assert.NoError(t, w.HandlePaymentRecorded(ctx, paymentMessage()))
	})

	t.Run("closed store", func(t *testing.T) {
		s := seededStore(t)
		require.NoError(t, s.Close())
		w := NewLedgerWorker(s, sheetsmem.New(), nil)
		assert.Error(t, w.HandlePaymentRecorded(ctx, paymentMessage()))
	})
}

func TestLedgerWorker_HandleReminder(t *testing.T) {
	ctx := context.Background()
	deliverer := &recordingDeliverer{}
	w := NewLedgerWorker(memory.NewStore(), sheetsmem.New(), deliverer)

	msg := amqp.NewReminderMessage(core.ReminderEvent{
		CollectionID: "col-1",
		UserID:       "ana",
		GroupID:      "grp-1",
		GroupName:    "Office Paluwagan",
		Amount:       core.Money{Cents: 1500_00},
		DueDate:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Kind:         core.OverduePayment,
		DaysOverdue:  5,
	})
	require.NoError(t, w.HandleReminder(ctx, msg))
	require.Len(t, deliverer.sent, 1)
	assert.Equal(t, "ana", deliverer.sent[0].UserID)
	assert.Equal(t, "Overdue Payment", deliverer.sent[0].Title)
	assert.Equal(t, "Payment of ₱1,500.00 for group 'Office Paluwagan' was due on Mar 10, 2024 (5 days overdue)", deliverer.sent[0].Message)

	deliverer.err = errors.New("offline")
	assert.Error(t, w.HandleReminder(ctx, msg))
}

func TestLedgerWorker_Handlers(t *testing.T) {
	h := NewLedgerWorker(memory.NewStore(), sheetsmem.New(), nil).Handlers()
	assert.NotNil(t, h.Reminder)
	assert.NotNil(t, h.PaymentRecorded)
	assert.NoError(t, LogDeliverer{}.Deliver(context.Background(), Notification{UserID: "u"}))
}
