package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paluwagan/internal/calculator"
	"paluwagan/internal/core"
	"paluwagan/internal/storage"
)

// ReminderRun summarises one reminder pass.
type ReminderRun struct {
	Checked       int
	MarkedOverdue int
	Emitted       int
	Failed        int
}

// ReminderProcessor scans open collections, marks late ones OVERDUE and
// emits the reminders the trigger asks for.
type ReminderProcessor struct {
	store  storage.Store
	ledger *LedgerService
}

func NewReminderProcessor(store storage.Store, ledger *LedgerService) *ReminderProcessor {
	return &ReminderProcessor{store: store, ledger: ledger}
}

// ProcessReminders runs one pass at now. Failures on single collections are
// logged and counted; only a failed listing aborts the pass.
func (p *ReminderProcessor) ProcessReminders(ctx context.Context, now time.Time) (ReminderRun, error) {
	var run ReminderRun
	if p.store == nil || p.ledger == nil {
		return run, fmt.Errorf("processor not properly initialized")
	}

	open, err := p.store.ListCollections(ctx, storage.CollectionFilter{
		Statuses: []core.CollectionStatus{core.CollectionPending, core.CollectionOverdue},
	})
	if err != nil {
		return run, fmt.Errorf("list open collections: %w", err)
	}

	groups := make(map[string]*core.Group)
	for _, c := range open {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		run.Checked++

		if c.Status == core.CollectionPending && calculator.IsLate(c, now) {
			err := p.store.UpdateCollectionStatus(ctx, c.ID, storage.CollectionStatusUpdate{
				From:      core.CollectionPending,
				Status:    core.CollectionOverdue,
				UpdatedAt: now,
			})
			if errors.Is(err, core.ErrInvalidTransition) {
				slog.DebugContext(ctx, "Collection changed since listing, skipping", "collection_id", c.ID, "error", err)
				continue
			}
			if err != nil {
				slog.ErrorContext(ctx, "Failed to mark collection overdue", "collection_id", c.ID, "error", err)
				run.Failed++
				continue
			}
			c.Status = core.CollectionOverdue
			run.MarkedOverdue++
		}

		g, ok := groups[c.GroupID]
		if !ok {
			g, err = p.store.GetGroup(ctx, c.GroupID)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to load group for reminder", "group_id", c.GroupID, "error", err)
				run.Failed++
				continue
			}
			groups[c.GroupID] = g
		}
		if g == nil {
			slog.WarnContext(ctx, "Skipping reminder for missing group", "collection_id", c.ID, "group_id", c.GroupID)
			continue
		}
		if !g.IsActive() {
			continue
		}

		sent, err := p.ledger.SendReminder(ctx, c, *g, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to send reminder", "collection_id", c.ID, "error", err)
			run.Failed++
			continue
		}
		if sent {
			run.Emitted++
		}
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"checked", run.Checked,
		"marked_overdue", run.MarkedOverdue,
		"emitted", run.Emitted,
		"failed", run.Failed)
	return run, nil
}

// Task adapts the processor to a Loop.
func (p *ReminderProcessor) Task() PeriodicTask {
	return func(ctx context.Context, now time.Time) {
		if _, err := p.ProcessReminders(ctx, now); err != nil {
			slog.ErrorContext(ctx, "Reminder pass failed", "error", err)
		}
	}
}
