package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"paluwagan/internal/core"
	"paluwagan/internal/storage"
)

// CycleProcessor opens and advances the rounds of active groups as their
// collection dates arrive.
type CycleProcessor struct {
	store  storage.Store
	ledger *LedgerService
}

func NewCycleProcessor(store storage.Store, ledger *LedgerService) *CycleProcessor {
	return &CycleProcessor{store: store, ledger: ledger}
}

// ProcessDueGroups runs one pass at now and returns how many groups moved.
// A group whose current round is missing collections is opened once its
// next collection date has arrived; a group with an open round advances once
// the following date has arrived. Each group moves at most one step per pass.
func (p *CycleProcessor) ProcessDueGroups(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	groups, err := p.store.ListGroups(ctx, storage.GroupFilter{Status: core.GroupActive})
	if err != nil {
		return 0, fmt.Errorf("list active groups: %w", err)
	}

	advanced := 0
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return advanced, err
		}
		due, err := p.isDue(ctx, g, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check group cycle", "group_id", g.ID, "error", err)
			continue
		}
		if !due {
			continue
		}
		if _, _, err := p.ledger.AdvanceCycle(ctx, g.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to advance group cycle", "group_id", g.ID, "error", err)
			continue
		}
		advanced++
	}

	slog.InfoContext(ctx, "Cycle processing complete",
		"advanced", advanced,
		"total_checked", len(groups),
		"processing_date", now.Format("2006-01-02"))
	return advanced, nil
}

func (p *CycleProcessor) isDue(ctx context.Context, g core.Group, now time.Time) (bool, error) {
	if g.NextCollectionDate.After(now) {
		return false, nil
	}
	existing, err := p.store.ListCollections(ctx, storage.CollectionFilter{
		GroupIDs: []string{g.ID},
		Round:    g.CurrentRound,
	})
	if err != nil {
		return false, err
	}
	if len(existing) == 0 || len(missingPayers(g, existing)) > 0 {
		return true, nil
	}
	next, err := p.ledger.scheduler.NextDate(g.Frequency, g.NextCollectionDate)
	if err != nil {
		return false, err
	}
	// an unadvanceable frequency never becomes due again
	if !next.After(g.NextCollectionDate) {
		return false, nil
	}
	return !next.After(now), nil
}

// Task adapts the processor to a Loop.
func (p *CycleProcessor) Task() PeriodicTask {
	return func(ctx context.Context, now time.Time) {
		if _, err := p.ProcessDueGroups(ctx, now); err != nil {
			slog.ErrorContext(ctx, "Cycle pass failed", "error", err)
		}
	}
}
