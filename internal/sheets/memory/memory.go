package memory

import (
	"context"
	"fmt"
	"sync"

	"paluwagan/internal/core"
	ports "paluwagan/internal/sheets"
)

// Ledger keeps exported entries in process memory.
type Ledger struct {
	mu      sync.Mutex
	entries []core.LedgerEntry
	refs    map[string]string // collection id -> row ref
}

var (
	_ ports.LedgerWriter = (*Ledger)(nil)
	_ ports.LedgerReader = (*Ledger)(nil)
)

func New() *Ledger {
	return &Ledger{refs: map[string]string{}}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (l *Ledger) AppendEntry(_ context.Context, e core.LedgerEntry) (string, error) {
	if err := ports.ValidateEntry(e); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if ref, ok := l.refs[e.CollectionID]; ok {
		return ref, nil
	}
	l.entries = append(l.entries, e)
	ref := fmt.Sprintf("mem:%d", len(l.entries))
	l.refs[e.CollectionID] = ref
	return ref, nil
}

func (l *Ledger) ListEntries(_ context.Context, groupID string) ([]core.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if groupID == "" || e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out, nil
}
