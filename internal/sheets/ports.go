package sheets

import (
	"context"
	"errors"
	"fmt"

	"paluwagan/internal/core"
)

// Ports for the payment ledger export.
type (
	LedgerWriter interface {
		// AppendEntry records a payment row and returns its reference. Appending
		// an entry whose collection is already exported returns the existing
		// reference.
		AppendEntry(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	LedgerReader interface {
		// ListEntries returns the exported rows of one group, or all rows when
		// groupID is empty.
		ListEntries(ctx context.Context, groupID string) ([]core.LedgerEntry, error)
	}
)

var ErrInvalidEntry = errors.New("invalid ledger entry")

func ValidateEntry(e core.LedgerEntry) error {
	switch {
	case e.CollectionID == "":
		return fmt.Errorf("%w: missing collection id", ErrInvalidEntry)
	case e.GroupID == "":
		return fmt.Errorf("%w: missing group id", ErrInvalidEntry)
	case e.Amount.Cents <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	case e.PaidAt.IsZero():
		return fmt.Errorf("%w: missing payment time", ErrInvalidEntry)
	}
	return nil
}
