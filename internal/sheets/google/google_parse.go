package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"paluwagan/internal/core"
)

const ledgerDateLayout = "2006-01-02 15:04"

// Ledger columns A..J.
var ledgerHeader = []any{
	"Paid At", "Group", "Round", "Member", "Amount", "Method", "Reference", "Group ID", "Member ID", "Collection ID",
}

const (
	colPaidAt = iota
	colGroup
	colRound
	colMember
	colAmount
	colMethod
	colReference
	colGroupID
	colMemberID
	colCollectionID
	ledgerColumns
)

func entryRow(e core.LedgerEntry) []any {
	return []any{
		e.PaidAt.UTC().Format(ledgerDateLayout),
		e.GroupName,
		e.Round,
		e.MemberName,
		e.Amount.Pesos(),
		e.Method.Label(),
		e.Reference,
		e.GroupID,
		e.MemberID,
		e.CollectionID,
	}
}

// parseEntry reads one ledger row. Rows without a collection id, such as the
// header, are skipped.
func parseEntry(row []any) (core.LedgerEntry, bool) {
	cols := toStrings(row)
	if len(cols) < ledgerColumns {
		return core.LedgerEntry{}, false
	}
	id := cols[colCollectionID]
	if id == "" || strings.EqualFold(id, fmt.Sprint(ledgerHeader[colCollectionID])) {
		return core.LedgerEntry{}, false
	}
	paidAt, err := time.Parse(ledgerDateLayout, cols[colPaidAt])
	if err != nil {
		return core.LedgerEntry{}, false
	}
	cents, err := core.ParseDecimalToCents(cols[colAmount])
	if err != nil {
		return core.LedgerEntry{}, false
	}
	round, _ := strconv.Atoi(cols[colRound])
	return core.LedgerEntry{
		PaidAt:       paidAt,
		GroupID:      cols[colGroupID],
		GroupName:    cols[colGroup],
		Round:        round,
		MemberID:     cols[colMemberID],
		MemberName:   cols[colMember],
		Amount:       core.Money{Cents: cents},
		Method:       methodFromLabel(cols[colMethod]),
		Reference:    cols[colReference],
		CollectionID: id,
	}, true
}

func methodFromLabel(label string) core.PaymentMethod {
	for _, m := range []core.PaymentMethod{core.MethodGCash, core.MethodPayMaya, core.MethodBank, core.MethodCash} {
		if strings.EqualFold(label, m.Label()) || strings.EqualFold(label, string(m)) {
			return m
		}
	}
	return core.PaymentMethod(label)
}

// findRow returns the 1-based row whose first cell equals id, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
