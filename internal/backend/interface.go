package backend

import (
	"context"

	"paluwagan/internal/sheets"
	"paluwagan/internal/storage"
)

// Ledger is the payment ledger export the worker writes to and the HTTP
// server reads from.
type Ledger interface {
	sheets.LedgerWriter
	sheets.LedgerReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the store instance and its cleanup function.
type StoreResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory creates stores and ledgers based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreateLedger(ctx context.Context, config Config) (Ledger, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// MongoDB specific
	MongoURI      string
	MongoDatabase string

	// Ledger export
	LedgerType          LedgerType
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Observer receives decode diagnostics from every store type.
	Observer storage.DecodeObserver
}

// BackendType represents the type of record store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// LedgerType selects where payment ledger rows are exported.
type LedgerType string

const (
	MemoryLedger LedgerType = "memory"
	SheetsLedger LedgerType = "sheets"
)

func (lt LedgerType) IsValid() bool {
	return lt == MemoryLedger || lt == SheetsLedger
}
