package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "paluwagan/internal/sheets/google"
	sheetsmem "paluwagan/internal/sheets/memory"
	"paluwagan/internal/storage"
	"paluwagan/internal/storage/memory"
	"paluwagan/internal/storage/mongodb"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case MongoBackend:
		return f.createMongoStore(ctx, config)
	case MemoryBackend:
		return f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if config.Observer != nil {
		repo.WithObserver(config.Observer)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &StoreResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMongoStore(ctx context.Context, config Config) (*StoreResult, error) {
	store, err := mongodb.Connect(ctx, config.MongoURI, config.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create MongoDB indexes: %w", err)
	}
	if config.Observer != nil {
		store.WithObserver(config.Observer)
	}

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase)

	return &StoreResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*StoreResult, error) {
	store := memory.NewStore()
	if config.Observer != nil {
		store.WithObserver(config.Observer)
	}

	f.logger.Info("Initialized memory backend")

	return &StoreResult{Store: store, Cleanup: store.Close}, nil
}

// CreateLedger implements Factory.CreateLedger
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (Ledger, error) {
	switch config.LedgerType {
	case SheetsLedger:
		cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets ledger", "sheet", cli.SheetName())
		return cli, nil
	case MemoryLedger, "":
		f.logger.Info("Initialized memory ledger")
		return sheetsmem.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", config.LedgerType)
	}
}
