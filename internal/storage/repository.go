package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"paluwagan/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db       *sql.DB
	observer DecodeObserver
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// a single connection serializes writers; sqlite rejects concurrent ones
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// WithObserver sets the decode observer and returns the repository.
func (r *SQLiteRepository) WithObserver(obs DecodeObserver) *SQLiteRepository {
	r.observer = obs
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) insert(ctx context.Context, op string, t table, doc core.Document) error {
	names := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	args := make([]any, len(t.columns))
	for i, c := range t.columns {
		v, err := c.toSQL(doc[c.key])
		if err != nil {
			return Wrap(op, fmt.Errorf("encode %s: %w", c.key, err))
		}
		names[i], marks[i], args[i] = c.name, "?", v
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return Wrap(op, err)
	}
	return nil
}

// update writes the given document keys to the row with id.
func (r *SQLiteRepository) update(ctx context.Context, op string, t table, id string, fields core.Document) error {
	matched, err := r.updateWhere(ctx, op, t, id, fields, "")
	if err != nil {
		return err
	}
	if !matched {
		return Wrap(op, fmt.Errorf("%s %q: %w", t.entity, id, ErrNotFound))
	}
	return nil
}

// updateWhere is update with an extra condition on the row. It reports
// whether a row matched.
func (r *SQLiteRepository) updateWhere(ctx context.Context, op string, t table, id string, fields core.Document, cond string, condArgs ...any) (bool, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		c, ok := t.column(k)
		if !ok || c.key == "id" {
			continue
		}
		v, err := c.toSQL(fields[k])
		if err != nil {
			return false, Wrap(op, fmt.Errorf("encode %s: %w", k, err))
		}
		sets = append(sets, c.name+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return true, nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.name, strings.Join(sets, ", "))
	if cond != "" {
		query += " AND " + cond
		args = append(args, condArgs...)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, Wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Wrap(op, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, op string, t table, id string) (core.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.selectList(), t.name)
	doc, err := t.scanDocument(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Wrap(op, err)
	}
	return doc, nil
}

func (r *SQLiteRepository) query(ctx context.Context, op string, t table, where string, args ...any) ([]core.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s %s", t.selectList(), t.name, where)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Wrap(op, err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		doc, err := t.scanDocument(rows.Scan)
		if err != nil {
			return nil, Wrap(op, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(op, err)
	}
	return docs, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	doc, err := r.getOne(ctx, "get user", usersTable, id)
	if err != nil || doc == nil {
		return nil, err
	}
	u, diags := core.DecodeUser(doc)
	ReportDiagnostics(ctx, r.observer, usersTable.entity, u.ID, diags)
	return &u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	if err := r.insert(ctx, "create user", usersTable, core.EncodeUser(u)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID)
	return nil
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, id string, patch UserPatch) error {
	return r.update(ctx, "update user", usersTable, id, patch.Document())
}

func (r *SQLiteRepository) decodeGroups(ctx context.Context, docs []core.Document) []core.Group {
	out := make([]core.Group, 0, len(docs))
	for _, doc := range docs {
		g, diags := core.DecodeGroup(doc)
		ReportDiagnostics(ctx, r.observer, groupsTable.entity, g.ID, diags)
		out = append(out, g)
	}
	return out
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	doc, err := r.getOne(ctx, "get group", groupsTable, id)
	if err != nil || doc == nil {
		return nil, err
	}
	g := r.decodeGroups(ctx, []core.Document{doc})[0]
	return &g, nil
}

func (r *SQLiteRepository) ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error) {
	docs, err := r.query(ctx, "list groups for user", groupsTable,
		"WHERE EXISTS (SELECT 1 FROM json_each(members) WHERE json_each.value = ?) ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	return r.decodeGroups(ctx, docs), nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context, filter GroupFilter) ([]core.Group, error) {
	var conds []string
	var args []any
	if filter.HeadID != "" {
		conds = append(conds, "head_id = ?")
		args = append(args, filter.HeadID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	docs, err := r.query(ctx, "list groups", groupsTable, whereClause(conds)+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	return r.decodeGroups(ctx, docs), nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) error {
	if err := r.insert(ctx, "create group", groupsTable, core.EncodeGroup(g)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Group saved to SQLite",
		"group_id", g.ID,
		"head_id", g.HeadID,
		"frequency", string(g.Frequency))
	return nil
}

func (r *SQLiteRepository) UpdateGroup(ctx context.Context, id string, patch GroupPatch) error {
	return r.update(ctx, "update group", groupsTable, id, patch.Document())
}

func (r *SQLiteRepository) AddCollectedFunds(ctx context.Context, id string, delta core.Money, at time.Time) error {
	const op = "add collected funds"
	query := fmt.Sprintf("UPDATE %s SET collected_funds = ROUND(collected_funds + ?, 2), updated_at = ? WHERE id = ?", groupsTable.name)
	res, err := r.db.ExecContext(ctx, query, delta.Pesos(), core.Millis(at), id)
	if err != nil {
		return Wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Wrap(op, err)
	}
	if n == 0 {
		return Wrap(op, fmt.Errorf("%s %q: %w", groupsTable.entity, id, ErrNotFound))
	}
	return nil
}

func (r *SQLiteRepository) decodeCollections(ctx context.Context, docs []core.Document) []core.Collection {
	out := make([]core.Collection, 0, len(docs))
	for _, doc := range docs {
		c, diags := core.DecodeCollection(doc)
		ReportDiagnostics(ctx, r.observer, collectionsTable.entity, c.ID, diags)
		out = append(out, c)
	}
	return out
}

func (r *SQLiteRepository) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	doc, err := r.getOne(ctx, "get collection", collectionsTable, id)
	if err != nil || doc == nil {
		return nil, err
	}
	c := r.decodeCollections(ctx, []core.Document{doc})[0]
	return &c, nil
}

func (r *SQLiteRepository) ListCollections(ctx context.Context, filter CollectionFilter) ([]core.Collection, error) {
	var conds []string
	var args []any
	if len(filter.GroupIDs) > 0 {
		conds = append(conds, "group_id IN ("+placeholders(len(filter.GroupIDs))+")")
		for _, id := range filter.GroupIDs {
			args = append(args, id)
		}
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.Round > 0 {
		conds = append(conds, "round = ?")
		args = append(args, filter.Round)
	}
	if !filter.DueBefore.IsZero() {
		conds = append(conds, "due_date < ?")
		args = append(args, core.Millis(filter.DueBefore))
	}

	where := whereClause(conds) + " ORDER BY due_date ASC, id ASC"
	if filter.Limit > 0 {
		where += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	docs, err := r.query(ctx, "list collections", collectionsTable, where, args...)
	if err != nil {
		return nil, err
	}
	return r.decodeCollections(ctx, docs), nil
}

func (r *SQLiteRepository) CreateCollection(ctx context.Context, c core.Collection) error {
	if err := r.insert(ctx, "create collection", collectionsTable, core.EncodeCollection(c)); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Collection saved to SQLite",
		"collection_id", c.ID,
		"group_id", c.GroupID,
		"round", c.Round)
	return nil
}

func (r *SQLiteRepository) UpdateCollectionStatus(ctx context.Context, id string, update CollectionStatusUpdate) error {
	const op = "update collection status"
	if update.From == "" {
		return r.update(ctx, op, collectionsTable, id, update.Document())
	}
	matched, err := r.updateWhere(ctx, op, collectionsTable, id, update.Document(), "status = ?", string(update.From))
	if err != nil || matched {
		return err
	}
	current, err := r.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return Wrap(op, fmt.Errorf("%s %q: %w", collectionsTable.entity, id, ErrNotFound))
	}
	return &core.TransitionError{ID: id, From: current.Status, To: update.Status}
}

func (r *SQLiteRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "mark reminder sent", collectionsTable, id, core.Document{
		"reminderSent":     true,
		"lastReminderDate": core.Millis(at),
		"updatedAt":        core.Millis(at),
	})
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
