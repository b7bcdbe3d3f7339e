// Package memory keeps records as raw documents in process memory. Records
// are decoded on every read, so it behaves like the document backends.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"paluwagan/internal/core"
	"paluwagan/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	records  map[string]map[string]core.Document
	observer storage.DecodeObserver
	closed   bool
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		records: map[string]map[string]core.Document{
			core.UsersCollection:       {},
			core.GroupsCollection:      {},
			core.CollectionsCollection: {},
		},
	}
}

// WithObserver sets the decode observer and returns the store.
func (s *Store) WithObserver(obs storage.DecodeObserver) *Store {
	s.observer = obs
	return s
}

// Put stores a raw document under id, bypassing encoding. Useful for seeding
// legacy or partial records.
func (s *Store) Put(collection, id string, doc core.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[collection] == nil {
		s.records[collection] = map[string]core.Document{}
	}
	s.records[collection][id] = maps.Clone(doc)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen(op string) error {
	if s.closed {
		return storage.Wrap(op, fmt.Errorf("store is closed"))
	}
	return nil
}

func (s *Store) insert(op, collection, id string, doc core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return err
	}
	if id == "" {
		return storage.Wrap(op, fmt.Errorf("missing id"))
	}
	if _, exists := s.records[collection][id]; exists {
		return storage.Wrap(op, fmt.Errorf("duplicate id %q", id))
	}
	s.records[collection][id] = doc
	return nil
}

func (s *Store) get(op, collection, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	doc, ok := s.records[collection][id]
	if !ok {
		return nil, nil
	}
	return maps.Clone(doc), nil
}

func (s *Store) all(op, collection string) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	keys := slices.Sorted(maps.Keys(s.records[collection]))
	out := make([]core.Document, 0, len(keys))
	for _, k := range keys {
		out = append(out, maps.Clone(s.records[collection][k]))
	}
	return out, nil
}

// modify merges fields into an existing document.
func (s *Store) modify(op, collection, id string, fields core.Document) error {
	return s.modifyFunc(op, collection, id, func(core.Document) (core.Document, error) {
		return fields, nil
	})
}

// modifyFunc computes the fields to merge from the current document while
// holding the write lock. An error from fields aborts the write.
func (s *Store) modifyFunc(op, collection, id string, fields func(current core.Document) (core.Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return err
	}
	doc, ok := s.records[collection][id]
	if !ok {
		return storage.Wrap(op, fmt.Errorf("%s %q: %w", collection, id, storage.ErrNotFound))
	}
	changes, err := fields(doc)
	if err != nil {
		return err
	}
	merged := maps.Clone(doc)
	maps.Copy(merged, changes)
	s.records[collection][id] = merged
	return nil
}

func (s *Store) decodeUser(ctx context.Context, doc core.Document) core.User {
	u, diags := core.DecodeUser(doc)
	storage.ReportDiagnostics(ctx, s.observer, "user", u.ID, diags)
	return u
}

func (s *Store) decodeGroup(ctx context.Context, doc core.Document) core.Group {
	g, diags := core.DecodeGroup(doc)
	storage.ReportDiagnostics(ctx, s.observer, "group", g.ID, diags)
	return g
}

func (s *Store) decodeCollection(ctx context.Context, doc core.Document) core.Collection {
	c, diags := core.DecodeCollection(doc)
	storage.ReportDiagnostics(ctx, s.observer, "collection", c.ID, diags)
	return c
}

func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	doc, err := s.get("get user", core.UsersCollection, id)
	if err != nil || doc == nil {
		return nil, err
	}
	u := s.decodeUser(ctx, doc)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	return s.insert("create user", core.UsersCollection, u.ID, core.EncodeUser(u))
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch storage.UserPatch) error {
	return s.modify("update user", core.UsersCollection, id, patch.Document())
}

func (s *Store) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	doc, err := s.get("get group", core.GroupsCollection, id)
	if err != nil || doc == nil {
		return nil, err
	}
	g := s.decodeGroup(ctx, doc)
	return &g, nil
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error) {
	docs, err := s.all("list groups for user", core.GroupsCollection)
	if err != nil {
		return nil, err
	}
	var out []core.Group
	for _, doc := range docs {
		g := s.decodeGroup(ctx, doc)
		if slices.Contains(g.Members, userID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) ListGroups(ctx context.Context, filter storage.GroupFilter) ([]core.Group, error) {
	docs, err := s.all("list groups", core.GroupsCollection)
	if err != nil {
		return nil, err
	}
	var out []core.Group
	for _, doc := range docs {
		if g := s.decodeGroup(ctx, doc); filter.Matches(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) CreateGroup(ctx context.Context, g core.Group) error {
	return s.insert("create group", core.GroupsCollection, g.ID, core.EncodeGroup(g))
}

func (s *Store) UpdateGroup(ctx context.Context, id string, patch storage.GroupPatch) error {
	return s.modify("update group", core.GroupsCollection, id, patch.Document())
}

func (s *Store) AddCollectedFunds(ctx context.Context, id string, delta core.Money, at time.Time) error {
	return s.modifyFunc("add collected funds", core.GroupsCollection, id, func(doc core.Document) (core.Document, error) {
		g, _ := core.DecodeGroup(doc)
		return core.Document{
			"collectedFunds": g.CollectedFunds.Add(delta).Pesos(),
			"updatedAt":      core.Millis(at),
		}, nil
	})
}

func (s *Store) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	doc, err := s.get("get collection", core.CollectionsCollection, id)
	if err != nil || doc == nil {
		return nil, err
	}
	c := s.decodeCollection(ctx, doc)
	return &c, nil
}

func (s *Store) ListCollections(ctx context.Context, filter storage.CollectionFilter) ([]core.Collection, error) {
	docs, err := s.all("list collections", core.CollectionsCollection)
	if err != nil {
		return nil, err
	}
	var out []core.Collection
	for _, doc := range docs {
		if c := s.decodeCollection(ctx, doc); filter.Matches(c) {
			out = append(out, c)
		}
	}
	return filter.SortAndLimit(out), nil
}

func (s *Store) CreateCollection(ctx context.Context, c core.Collection) error {
	return s.insert("create collection", core.CollectionsCollection, c.ID, core.EncodeCollection(c))
}

func (s *Store) UpdateCollectionStatus(ctx context.Context, id string, update storage.CollectionStatusUpdate) error {
	return s.modifyFunc("update collection status", core.CollectionsCollection, id, func(doc core.Document) (core.Document, error) {
		c, _ := core.DecodeCollection(doc)
		if err := update.Check(id, c.Status); err != nil {
			return nil, err
		}
		return update.Document(), nil
	})
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return s.modify("mark reminder sent", core.CollectionsCollection, id, core.Document{
		"reminderSent":     true,
		"lastReminderDate": core.Millis(at),
		"updatedAt":        core.Millis(at),
	})
}
