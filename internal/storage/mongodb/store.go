// Package mongodb stores users, groups and collections as MongoDB documents
// using the persisted field names as document keys.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"paluwagan/internal/core"
	"paluwagan/internal/storage"
)

type Store struct {
	client      *mongo.Client
	users       *mongo.Collection
	groups      *mongo.Collection
	collections *mongo.Collection
	observer    storage.DecodeObserver
}

var _ storage.Store = (*Store)(nil)

// Connect dials uri, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client.Database(database))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", database)
	return s, nil
}

func New(db *mongo.Database) *Store {
	return &Store{
		users:       db.Collection(core.UsersCollection),
		groups:      db.Collection(core.GroupsCollection),
		collections: db.Collection(core.CollectionsCollection),
	}
}

// WithObserver sets the decode observer and returns the store.
func (s *Store) WithObserver(obs storage.DecodeObserver) *Store {
	s.observer = obs
	return s
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		s.groups: {
			{Keys: bson.D{{Key: "members", Value: 1}}},
			{Keys: bson.D{{Key: "headId", Value: 1}, {Key: "status", Value: 1}}},
		},
		s.collections: {
			{Keys: bson.D{{Key: "groupId", Value: 1}, {Key: "round", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "dueDate", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return storage.Wrap("ensure indexes", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func toBSON(doc core.Document) bson.M {
	m := bson.M{}
	for k, v := range doc {
		m[k] = v
	}
	m["_id"] = doc["id"]
	return m
}

// normalize turns driver types back into the plain values the core decoder
// understands.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.A:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case primitive.DateTime:
		return x.Time().UTC()
	case bson.M:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	}
	return v
}

func fromBSON(m bson.M) core.Document {
	doc := make(core.Document, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		doc[k] = normalize(v)
	}
	if _, ok := doc["id"]; !ok {
		if id, ok := m["_id"].(string); ok {
			doc["id"] = id
		}
	}
	return doc
}

func (s *Store) findOne(ctx context.Context, op string, coll *mongo.Collection, id string) (core.Document, error) {
	var m bson.M
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	return fromBSON(m), nil
}

func (s *Store) find(ctx context.Context, op string, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]core.Document, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer cur.Close(ctx)

	var docs []core.Document
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, storage.Wrap(op, err)
		}
		docs = append(docs, fromBSON(m))
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return docs, nil
}

func (s *Store) insert(ctx context.Context, op string, coll *mongo.Collection, doc core.Document) error {
	if _, err := coll.InsertOne(ctx, toBSON(doc)); err != nil {
		return storage.Wrap(op, err)
	}
	return nil
}

func (s *Store) set(ctx context.Context, op string, coll *mongo.Collection, id string, fields core.Document) error {
	return s.apply(ctx, op, coll, id, bson.M{"$set": bson.M(fields)})
}

func (s *Store) apply(ctx context.Context, op string, coll *mongo.Collection, id string, update bson.M) error {
	res, err := coll.UpdateByID(ctx, id, update)
	if err != nil {
		return storage.Wrap(op, err)
	}
	if res.MatchedCount == 0 {
		return storage.Wrap(op, fmt.Errorf("%s %q: %w", coll.Name(), id, storage.ErrNotFound))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	doc, err := s.findOne(ctx, "get user", s.users, id)
	if err != nil || doc == nil {
		return nil, err
	}
	u, diags := core.DecodeUser(doc)
	storage.ReportDiagnostics(ctx, s.observer, "user", u.ID, diags)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	return s.insert(ctx, "create user", s.users, core.EncodeUser(u))
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch storage.UserPatch) error {
	return s.set(ctx, "update user", s.users, id, patch.Document())
}

func (s *Store) decodeGroups(ctx context.Context, docs []core.Document) []core.Group {
	out := make([]core.Group, 0, len(docs))
	for _, doc := range docs {
		g, diags := core.DecodeGroup(doc)
		storage.ReportDiagnostics(ctx, s.observer, "group", g.ID, diags)
		out = append(out, g)
	}
	return out
}

func (s *Store) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	doc, err := s.findOne(ctx, "get group", s.groups, id)
	if err != nil || doc == nil {
		return nil, err
	}
	g := s.decodeGroups(ctx, []core.Document{doc})[0]
	return &g, nil
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error) {
	docs, err := s.find(ctx, "list groups for user", s.groups, bson.M{"members": userID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return s.decodeGroups(ctx, docs), nil
}

func (s *Store) ListGroups(ctx context.Context, filter storage.GroupFilter) ([]core.Group, error) {
	q := bson.M{}
	if filter.HeadID != "" {
		q["headId"] = filter.HeadID
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	docs, err := s.find(ctx, "list groups", s.groups, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return s.decodeGroups(ctx, docs), nil
}

func (s *Store) CreateGroup(ctx context.Context, g core.Group) error {
	return s.insert(ctx, "create group", s.groups, core.EncodeGroup(g))
}

func (s *Store) UpdateGroup(ctx context.Context, id string, patch storage.GroupPatch) error {
	return s.set(ctx, "update group", s.groups, id, patch.Document())
}

func (s *Store) AddCollectedFunds(ctx context.Context, id string, delta core.Money, at time.Time) error {
	return s.apply(ctx, "add collected funds", s.groups, id, bson.M{
		"$inc": bson.M{"collectedFunds": delta.Pesos()},
		"$set": bson.M{"updatedAt": core.Millis(at)},
	})
}

func (s *Store) decodeCollections(ctx context.Context, docs []core.Document) []core.Collection {
	out := make([]core.Collection, 0, len(docs))
	for _, doc := range docs {
		c, diags := core.DecodeCollection(doc)
		storage.ReportDiagnostics(ctx, s.observer, "collection", c.ID, diags)
		out = append(out, c)
	}
	return out
}

func (s *Store) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	doc, err := s.findOne(ctx, "get collection", s.collections, id)
	if err != nil || doc == nil {
		return nil, err
	}
	c := s.decodeCollections(ctx, []core.Document{doc})[0]
	return &c, nil
}

func collectionQuery(f storage.CollectionFilter) bson.M {
	q := bson.M{}
	if len(f.GroupIDs) > 0 {
		q["groupId"] = bson.M{"$in": f.GroupIDs}
	}
	if f.UserID != "" {
		q["userId"] = f.UserID
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q["status"] = bson.M{"$in": statuses}
	}
	if f.Round > 0 {
		q["round"] = f.Round
	}
	if !f.DueBefore.IsZero() {
		q["dueDate"] = bson.M{"$lt": core.Millis(f.DueBefore)}
	}
	return q
}

func (s *Store) ListCollections(ctx context.Context, filter storage.CollectionFilter) ([]core.Collection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	docs, err := s.find(ctx, "list collections", s.collections, collectionQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	return s.decodeCollections(ctx, docs), nil
}

func (s *Store) CreateCollection(ctx context.Context, c core.Collection) error {
	return s.insert(ctx, "create collection", s.collections, core.EncodeCollection(c))
}

func (s *Store) UpdateCollectionStatus(ctx context.Context, id string, update storage.CollectionStatusUpdate) error {
	const op = "update collection status"
	if update.From == "" {
		return s.set(ctx, op, s.collections, id, update.Document())
	}
	res, err := s.collections.UpdateOne(ctx, statusFilter(id, update.From), bson.M{"$set": bson.M(update.Document())})
	if err != nil {
		return storage.Wrap(op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	current, err := s.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return storage.Wrap(op, fmt.Errorf("%s %q: %w", s.collections.Name(), id, storage.ErrNotFound))
	}
	return &core.TransitionError{ID: id, From: current.Status, To: update.Status}
}

// statusFilter matches the collection only while it is still in status.
// Documents without a status decode as PENDING, so they match PENDING too.
func statusFilter(id string, status core.CollectionStatus) bson.M {
	if status == core.CollectionPending {
		return bson.M{"_id": id, "status": bson.M{"$in": bson.A{string(status), nil}}}
	}
	return bson.M{"_id": id, "status": string(status)}
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return s.set(ctx, "mark reminder sent", s.collections, id, core.Document{
		"reminderSent":     true,
		"lastReminderDate": core.Millis(at),
		"updatedAt":        core.Millis(at),
	})
}
