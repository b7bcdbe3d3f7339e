package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"paluwagan/internal/core"
)

// ErrNotFound is returned by updates that target a record that does not exist.
// Reads of a missing record return a nil value and a nil error instead.
var ErrNotFound = errors.New("record not found")

// StorageError wraps a driver failure with the operation that produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise a *StorageError for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the persistence port used by the services.
type Store interface {
	GetUser(ctx context.Context, id string) (*core.User, error)
	CreateUser(ctx context.Context, u core.User) error
	UpdateUser(ctx context.Context, id string, patch UserPatch) error

	GetGroup(ctx context.Context, id string) (*core.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error)
	ListGroups(ctx context.Context, filter GroupFilter) ([]core.Group, error)
	CreateGroup(ctx context.Context, g core.Group) error
	UpdateGroup(ctx context.Context, id string, patch GroupPatch) error
	// AddCollectedFunds adds delta to the group's collected funds in a single
	// write so concurrent payments are all counted.
	AddCollectedFunds(ctx context.Context, id string, delta core.Money, at time.Time) error

	GetCollection(ctx context.Context, id string) (*core.Collection, error)
	ListCollections(ctx context.Context, filter CollectionFilter) ([]core.Collection, error)
	CreateCollection(ctx context.Context, c core.Collection) error
	UpdateCollectionStatus(ctx context.Context, id string, update CollectionStatusUpdate) error
	MarkReminderSent(ctx context.Context, id string, at time.Time) error

	Close() error
}

// UserPatch lists the user fields to change; nil fields are left alone.
type UserPatch struct {
	FullName        *string
	PhoneNumber     *string
	Role            *core.Role
	RoleSelectedAt  *time.Time
	ActiveGroups    *[]string
	TotalFunds      *core.Money
	ProfileImageURL *string
	FCMToken        *string
	IsVerified      *bool
}

func (p UserPatch) Apply(u *core.User) {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.RoleSelectedAt != nil {
		u.RoleSelectedAt = *p.RoleSelectedAt
	}
	if p.ActiveGroups != nil {
		u.ActiveGroups = slices.Clone(*p.ActiveGroups)
	}
	if p.TotalFunds != nil {
		u.TotalFunds = *p.TotalFunds
	}
	if p.ProfileImageURL != nil {
		u.ProfileImageURL = *p.ProfileImageURL
	}
	if p.FCMToken != nil {
		u.FCMToken = *p.FCMToken
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
}

// Document returns the persisted keys the patch touches, encoded the same way
// core.EncodeUser encodes them.
func (p UserPatch) Document() core.Document {
	var u core.User
	p.Apply(&u)
	full := core.EncodeUser(u)
	out := core.Document{}
	pick := func(set bool, key string) {
		if set {
			out[key] = full[key]
		}
	}
	pick(p.FullName != nil, "fullName")
	pick(p.PhoneNumber != nil, "phoneNumber")
	pick(p.Role != nil, "role")
	pick(p.RoleSelectedAt != nil, "roleSelectedAt")
	pick(p.ActiveGroups != nil, "activeGroups")
	pick(p.TotalFunds != nil, "totalFunds")
	pick(p.ProfileImageURL != nil, "profileImageUrl")
	pick(p.FCMToken != nil, "fcmToken")
	pick(p.IsVerified != nil, "isVerified")
	return out
}

// GroupPatch lists the group fields to change. UpdatedAt is always written.
type GroupPatch struct {
	Name               *string
	Description        *string
	Members            *[]string
	CollectionOrder    *[]string
	TotalFunds         *core.Money
	CollectedFunds     *core.Money
	NextCollectionDate *time.Time
	CurrentRound       *int
	TotalRounds        *int
	Status             *core.GroupStatus
	UpdatedAt          time.Time
}

func (p GroupPatch) Apply(g *core.Group) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Members != nil {
		g.Members = slices.Clone(*p.Members)
	}
	if p.CollectionOrder != nil {
		g.CollectionOrder = slices.Clone(*p.CollectionOrder)
	}
	if p.TotalFunds != nil {
		g.TotalFunds = *p.TotalFunds
	}
	if p.CollectedFunds != nil {
		g.CollectedFunds = *p.CollectedFunds
	}
	if p.NextCollectionDate != nil {
		g.NextCollectionDate = *p.NextCollectionDate
	}
	if p.CurrentRound != nil {
		g.CurrentRound = *p.CurrentRound
	}
	if p.TotalRounds != nil {
		g.TotalRounds = *p.TotalRounds
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	g.UpdatedAt = p.UpdatedAt
}

func (p GroupPatch) Document() core.Document {
	var g core.Group
	p.Apply(&g)
	full := core.EncodeGroup(g)
	out := core.Document{"updatedAt": full["updatedAt"]}
	pick := func(set bool, key string) {
		if set {
			out[key] = full[key]
		}
	}
	pick(p.Name != nil, "name")
	pick(p.Description != nil, "description")
	pick(p.Members != nil, "members")
	pick(p.CollectionOrder != nil, "collectionOrder")
	pick(p.TotalFunds != nil, "totalFunds")
	pick(p.CollectedFunds != nil, "collectedFunds")
	pick(p.NextCollectionDate != nil, "nextCollectionDate")
	pick(p.CurrentRound != nil, "currentRound")
	pick(p.TotalRounds != nil, "totalRounds")
	pick(p.Status != nil, "status")
	return out
}

// CollectionStatusUpdate moves a collection to Status. Optional payment
// details are written only when set. When From is set the write only applies
// to a collection still in that status; otherwise the store returns a
// *core.TransitionError carrying the status it found.
type CollectionStatusUpdate struct {
	From      core.CollectionStatus
	Status    core.CollectionStatus
	Method    *core.PaymentMethod
	Reference *string
	PaidDate  *time.Time
	UpdatedAt time.Time
}

func (u CollectionStatusUpdate) Apply(c *core.Collection) {
	c.Status = u.Status
	if u.Method != nil {
		c.PaymentMethod = *u.Method
	}
	if u.Reference != nil {
		c.PaymentReference = *u.Reference
	}
	if u.PaidDate != nil {
		t := *u.PaidDate
		c.PaidDate = &t
	}
	c.UpdatedAt = u.UpdatedAt
}

// Check reports the transition error for a collection found in current, or
// nil when the update may be written.
func (u CollectionStatusUpdate) Check(id string, current core.CollectionStatus) error {
	if u.From == "" || current == u.From {
		return nil
	}
	return &core.TransitionError{ID: id, From: current, To: u.Status}
}

func (u CollectionStatusUpdate) Document() core.Document {
	out := core.Document{
		"status":    string(u.Status),
		"updatedAt": core.Millis(u.UpdatedAt),
	}
	if u.Method != nil {
		out["paymentMethod"] = string(*u.Method)
	}
	if u.Reference != nil {
		out["paymentReference"] = *u.Reference
	}
	if u.PaidDate != nil {
		out["paidDate"] = core.Millis(*u.PaidDate)
	}
	return out
}

// GroupFilter selects groups; zero fields match everything.
type GroupFilter struct {
	HeadID string
	Status core.GroupStatus
}

func (f GroupFilter) Matches(g core.Group) bool {
	if f.HeadID != "" && g.HeadID != f.HeadID {
		return false
	}
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	return true
}

// CollectionFilter selects collections; zero fields match everything.
// Results are ordered by due date ascending.
type CollectionFilter struct {
	GroupIDs  []string
	UserID    string
	Statuses  []core.CollectionStatus
	Round     int
	DueBefore time.Time
	Limit     int
}

func (f CollectionFilter) Matches(c core.Collection) bool {
	if len(f.GroupIDs) > 0 && !slices.Contains(f.GroupIDs, c.GroupID) {
		return false
	}
	if f.UserID != "" && c.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, c.Status) {
		return false
	}
	if f.Round > 0 && c.Round != f.Round {
		return false
	}
	if !f.DueBefore.IsZero() && !c.DueDate.Before(f.DueBefore) {
		return false
	}
	return true
}

// SortAndLimit orders collections by due date, then id, and applies Limit.
func (f CollectionFilter) SortAndLimit(cs []core.Collection) []core.Collection {
	slices.SortStableFunc(cs, func(a, b core.Collection) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if f.Limit > 0 && len(cs) > f.Limit {
		cs = cs[:f.Limit]
	}
	return cs
}
