package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"paluwagan/internal/calculator"
	"paluwagan/internal/core"
	"paluwagan/internal/log"
	"paluwagan/internal/storage"
)

var (
	ErrGroupFull           = errors.New("group is full")
	ErrAlreadyMember       = errors.New("user is already a member")
	ErrNotMember           = errors.New("user is not a member")
	ErrRoleAlreadySelected = errors.New("role already selected")
	ErrGroupNotActive      = errors.New("group is not active")
)

// Notifier delivers reminder events to the owing member.
type Notifier interface {
	Emit(ctx context.Context, e core.ReminderEvent) error
}

// PaymentPublisher announces recorded payments.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, r core.PaymentReceipt) error
}

// Observer is told about ledger activity, typically to update metrics.
type Observer interface {
	PaymentRecorded(method core.PaymentMethod, amount core.Money)
	ReminderEmitted(kind core.ReminderKind, err error)
	RoundOpened(groupID string, round, collections int)
}

type noopObserver struct{}

func (noopObserver) PaymentRecorded(core.PaymentMethod, core.Money) {}
func (noopObserver) ReminderEmitted(core.ReminderKind, error)       {}
func (noopObserver) RoundOpened(string, int, int)                   {}

// LogNotifier writes reminder events to the log instead of delivering them.
type LogNotifier struct{}

func (LogNotifier) Emit(ctx context.Context, e core.ReminderEvent) error {
	slog.InfoContext(ctx, "Reminder",
		"collection_id", e.CollectionID,
		"user_id", e.UserID,
		"kind", string(e.Kind),
		"title", e.Title(),
		"message", e.Message())
	return nil
}

// GroupInput is what a head supplies when creating a group.
type GroupInput struct {
	Name               string
	Description        string
	ContributionAmount core.Money
	Frequency          core.Frequency
	StartDate          time.Time
	EndDate            time.Time
	MaxMembers         int
	TotalRounds        int
	TotalFunds         core.Money
	IsPublic           bool
	Members            []string // joined in addition to the head
}

// LedgerService orchestrates users, groups and collections over a Store.
type LedgerService struct {
	store      storage.Store
	notifier   Notifier
	payments   PaymentPublisher
	clock      core.Clock
	scheduler  *Scheduler
	trigger    ReminderTrigger
	observer   Observer
	newID      func() string
	maxMembers int
}

type Option func(*LedgerService)

func WithNotifier(n Notifier) Option { return func(s *LedgerService) { s.notifier = n } }

func WithPaymentPublisher(p PaymentPublisher) Option {
	return func(s *LedgerService) { s.payments = p }
}

func WithClock(c core.Clock) Option { return func(s *LedgerService) { s.clock = c } }

func WithScheduler(sc *Scheduler) Option { return func(s *LedgerService) { s.scheduler = sc } }

func WithReminderTrigger(t ReminderTrigger) Option {
	return func(s *LedgerService) { s.trigger = t }
}

func WithObserver(o Observer) Option { return func(s *LedgerService) { s.observer = o } }

func WithIDGenerator(f func() string) Option { return func(s *LedgerService) { s.newID = f } }

// WithMaxMembers caps group size below core.MaxGroupMembers.
func WithMaxMembers(n int) Option {
	return func(s *LedgerService) {
		if n > 0 && n <= core.MaxGroupMembers {
			s.maxMembers = n
		}
	}
}

func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:      store,
		notifier:   LogNotifier{},
		clock:      core.SystemClock{},
		scheduler:  NewScheduler(KeepAnchor),
		trigger:    NewReminderTrigger(0),
		observer:   noopObserver{},
		newID:      uuid.NewString,
		maxMembers: core.MaxGroupMembers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) now() time.Time { return s.clock.Now() }

func notFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, storage.ErrNotFound)
}

// SignUp validates the input and creates a user with no role.
func (s *LedgerService) SignUp(ctx context.Context, in core.SignUp) (*core.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u := core.User{
		ID:           s.newID(),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		PhoneNumber:  core.NormalizePhone(in.Phone),
		CreatedAt:    s.now(),
		ActiveGroups: []string{},
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	slog.InfoContext(ctx, "User signed up", "user_id", u.ID)
	return &u, nil
}

func (s *LedgerService) GetUser(ctx context.Context, id string) (*core.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("user", id)
	}
	return u, nil
}

// SelectRole sets the user's role. A role can only be chosen once.
func (s *LedgerService) SelectRole(ctx context.Context, userID string, role core.Role) (*core.User, error) {
	if !role.IsValid() {
		return nil, core.ValidationError{Field: "role", Message: "must be head or member"}
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != core.RoleUnset {
		return nil, fmt.Errorf("select role for %s: %w", userID, ErrRoleAlreadySelected)
	}

	now := s.now()
	if err := s.store.UpdateUser(ctx, userID, storage.UserPatch{Role: &role, RoleSelectedAt: &now}); err != nil {
		return nil, fmt.Errorf("select role: %w", err)
	}
	u.Role, u.RoleSelectedAt = role, now
	return u, nil
}

// CreateGroup validates the input, stores the group with the head as first
// member and adds it to every member's active groups.
func (s *LedgerService) CreateGroup(ctx context.Context, headID string, in GroupInput) (*core.Group, error) {
	head, err := s.GetUser(ctx, headID)
	if err != nil {
		return nil, err
	}
	if head.Role != core.RoleHead {
		return nil, core.ValidationError{Field: "headId", Message: "only group heads can create groups"}
	}

	now := s.now()
	g := core.NewGroup()
	g.ID = s.newID()
	g.Name = strings.TrimSpace(in.Name)
	g.Description = strings.TrimSpace(in.Description)
	g.HeadID = headID
	g.ContributionAmount = in.ContributionAmount
	g.IsPublic = in.IsPublic
	g.CreatedAt, g.UpdatedAt = now, now
	if in.Frequency != "" {
		g.Frequency = in.Frequency
	}
	if in.MaxMembers != 0 {
		g.MaxMembers = in.MaxMembers
	} else {
		g.MaxMembers = s.maxMembers
	}
	if g.MaxMembers > s.maxMembers {
		return nil, core.ValidationError{Field: "maxMembers", Message: fmt.Sprintf("must be at most %d", s.maxMembers)}
	}

	g.Members = []string{headID}
	for _, id := range in.Members {
		if id != "" && !slices.Contains(g.Members, id) {
			g.Members = append(g.Members, id)
		}
	}
	g.CollectionOrder = slices.Clone(g.Members)

	g.TotalRounds = in.TotalRounds
	if g.TotalRounds == 0 {
		g.TotalRounds = g.MaxMembers
	}
	g.TotalFunds = in.TotalFunds
	if g.TotalFunds.Cents == 0 {
		g.TotalFunds = g.ContributionAmount.Times(g.MaxMembers * g.TotalRounds)
	}
	g.StartDate = in.StartDate
	if g.StartDate.IsZero() {
		g.StartDate = now
	}
	g.NextCollectionDate = g.StartDate
	g.EndDate = in.EndDate
	if g.EndDate.IsZero() && g.Frequency.IsValid() && g.TotalRounds > 0 {
		if dates, err := s.scheduler.DueDates(g.Frequency, g.StartDate, g.TotalRounds); err == nil && len(dates) > 0 {
			g.EndDate = dates[len(dates)-1]
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(g.Members) > g.MaxMembers {
		return nil, fmt.Errorf("create group: %w", ErrGroupFull)
	}

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	for _, id := range g.Members {
		if err := s.addActiveGroup(ctx, id, g.ID); err != nil {
			slog.WarnContext(ctx, "Failed to add group to member", "user_id", id, "group_id", g.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Group created",
		"group_id", g.ID,
		"head_id", headID,
		"members", len(g.Members),
		"frequency", string(g.Frequency))
	return &g, nil
}

func (s *LedgerService) addActiveGroup(ctx context.Context, userID, groupID string) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if slices.Contains(u.ActiveGroups, groupID) {
		return nil
	}
	groups := append(slices.Clone(u.ActiveGroups), groupID)
	return s.store.UpdateUser(ctx, userID, storage.UserPatch{ActiveGroups: &groups})
}

func (s *LedgerService) removeActiveGroup(ctx context.Context, userID, groupID string) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	groups := slices.DeleteFunc(slices.Clone(u.ActiveGroups), func(id string) bool { return id == groupID })
	return s.store.UpdateUser(ctx, userID, storage.UserPatch{ActiveGroups: &groups})
}

func (s *LedgerService) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, notFound("group", id)
	}
	return g, nil
}

func (s *LedgerService) ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// JoinGroup adds the user to an active group with a free slot. The user joins
// the end of the rotation.
func (s *LedgerService) JoinGroup(ctx context.Context, groupID, userID string) (*core.Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, fmt.Errorf("join %s: %w", groupID, ErrGroupNotActive)
	}
	if g.HasMember(userID) {
		return nil, fmt.Errorf("join %s: %w", groupID, ErrAlreadyMember)
	}
	if g.IsFull() {
		return nil, fmt.Errorf("join %s: %w", groupID, ErrGroupFull)
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	members := append(slices.Clone(g.Members), userID)
	order := append(slices.Clone(g.CollectionOrder), userID)
	if err := s.store.UpdateGroup(ctx, groupID, storage.GroupPatch{
		Members:         &members,
		CollectionOrder: &order,
		UpdatedAt:       s.now(),
	}); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	if err := s.addActiveGroup(ctx, userID, groupID); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}

	g.Members, g.CollectionOrder = members, order
	slog.InfoContext(ctx, "Member joined group", "group_id", groupID, "user_id", userID)
	return g, nil
}

// LeaveGroup removes a member from an active group. The head cannot leave.
func (s *LedgerService) LeaveGroup(ctx context.Context, groupID, userID string) (*core.Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, fmt.Errorf("leave %s: %w", groupID, ErrGroupNotActive)
	}
	if !g.HasMember(userID) {
		return nil, fmt.Errorf("leave %s: %w", groupID, ErrNotMember)
	}
	if userID == g.HeadID {
		return nil, core.ValidationError{Field: "userId", Message: "the group head cannot leave the group"}
	}

	drop := func(id string) bool { return id == userID }
	members := slices.DeleteFunc(slices.Clone(g.Members), drop)
	order := slices.DeleteFunc(slices.Clone(g.CollectionOrder), drop)
	if err := s.store.UpdateGroup(ctx, groupID, storage.GroupPatch{
		Members:         &members,
		CollectionOrder: &order,
		UpdatedAt:       s.now(),
	}); err != nil {
		return nil, fmt.Errorf("leave group: %w", err)
	}
	if err := s.removeActiveGroup(ctx, userID, groupID); err != nil {
		slog.WarnContext(ctx, "Failed to remove group from member", "user_id", userID, "group_id", groupID, "error", err)
	}

	g.Members, g.CollectionOrder = members, order
	slog.InfoContext(ctx, "Member left group", "group_id", groupID, "user_id", userID)
	return g, nil
}

// AdvanceCycle opens the current round's collections for every payer that
// has none yet. Once the round is complete it finishes the group after its
// last round, or moves to the next round and opens that one.
func (s *LedgerService) AdvanceCycle(ctx context.Context, groupID string) (*core.Group, []core.Collection, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if !g.IsActive() {
		return nil, nil, fmt.Errorf("advance %s: %w", groupID, ErrGroupNotActive)
	}

	existing, err := s.store.ListCollections(ctx, storage.CollectionFilter{
		GroupIDs: []string{groupID},
		Round:    g.CurrentRound,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("advance cycle: %w", err)
	}
	if missing := missingPayers(*g, existing); len(existing) == 0 || len(missing) > 0 {
		opened, err := s.openRound(ctx, *g, missing)
		return g, opened, err
	}

	now := s.now()
	if g.CurrentRound >= g.TotalRounds {
		status := core.GroupCompleted
		if err := s.store.UpdateGroup(ctx, groupID, storage.GroupPatch{Status: &status, UpdatedAt: now}); err != nil {
			return nil, nil, fmt.Errorf("complete group: %w", err)
		}
		g.Status, g.UpdatedAt = status, now
		slog.InfoContext(ctx, "Group completed", "group_id", groupID, "rounds", g.TotalRounds)
		return g, nil, nil
	}

	next, err := s.scheduler.NextDate(g.Frequency, g.NextCollectionDate)
	if err != nil {
		return nil, nil, fmt.Errorf("advance %s: %w", groupID, err)
	}
	round := g.CurrentRound + 1
	if err := s.store.UpdateGroup(ctx, groupID, storage.GroupPatch{
		CurrentRound:       &round,
		NextCollectionDate: &next,
		UpdatedAt:          now,
	}); err != nil {
		return nil, nil, fmt.Errorf("advance cycle: %w", err)
	}
	g.CurrentRound, g.NextCollectionDate, g.UpdatedAt = round, next, now

	opened, err := s.openRound(ctx, *g, roundPayers(*g))
	return g, opened, err
}

// roundPayers lists who owes a collection each round, in rotation order.
func roundPayers(g core.Group) []string {
	if len(g.CollectionOrder) > 0 {
		return g.CollectionOrder
	}
	return g.Members
}

// missingPayers returns the payers with no collection among existing. A round
// is open only once this is empty.
func missingPayers(g core.Group, existing []core.Collection) []string {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.UserID] = true
	}
	var missing []string
	for _, userID := range roundPayers(g) {
		if !have[userID] {
			missing = append(missing, userID)
		}
	}
	return missing
}

// openRound creates a pending collection for each of payers, due at the
// group's next collection date. A failure leaves the remaining payers missing
// so the next advance fills them in.
func (s *LedgerService) openRound(ctx context.Context, g core.Group, payers []string) ([]core.Collection, error) {
	now := s.now()
	opened := make([]core.Collection, 0, len(payers))
	for _, userID := range payers {
		c := core.NewCollection()
		c.ID = s.newID()
		c.GroupID = g.ID
		c.UserID = userID
		c.Amount = g.ContributionAmount
		c.DueDate = g.NextCollectionDate
		c.Round = g.CurrentRound
		c.CreatedAt, c.UpdatedAt = now, now
		if err := s.store.CreateCollection(ctx, c); err != nil {
			return opened, fmt.Errorf("open round %d: %w", g.CurrentRound, err)
		}
		opened = append(opened, c)
	}
	s.observer.RoundOpened(g.ID, g.CurrentRound, len(opened))
	slog.InfoContext(ctx, "Round opened",
		"group_id", g.ID,
		"round", g.CurrentRound,
		"collections", len(opened),
		"due_date", g.NextCollectionDate)
	return opened, nil
}

func (s *LedgerService) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("collection", id)
	}
	return c, nil
}

// ListGroupCollections returns a group's collections, one round only when
// round is positive.
func (s *LedgerService) ListGroupCollections(ctx context.Context, groupID string, round int) ([]core.Collection, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListCollections(ctx, storage.CollectionFilter{GroupIDs: []string{groupID}, Round: round})
}

// RecordPayment marks an open collection PAID, adds it to the group's
// collected funds and publishes a receipt. Once the collection is PAID the
// payment stands: funds and publishing failures are only logged.
func (s *LedgerService) RecordPayment(ctx context.Context, collectionID string, method core.PaymentMethod, reference string) (*core.Collection, error) {
	if !method.IsValid() {
		return nil, core.ValidationError{Field: "paymentMethod", Message: "must be GCASH, PAYMAYA, BANK or CASH"}
	}
	c, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if err := c.CheckTransition(core.CollectionPaid); err != nil {
		return nil, err
	}

	now := s.now()
	reference = strings.TrimSpace(reference)
	if err := s.store.UpdateCollectionStatus(ctx, collectionID, storage.CollectionStatusUpdate{
		From:      c.Status,
		Status:    core.CollectionPaid,
		Method:    &method,
		Reference: &reference,
		PaidDate:  &now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	c.Status, c.PaymentMethod, c.PaymentReference, c.PaidDate, c.UpdatedAt = core.CollectionPaid, method, reference, &now, now

	if err := s.store.AddCollectedFunds(ctx, c.GroupID, c.Amount, now); err != nil {
		slog.ErrorContext(ctx, "Failed to add payment to group funds",
			"collection_id", c.ID,
			"group_id", c.GroupID,
			"amount_cents", c.Amount.Cents,
			"error", err)
	}

	var headID string
	if g, err := s.store.GetGroup(ctx, c.GroupID); err != nil {
		slog.WarnContext(ctx, "Failed to load group for payment", "group_id", c.GroupID, "error", err)
	} else if g != nil {
		headID = g.HeadID
	}

	s.observer.PaymentRecorded(method, c.Amount)
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogPaymentRecorded(ctx, c.ID, c.GroupID, c.UserID, c.Round, c.Amount.Cents, string(method))

	s.publishPayment(ctx, core.PaymentReceipt{
		CollectionID: c.ID,
		GroupID:      c.GroupID,
		HeadID:       headID,
		UserID:       c.UserID,
		Amount:       c.Amount,
		Method:       method,
		Reference:    reference,
		Round:        c.Round,
		PaidAt:       now,
	})
	return c, nil
}

func (s *LedgerService) publishPayment(ctx context.Context, r core.PaymentReceipt) {
	if s.payments == nil {
		slog.DebugContext(ctx, "Payment publisher not available, skipping receipt", "collection_id", r.CollectionID)
		return
	}
	if err := s.payments.PublishPaymentRecorded(ctx, r); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment receipt",
			"collection_id", r.CollectionID, "error", err)
	}
}

func (s *LedgerService) setStatus(ctx context.Context, id string, next core.CollectionStatus) (*core.Collection, error) {
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.CheckTransition(next); err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.store.UpdateCollectionStatus(ctx, id, storage.CollectionStatusUpdate{From: c.Status, Status: next, UpdatedAt: now}); err != nil {
		return nil, fmt.Errorf("set collection %s: %w", strings.ToLower(string(next)), err)
	}
	c.Status, c.UpdatedAt = next, now
	return c, nil
}

// CancelCollection moves an open collection to CANCELLED.
func (s *LedgerService) CancelCollection(ctx context.Context, id string) (*core.Collection, error) {
	c, err := s.setStatus(ctx, id, core.CollectionCancelled)
	if err == nil {
		slog.InfoContext(ctx, "Collection cancelled", "collection_id", id)
	}
	return c, err
}

// MarkOverdue moves a PENDING collection whose due date has passed to OVERDUE.
func (s *LedgerService) MarkOverdue(ctx context.Context, id string) (*core.Collection, error) {
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == core.CollectionPending && !calculator.IsLate(*c, s.now()) {
		return nil, core.ValidationError{Field: "dueDate", Message: "collection is not past due"}
	}
	return s.setStatus(ctx, id, core.CollectionOverdue)
}

func (s *LedgerService) MarkReminderSent(ctx context.Context, id string) error {
	if err := s.store.MarkReminderSent(ctx, id, s.now()); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// EvaluateReminder reports the reminder a collection would trigger now.
func (s *LedgerService) EvaluateReminder(ctx context.Context, id string) (core.ReminderEvent, bool, error) {
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return core.ReminderEvent{}, false, err
	}
	g, err := s.GetGroup(ctx, c.GroupID)
	if err != nil {
		return core.ReminderEvent{}, false, err
	}
	e, ok := s.trigger.Evaluate(*c, *g, s.now())
	return e, ok, nil
}

// SendReminder evaluates the trigger for one collection at now, emits the
// event and records it as sent. It reports whether an event was emitted.
func (s *LedgerService) SendReminder(ctx context.Context, c core.Collection, g core.Group, now time.Time) (bool, error) {
	e, ok := s.trigger.Evaluate(c, g, now)
	if !ok {
		return false, nil
	}
	err := s.notifier.Emit(ctx, e)
	s.observer.ReminderEmitted(e.Kind, err)
	if err != nil {
		return false, fmt.Errorf("emit reminder %s: %w", c.ID, err)
	}
	if err := s.store.MarkReminderSent(ctx, c.ID, now); err != nil {
		return true, fmt.Errorf("mark reminder sent: %w", err)
	}
	return true, nil
}

// UpcomingCollections returns the user's pending collections, soonest first.
func (s *LedgerService) UpcomingCollections(ctx context.Context, userID string, limit int) ([]core.Collection, error) {
	if limit <= 0 {
		limit = calculator.DefaultUpcomingLimit
	}
	cs, err := s.store.ListCollections(ctx, storage.CollectionFilter{
		UserID:   userID,
		Statuses: []core.CollectionStatus{core.CollectionPending},
	})
	if err != nil {
		return nil, fmt.Errorf("upcoming collections: %w", err)
	}
	return calculator.Upcoming(cs, limit), nil
}

// groupCollections fetches the collections of every group concurrently and
// returns them in group order.
func (s *LedgerService) groupCollections(ctx context.Context, groups []core.Group, userID string) ([]core.Collection, error) {
	results := make([][]core.Collection, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, g := range groups {
		eg.Go(func() error {
			cs, err := s.store.ListCollections(egCtx, storage.CollectionFilter{
				GroupIDs: []string{g.ID},
				UserID:   userID,
			})
			if err != nil {
				return fmt.Errorf("collections of %s: %w", g.ID, err)
			}
			results[i] = cs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

func (s *LedgerService) HeadDashboard(ctx context.Context, userID string) (core.HeadDashboard, error) {
	groups, err := s.store.ListGroups(ctx, storage.GroupFilter{HeadID: userID})
	if err != nil {
		return core.HeadDashboard{}, fmt.Errorf("head dashboard: %w", err)
	}
	cs, err := s.groupCollections(ctx, groups, "")
	if err != nil {
		return core.HeadDashboard{}, fmt.Errorf("head dashboard: %w", err)
	}
	return calculator.HeadDashboard(userID, groups, cs, s.now()), nil
}

func (s *LedgerService) MemberDashboard(ctx context.Context, userID string) (core.MemberDashboard, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return core.MemberDashboard{}, fmt.Errorf("member dashboard: %w", err)
	}
	cs, err := s.groupCollections(ctx, groups, userID)
	if err != nil {
		return core.MemberDashboard{}, fmt.Errorf("member dashboard: %w", err)
	}
	return calculator.MemberDashboard(userID, groups, cs), nil
}
