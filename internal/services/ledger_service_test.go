package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paluwagan/internal/core"
	"paluwagan/internal/storage"
	"paluwagan/internal/storage/memory"
)

var ledgerNow = time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.ReminderEvent
	err    error
}

func (n *recordingNotifier) Emit(_ context.Context, e core.ReminderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, e)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	receipts []core.PaymentReceipt
	err      error
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, r core.PaymentReceipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, r)
	return p.err
}

type recordingObserver struct {
	mu       sync.Mutex
	payments int
	emitted  map[core.ReminderKind]int
	rounds   []int
}

func (o *recordingObserver) PaymentRecorded(core.PaymentMethod, core.Money) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.payments++
}

func (o *recordingObserver) ReminderEmitted(kind core.ReminderKind, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.emitted == nil {
		o.emitted = map[core.ReminderKind]int{}
	}
	if err == nil {
		o.emitted[kind]++
	}
}

func (o *recordingObserver) RoundOpened(_ string, round, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rounds = append(o.rounds, round)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
}

type ledgerFixture struct {
	svc       *LedgerService
	store     *memory.Store
	notifier  *recordingNotifier
	publisher *recordingPublisher
	observer  *recordingObserver
	clock     *core.FixedClock
}

type movableClock struct{ c *core.FixedClock }

func (m movableClock) Now() time.Time { return m.c.T }

func newLedgerFixture(t *testing.T, opts ...Option) *ledgerFixture {
	t.Helper()
	return newWrappedLedgerFixture(t, nil, opts...)
}

// newWrappedLedgerFixture runs the service over wrap(memory store) so tests
// can inject store faults. f.store stays the unwrapped memory store.
func newWrappedLedgerFixture(t *testing.T, wrap func(storage.Store) storage.Store, opts ...Option) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		store:     memory.NewStore(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		observer:  &recordingObserver{},
		clock:     &core.FixedClock{T: ledgerNow},
	}
	base := []Option{
		WithNotifier(f.notifier),
		WithPaymentPublisher(f.publisher),
		WithObserver(f.observer),
		WithClock(movableClock{f.clock}),
		WithIDGenerator(sequentialIDs()),
	}
	var store storage.Store = f.store
	if wrap != nil {
		store = wrap(f.store)
	}
	f.svc = NewLedgerService(store, append(base, opts...)...)
	return f
}

func (f *ledgerFixture) signUp(t *testing.T, name, email string, role core.Role) *core.User {
	t.Helper()
	u, err := f.svc.SignUp(context.Background(), core.SignUp{
		FullName: name,
		Email:    email,
		Phone:    "+63 917 123 4567",
		Password: "secret1",
	})
	require.NoError(t, err)
	if role != core.RoleUnset {
		u, err = f.svc.SelectRole(context.Background(), u.ID, role)
		require.NoError(t, err)
	}
	return u
}

// newGroup creates a monthly group of head, ana and ben with a 1,000 peso
// contribution and three rounds.
func (f *ledgerFixture) newGroup(t *testing.T) (*core.Group, *core.User, *core.User, *core.User) {
	t.Helper()
	head := f.signUp(t, "Head Cruz", "head@example.com", core.RoleHead)
	ana := f.signUp(t, "Ana Reyes", "ana@example.com", core.RoleMember)
	ben := f.signUp(t, "Ben Santos", "ben@example.com", core.RoleMember)
	g, err := f.svc.CreateGroup(context.Background(), head.ID, GroupInput{
		Name:               "Office Paluwagan",
		ContributionAmount: core.Money{Cents: 1000_00},
		Frequency:          core.Monthly,
		StartDate:          ledgerNow,
		MaxMembers:         4,
		TotalRounds:        3,
		Members:            []string{ana.ID, ben.ID},
	})
	require.NoError(t, err)
	return g, head, ana, ben
}

func TestLedgerService_SignUp(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	u, err := f.svc.SignUp(ctx, core.SignUp{FullName: " Juan ", Email: "juan@example.com", Phone: "0917-123-4567", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Juan", u.FullName)
	assert.Equal(t, "9171234567", u.PhoneNumber)
	assert.Equal(t, core.RoleUnset, u.Role)

	stored, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "juan@example.com", stored.Email)

	_, err = f.svc.SignUp(ctx, core.SignUp{FullName: "J", Email: "bad", Phone: "123", Password: "x"})
	var verrs core.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
}

func TestLedgerService_SelectRole(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	u := f.signUp(t, "Maria Santos", "maria@example.com", core.RoleUnset)

	_, err := f.svc.SelectRole(ctx, u.ID, core.Role("admin"))
	var verr core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role", verr.Field)

	got, err := f.svc.SelectRole(ctx, u.ID, core.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, core.RoleMember, got.Role)
	assert.True(t, got.RoleSelectedAt.Equal(ledgerNow))

	_, err = f.svc.SelectRole(ctx, u.ID, core.RoleHead)
	assert.ErrorIs(t, err, ErrRoleAlreadySelected)

	_, err = f.svc.SelectRole(ctx, "ghost", core.RoleHead)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerService_CreateGroup(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, head, ana, ben := f.newGroup(t)

	assert.Equal(t, []string{head.ID, ana.ID, ben.ID}, g.Members)
	assert.Equal(t, g.Members, g.CollectionOrder)
	assert.Equal(t, core.GroupActive, g.Status)
	assert.Equal(t, 1, g.CurrentRound)
	assert.True(t, g.NextCollectionDate.Equal(ledgerNow))
	// 1,000 x 4 slots x 3 rounds
	assert.Equal(t, core.Money{Cents: 12000_00}, g.TotalFunds)
	// third due date of a monthly rotation from Jan 31
	assert.Equal(t, time.Date(2024, 3, 29, 9, 0, 0, 0, time.UTC), g.EndDate)

	stored, err := f.svc.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Name, stored.Name)

	reloaded, err := f.svc.GetUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, reloaded.ActiveGroups)

	forBen, err := f.svc.ListGroupsForUser(ctx, ben.ID)
	require.NoError(t, err)
	assert.Len(t, forBen, 1)
}

func TestLedgerService_CreateGroupValidation(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	head := f.signUp(t, "Head Cruz", "head@example.com", core.RoleHead)
	member := f.signUp(t, "Ana Reyes", "ana@example.com", core.RoleMember)

	valid := GroupInput{Name: "Barkada", ContributionAmount: core.Money{Cents: 500_00}}

	tests := []struct {
		name   string
		headID string
		in     func(GroupInput) GroupInput
		field  string
	}{
		{"member cannot create", member.ID, func(in GroupInput) GroupInput { return in }, "headId"},
		{"short name", head.ID, func(in GroupInput) GroupInput { in.Name = "B"; return in }, "name"},
		{"amount too small", head.ID, func(in GroupInput) GroupInput { in.ContributionAmount = core.Money{Cents: 99_99}; return in }, "contributionAmount"},
		{"unknown frequency", head.ID, func(in GroupInput) GroupInput { in.Frequency = "DAILY"; return in }, "frequency"},
		{"too many slots", head.ID, func(in GroupInput) GroupInput { in.MaxMembers = 13; return in }, "maxMembers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateGroup(ctx, tt.headID, tt.in(valid))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	_, err := f.svc.CreateGroup(ctx, head.ID, GroupInput{
		Name:               "Tiny",
		ContributionAmount: core.Money{Cents: 500_00},
		MaxMembers:         1,
		Members:            []string{member.ID},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "members")
}

func TestLedgerService_MaxMembersOption(t *testing.T) {
	f := newLedgerFixture(t, WithMaxMembers(5))
	head := f.signUp(t, "Head Cruz", "head@example.com", core.RoleHead)

	g, err := f.svc.CreateGroup(context.Background(), head.ID, GroupInput{Name: "Barkada", ContributionAmount: core.Money{Cents: 500_00}})
	require.NoError(t, err)
	assert.Equal(t, 5, g.MaxMembers)
	assert.Equal(t, 5, g.TotalRounds)

	_, err = f.svc.CreateGroup(context.Background(), head.ID, GroupInput{Name: "Barkada", ContributionAmount: core.Money{Cents: 500_00}, MaxMembers: 6})
	assert.Error(t, err)
}

func TestLedgerService_JoinAndLeave(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, head, ana, _ := f.newGroup(t)
	carlo := f.signUp(t, "Carlo Lim", "carlo@example.com", core.RoleMember)
	dina := f.signUp(t, "Dina Tan", "dina@example.com", core.RoleMember)

	_, err := f.svc.JoinGroup(ctx, g.ID, ana.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	joined, err := f.svc.JoinGroup(ctx, g.ID, carlo.ID)
	require.NoError(t, err)
	assert.Equal(t, carlo.ID, joined.CollectionOrder[len(joined.CollectionOrder)-1])

	_, err = f.svc.JoinGroup(ctx, g.ID, dina.ID)
	assert.ErrorIs(t, err, ErrGroupFull)


	_, err = f.svc.LeaveGroup(ctx, g.ID, head.ID)
	var verr core.ValidationError
	assert.ErrorAs(t, err, &verr)

	left, err := f.svc.LeaveGroup(ctx, g.ID, ana.ID)
	require.NoError(t, err)
	assert.NotContains(t, left.Members, ana.ID)
	assert.NotContains(t, left.CollectionOrder, ana.ID)

	reloaded, err := f.svc.GetUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.ActiveGroups)

	_, err = f.svc.LeaveGroup(ctx, g.ID, ana.ID)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.svc.JoinGroup(ctx, "missing", dina.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerService_JoinInactiveGroup(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, _, _, _ := f.newGroup(t)
	carlo := f.signUp(t, "Carlo Lim", "carlo@example.com", core.RoleMember)

	status := core.GroupCompleted
	require.NoError(t, f.store.UpdateGroup(ctx, g.ID, storage.GroupPatch{Status: &status, UpdatedAt: ledgerNow}))

	_, err := f.svc.JoinGroup(ctx, g.ID, carlo.ID)
	assert.ErrorIs(t, err, ErrGroupNotActive)
}

func TestLedgerService_AdvanceCycle(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, head, _, _ := f.newGroup(t)

	// first call opens round one
	got, opened, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentRound)
	require.Len(t, opened, 3)
	assert.Equal(t, head.ID, opened[0].UserID)
	for _, c := range opened {
		assert.Equal(t, core.CollectionPending, c.Status)
		assert.True(t, c.DueDate.Equal(ledgerNow))
		assert.Equal(t, core.Money{Cents: 1000_00}, c.Amount)
	}

	got, opened, err = f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentRound)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), got.NextCollectionDate)
	require.Len(t, opened, 3)
	assert.Equal(t, 2, opened[0].Round)

	_, _, err = f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)

	got, opened, err = f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, opened)
	assert.Equal(t, core.GroupCompleted, got.Status)

	_, _, err = f.svc.AdvanceCycle(ctx, g.ID)
	assert.ErrorIs(t, err, ErrGroupNotActive)

	all, err := f.svc.ListGroupCollections(ctx, g.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 9)
	assert.Equal(t, []int{1, 2, 3}, f.observer.rounds)
}

func TestLedgerService_AdvanceCycleUnknownFrequency(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, WithScheduler(NewScheduler(RejectUnknown)))
	g, _, _, _ := f.newGroup(t)

	f.store.Put(core.GroupsCollection, g.ID, func() core.Document {
		doc := core.EncodeGroup(*g)
		doc["frequency"] = "DAILY"
		return doc
	}())

	_, _, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)
	_, _, err = f.svc.AdvanceCycle(ctx, g.ID)
	assert.ErrorIs(t, err, core.ErrUnknownFrequency)
}

func TestLedgerService_RecordPayment(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, head, ana, _ := f.newGroup(t)
	_, opened, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)
	anaCol := opened[1]
	require.Equal(t, ana.ID, anaCol.UserID)

	_, err = f.svc.RecordPayment(ctx, anaCol.ID, core.PaymentMethod("CHEQUE"), "")
	var verr core.ValidationError
	require.ErrorAs(t, err, &verr)

	f.clock.T = ledgerNow.Add(2 * time.Hour)
	paid, err := f.svc.RecordPayment(ctx, anaCol.ID, core.MethodGCash, " GC-123 ")
	require.NoError(t, err)
	assert.Equal(t, core.CollectionPaid, paid.Status)
	assert.Equal(t, "GC-123", paid.PaymentReference)
	require.NotNil(t, paid.PaidDate)
	assert.True(t, paid.PaidDate.Equal(f.clock.T))

	stored, err := f.svc.GetCollection(ctx, anaCol.ID)
	require.NoError(t, err)
	assert.Equal(t, core.MethodGCash, stored.PaymentMethod)

	group, err := f.svc.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 1000_00}, group.CollectedFunds)

	require.Len(t, f.publisher.receipts, 1)
	receipt := f.publisher.receipts[0]
	assert.Equal(t, head.ID, receipt.HeadID)
	assert.Equal(t, ana.ID, receipt.UserID)
	assert.Equal(t, 1, receipt.Round)
	assert.Equal(t, 1, f.observer.payments)

	_, err = f.svc.RecordPayment(ctx, anaCol.ID, core.MethodCash, "")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = f.svc.RecordPayment(ctx, "missing", core.MethodCash, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerService_RecordPaymentPublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.publisher.err = errors.New("broker down")
	g, _, _, _ := f.newGroup(t)
	_, opened, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)

	paid, err := f.svc.RecordPayment(ctx, opened[0].ID, core.MethodCash, "")
	require.NoError(t, err)
	assert.True(t, paid.IsPaid())
}

func TestLedgerService_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, _, _, _ := f.newGroup(t)
	_, opened, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkOverdue(ctx, opened[0].ID)
	var verr core.ValidationError
	require.ErrorAs(t, err, &verr, "not yet past due")

	f.clock.T = ledgerNow.AddDate(0, 0, 1)
	overdue, err := f.svc.MarkOverdue(ctx, opened[0].ID)
	require.NoError(t, err)
	assert.Equal(t, core.CollectionOverdue, overdue.Status)

	paid, err := f.svc.RecordPayment(ctx, opened[0].ID, core.MethodBank, "BDO-1")
	require.NoError(t, err)
	assert.True(t, paid.IsPaid())

	cancelled, err := f.svc.CancelCollection(ctx, opened[1].ID)
	require.NoError(t, err)
	assert.True(t, cancelled.IsCancelled())

	_, err = f.svc.CancelCollection(ctx, opened[1].ID)
	var terr *core.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, core.CollectionCancelled, terr.From)

	_, err = f.svc.MarkOverdue(ctx, opened[0].ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestLedgerService_Reminders(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, _, _, _ := f.newGroup(t)
	_, opened, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)

	f.clock.T = ledgerNow.AddDate(0, 0, -2)
	e, ok, err := f.svc.EvaluateReminder(ctx, opened[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.UpcomingPayment, e.Kind)
	assert.Equal(t, "Office Paluwagan", e.GroupName)

	c, err := f.svc.GetCollection(ctx, opened[0].ID)
	require.NoError(t, err)
	sent, err := f.svc.SendReminder(ctx, *c, *g, f.clock.T)
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, 1, f.observer.emitted[core.UpcomingPayment])

	_, ok, err = f.svc.EvaluateReminder(ctx, opened[0].ID)
	require.NoError(t, err)
	assert.False(t, ok, "reminder already sent")

	require.NoError(t, f.svc.MarkReminderSent(ctx, opened[1].ID))
	assert.ErrorIs(t, f.svc.MarkReminderSent(ctx, "missing"), storage.ErrNotFound)

	f.notifier.err = errors.New("push failed")
	c, err = f.svc.GetCollection(ctx, opened[2].ID)
	require.NoError(t, err)
	sent, err = f.svc.SendReminder(ctx, *c, *g, f.clock.T)
	assert.Error(t, err)
	assert.False(t, sent)

	still, err := f.svc.GetCollection(ctx, opened[2].ID)
	require.NoError(t, err)
	assert.False(t, still.ReminderSent)
}

func TestLedgerService_Dashboards(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	g, head, ana, _ := f.newGroup(t)
	_, opened, err := f.svc.AdvanceCycle(ctx, g.ID)
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, opened[1].ID, core.MethodGCash, "")
	require.NoError(t, err)

	f.clock.T = ledgerNow.AddDate(0, 0, 2)
	hd, err := f.svc.HeadDashboard(ctx, head.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, hd.ActiveGroups)
	assert.Equal(t, core.Money{Cents: 12000_00}, hd.TotalFunds)
	assert.Equal(t, core.Money{Cents: 1000_00}, hd.CollectedFunds)
	assert.Equal(t, 1, hd.Payments.PaidCount)
	assert.Equal(t, 2, hd.Payments.UnpaidCount)
	assert.Equal(t, 2, hd.OverdueCount)
	require.Len(t, hd.Groups, 1)
	assert.InDelta(t, 8.33, hd.Groups[0].Progress, 0.01)

	md, err := f.svc.MemberDashboard(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, md.ActiveGroups)
	assert.Equal(t, core.Money{}, md.AmountDue)
	assert.Empty(t, md.Upcoming)

	upcoming, err := f.svc.UpcomingCollections(ctx, head.ID, 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, opened[0].ID, upcoming[0].ID)

	empty, err := f.svc.HeadDashboard(ctx, ana.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.ActiveGroups)
	assert.Empty(t, empty.Groups)
}
