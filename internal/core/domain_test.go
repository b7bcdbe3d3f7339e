package core

import (
	"errors"
	"testing"
	"time"
)

func TestCollectionStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from CollectionStatus
		to   CollectionStatus
		want bool
	}{
		{CollectionPending, CollectionPaid, true},
		{CollectionPending, CollectionOverdue, true},
		{CollectionPending, CollectionCancelled, true},
		{CollectionOverdue, CollectionPaid, true},
		{CollectionOverdue, CollectionCancelled, true},
		{CollectionOverdue, CollectionPending, false},
		{CollectionPaid, CollectionPending, false},
		{CollectionPaid, CollectionCancelled, false},
		{CollectionCancelled, CollectionPaid, false},
		{CollectionCancelled, CollectionPending, false},
		{CollectionPending, CollectionPending, false},
		{CollectionStatus("UNKNOWN"), CollectionPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollection_CheckTransition(t *testing.T) {
	c := Collection{ID: "c1", Status: CollectionPaid}
	err := c.CheckTransition(CollectionCancelled)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != CollectionPaid || te.To != CollectionCancelled {
		t.Fatalf("unexpected transition error %#v", err)
	}
	c.Status = CollectionOverdue
	if err := c.CheckTransition(CollectionPaid); err != nil {
		t.Fatalf("OVERDUE -> PAID should be allowed: %v", err)
	}
}

func TestLabels(t *testing.T) {
	if got := MethodBank.Label(); got != "Bank Transfer" {
		t.Errorf("MethodBank.Label() = %q", got)
	}
	if got := PaymentMethod("CHEQUE").Label(); got != "CHEQUE" {
		t.Errorf("unknown method label = %q", got)
	}
	if got := CollectionOverdue.Label(); got != "Overdue" {
		t.Errorf("CollectionOverdue.Label() = %q", got)
	}
}

func TestGroupDerived(t *testing.T) {
	g := NewGroup()
	g.MaxMembers = 3
	g.Members = []string{"a", "b"}
	g.CollectionOrder = []string{"b", "a"}

	if g.IsFull() {
		t.Fatalf("group with 2/3 members reported full")
	}
	if g.RemainingSlots() != 1 {
		t.Fatalf("RemainingSlots() = %d, want 1", g.RemainingSlots())
	}
	if !g.HasMember("a") || g.HasMember("z") {
		t.Fatalf("HasMember mismatch")
	}
	if r, ok := g.Recipient(1); !ok || r != "b" {
		t.Fatalf("Recipient(1) = %q,%v", r, ok)
	}
	if _, ok := g.Recipient(3); ok {
		t.Fatalf("Recipient(3) should be absent")
	}
	g.Members = append(g.Members, "c")
	if !g.IsFull() {
		t.Fatalf("group with 3/3 members not full")
	}
}

func TestGroupValidate(t *testing.T) {
	good := NewGroup()
	good.Name = "Barkada Savers"
	good.HeadID = "head-1"
	good.ContributionAmount = Money{Cents: 1_000_00}
	good.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []func(g *Group){
		func(g *Group) { g.Name = " " },
		func(g *Group) { g.ContributionAmount = Money{Cents: 99_99} },
		func(g *Group) { g.ContributionAmount = Money{Cents: 50_000_01} },
		func(g *Group) { g.Frequency = "DAILY" },
		func(g *Group) { g.MaxMembers = 13 },
		func(g *Group) { g.HeadID = "" },
		func(g *Group) { g.StartDate = time.Time{} },
		func(g *Group) { g.EndDate = g.StartDate.Add(-time.Hour) },
		func(g *Group) { g.MaxMembers = 1; g.Members = []string{"a", "b"} },
	}
	for i, mutate := range bads {
		g := good
		mutate(&g)
		err := g.Validate()
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("case %d expected ValidationErrors, got %v", i, err)
		}
	}
}
