package consolidate

import (
	"testing"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

func candidates(values ...uint64) []Candidate {
	out := make([]Candidate, len(values))
	for i, v := range values {
		out[i] = Candidate{ID: i + 1, Value: v}
		out[i].Nullifier = sponge.Hash(sponge.DomainNullifier, sponge.FeltsFromUint64(uint64(i+1)))
	}
	return out
}

func totalValue(cs []Candidate) uint64 {
	var sum uint64
	for _, c := range cs {
		sum += c.Value
	}
	return sum
}

func TestEstimate(t *testing.T) {
	cases := []struct{ n, target, want int }{
		{0, 2, 0},
		{2, 2, 0},
		{3, 2, 1},
		{10, 2, 8},
		{10, 1, 9},
	}
	for _, tc := range cases {
		if got := Estimate(tc.n, tc.target); got != tc.want {
			t.Fatalf("Estimate(%d, %d) = %d, want %d", tc.n, tc.target, got, tc.want)
		}
	}
}

func TestGreedyPlan(t *testing.T) {
	cs := candidates(100, 1, 50, 2, 7)
	plan, err := Greedy(cs, DefaultTarget)
	if err != nil {
		t.Fatalf("Greedy: %v", err)
	}
	if len(plan.Merges) != Estimate(len(cs), DefaultTarget) {
		t.Fatalf("merge count = %d, want %d", len(plan.Merges), Estimate(len(cs), DefaultTarget))
	}
	if plan.FinalCount != DefaultTarget {
		t.Fatalf("FinalCount = %d, want %d", plan.FinalCount, DefaultTarget)
	}
	if plan.FinalValue != totalValue(cs) {
		t.Fatalf("FinalValue = %d, want %d", plan.FinalValue, totalValue(cs))
	}
	if err := plan.Validate(cs); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	// Smallest pair goes first.
	first := plan.Merges[0]
	if first.Value != 3 {
		t.Fatalf("first merge value = %d, want 3", first.Value)
	}
}

func TestBalancedPlan(t *testing.T) {
	cs := candidates(1, 2, 3, 4, 5, 6, 7, 8)
	plan, err := Balanced(cs, DefaultTarget)
	if err != nil {
		t.Fatalf("Balanced: %v", err)
	}
	if len(plan.Merges) != 6 {
		t.Fatalf("merge count = %d, want 6", len(plan.Merges))
	}
	if plan.FinalCount != DefaultTarget {
		t.Fatalf("FinalCount = %d, want %d", plan.FinalCount, DefaultTarget)
	}
	if plan.FinalValue != totalValue(cs) {
		t.Fatalf("FinalValue = %d, want %d", plan.FinalValue, totalValue(cs))
	}
	if err := plan.Validate(cs); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	// First round pairs all eight notes into four independent merges.
	roundZero := 0
	for _, m := range plan.Merges {
		if m.Round == 0 {
			roundZero++
		}
	}
	if roundZero != 4 {
		t.Fatalf("round-zero merges = %d, want 4", roundZero)
	}
}

func TestBalancedOddCount(t *testing.T) {
	cs := candidates(1, 2, 3, 4, 5)
	plan, err := Balanced(cs, DefaultTarget)
	if err != nil {
		t.Fatalf("Balanced: %v", err)
	}
	if len(plan.Merges) != 3 {
		t.Fatalf("merge count = %d, want 3", len(plan.Merges))
	}
	if plan.FinalCount != DefaultTarget {
		t.Fatalf("FinalCount = %d, want %d", plan.FinalCount, DefaultTarget)
	}
	if err := plan.Validate(cs); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPlanNoWorkNeeded(t *testing.T) {
	cs := candidates(5, 10)
	plan, err := Greedy(cs, DefaultTarget)
	if err != nil {
		t.Fatalf("Greedy: %v", err)
	}
	if len(plan.Merges) != 0 {
		t.Fatalf("merge count = %d, want 0", len(plan.Merges))
	}
	if plan.FinalCount != 2 {
		t.Fatalf("FinalCount = %d, want 2", plan.FinalCount)
	}
}

func TestTargetValidation(t *testing.T) {
	if _, err := Greedy(candidates(1, 2, 3), 0); err != ErrTarget {
		t.Fatalf("Greedy: err = %v, want ErrTarget", err)
	}
	if _, err := Balanced(candidates(1, 2, 3), 0); err != ErrTarget {
		t.Fatalf("Balanced: err = %v, want ErrTarget", err)
	}
}

type ledgerStub struct {
	spent map[[sponge.DigestSize]byte]bool
}

func (l *ledgerStub) Spent(nf sponge.Digest) bool {
	return l.spent[nf.Bytes()]
}

func TestFilterUnspent(t *testing.T) {
	cs := candidates(1, 2, 3)
	ledger := &ledgerStub{spent: map[[sponge.DigestSize]byte]bool{
		cs[1].Nullifier.Bytes(): true,
	}}
	got := FilterUnspent(cs, ledger)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, c := range got {
		if c.ID == cs[1].ID {
			t.Fatal("spent candidate survived the filter")
		}
	}
}
