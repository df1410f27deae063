package version

import (
	"errors"
	"testing"
)

func TestActivationHeight(t *testing.T) {
	s := NewSchedule()
	b := Binding{Circuit: CircuitV1, Suite: SuiteAlpha}
	if err := s.Activate(b, 100); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if s.AllowedAt(b, 99) {
		t.Fatal("binding allowed before activation height")
	}
	if !s.AllowedAt(b, 100) {
		t.Fatal("binding rejected at activation height")
	}
	if !s.AllowedAt(b, 10_000) {
		t.Fatal("unretired binding rejected at later height")
	}
}

func TestRetirement(t *testing.T) {
	s := NewSchedule()
	b := Binding{Circuit: CircuitV1, Suite: SuiteAlpha}
	if err := s.Activate(b, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := s.Retire(b, 500); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if !s.AllowedAt(b, 500) {
		t.Fatal("binding rejected at its last scheduled height")
	}
	if s.AllowedAt(b, 501) {
		t.Fatal("binding allowed past retirement")
	}
}

func TestUnscheduledBindingIsUnsupported(t *testing.T) {
	s := NewSchedule()
	s.Activate(Binding{Circuit: CircuitV1, Suite: SuiteAlpha}, 0)
	err := s.Check(DefaultBinding, 50)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("Check = %v, want ErrUnsupportedVersion", err)
	}
}

func TestScheduleConflicts(t *testing.T) {
	s := NewSchedule()
	b := Binding{Circuit: CircuitV2, Suite: SuiteBeta}
	if err := s.Activate(b, 10); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := s.Activate(b, 20); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("double activation: err = %v, want ErrScheduleConflict", err)
	}
	if err := s.Retire(Binding{Circuit: CircuitV1, Suite: SuiteAlpha}, 30); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("retiring unscheduled binding: err = %v, want ErrScheduleConflict", err)
	}
	if err := s.Retire(b, 5); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("retirement before activation: err = %v, want ErrScheduleConflict", err)
	}
	if err := s.Retire(b, 40); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if err := s.Retire(b, 50); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("double retirement: err = %v, want ErrScheduleConflict", err)
	}
}

func TestRetireWithUpgrade(t *testing.T) {
	s := NewSchedule()
	old := Binding{Circuit: CircuitV1, Suite: SuiteAlpha}
	next := Binding{Circuit: CircuitV2, Suite: SuiteGamma}
	if err := s.Activate(old, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := s.RetireWithUpgrade(old, 100, next); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("unscheduled upgrade target: err = %v, want ErrScheduleConflict", err)
	}
	if err := s.Activate(next, 90); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := s.RetireWithUpgrade(old, 100, next); err != nil {
		t.Fatalf("RetireWithUpgrade: %v", err)
	}
	got, ok := s.UpgradeFor(old)
	if !ok || got != next {
		t.Fatalf("UpgradeFor = (%v, %v), want (%v, true)", got, ok, next)
	}
	if _, ok := s.UpgradeFor(next); ok {
		t.Fatal("successor binding must not report an upgrade")
	}
	err := s.Check(old, 101)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("Check past retirement = %v, want ErrUnsupportedVersion", err)
	}
}

func TestFirstUnsupported(t *testing.T) {
	s := DefaultSchedule()
	legacy := Binding{Circuit: CircuitV1, Suite: SuiteAlpha}
	batch := []Binding{DefaultBinding, DefaultBinding, legacy, DefaultBinding}
	idx, bad := s.FirstUnsupported(batch, 10)
	if idx != 2 || bad != legacy {
		t.Fatalf("FirstUnsupported = (%d, %v), want (2, %v)", idx, bad, legacy)
	}
	idx, _ = s.FirstUnsupported([]Binding{DefaultBinding}, 10)
	if idx != -1 {
		t.Fatalf("FirstUnsupported on clean batch = %d, want -1", idx)
	}
}

func TestMatrixCommitmentTracksActiveSet(t *testing.T) {
	a := NewSchedule()
	b := NewSchedule()
	pairs := []Binding{
		{Circuit: CircuitV1, Suite: SuiteAlpha},
		{Circuit: CircuitV2, Suite: SuiteGamma},
	}
	// Same windows, different insertion order.
	a.Activate(pairs[0], 0)
	a.Activate(pairs[1], 100)
	b.Activate(pairs[1], 100)
	b.Activate(pairs[0], 0)

	if a.MatrixCommitment(150) != b.MatrixCommitment(150) {
		t.Fatal("commitments differ for identical schedules")
	}
	if a.MatrixCommitment(50) == a.MatrixCommitment(150) {
		t.Fatal("commitment unchanged across activation boundary")
	}
	a.Retire(pairs[0], 200)
	if a.MatrixCommitment(250) == b.MatrixCommitment(250) {
		t.Fatal("commitment unchanged after retirement divergence")
	}
}

func TestActiveAtSorted(t *testing.T) {
	s := NewSchedule()
	s.Activate(Binding{Circuit: CircuitV2, Suite: SuiteGamma}, 0)
	s.Activate(Binding{Circuit: CircuitV1, Suite: SuiteBeta}, 0)
	s.Activate(Binding{Circuit: CircuitV1, Suite: SuiteAlpha}, 0)
	active := s.ActiveAt(0)
	if len(active) != 3 {
		t.Fatalf("ActiveAt len = %d, want 3", len(active))
	}
	for i := 1; i < len(active); i++ {
		prev, cur := active[i-1], active[i]
		if prev.Circuit > cur.Circuit || (prev.Circuit == cur.Circuit && prev.Suite > cur.Suite) {
			t.Fatalf("ActiveAt not sorted: %v before %v", prev, cur)
		}
	}
}
