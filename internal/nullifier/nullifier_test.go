package nullifier

import (
	"errors"
	"testing"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

func nf(t *testing.T, n uint64) sponge.Digest {
	t.Helper()
	return sponge.Hash(sponge.DomainNullifier, sponge.FeltsFromUint64(n))
}

func TestInsertAllAndContains(t *testing.T) {
	s := NewSet()
	batch := []sponge.Digest{nf(t, 1), nf(t, 2), nf(t, 3)}
	if err := s.InsertAll(batch); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	for i, n := range batch {
		if !s.Contains(n) {
			t.Fatalf("Contains(batch[%d]) = false after insert", i)
		}
	}
	if s.Contains(nf(t, 99)) {
		t.Fatal("Contains reported an unseen nullifier")
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
}

func TestInsertAllRejectsExisting(t *testing.T) {
	s := NewSet()
	if err := s.InsertAll([]sponge.Digest{nf(t, 1)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	err := s.InsertAll([]sponge.Digest{nf(t, 2), nf(t, 1)})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	// All-or-nothing: the fresh entry must not have landed.
	if s.Contains(nf(t, 2)) {
		t.Fatal("partial insert after rejected batch")
	}
}

func TestInsertAllRejectsIntraBatchRepeat(t *testing.T) {
	s := NewSet()
	err := s.InsertAll([]sponge.Digest{nf(t, 5), nf(t, 5)})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after rejected batch, want 0", s.Len())
	}
}

func TestCommitmentOrderIndependent(t *testing.T) {
	a := NewSet()
	b := NewSet()
	if err := a.InsertAll([]sponge.Digest{nf(t, 1), nf(t, 2), nf(t, 3)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if err := b.InsertAll([]sponge.Digest{nf(t, 3)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if err := b.InsertAll([]sponge.Digest{nf(t, 1)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if err := b.InsertAll([]sponge.Digest{nf(t, 2)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if a.Commitment() != b.Commitment() {
		t.Fatal("commitments differ across insertion orders")
	}
	if err := b.InsertAll([]sponge.Digest{nf(t, 4)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if a.Commitment() == b.Commitment() {
		t.Fatal("commitment unchanged after new entry")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewSet()
	if err := s.InsertAll([]sponge.Digest{nf(t, 1)}); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	snap := s.Snapshot()
	if err := snap.InsertAll([]sponge.Digest{nf(t, 2)}); err != nil {
		t.Fatalf("snapshot InsertAll: %v", err)
	}
	if s.Contains(nf(t, 2)) {
		t.Fatal("insert into snapshot mutated original")
	}
	if !snap.Contains(nf(t, 1)) {
		t.Fatal("snapshot lost existing entry")
	}
}
