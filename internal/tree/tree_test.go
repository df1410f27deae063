package tree

import (
	"testing"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

func leafDigest(t *testing.T, n uint64) sponge.Digest {
	t.Helper()
	return sponge.Hash(sponge.DomainNote, sponge.FeltsFromUint64(n, n+1, n+2))
}

func TestAppendAssignsSequentialPositions(t *testing.T) {
	tr, err := New(8, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint64(0); i < 5; i++ {
		pos, err := tr.Append(leafDigest(t, i))
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if pos != i {
			t.Fatalf("position = %d, want %d", pos, i)
		}
	}
	if tr.LeafCount() != 5 {
		t.Fatalf("LeafCount = %d, want 5", tr.LeafCount())
	}
}

func TestAuthenticationPathRecomputesRoot(t *testing.T) {
	tr, err := New(6, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	const n = 11
	leaves := make([]sponge.Digest, n)
	for i := range leaves {
		leaves[i] = leafDigest(t, uint64(i))
		if _, err := tr.Append(leaves[i]); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	root := tr.Root()
	for k := uint64(0); k < n; k++ {
		path, err := tr.AuthenticationPath(k)
		if err != nil {
			t.Fatalf("AuthenticationPath(%d): %v", k, err)
		}
		if len(path) != tr.Depth() {
			t.Fatalf("path length = %d, want %d", len(path), tr.Depth())
		}
		if !VerifyPath(leaves[k], k, path, root) {
			t.Fatalf("path for leaf %d does not reproduce root", k)
		}
	}
}

func TestPathInvalidatesWrongLeaf(t *testing.T) {
	tr, _ := New(6, 10)
	a := leafDigest(t, 1)
	b := leafDigest(t, 2)
	tr.Append(a)
	tr.Append(b)
	path, err := tr.AuthenticationPath(0)
	if err != nil {
		t.Fatalf("AuthenticationPath: %v", err)
	}
	if VerifyPath(b, 0, path, tr.Root()) {
		t.Fatal("path verified against wrong leaf")
	}
	if VerifyPath(a, 1, path, tr.Root()) {
		t.Fatal("path verified against wrong position")
	}
}

func TestRootHistoryWindow(t *testing.T) {
	tr, err := New(8, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	roots := []sponge.Digest{tr.Root()}
	for i := uint64(0); i < 6; i++ {
		if _, err := tr.Append(leafDigest(t, i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
		roots = append(roots, tr.Root())
	}
	// Only the last 3 roots remain valid anchors.
	for i, r := range roots {
		got := tr.ContainsRoot(r)
		want := i >= len(roots)-3
		if got != want {
			t.Fatalf("ContainsRoot(roots[%d]) = %v, want %v", i, got, want)
		}
	}
}

func TestTreeFull(t *testing.T) {
	tr, err := New(2, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint64(0); i < 4; i++ {
		if _, err := tr.Append(leafDigest(t, i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if _, err := tr.Append(leafDigest(t, 99)); err != ErrTreeFull {
		t.Fatalf("Append past capacity: err = %v, want ErrTreeFull", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	tr, _ := New(6, 10)
	tr.Append(leafDigest(t, 1))
	clone := tr.Clone()
	before := tr.Root()
	if _, err := clone.Append(leafDigest(t, 2)); err != nil {
		t.Fatalf("clone Append: %v", err)
	}
	if !tr.Root().Equal(before) {
		t.Fatal("appending to clone mutated original")
	}
	if clone.Root().Equal(before) {
		t.Fatal("clone root unchanged after append")
	}
}

func TestExtendMatchesSequentialAppend(t *testing.T) {
	a, _ := New(6, 10)
	b, _ := New(6, 10)
	var cms []sponge.Digest
	for i := uint64(0); i < 7; i++ {
		cms = append(cms, leafDigest(t, i))
	}
	for _, cm := range cms {
		if _, err := a.Append(cm); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	positions, err := b.Extend(cms)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if len(positions) != len(cms) {
		t.Fatalf("Extend returned %d positions, want %d", len(positions), len(cms))
	}
	if !a.Root().Equal(b.Root()) {
		t.Fatal("Extend root differs from sequential appends")
	}
}

func TestEmptyRootInHistory(t *testing.T) {
	tr, _ := New(4, 10)
	if !tr.ContainsRoot(tr.Root()) {
		t.Fatal("empty root not in history")
	}
	if _, err := tr.AuthenticationPath(0); err == nil {
		t.Fatal("expected error for path of unassigned leaf")
	}
}
