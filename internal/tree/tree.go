// tree.go - Append-only Merkle accumulator over note commitments.
//
// Leaves are 48-byte commitments in insertion order; internal nodes use the
// sponge merkle domain over ordered children. Precomputed default-subtree
// hashes make appends O(depth) amortized, and every level is retained so
// authentication paths for historical leaves stay answerable.

package tree

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/field/goldilocks"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

const (
	// DefaultDepth is the production tree depth: capacity 2^32 notes.
	DefaultDepth = 32
	// DefaultRootHistory is the retained window of recent roots; anchors
	// outside it are rejected.
	DefaultRootHistory = 100
)

var (
	// ErrTreeFull reports an append past tree capacity. There is no recovery
	// short of a pool migration.
	ErrTreeFull = errors.New("tree: merkle tree is full")
	// ErrInvalidDepth reports a zero or oversized depth.
	ErrInvalidDepth = errors.New("tree: depth must be in [1, 63]")
	// ErrLeafOutOfRange reports a path query for a position never assigned.
	ErrLeafOutOfRange = errors.New("tree: leaf position out of range")
)

// Tree is the append-only commitment accumulator. It is not safe for
// concurrent use; the state layer serializes access.
type Tree struct {
	depth        int
	leafCount    uint64
	levels       [][]sponge.Digest
	defaultNodes []sponge.Digest
	rootHistory  []sponge.Digest
	historyLimit int
}

// New builds an empty tree of the given depth with a bounded root-history
// window. The empty root enters the history immediately.
func New(depth, historyLimit int) (*Tree, error) {
	if depth <= 0 || depth > 63 {
		return nil, ErrInvalidDepth
	}
	if historyLimit <= 0 {
		historyLimit = DefaultRootHistory
	}
	defaults := make([]sponge.Digest, depth+1)
	for level := 0; level < depth; level++ {
		defaults[level+1] = merkleNode(defaults[level], defaults[level])
	}
	levels := make([][]sponge.Digest, depth+1)
	t := &Tree{
		depth:        depth,
		levels:       levels,
		defaultNodes: defaults,
		historyLimit: historyLimit,
	}
	t.recordRoot(defaults[depth])
	return t, nil
}

func merkleNode(left, right sponge.Digest) sponge.Digest {
	inputs := make([]goldilocks.Element, 0, 2*sponge.DigestLimbs)
	inputs = append(inputs, left[:]...)
	inputs = append(inputs, right[:]...)
	return sponge.Hash(sponge.DomainMerkle, inputs)
}

// MerkleNode exposes the node hash for path verification by callers.
func MerkleNode(left, right sponge.Digest) sponge.Digest {
	return merkleNode(left, right)
}

// Depth returns the fixed tree depth.
func (t *Tree) Depth() int { return t.depth }

// LeafCount returns the number of appended commitments.
func (t *Tree) LeafCount() uint64 { return t.leafCount }

// Capacity returns the maximum number of leaves.
func (t *Tree) Capacity() uint64 { return 1 << uint(t.depth) }

// Root returns the current accumulator root.
func (t *Tree) Root() sponge.Digest {
	return t.rootHistory[len(t.rootHistory)-1]
}

// ContainsRoot reports whether a root lies inside the retained window.
// This is the anchor-validity check for incoming transactions.
func (t *Tree) ContainsRoot(root sponge.Digest) bool {
	for i := range t.rootHistory {
		if t.rootHistory[i].Equal(root) {
			return true
		}
	}
	return false
}

// RootHistoryDepth returns the window size exposed to wallets.
func (t *Tree) RootHistoryDepth() int { return t.historyLimit }

func (t *Tree) recordRoot(root sponge.Digest) {
	t.rootHistory = append(t.rootHistory, root)
	if len(t.rootHistory) > t.historyLimit {
		t.rootHistory = t.rootHistory[len(t.rootHistory)-t.historyLimit:]
	}
}

// Append inserts one commitment and returns its immutable position. Positions
// are assigned strictly in append order.
func (t *Tree) Append(cm sponge.Digest) (uint64, error) {
	if t.leafCount == t.Capacity() {
		return 0, ErrTreeFull
	}
	position := t.leafCount
	t.leafCount++
	t.levels[0] = append(t.levels[0], cm)

	current := cm
	idx := position
	for level := 0; level < t.depth; level++ {
		if idx%2 == 0 {
			current = merkleNode(current, t.defaultNodes[level])
		} else {
			current = merkleNode(t.levels[level][idx-1], current)
		}
		idx /= 2
		if uint64(len(t.levels[level+1])) == idx {
			t.levels[level+1] = append(t.levels[level+1], current)
		} else {
			t.levels[level+1][idx] = current
		}
	}
	t.recordRoot(current)
	return position, nil
}

// Extend appends commitments in order and returns their positions. Used by
// block replay, where insertion order is consensus-critical.
func (t *Tree) Extend(cms []sponge.Digest) ([]uint64, error) {
	positions := make([]uint64, 0, len(cms))
	for _, cm := range cms {
		pos, err := t.Append(cm)
		if err != nil {
			return nil, fmt.Errorf("extend at leaf %d: %w", len(positions), err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// AuthenticationPath returns the ordered sibling digests for a leaf, bottom
// level first. Combined with the leaf it reconstructs exactly the current root.
func (t *Tree) AuthenticationPath(position uint64) ([]sponge.Digest, error) {
	if position >= t.leafCount {
		return nil, fmt.Errorf("%w: %d", ErrLeafOutOfRange, position)
	}
	path := make([]sponge.Digest, 0, t.depth)
	idx := position
	for level := 0; level < t.depth; level++ {
		var siblingIdx uint64
		if idx%2 == 0 {
			siblingIdx = idx + 1
		} else {
			siblingIdx = idx - 1
		}
		if siblingIdx < uint64(len(t.levels[level])) {
			path = append(path, t.levels[level][siblingIdx])
		} else {
			path = append(path, t.defaultNodes[level])
		}
		idx /= 2
	}
	return path, nil
}

// VerifyPath walks a leaf up its authentication path and reports whether it
// reproduces the given root.
func VerifyPath(leaf sponge.Digest, position uint64, path []sponge.Digest, root sponge.Digest) bool {
	current := leaf
	idx := position
	for _, sibling := range path {
		if idx%2 == 0 {
			current = merkleNode(current, sibling)
		} else {
			current = merkleNode(sibling, current)
		}
		idx /= 2
	}
	return current.Equal(root)
}

// Clone returns a deep copy. Block import replays candidate insertions on a
// clone so a rejected block leaves the live tree untouched.
func (t *Tree) Clone() *Tree {
	levels := make([][]sponge.Digest, len(t.levels))
	for i := range t.levels {
		levels[i] = append([]sponge.Digest(nil), t.levels[i]...)
	}
	return &Tree{
		depth:        t.depth,
		leafCount:    t.leafCount,
		levels:       levels,
		defaultNodes: t.defaultNodes,
		rootHistory:  append([]sponge.Digest(nil), t.rootHistory...),
		historyLimit: t.historyLimit,
	}
}
