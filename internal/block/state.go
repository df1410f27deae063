// state.go - Live ledger state: accumulator, nullifier set, chain cursor.
//
// One writer (block import) mutates under the write lock; queries and
// candidate validation work on snapshots so a rejected block never leaves a
// half-applied state behind.

package block

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Pauli-Group/Hegemon-sub003/internal/nullifier"
	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
	"github.com/Pauli-Group/Hegemon-sub003/internal/tree"
)

// State is the pool's consensus state.
type State struct {
	mu sync.RWMutex

	tree     *tree.Tree
	spent    *nullifier.Set
	height   uint64
	lastHash [48]byte

	log zerolog.Logger
}

// NewState builds genesis state around an empty accumulator.
func NewState(depth, rootHistory int, log zerolog.Logger) (*State, error) {
	t, err := tree.New(depth, rootHistory)
	if err != nil {
		return nil, err
	}
	return &State{
		tree:  t,
		spent: nullifier.NewSet(),
		log:   log.With().Str("component", "state").Logger(),
	}, nil
}

// Height returns the last imported block height; zero before any block.
func (s *State) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// LastHash returns the hash of the last imported block.
func (s *State) LastHash() [48]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHash
}

// Root returns the current accumulator root.
func (s *State) Root() sponge.Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Root()
}

// ContainsRoot reports whether an anchor is inside the recent-root window.
func (s *State) ContainsRoot(root sponge.Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.ContainsRoot(root)
}

// Spent reports whether a nullifier is already on the ledger.
func (s *State) Spent(nf sponge.Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spent.Contains(nf)
}

// NoteCount returns the number of commitments in the accumulator.
func (s *State) NoteCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.LeafCount()
}

// SpentCount returns the nullifier ledger size.
func (s *State) SpentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spent.Len()
}

// AuthenticationPath returns the witness for a note position against the
// current root.
func (s *State) AuthenticationPath(position uint64) ([]sponge.Digest, sponge.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, err := s.tree.AuthenticationPath(position)
	if err != nil {
		return nil, sponge.Digest{}, err
	}
	return path, s.tree.Root(), nil
}

// fork returns isolated copies of the accumulator and the spent set for
// candidate replay.
func (s *State) fork() (*tree.Tree, *nullifier.Set, uint64, [48]byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Clone(), s.spent.Snapshot(), s.height, s.lastHash
}

// commit swaps in the replayed state. Called only after every gate check has
// passed, so the swap itself cannot fail.
func (s *State) commit(t *tree.Tree, spent *nullifier.Set, height uint64, hash [48]byte) {
	s.mu.Lock()
	s.tree = t
	s.spent = spent
	s.height = height
	s.lastHash = hash
	s.mu.Unlock()
	s.log.Info().
		Uint64("height", height).
		Uint64("notes", t.LeafCount()).
		Int("spent", spent.Len()).
		Msg("state advanced")
}
