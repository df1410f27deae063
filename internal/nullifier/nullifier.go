// nullifier.go - Spent-note ledger.
//
// The set records every nullifier revealed by an accepted transaction.
// Membership is the double-spend check; insertion is all-or-nothing per block
// so a rejected block never leaves partial spends behind.

package nullifier

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"lukechampine.com/blake3"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

// ErrDuplicate reports an insert of a nullifier already in the set, or
// repeated within the same batch.
var ErrDuplicate = errors.New("nullifier: already spent")

// Set is the append-only nullifier ledger. Not safe for concurrent use; the
// state layer serializes access.
type Set struct {
	entries map[[sponge.DigestSize]byte]struct{}
}

// NewSet returns an empty ledger.
func NewSet() *Set {
	return &Set{entries: make(map[[sponge.DigestSize]byte]struct{})}
}

// Len returns the number of recorded nullifiers.
func (s *Set) Len() int { return len(s.entries) }

// Contains reports whether nf has already been revealed.
func (s *Set) Contains(nf sponge.Digest) bool {
	_, ok := s.entries[nf.Bytes()]
	return ok
}

// InsertAll records a batch atomically. If any entry collides with the set or
// with another entry in the batch, nothing is inserted.
func (s *Set) InsertAll(nfs []sponge.Digest) error {
	seen := make(map[[sponge.DigestSize]byte]struct{}, len(nfs))
	for i, nf := range nfs {
		key := nf.Bytes()
		if _, ok := s.entries[key]; ok {
			return fmt.Errorf("%w: batch index %d", ErrDuplicate, i)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: batch index %d repeats within batch", ErrDuplicate, i)
		}
		seen[key] = struct{}{}
	}
	for key := range seen {
		s.entries[key] = struct{}{}
	}
	return nil
}

// Commitment hashes the sorted set contents. Two replicas holding the same
// spent set produce the same commitment regardless of insertion order.
func (s *Set) Commitment() [48]byte {
	keys := make([][sponge.DigestSize]byte, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	h := blake3.New(48, nil)
	for _, key := range keys {
		h.Write(key[:])
	}
	var out [48]byte
	h.Sum(out[:0])
	return out
}

// Snapshot returns an independent copy for candidate-block validation.
func (s *Set) Snapshot() *Set {
	entries := make(map[[sponge.DigestSize]byte]struct{}, len(s.entries))
	for key := range s.entries {
		entries[key] = struct{}{}
	}
	return &Set{entries: entries}
}
