// note.go - Note type and commitment derivation for the shielded pool.
//
// A Note is the atomic hidden value record: amount, asset, recipient tag,
// per-note randomness and an optional timelock. Notes never appear on-chain in
// the clear; only their sponge commitments enter the accumulator.

package note

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/field/goldilocks"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

// NativeAssetID identifies the pool's native asset.
const NativeAssetID uint64 = 0

// ErrValueOutOfRange reports a note value that does not fit the hash field.
// Range enforcement happens here, at witness construction, not in-circuit.
var ErrValueOutOfRange = errors.New("note: value out of range")

// ErrAssetOutOfRange reports an asset id that does not fit the hash field.
var ErrAssetOutOfRange = errors.New("note: asset id out of range")

// Note is a confidential value record. SpendAfter is a unix timestamp;
// zero means the note is unlocked.
type Note struct {
	Value        uint64
	AssetID      uint64
	RecipientTag [32]byte
	Rho          [32]byte
	Blinding     [32]byte
	SpendAfter   uint64
}

// Validate enforces the out-of-circuit field bounds on value and asset id.
func (n *Note) Validate() error {
	if n.Value >= sponge.Modulus {
		return fmt.Errorf("%w: %d", ErrValueOutOfRange, n.Value)
	}
	if n.AssetID >= sponge.Modulus {
		return fmt.Errorf("%w: %d", ErrAssetOutOfRange, n.AssetID)
	}
	return nil
}

// Commitment computes the binding, hiding digest of the note: a sponge over
// every field, including the timelock, under the note domain.
func (n *Note) Commitment() sponge.Digest {
	inputs := make([]goldilocks.Element, 0, 15)
	inputs = append(inputs, sponge.FeltsFromUint64(n.Value, n.AssetID)...)
	inputs = append(inputs, sponge.BytesToFelts(n.RecipientTag[:])...)
	inputs = append(inputs, sponge.BytesToFelts(n.Rho[:])...)
	inputs = append(inputs, sponge.BytesToFelts(n.Blinding[:])...)
	inputs = append(inputs, sponge.FeltsFromUint64(n.SpendAfter)...)
	return sponge.Hash(sponge.DomainNote, inputs)
}

// Nullifier computes the spend marker for a note at a tree position under the
// spender's nullifier key. Distinct (rho, position) pairs never collide; the
// same triple always reproduces the same marker.
func Nullifier(nullifierKey goldilocks.Element, rho [32]byte, position uint64) sponge.Digest {
	inputs := make([]goldilocks.Element, 0, 6)
	inputs = append(inputs, nullifierKey)
	inputs = append(inputs, sponge.FeltsFromUint64(position)...)
	inputs = append(inputs, sponge.BytesToFelts(rho[:])...)
	return sponge.Hash(sponge.DomainNullifier, inputs)
}
