// sponge.go - Domain-separated sponge hashing for the shielded pool.
//
// All commitments, nullifiers and Merkle nodes are digests of a Poseidon-style
// sponge over the Goldilocks field (p = 2^64 - 2^32 + 1). The permutation uses
// full rounds only, an x^7 S-box, nothing-up-my-sleeve round constants derived
// from the round/position indices, and an I+J mix layer.

package sponge

import (
	"errors"

	"github.com/consensys/gnark-crypto/field/goldilocks"
)

const (
	// Width is the permutation state size in field elements.
	Width = 8
	// Rate is the number of state slots absorbed per permutation call.
	Rate = 6
	// Rounds is the number of full rounds per permutation.
	Rounds = 22

	// DigestLimbs is the number of field elements in a digest.
	DigestLimbs = 6
	// DigestSize is the canonical byte length of a digest (six limbs, 8 bytes each).
	DigestSize = 48

	// Modulus is the Goldilocks prime as an unsigned 64-bit value.
	Modulus uint64 = 0xFFFFFFFF00000001
)

// Domain separation tags. Every sponge invocation is bound to exactly one.
const (
	DomainNote         uint64 = 1
	DomainNullifier    uint64 = 2
	DomainBalance      uint64 = 3
	DomainMerkle       uint64 = 4
	DomainNullifierKey uint64 = 5
	DomainBlockBinding uint64 = 6
)

var (
	// ErrNonCanonical reports an encoding with a limb at or above the field modulus.
	ErrNonCanonical = errors.New("sponge: non-canonical digest encoding")
	// ErrLength reports an encoding of the wrong byte length.
	ErrLength = errors.New("sponge: digest encoding must be 48 bytes")
)

// Digest is a sponge output: six Goldilocks field elements.
type Digest [DigestLimbs]goldilocks.Element

// RoundConstant derives the additive constant for a (round, position) pair.
// Deterministic and index-derived so the schedule carries no hidden structure.
func RoundConstant(round, position int) uint64 {
	return ((uint64(round) + 1) * 0x9e3779b9) ^ ((uint64(position) + 1) * 0x7f4a7c15)
}

func sbox(x *goldilocks.Element) {
	var x2, x4, x6 goldilocks.Element
	x2.Square(x)
	x4.Square(&x2)
	x6.Mul(&x4, &x2)
	x.Mul(&x6, x)
}

// Permute applies the full permutation in place. Exported so the in-circuit
// rendition can be cross-checked against the native one.
func Permute(state *[Width]goldilocks.Element) {
	for round := 0; round < Rounds; round++ {
		for pos := range state {
			var c goldilocks.Element
			c.SetUint64(RoundConstant(round, pos))
			state[pos].Add(&state[pos], &c)
		}
		for pos := range state {
			sbox(&state[pos])
		}
		// Mix layer: state' = (I + J) * state, i.e. every slot gains the state sum.
		var sum goldilocks.Element
		for pos := range state {
			sum.Add(&sum, &state[pos])
		}
		for pos := range state {
			state[pos].Add(&state[pos], &sum)
		}
	}
}

// Hash absorbs the inputs under the given domain tag and squeezes one digest.
func Hash(domain uint64, inputs []goldilocks.Element) Digest {
	var state [Width]goldilocks.Element
	state[0].SetUint64(domain)
	state[Width-1].SetOne()

	for cursor := 0; cursor < len(inputs); cursor += Rate {
		take := len(inputs) - cursor
		if take > Rate {
			take = Rate
		}
		for i := 0; i < take; i++ {
			state[i].Add(&state[i], &inputs[cursor+i])
		}
		Permute(&state)
	}

	var out Digest
	copy(out[:], state[:DigestLimbs])
	return out
}

// Single is Hash truncated to the first limb, for scalar-valued PRFs.
func Single(domain uint64, inputs []goldilocks.Element) goldilocks.Element {
	return Hash(domain, inputs)[0]
}

// BytesToFelts packs a byte string into big-endian 8-byte limbs. The final
// chunk is left-padded with zeros. Each limb is reduced into the field, so this
// is an encoding for hashing preimages, not a canonical codec.
func BytesToFelts(data []byte) []goldilocks.Element {
	out := make([]goldilocks.Element, 0, (len(data)+7)/8)
	for cursor := 0; cursor < len(data); cursor += 8 {
		end := cursor + 8
		if end > len(data) {
			end = len(data)
		}
		var buf [8]byte
		copy(buf[8-(end-cursor):], data[cursor:end])
		var e goldilocks.Element
		e.SetUint64(beUint64(buf))
		out = append(out, e)
	}
	return out
}

func beUint64(b [8]byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
