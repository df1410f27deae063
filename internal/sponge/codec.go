// codec.go - Canonical 48-byte encoding of sponge digests.
//
// Every consensus-visible commitment, nullifier and tree root crosses the wire
// in this encoding: six big-endian 8-byte limbs, each strictly below the field
// modulus. Canonicality is checked before any cryptographic use.

package sponge

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/field/goldilocks"
)

// Bytes returns the canonical 48-byte encoding of the digest.
func (d Digest) Bytes() [DigestSize]byte {
	var out [DigestSize]byte
	for i := range d {
		limb := d[i].Bytes()
		copy(out[i*8:(i+1)*8], limb[:])
	}
	return out
}

// DigestFromBytes decodes a canonical 48-byte digest. A wrong length or any
// limb at or above the modulus is rejected without touching field arithmetic.
func DigestFromBytes(data []byte) (Digest, error) {
	var d Digest
	if len(data) != DigestSize {
		return d, ErrLength
	}
	if !IsCanonical(data) {
		return d, ErrNonCanonical
	}
	for i := 0; i < DigestLimbs; i++ {
		d[i].SetUint64(binary.BigEndian.Uint64(data[i*8 : (i+1)*8]))
	}
	return d, nil
}

// IsCanonical reports whether every 8-byte limb of a 48-byte encoding is
// strictly below the field modulus.
func IsCanonical(data []byte) bool {
	if len(data) != DigestSize {
		return false
	}
	for i := 0; i < DigestLimbs; i++ {
		if binary.BigEndian.Uint64(data[i*8:(i+1)*8]) >= Modulus {
			return false
		}
	}
	return true
}

// IsZero reports whether all limbs are zero. Zero digests act as padding in
// transaction public inputs and block nullifier lists.
func (d Digest) IsZero() bool {
	for i := range d {
		if !d[i].IsZero() {
			return false
		}
	}
	return true
}

// Equal reports limb-wise equality.
func (d Digest) Equal(other Digest) bool {
	for i := range d {
		if !d[i].Equal(&other[i]) {
			return false
		}
	}
	return true
}

// Limbs returns the digest limbs as canonical uint64 values.
func (d Digest) Limbs() [DigestLimbs]uint64 {
	var out [DigestLimbs]uint64
	for i := range d {
		b := d[i].Bytes()
		out[i] = binary.BigEndian.Uint64(b[:])
	}
	return out
}

// FeltsFromUint64 builds field elements from canonical uint64 limbs.
func FeltsFromUint64(values ...uint64) []goldilocks.Element {
	out := make([]goldilocks.Element, len(values))
	for i, v := range values {
		out[i].SetUint64(v)
	}
	return out
}
