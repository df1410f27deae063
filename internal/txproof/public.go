// public.go - Public transaction statement and its canonical encoding.
//
// The statement travels with the proof, is what consensus verifies against,
// and is hashed into the block's proof binding. Encoding is deterministic
// CBOR so every replica hashes identical bytes.

package txproof

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

const proofHashContext = "hegemon-pool tx proof v1"

var detMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	detMode = mode
}

// PublicInputs is the public statement of one transaction proof. Inactive
// slots carry all-zero digests.
type PublicInputs struct {
	Anchor       [48]byte             `cbor:"1,keyasint"`
	Nullifiers   [MaxInputs][48]byte  `cbor:"2,keyasint"`
	Commitments  [MaxOutputs][48]byte `cbor:"3,keyasint"`
	Fee          uint64               `cbor:"4,keyasint"`
	ValueBalance int64                `cbor:"5,keyasint"`
	BlockTime    uint64               `cbor:"6,keyasint"`
	Binding      version.Binding      `cbor:"7,keyasint"`
}

// MarshalCanonical returns the deterministic byte encoding of the statement.
func (p *PublicInputs) MarshalCanonical() ([]byte, error) {
	return detMode.Marshal(p)
}

// DecodePublicInputs parses a canonical statement and checks that every
// digest is either all-zero or a canonical field encoding.
func DecodePublicInputs(data []byte) (*PublicInputs, error) {
	var p PublicInputs
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("txproof: decode public inputs: %w", err)
	}
	if err := p.CheckCanonical(); err != nil {
		return nil, err
	}
	return &p, nil
}

// CheckCanonical rejects any digest with a limb at or above the field
// modulus. This runs before any cryptographic use of the statement.
func (p *PublicInputs) CheckCanonical() error {
	if !sponge.IsCanonical(p.Anchor[:]) {
		return fmt.Errorf("anchor: %w", sponge.ErrNonCanonical)
	}
	for i := range p.Nullifiers {
		if !sponge.IsCanonical(p.Nullifiers[i][:]) {
			return fmt.Errorf("nullifier %d: %w", i, sponge.ErrNonCanonical)
		}
	}
	for i := range p.Commitments {
		if !sponge.IsCanonical(p.Commitments[i][:]) {
			return fmt.Errorf("commitment %d: %w", i, sponge.ErrNonCanonical)
		}
	}
	return nil
}

// ActiveNullifiers returns the nonzero spend markers in statement order.
func (p *PublicInputs) ActiveNullifiers() ([]sponge.Digest, error) {
	var out []sponge.Digest
	for i := range p.Nullifiers {
		d, err := sponge.DigestFromBytes(p.Nullifiers[i][:])
		if err != nil {
			return nil, fmt.Errorf("nullifier %d: %w", i, err)
		}
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out, nil
}

// ActiveCommitments returns the nonzero fresh commitments in statement order.
func (p *PublicInputs) ActiveCommitments() ([]sponge.Digest, error) {
	var out []sponge.Digest
	for i := range p.Commitments {
		d, err := sponge.DigestFromBytes(p.Commitments[i][:])
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", i, err)
		}
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out, nil
}

// ProofHash binds a proof to its statement. Block headers commit to the
// ordered sequence of these hashes.
func ProofHash(proof []byte, public *PublicInputs) ([48]byte, error) {
	var out [48]byte
	enc, err := public.MarshalCanonical()
	if err != nil {
		return out, fmt.Errorf("txproof: canonical encoding: %w", err)
	}
	h := blake3.New(48, nil)
	h.Write([]byte(proofHashContext))
	h.Write(enc)
	h.Write(proof)
	h.Sum(out[:0])
	return out, nil
}
