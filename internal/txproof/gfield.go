// gfield.go - In-circuit Goldilocks arithmetic and the sponge gadget.
//
// The native hash works over the 64-bit Goldilocks field while the proof
// system works over the BLS12-377 scalar field, so every hash input lives in
// an emulated single-limb element. The gadget mirrors sponge.Permute exactly;
// a divergence between the two would make every proof unverifiable.

package txproof

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

// GoldilocksField declares p = 2^64 - 2^32 + 1 to the emulation stack.
type GoldilocksField struct{}

func (GoldilocksField) NbLimbs() uint     { return 1 }
func (GoldilocksField) BitsPerLimb() uint { return 64 }
func (GoldilocksField) IsPrime() bool     { return true }
func (GoldilocksField) Modulus() *big.Int {
	return new(big.Int).SetUint64(sponge.Modulus)
}

// GF is a Goldilocks element inside the circuit.
type GF = emulated.Element[GoldilocksField]

func gfOf(v uint64) GF {
	return emulated.ValueOf[GoldilocksField](v)
}

// spongeGadget evaluates the pool sponge over emulated elements.
type spongeGadget struct {
	api frontend.API
	f   *emulated.Field[GoldilocksField]
}

func newSpongeGadget(api frontend.API) (*spongeGadget, error) {
	f, err := emulated.NewField[GoldilocksField](api)
	if err != nil {
		return nil, err
	}
	return &spongeGadget{api: api, f: f}, nil
}

func (s *spongeGadget) constant(v uint64) *GF {
	e := emulated.ValueOf[GoldilocksField](v)
	return &e
}

func (s *spongeGadget) sbox(x *GF) *GF {
	x2 := s.f.Mul(x, x)
	x4 := s.f.Mul(x2, x2)
	x6 := s.f.Mul(x4, x2)
	return s.f.Mul(x6, x)
}

func (s *spongeGadget) permute(state *[sponge.Width]*GF) {
	for round := 0; round < sponge.Rounds; round++ {
		for pos := 0; pos < sponge.Width; pos++ {
			state[pos] = s.f.Add(state[pos], s.constant(sponge.RoundConstant(round, pos)))
		}
		for pos := 0; pos < sponge.Width; pos++ {
			state[pos] = s.sbox(state[pos])
		}
		sum := state[0]
		for pos := 1; pos < sponge.Width; pos++ {
			sum = s.f.Add(sum, state[pos])
		}
		for pos := 0; pos < sponge.Width; pos++ {
			state[pos] = s.f.Add(state[pos], sum)
		}
	}
}

// hash mirrors sponge.Hash: domain in slot 0, one in the last capacity slot,
// rate-sized absorption rounds.
func (s *spongeGadget) hash(domain uint64, inputs []*GF) [sponge.DigestLimbs]*GF {
	var state [sponge.Width]*GF
	state[0] = s.constant(domain)
	for pos := 1; pos < sponge.Width-1; pos++ {
		state[pos] = s.f.Zero()
	}
	state[sponge.Width-1] = s.constant(1)

	for cursor := 0; cursor < len(inputs); cursor += sponge.Rate {
		take := len(inputs) - cursor
		if take > sponge.Rate {
			take = sponge.Rate
		}
		for i := 0; i < take; i++ {
			state[i] = s.f.Add(state[i], inputs[cursor+i])
		}
		s.permute(&state)
	}

	var out [sponge.DigestLimbs]*GF
	for i := 0; i < sponge.DigestLimbs; i++ {
		out[i] = state[i]
	}
	return out
}

func (s *spongeGadget) single(domain uint64, inputs []*GF) *GF {
	return s.hash(domain, inputs)[0]
}
