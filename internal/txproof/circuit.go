// circuit.go - The transaction validity circuit.
//
// One proof covers up to MaxInputs spends and MaxOutputs fresh notes. Slots
// can be inactive; an inactive slot publishes all-zero digests and has every
// constraint gated off, so a two-in-two-out circuit also carries one-in-one-out
// transactions without leaking the arity.

package txproof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

const (
	// MaxInputs and MaxOutputs fix the circuit arity.
	MaxInputs  = 2
	MaxOutputs = 2
	// BalanceSlots is the number of distinct assets one transaction can move.
	// Slot 0 is pinned to the native asset.
	BalanceSlots = 4
	// TreeDepth matches the commitment accumulator.
	TreeDepth = 32
)

// InputSlot is one (possibly inactive) spend.
type InputSlot struct {
	// Note opening.
	Value        GF
	AssetID      GF
	RecipientTag [4]GF
	Rho          [4]GF
	Blinding     [4]GF
	SpendAfter   GF

	// Spend authority and accumulator membership.
	SpendSecret  [4]GF
	PositionBits [TreeDepth]frontend.Variable
	Path         [TreeDepth][sponge.DigestLimbs]GF

	// SlotSelect[j] = 1 when this note settles in balance slot j.
	SlotSelect [BalanceSlots]frontend.Variable
	Active     frontend.Variable
}

// OutputSlot is one (possibly inactive) fresh note.
type OutputSlot struct {
	Value        GF
	AssetID      GF
	RecipientTag [4]GF
	Rho          [4]GF
	Blinding     [4]GF
	SpendAfter   GF

	SlotSelect [BalanceSlots]frontend.Variable
	Active     frontend.Variable
}

// Circuit is the Groth16 statement for one shielded transaction.
type Circuit struct {
	// Public inputs.
	Anchor       [sponge.DigestLimbs]GF             `gnark:",public"`
	Nullifiers   [MaxInputs][sponge.DigestLimbs]GF  `gnark:",public"`
	Commitments  [MaxOutputs][sponge.DigestLimbs]GF `gnark:",public"`
	Fee          GF                                 `gnark:",public"`
	ValueBalance GF                                 `gnark:",public"`
	BlockTime    GF                                 `gnark:",public"`

	// Private inputs.
	Inputs    [MaxInputs]InputSlot
	Outputs   [MaxOutputs]OutputSlot
	SlotAsset [BalanceSlots]GF
}

func (c *Circuit) Define(api frontend.API) error {
	s, err := newSpongeGadget(api)
	if err != nil {
		return err
	}
	f := s.f
	zero := f.Zero()

	// Step 1: slot 0 settles the native asset.
	f.AssertIsEqual(&c.SlotAsset[0], zero)

	inSums := make([]*GF, BalanceSlots)
	outSums := make([]*GF, BalanceSlots)
	for j := 0; j < BalanceSlots; j++ {
		inSums[j] = zero
		outSums[j] = zero
	}

	// Step 2: per-input constraints.
	for i := range c.Inputs {
		in := &c.Inputs[i]
		api.AssertIsBoolean(in.Active)
		for _, b := range in.PositionBits {
			api.AssertIsBoolean(b)
		}

		cm := s.hash(sponge.DomainNote, notePreimage(in.Value, in.AssetID, in.RecipientTag, in.Rho, in.Blinding, in.SpendAfter))

		// Membership: walk the path to the anchor, gated on activity.
		current := cm
		for level := 0; level < TreeDepth; level++ {
			bit := in.PositionBits[level]
			var left, right [sponge.DigestLimbs]*GF
			for l := 0; l < sponge.DigestLimbs; l++ {
				sib := &in.Path[level][l]
				left[l] = f.Select(bit, sib, current[l])
				right[l] = f.Select(bit, current[l], sib)
			}
			current = s.hash(sponge.DomainMerkle, append(left[:], right[:]...))
		}
		for l := 0; l < sponge.DigestLimbs; l++ {
			f.AssertIsEqual(f.Select(in.Active, current[l], &c.Anchor[l]), &c.Anchor[l])
		}

		// Nullifier: nk is a PRF of the spend secret, bound to position and rho.
		nk := s.single(sponge.DomainNullifierKey, refs(in.SpendSecret[:]))
		position := f.FromBits(in.PositionBits[:]...)
		nfPre := append([]*GF{nk, position}, refs(in.Rho[:])...)
		nf := s.hash(sponge.DomainNullifier, nfPre)
		for l := 0; l < sponge.DigestLimbs; l++ {
			f.AssertIsEqual(f.Select(in.Active, nf[l], zero), &c.Nullifiers[i][l])
		}

		// Timelock: an active note must be unlocked at the block time.
		f.AssertIsLessOrEqual(f.Select(in.Active, &in.SpendAfter, zero), &c.BlockTime)

		bindSlots(api, f, in.Active, in.SlotSelect, &in.AssetID, &c.SlotAsset, &in.Value, inSums)
	}

	// Step 3: per-output constraints.
	for i := range c.Outputs {
		out := &c.Outputs[i]
		api.AssertIsBoolean(out.Active)

		cm := s.hash(sponge.DomainNote, notePreimage(out.Value, out.AssetID, out.RecipientTag, out.Rho, out.Blinding, out.SpendAfter))
		for l := 0; l < sponge.DigestLimbs; l++ {
			f.AssertIsEqual(f.Select(out.Active, cm[l], zero), &c.Commitments[i][l])
		}

		bindSlots(api, f, out.Active, out.SlotSelect, &out.AssetID, &c.SlotAsset, &out.Value, outSums)
	}

	// Step 4: balance closure. The native slot absorbs the transparent flow
	// and the fee; every other slot must balance exactly.
	f.AssertIsEqual(f.Add(inSums[0], &c.ValueBalance), f.Add(outSums[0], &c.Fee))
	for j := 1; j < BalanceSlots; j++ {
		f.AssertIsEqual(inSums[j], outSums[j])
	}
	return nil
}

// bindSlots enforces the slot-selector discipline for one note and folds its
// value into the chosen slot sum. An inactive note selects no slot.
func bindSlots(api frontend.API, f *emulated.Field[GoldilocksField], active frontend.Variable, sel [BalanceSlots]frontend.Variable, assetID *GF, slotAsset *[BalanceSlots]GF, value *GF, sums []*GF) {
	zero := f.Zero()
	selSum := frontend.Variable(0)
	for j := 0; j < BalanceSlots; j++ {
		api.AssertIsBoolean(sel[j])
		selSum = api.Add(selSum, sel[j])
		// Selected slot must carry this note's asset.
		f.AssertIsEqual(f.Select(sel[j], assetID, &slotAsset[j]), &slotAsset[j])
		sums[j] = f.Add(sums[j], f.Select(sel[j], value, zero))
	}
	api.AssertIsEqual(selSum, active)
}

func notePreimage(value, assetID GF, tag, rho, blinding [4]GF, spendAfter GF) []*GF {
	pre := make([]*GF, 0, 15)
	pre = append(pre, &value, &assetID)
	pre = append(pre, refs(tag[:])...)
	pre = append(pre, refs(rho[:])...)
	pre = append(pre, refs(blinding[:])...)
	pre = append(pre, &spendAfter)
	return pre
}

func refs(elems []GF) []*GF {
	out := make([]*GF, len(elems))
	for i := range elems {
		out[i] = &elems[i]
	}
	return out
}
