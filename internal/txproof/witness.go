// witness.go - Native transaction witness assembly and validation.
//
// The wallet builds a Witness, validates it, and only then pays for proving.
// Everything the circuit enforces is pre-checked here so a malformed
// transaction fails with a named error instead of an opaque unsatisfied
// constraint.

package txproof

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/std/math/emulated"

	"github.com/Pauli-Group/Hegemon-sub003/internal/note"
	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

var (
	// ErrArity reports too many spends or outputs for the circuit.
	ErrArity = errors.New("txproof: arity exceeds circuit capacity")
	// ErrPathLength reports an authentication path of the wrong depth.
	ErrPathLength = errors.New("txproof: authentication path length mismatch")
	// ErrTimelocked reports a spend of a note before its unlock time.
	ErrTimelocked = errors.New("txproof: note is timelocked")
	// ErrUnbalanced reports a transaction whose per-asset values do not close.
	ErrUnbalanced = errors.New("txproof: value balance does not close")
	// ErrTooManyAssets reports more distinct assets than balance slots.
	ErrTooManyAssets = errors.New("txproof: too many distinct assets")
	// ErrFeeOutOfRange reports a fee outside the hash field.
	ErrFeeOutOfRange = errors.New("txproof: fee out of range")
)

// Spend describes one note being consumed: its opening, the authority to
// spend it, and its place in the accumulator.
type Spend struct {
	Note        note.Note
	SpendSecret [32]byte
	Position    uint64
	Path        []sponge.Digest
}

// Witness is the full private input to one transaction proof.
type Witness struct {
	Inputs  []Spend
	Outputs []note.Note

	Anchor       sponge.Digest
	Fee          uint64
	ValueBalance int64
	BlockTime    uint64
}

// Validate checks arity, field ranges, timelocks, path shapes and balance
// closure. A witness that validates is expected to prove.
func (w *Witness) Validate() error {
	if len(w.Inputs) > MaxInputs || len(w.Outputs) > MaxOutputs {
		return fmt.Errorf("%w: %d inputs, %d outputs", ErrArity, len(w.Inputs), len(w.Outputs))
	}
	if w.Fee >= sponge.Modulus {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, w.Fee)
	}
	for i := range w.Inputs {
		in := &w.Inputs[i]
		if err := in.Note.Validate(); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if len(in.Path) != TreeDepth {
			return fmt.Errorf("input %d: %w: got %d, want %d", i, ErrPathLength, len(in.Path), TreeDepth)
		}
		if in.Note.SpendAfter > w.BlockTime {
			return fmt.Errorf("input %d: %w: unlocks at %d, block time %d", i, ErrTimelocked, in.Note.SpendAfter, w.BlockTime)
		}
	}
	for i := range w.Outputs {
		if err := w.Outputs[i].Validate(); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	_, err := w.slotAssets()
	return err
}

// slotAssets assigns every distinct asset to a balance slot, native first,
// and checks per-asset closure with unbounded integers.
func (w *Witness) slotAssets() ([BalanceSlots]uint64, error) {
	var slots [BalanceSlots]uint64
	slots[0] = note.NativeAssetID
	used := 1

	deltas := map[uint64]*big.Int{note.NativeAssetID: new(big.Int)}
	slotOf := func(asset uint64) (int, error) {
		for j := 0; j < used; j++ {
			if slots[j] == asset {
				return j, nil
			}
		}
		if used == BalanceSlots {
			return 0, fmt.Errorf("%w: asset %d needs slot %d", ErrTooManyAssets, asset, used+1)
		}
		slots[used] = asset
		deltas[asset] = new(big.Int)
		used++
		return used - 1, nil
	}

	for i := range w.Inputs {
		n := &w.Inputs[i].Note
		if _, err := slotOf(n.AssetID); err != nil {
			return slots, err
		}
		deltas[n.AssetID].Add(deltas[n.AssetID], new(big.Int).SetUint64(n.Value))
	}
	for i := range w.Outputs {
		n := &w.Outputs[i]
		if _, err := slotOf(n.AssetID); err != nil {
			return slots, err
		}
		deltas[n.AssetID].Sub(deltas[n.AssetID], new(big.Int).SetUint64(n.Value))
	}

	// Native slot: inputs + valueBalance = outputs + fee.
	native := deltas[note.NativeAssetID]
	native.Add(native, big.NewInt(w.ValueBalance))
	native.Sub(native, new(big.Int).SetUint64(w.Fee))
	for asset, delta := range deltas {
		if delta.Sign() != 0 {
			return slots, fmt.Errorf("%w: asset %d off by %s", ErrUnbalanced, asset, delta)
		}
	}
	return slots, nil
}

// Nullifiers derives the spend markers this witness will reveal, in input
// order, zero-padded to the circuit arity.
func (w *Witness) Nullifiers() [MaxInputs]sponge.Digest {
	var out [MaxInputs]sponge.Digest
	for i := range w.Inputs {
		in := &w.Inputs[i]
		nk := note.NullifierKey(in.SpendSecret)
		out[i] = note.Nullifier(nk, in.Note.Rho, in.Position)
	}
	return out
}

// Commitments derives the fresh note commitments, zero-padded.
func (w *Witness) Commitments() [MaxOutputs]sponge.Digest {
	var out [MaxOutputs]sponge.Digest
	for i := range w.Outputs {
		out[i] = w.Outputs[i].Commitment()
	}
	return out
}

// PublicInputs derives the public statement this witness proves.
func (w *Witness) PublicInputs(binding version.Binding) *PublicInputs {
	p := &PublicInputs{
		Anchor:       w.Anchor.Bytes(),
		Fee:          w.Fee,
		ValueBalance: w.ValueBalance,
		BlockTime:    w.BlockTime,
		Binding:      binding,
	}
	nfs := w.Nullifiers()
	for i := range nfs {
		p.Nullifiers[i] = nfs[i].Bytes()
	}
	cms := w.Commitments()
	for i := range cms {
		p.Commitments[i] = cms[i].Bytes()
	}
	return p
}

// valueBalanceFelt maps the signed transparent flow into the hash field.
func valueBalanceFelt(v int64) uint64 {
	if v >= 0 {
		return uint64(v) % sponge.Modulus
	}
	return sponge.Modulus - uint64(-v)%sponge.Modulus
}

// assignment builds the full circuit witness, padding inactive slots.
func (w *Witness) assignment() (*Circuit, error) {
	slots, err := w.slotAssets()
	if err != nil {
		return nil, err
	}
	slotIndex := func(asset uint64) int {
		for j := range slots {
			if slots[j] == asset {
				return j
			}
		}
		return 0
	}

	c := &Circuit{
		Fee:          emulated.ValueOf[GoldilocksField](w.Fee),
		ValueBalance: emulated.ValueOf[GoldilocksField](valueBalanceFelt(w.ValueBalance)),
		BlockTime:    emulated.ValueOf[GoldilocksField](w.BlockTime),
	}
	c.Anchor = digestGF(w.Anchor)
	for j := range slots {
		c.SlotAsset[j] = emulated.ValueOf[GoldilocksField](slots[j])
	}

	nfs := w.Nullifiers()
	for i := 0; i < MaxInputs; i++ {
		slot := &c.Inputs[i]
		if i >= len(w.Inputs) {
			padInput(slot)
			c.Nullifiers[i] = digestGF(sponge.Digest{})
			continue
		}
		in := &w.Inputs[i]
		fillNoteFields(&slot.Value, &slot.AssetID, &slot.RecipientTag, &slot.Rho, &slot.Blinding, &slot.SpendAfter, &in.Note)
		slot.SpendSecret = bytesGF(in.SpendSecret)
		for level := 0; level < TreeDepth; level++ {
			slot.PositionBits[level] = (in.Position >> uint(level)) & 1
			slot.Path[level] = digestGF(in.Path[level])
		}
		for j := 0; j < BalanceSlots; j++ {
			slot.SlotSelect[j] = 0
		}
		slot.SlotSelect[slotIndex(in.Note.AssetID)] = 1
		slot.Active = 1
		c.Nullifiers[i] = digestGF(nfs[i])
	}

	cms := w.Commitments()
	for i := 0; i < MaxOutputs; i++ {
		slot := &c.Outputs[i]
		if i >= len(w.Outputs) {
			padOutput(slot)
			c.Commitments[i] = digestGF(sponge.Digest{})
			continue
		}
		out := &w.Outputs[i]
		fillNoteFields(&slot.Value, &slot.AssetID, &slot.RecipientTag, &slot.Rho, &slot.Blinding, &slot.SpendAfter, out)
		for j := 0; j < BalanceSlots; j++ {
			slot.SlotSelect[j] = 0
		}
		slot.SlotSelect[slotIndex(out.AssetID)] = 1
		slot.Active = 1
		c.Commitments[i] = digestGF(cms[i])
	}
	return c, nil
}

// NullAssignment is the all-inactive witness used to pad aggregation batches.
func NullAssignment() *Circuit {
	w := &Witness{}
	c, err := w.assignment()
	if err != nil {
		// An empty witness always closes its balances.
		panic(err)
	}
	return c
}

func fillNoteFields(value, assetID *GF, tag, rho, blinding *[4]GF, spendAfter *GF, n *note.Note) {
	*value = emulated.ValueOf[GoldilocksField](n.Value)
	*assetID = emulated.ValueOf[GoldilocksField](n.AssetID)
	*tag = bytesGF(n.RecipientTag)
	*rho = bytesGF(n.Rho)
	*blinding = bytesGF(n.Blinding)
	*spendAfter = emulated.ValueOf[GoldilocksField](n.SpendAfter)
}

func padInput(slot *InputSlot) {
	var zero note.Note
	fillNoteFields(&slot.Value, &slot.AssetID, &slot.RecipientTag, &slot.Rho, &slot.Blinding, &slot.SpendAfter, &zero)
	slot.SpendSecret = bytesGF([32]byte{})
	for level := 0; level < TreeDepth; level++ {
		slot.PositionBits[level] = 0
		slot.Path[level] = digestGF(sponge.Digest{})
	}
	for j := 0; j < BalanceSlots; j++ {
		slot.SlotSelect[j] = 0
	}
	slot.Active = 0
}

func padOutput(slot *OutputSlot) {
	var zero note.Note
	fillNoteFields(&slot.Value, &slot.AssetID, &slot.RecipientTag, &slot.Rho, &slot.Blinding, &slot.SpendAfter, &zero)
	for j := 0; j < BalanceSlots; j++ {
		slot.SlotSelect[j] = 0
	}
	slot.Active = 0
}

func digestGF(d sponge.Digest) [sponge.DigestLimbs]GF {
	limbs := d.Limbs()
	var out [sponge.DigestLimbs]GF
	for i := range limbs {
		out[i] = emulated.ValueOf[GoldilocksField](limbs[i])
	}
	return out
}

// bytesGF reduces a 32-byte string into four field limbs, matching the
// native preimage encoding.
func bytesGF(b [32]byte) [4]GF {
	felts := sponge.BytesToFelts(b[:])
	var out [4]GF
	for i := range felts {
		out[i] = emulated.ValueOf[GoldilocksField](felts[i].BigInt(new(big.Int)))
	}
	return out
}
