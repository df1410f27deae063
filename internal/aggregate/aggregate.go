// aggregate.go - Recursive batch aggregation of transaction proofs.
//
// A batch of BLS12-377 transaction proofs collapses into one BW6-761 proof
// whose statement is the batch's public statements. Block producers aggregate;
// validators then verify one proof per block instead of one per transaction.
// Short batches are padded with null-transaction proofs so the outer circuit
// shape never varies.

package aggregate

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/algebra/native/sw_bls12377"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/Pauli-Group/Hegemon-sub003/internal/txproof"
)

// BatchSize is the fixed number of transaction slots per aggregate proof.
const BatchSize = 4

var (
	// ErrBatchSize reports more statements than the circuit has slots.
	ErrBatchSize = errors.New("aggregate: batch exceeds capacity")
	// ErrAggregateInvalid reports a failed aggregate verification.
	ErrAggregateInvalid = errors.New("aggregate: proof verification failed")
)

type (
	innerProof   = stdgroth16.Proof[sw_bls12377.G1Affine, sw_bls12377.G2Affine]
	innerVK      = stdgroth16.VerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT]
	innerWitness = stdgroth16.Witness[sw_bls12377.ScalarField]
)

// Circuit verifies BatchSize transaction proofs under one verifying key. The
// key is public so a validator checks the aggregate against the canonical
// transaction key, not one of the producer's choosing.
type Circuit struct {
	Statements   [BatchSize]innerWitness `gnark:",public"`
	VerifyingKey innerVK                 `gnark:",public"`
	Proofs       [BatchSize]innerProof
}

func (c *Circuit) Define(api frontend.API) error {
	verifier, err := stdgroth16.NewVerifier[sw_bls12377.ScalarField, sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](api)
	if err != nil {
		return err
	}
	for i := 0; i < BatchSize; i++ {
		if err := verifier.AssertProof(c.VerifyingKey, c.Proofs[i], c.Statements[i]); err != nil {
			return err
		}
	}
	return nil
}

// Batch is one slot's proof and statement.
type Batch struct {
	Proof  []byte
	Public *txproof.PublicInputs
}

// Aggregator owns the outer proving system for one transaction suite.
type Aggregator struct {
	suite *txproof.Suite
	ccs   constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey
}

// New compiles the outer circuit against the suite's verifying key and runs
// key setup in memory.
func New(suite *txproof.Suite) (*Aggregator, error) {
	circuit := Circuit{
		VerifyingKey: stdgroth16.PlaceholderVerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](suite.ConstraintSystem()),
	}
	for i := 0; i < BatchSize; i++ {
		circuit.Statements[i] = stdgroth16.PlaceholderWitness[sw_bls12377.ScalarField](suite.ConstraintSystem())
		circuit.Proofs[i] = stdgroth16.PlaceholderProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](suite.ConstraintSystem())
	}
	ccs, err := frontend.Compile(ecc.BW6_761.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("aggregate: outer circuit compilation failed: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("aggregate: key setup failed: %w", err)
	}
	return &Aggregator{suite: suite, ccs: ccs, pk: pk, vk: vk}, nil
}

// pad extends a short batch with freshly proven null transactions.
func (a *Aggregator) pad(batch []Batch) ([]Batch, error) {
	if len(batch) > BatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchSize, len(batch), BatchSize)
	}
	for len(batch) < BatchSize {
		proof, public, err := a.suite.ProveNull()
		if err != nil {
			return nil, fmt.Errorf("aggregate: null padding proof: %w", err)
		}
		batch = append(batch, Batch{Proof: proof, Public: public})
	}
	return batch, nil
}

// Prove aggregates up to BatchSize transaction proofs into one proof.
// The returned statements include the padding slots, in order.
func (a *Aggregator) Prove(batch []Batch) ([]byte, []*txproof.PublicInputs, error) {
	batch, err := a.pad(batch)
	if err != nil {
		return nil, nil, err
	}
	assignment, publics, err := a.assignment(batch)
	if err != nil {
		return nil, nil, err
	}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BW6_761.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate: witness creation failed: %w", err)
	}
	proof, err := groth16.Prove(a.ccs, a.pk, fullWitness)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate: proof generation failed: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("aggregate: proof marshaling failed: %w", err)
	}
	return buf.Bytes(), publics, nil
}

// Verify checks an aggregate proof against its ordered statements.
func (a *Aggregator) Verify(proofBytes []byte, publics []*txproof.PublicInputs) error {
	if len(publics) != BatchSize {
		return fmt.Errorf("%w: %d statements, want %d", ErrBatchSize, len(publics), BatchSize)
	}
	assignment := &Circuit{}
	vk, err := stdgroth16.ValueOfVerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](a.suite.VerifyingKey())
	if err != nil {
		return fmt.Errorf("aggregate: verifying key conversion: %w", err)
	}
	assignment.VerifyingKey = vk
	for i, public := range publics {
		pw, err := a.suite.PublicWitness(public)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		assignment.Statements[i], err = stdgroth16.ValueOfWitness[sw_bls12377.ScalarField](pw)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BW6_761.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("aggregate: public witness creation failed: %w", err)
	}
	proof := groth16.NewProof(ecc.BW6_761)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("aggregate: proof unmarshaling failed: %w", err)
	}
	if err := groth16.Verify(proof, a.vk, publicWitness); err != nil {
		return fmt.Errorf("%w: %v", ErrAggregateInvalid, err)
	}
	return nil
}

// assignment converts a padded batch into the outer circuit witness.
func (a *Aggregator) assignment(batch []Batch) (*Circuit, []*txproof.PublicInputs, error) {
	assignment := &Circuit{}
	vk, err := stdgroth16.ValueOfVerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](a.suite.VerifyingKey())
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate: verifying key conversion: %w", err)
	}
	assignment.VerifyingKey = vk

	publics := make([]*txproof.PublicInputs, 0, BatchSize)
	for i, b := range batch {
		inner := groth16.NewProof(ecc.BLS12_377)
		if _, err := inner.ReadFrom(bytes.NewReader(b.Proof)); err != nil {
			return nil, nil, fmt.Errorf("slot %d: proof unmarshaling failed: %w", i, err)
		}
		assignment.Proofs[i], err = stdgroth16.ValueOfProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](inner)
		if err != nil {
			return nil, nil, fmt.Errorf("slot %d: proof conversion: %w", i, err)
		}
		pw, err := a.suite.PublicWitness(b.Public)
		if err != nil {
			return nil, nil, fmt.Errorf("slot %d: %w", i, err)
		}
		assignment.Statements[i], err = stdgroth16.ValueOfWitness[sw_bls12377.ScalarField](pw)
		if err != nil {
			return nil, nil, fmt.Errorf("slot %d: statement conversion: %w", i, err)
		}
		publics = append(publics, b.Public)
	}
	return assignment, publics, nil
}
