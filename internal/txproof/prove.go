// prove.go - Groth16 proving, verification and the version-keyed suite registry.
//
// Each (circuit, suite) binding owns one compiled constraint system and one
// key pair. Consensus looks suites up by binding; a binding with no suite is
// an unsupported version, which is a different failure than an invalid proof.

package txproof

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

// ErrProofInvalid reports a proof that fails cryptographic verification.
var ErrProofInvalid = errors.New("txproof: proof verification failed")

// Compile builds the transaction constraint system over BLS12-377.
func Compile() (constraint.ConstraintSystem, error) {
	var circuit Circuit
	ccs, err := frontend.Compile(ecc.BLS12_377.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("txproof: circuit compilation failed: %w", err)
	}
	return ccs, nil
}

// Suite is one proving system instance bound to a protocol version.
type Suite struct {
	binding version.Binding
	ccs     constraint.ConstraintSystem
	pk      groth16.ProvingKey
	vk      groth16.VerifyingKey
}

// NewSuite compiles the circuit and loads or generates keys under keyDir.
func NewSuite(binding version.Binding, keyDir string) (*Suite, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("tx_c%d_s%d", binding.Circuit, binding.Suite)
	pk, vk, err := SetupOrLoadKeys(ccs,
		filepath.Join(keyDir, base+".pk"),
		filepath.Join(keyDir, base+".vk"))
	if err != nil {
		return nil, fmt.Errorf("txproof: key setup for %s: %w", binding, err)
	}
	return &Suite{binding: binding, ccs: ccs, pk: pk, vk: vk}, nil
}

// NewEphemeralSuite compiles and sets up keys in memory, for tests and tools.
func NewEphemeralSuite(binding version.Binding) (*Suite, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("txproof: key setup: %w", err)
	}
	return &Suite{binding: binding, ccs: ccs, pk: pk, vk: vk}, nil
}

// Binding returns the protocol version this suite proves under.
func (s *Suite) Binding() version.Binding { return s.binding }

// VerifyingKey exposes the key for recursive aggregation.
func (s *Suite) VerifyingKey() groth16.VerifyingKey { return s.vk }

// ConstraintSystem exposes the compiled circuit for recursive aggregation.
func (s *Suite) ConstraintSystem() constraint.ConstraintSystem { return s.ccs }

// Prove validates the witness, proves it, and returns the serialized proof
// with its public statement.
func (s *Suite) Prove(w *Witness) ([]byte, *PublicInputs, error) {
	if err := w.Validate(); err != nil {
		return nil, nil, err
	}
	assignment, err := w.assignment()
	if err != nil {
		return nil, nil, err
	}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BLS12_377.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("txproof: witness creation failed: %w", err)
	}
	// Recursion-aware options keep the proof verifiable both natively and
	// inside the BW6-761 aggregation circuit.
	proof, err := groth16.Prove(s.ccs, s.pk, fullWitness,
		stdgroth16.GetNativeProverOptions(ecc.BW6_761.ScalarField(), ecc.BLS12_377.ScalarField()))
	if err != nil {
		return nil, nil, fmt.Errorf("txproof: proof generation failed: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("txproof: proof marshaling failed: %w", err)
	}
	return buf.Bytes(), w.PublicInputs(s.binding), nil
}

// ProveNull produces a padding proof with an all-inactive statement, used to
// fill aggregation batches.
func (s *Suite) ProveNull() ([]byte, *PublicInputs, error) {
	w := &Witness{}
	return s.Prove(w)
}

// Verify checks a serialized proof against its public statement. Canonicality
// of every digest is enforced before any curve work.
func (s *Suite) Verify(proofBytes []byte, public *PublicInputs) error {
	publicWitness, err := s.PublicWitness(public)
	if err != nil {
		return err
	}
	proof := groth16.NewProof(ecc.BLS12_377)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("txproof: proof unmarshaling failed: %w", err)
	}
	if err := groth16.Verify(proof, s.vk, publicWitness,
		stdgroth16.GetNativeVerifierOptions(ecc.BW6_761.ScalarField(), ecc.BLS12_377.ScalarField())); err != nil {
		return fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	return nil
}

// PublicWitness checks canonicality and builds the public-only witness for a
// statement. Aggregation uses it to feed statements into the outer circuit.
func (s *Suite) PublicWitness(public *PublicInputs) (witness.Witness, error) {
	if err := public.CheckCanonical(); err != nil {
		return nil, err
	}
	assignment, err := publicAssignment(public)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(assignment, ecc.BLS12_377.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("txproof: public witness creation failed: %w", err)
	}
	return w, nil
}

// publicAssignment rebuilds the public half of the circuit witness.
func publicAssignment(p *PublicInputs) (*Circuit, error) {
	c := &Circuit{}
	anchor, err := sponge.DigestFromBytes(p.Anchor[:])
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	c.Anchor = digestGF(anchor)
	for i := range p.Nullifiers {
		d, err := sponge.DigestFromBytes(p.Nullifiers[i][:])
		if err != nil {
			return nil, fmt.Errorf("nullifier %d: %w", i, err)
		}
		c.Nullifiers[i] = digestGF(d)
	}
	for i := range p.Commitments {
		d, err := sponge.DigestFromBytes(p.Commitments[i][:])
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", i, err)
		}
		c.Commitments[i] = digestGF(d)
	}
	c.Fee = gfOf(p.Fee)
	c.ValueBalance = gfOf(valueBalanceFelt(p.ValueBalance))
	c.BlockTime = gfOf(p.BlockTime)
	return c, nil
}

// Registry maps protocol versions to proving suites.
type Registry struct {
	suites map[version.Binding]*Suite
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{suites: make(map[version.Binding]*Suite)}
}

// Register adds a suite, replacing any previous suite for the same binding.
func (r *Registry) Register(s *Suite) {
	r.suites[s.binding] = s
}

// Get returns the suite for a binding or ErrUnsupportedVersion.
func (r *Registry) Get(b version.Binding) (*Suite, error) {
	s, ok := r.suites[b]
	if !ok {
		return nil, fmt.Errorf("%w: no suite for %s", version.ErrUnsupportedVersion, b)
	}
	return s, nil
}

// SaveProvingKey writes a Groth16 proving key to disk.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey writes a Groth16 verifying key to disk.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

// LoadProvingKey reads a Groth16 proving key from disk.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BLS12_377)
	_, err = pk.ReadFrom(f)
	return pk, err
}

// LoadVerifyingKey reads a Groth16 verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BLS12_377)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// SetupOrLoadKeys loads keys from disk when both exist, otherwise generates
// and persists a fresh pair.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := SaveProvingKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := SaveVerifyingKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}
