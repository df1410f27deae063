package aggregate

import (
	"errors"
	"testing"

	"github.com/Pauli-Group/Hegemon-sub003/internal/note"
	"github.com/Pauli-Group/Hegemon-sub003/internal/tree"
	"github.com/Pauli-Group/Hegemon-sub003/internal/txproof"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

func spendBatch(t *testing.T, suite *txproof.Suite, count int) []Batch {
	t.Helper()
	tr, err := tree.New(txproof.TreeDepth, 10)
	if err != nil {
		t.Fatalf("tree.New: %v", err)
	}
	var batch []Batch
	for i := 0; i < count; i++ {
		kp, err := note.NewKeypair()
		if err != nil {
			t.Fatalf("NewKeypair: %v", err)
		}
		rho, _ := note.RandomBytes32()
		blinding, _ := note.RandomBytes32()
		funded := note.Note{
			Value:        1000,
			RecipientTag: note.RecipientTag(kp.ViewingSecret),
			Rho:          rho,
			Blinding:     blinding,
		}
		position, err := tr.Append(funded.Commitment())
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		path, err := tr.AuthenticationPath(position)
		if err != nil {
			t.Fatalf("AuthenticationPath: %v", err)
		}
		w := &txproof.Witness{
			Inputs: []txproof.Spend{{
				Note:        funded,
				SpendSecret: kp.SpendSecret,
				Position:    position,
				Path:        path,
			}},
			Anchor:       tr.Root(),
			Fee:          10,
			ValueBalance: -990,
			BlockTime:    1_700_000_000,
		}
		proof, public, err := suite.Prove(w)
		if err != nil {
			t.Fatalf("Prove: %v", err)
		}
		batch = append(batch, Batch{Proof: proof, Public: public})
	}
	return batch
}

func TestAggregateRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("recursive groth16 setup and proving")
	}
	suite, err := txproof.NewEphemeralSuite(version.DefaultBinding)
	if err != nil {
		t.Fatalf("NewEphemeralSuite: %v", err)
	}
	agg, err := New(suite)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Two real transactions, two padding slots.
	batch := spendBatch(t, suite, 2)
	proof, publics, err := agg.Prove(batch)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if len(publics) != BatchSize {
		t.Fatalf("statement count = %d, want %d", len(publics), BatchSize)
	}
	if err := agg.Verify(proof, publics); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Swapping one statement must break verification.
	tampered := *publics[0]
	tampered.Fee++
	swapped := append([]*txproof.PublicInputs{&tampered}, publics[1:]...)
	if err := agg.Verify(proof, swapped); !errors.Is(err, ErrAggregateInvalid) {
		t.Fatalf("tampered statement: err = %v, want ErrAggregateInvalid", err)
	}
}

func TestAggregateBatchSizeBound(t *testing.T) {
	if testing.Short() {
		t.Skip("recursive groth16 setup")
	}
	suite, err := txproof.NewEphemeralSuite(version.DefaultBinding)
	if err != nil {
		t.Fatalf("NewEphemeralSuite: %v", err)
	}
	agg, err := New(suite)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	over := make([]Batch, BatchSize+1)
	if _, _, err := agg.Prove(over); !errors.Is(err, ErrBatchSize) {
		t.Fatalf("err = %v, want ErrBatchSize", err)
	}
	if err := agg.Verify(nil, nil); !errors.Is(err, ErrBatchSize) {
		t.Fatalf("Verify with no statements: err = %v, want ErrBatchSize", err)
	}
}
