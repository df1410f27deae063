package block

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Pauli-Group/Hegemon-sub003/internal/da"
	"github.com/Pauli-Group/Hegemon-sub003/internal/note"
	"github.com/Pauli-Group/Hegemon-sub003/internal/nullifier"
	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
	"github.com/Pauli-Group/Hegemon-sub003/internal/tree"
	"github.com/Pauli-Group/Hegemon-sub003/internal/txproof"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

// stubChecker accepts every proof except those it is told to reject.
type stubChecker struct {
	reject map[string]error
}

func (c *stubChecker) Check(b version.Binding, proof []byte, public *txproof.PublicInputs) error {
	if err, ok := c.reject[string(proof)]; ok {
		return err
	}
	return nil
}

const testTimestamp = 1_700_000_000

func testGate(t *testing.T) (*Gate, *State) {
	t.Helper()
	state, err := NewState(8, 10, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	gate := NewGate(state, &stubChecker{}, nil, version.DefaultSchedule(), zerolog.Nop())
	return gate, state
}

// testTx fabricates a transaction spending nothing and minting one note
// commitment, proven under the default binding.
func testTx(t *testing.T, state *State, seed uint64) Transaction {
	t.Helper()
	n := note.Note{Value: seed, AssetID: note.NativeAssetID}
	n.Rho[0] = byte(seed)
	n.Blinding[0] = byte(seed >> 8)
	public := &txproof.PublicInputs{
		Anchor:       state.Root().Bytes(),
		Fee:          0,
		ValueBalance: int64(seed),
		BlockTime:    testTimestamp,
		Binding:      version.DefaultBinding,
	}
	public.Commitments[0] = n.Commitment().Bytes()
	nk := note.NullifierKey([32]byte{byte(seed), byte(seed >> 8)})
	public.Nullifiers[0] = note.Nullifier(nk, n.Rho, seed).Bytes()
	return Transaction{
		Binding: version.DefaultBinding,
		Proof:   []byte{byte(seed), byte(seed >> 8), byte(seed >> 16)},
		Public:  public,
	}
}

func TestProduceAndImport(t *testing.T) {
	gate, state := testGate(t)
	txs := []Transaction{testTx(t, state, 1), testTx(t, state, 2)}
	b, err := gate.Produce(context.Background(), txs, testTimestamp, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if state.Height() != 1 {
		t.Fatalf("Height = %d, want 1", state.Height())
	}
	if state.NoteCount() != 2 {
		t.Fatalf("NoteCount = %d, want 2", state.NoteCount())
	}
	if state.SpentCount() != 2 {
		t.Fatalf("SpentCount = %d, want 2", state.SpentCount())
	}
	hash, err := b.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if state.LastHash() != hash {
		t.Fatal("LastHash does not track imported block")
	}
}

func TestImportRejectsInvalidProof(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	b, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	// Reimport on fresh state with a checker that rejects this proof.
	state2, err := NewState(8, 10, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	checker := &stubChecker{reject: map[string]error{
		string(tx.Proof): txproof.ErrProofInvalid,
	}}
	gate2 := NewGate(state2, checker, nil, version.DefaultSchedule(), zerolog.Nop())
	err = gate2.Import(context.Background(), b)
	if !errors.Is(err, txproof.ErrProofInvalid) {
		t.Fatalf("err = %v, want ErrProofInvalid", err)
	}
	// Nothing mutated.
	if state2.Height() != 0 || state2.NoteCount() != 0 || state2.SpentCount() != 0 {
		t.Fatal("rejected block mutated state")
	}
}

func TestImportRejectsUnscheduledVersion(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	b, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	state2, _ := NewState(8, 10, zerolog.Nop())
	empty := version.NewSchedule()
	gate2 := NewGate(state2, &stubChecker{}, nil, empty, zerolog.Nop())
	err = gate2.Import(context.Background(), b)
	if !errors.Is(err, version.ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
	if errors.Is(err, txproof.ErrProofInvalid) {
		t.Fatal("unsupported version conflated with proof failure")
	}
}

func TestImportRejectsDoubleSpendWithinBlock(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	dup := testTx(t, state, 9)
	dup.Public.Nullifiers[0] = tx.Public.Nullifiers[0]
	_, err := gate.Produce(context.Background(), []Transaction{tx, dup}, testTimestamp, nil)
	if !errors.Is(err, ErrDoubleSpend) {
		t.Fatalf("err = %v, want ErrDoubleSpend", err)
	}
	if state.Height() != 0 {
		t.Fatal("rejected block advanced state")
	}
}

func TestImportRejectsReplayedNullifier(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	if _, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	replay := testTx(t, state, 2)
	replay.Public.Nullifiers[0] = tx.Public.Nullifiers[0]
	_, err := gate.Produce(context.Background(), []Transaction{replay}, testTimestamp, nil)
	if !errors.Is(err, ErrDoubleSpend) {
		t.Fatalf("err = %v, want ErrDoubleSpend", err)
	}
}

func TestImportRejectsTamperedHeader(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	b, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Block)
		want   error
	}{
		{"tree root", func(b *Block) { b.Header.TreeRoot[0] ^= 1 }, ErrRootMismatch},
		{"nullifier commitment", func(b *Block) { b.Header.NullifierCommitment[0] ^= 1 }, ErrRootMismatch},
		{"da root", func(b *Block) { b.Header.DARoot[0] ^= 1 }, ErrRootMismatch},
		{"proof binding", func(b *Block) { b.Header.ProofBinding[0] ^= 1 }, ErrProofBinding},
		{"version matrix", func(b *Block) { b.Header.VersionMatrix[0] ^= 1 }, ErrMatrixMismatch},
		{"height", func(b *Block) { b.Header.Height = 5 }, ErrHeight},
		{"prev hash", func(b *Block) { b.Header.PrevHash[0] ^= 1 }, ErrPrevHash},
	}
	for _, tc := range cases {
		state2, _ := NewState(8, 10, zerolog.Nop())
		gate2 := NewGate(state2, &stubChecker{}, nil, version.DefaultSchedule(), zerolog.Nop())
		tampered := *b
		tampered.Header = b.Header
		tc.mutate(&tampered)
		if err := gate2.Import(context.Background(), &tampered); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if state2.Height() != 0 {
			t.Fatalf("%s: rejected block advanced state", tc.name)
		}
	}
}

func TestImportRejectsStaleAnchor(t *testing.T) {
	gate, state := testGate(t)
	// Advance past the root-history window of 10.
	for i := uint64(0); i < 12; i++ {
		tx := testTx(t, state, 100+i)
		if _, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil); err != nil {
			t.Fatalf("Produce %d: %v", i, err)
		}
	}
	stale := testTx(t, state, 999)
	// Anchor at the genesis empty root, long since evicted.
	genesis, err := tree.New(8, 10)
	if err != nil {
		t.Fatalf("tree.New: %v", err)
	}
	stale.Public.Anchor = genesis.Root().Bytes()
	_, err = gate.Produce(context.Background(), []Transaction{stale}, testTimestamp, nil)
	if !errors.Is(err, ErrAnchor) {
		t.Fatalf("err = %v, want ErrAnchor", err)
	}
}

func TestImportRejectsTimestampMismatch(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	tx.Public.BlockTime = testTimestamp + 5
	_, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil)
	if !errors.Is(err, ErrTimestampMismatch) {
		t.Fatalf("err = %v, want ErrTimestampMismatch", err)
	}
}

func TestCheckTransaction(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	if err := gate.CheckTransaction(&tx, 1, testTimestamp); err != nil {
		t.Fatalf("CheckTransaction: %v", err)
	}
	// Spend it, then the same transaction is a double spend.
	if _, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if err := gate.CheckTransaction(&tx, 2, testTimestamp); !errors.Is(err, ErrDoubleSpend) {
		t.Fatalf("err = %v, want ErrDoubleSpend", err)
	}
}

func TestReplayMatchesDirectStateOps(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 7)
	b, err := gate.Produce(context.Background(), []Transaction{tx}, testTimestamp, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	// Recompute header commitments independently.
	tr, err := tree.New(8, 10)
	if err != nil {
		t.Fatalf("tree.New: %v", err)
	}
	cms, err := tx.Public.ActiveCommitments()
	if err != nil {
		t.Fatalf("ActiveCommitments: %v", err)
	}
	if _, err := tr.Extend(cms); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if tr.Root().Bytes() != b.Header.TreeRoot {
		t.Fatal("independent tree root differs from header")
	}

	set := nullifier.NewSet()
	nfs, err := tx.Public.ActiveNullifiers()
	if err != nil {
		t.Fatalf("ActiveNullifiers: %v", err)
	}
	if err := set.InsertAll(nfs); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}
	if set.Commitment() != b.Header.NullifierCommitment {
		t.Fatal("independent nullifier commitment differs from header")
	}

	payload, err := b.MarshalPayload()
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	blob, err := da.Encode(payload, dataShardsFor(len(payload)))
	if err != nil {
		t.Fatalf("da.Encode: %v", err)
	}
	if blob.Root() != b.Header.DARoot {
		t.Fatal("independent availability root differs from header")
	}
}

func TestNullifierZeroPaddingIgnored(t *testing.T) {
	gate, state := testGate(t)
	tx := testTx(t, state, 1)
	// Slot 1 stays all-zero in both arrays; two such transactions must not
	// collide on the zero digest.
	tx2 := testTx(t, state, 2)
	if _, err := gate.Produce(context.Background(), []Transaction{tx, tx2}, testTimestamp, nil); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if state.Spent(sponge.Digest{}) {
		t.Fatal("zero digest entered the nullifier ledger")
	}
}
