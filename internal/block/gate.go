// gate.go - Block validation pipeline and import.
//
// A candidate block passes five checks before any state mutates:
//
//	1. every transaction's version binding is active at the block height
//	2. every proof verifies, individually in parallel or as one aggregate
//	3. the revealed nullifiers are fresh and mutually distinct
//	4. the header's proof binding matches the ordered transaction list
//	5. replaying the block on forked state reproduces the header's tree
//	   root, nullifier commitment and availability root
//
// Only then does the forked state swap in, so a block is applied completely
// or not at all.

package block

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Pauli-Group/Hegemon-sub003/internal/aggregate"
	"github.com/Pauli-Group/Hegemon-sub003/internal/da"
	"github.com/Pauli-Group/Hegemon-sub003/internal/nullifier"
	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
	"github.com/Pauli-Group/Hegemon-sub003/internal/tree"
	"github.com/Pauli-Group/Hegemon-sub003/internal/txproof"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

var (
	// ErrHeight reports a block that does not extend the current tip.
	ErrHeight = errors.New("block: height does not extend chain")
	// ErrPrevHash reports a block whose parent link is wrong.
	ErrPrevHash = errors.New("block: previous hash mismatch")
	// ErrTimestampMismatch reports a statement proven for a different block time.
	ErrTimestampMismatch = errors.New("block: statement block time mismatch")
	// ErrAnchor reports a statement anchored outside the recent-root window.
	ErrAnchor = errors.New("block: anchor outside root history")
	// ErrDoubleSpend reports a nullifier already on the ledger or repeated
	// within the block.
	ErrDoubleSpend = errors.New("block: double spend")
	// ErrProofBinding reports a header that does not commit to its proofs.
	ErrProofBinding = errors.New("block: proof binding mismatch")
	// ErrRootMismatch reports replayed state that misses a header commitment.
	ErrRootMismatch = errors.New("block: replayed state root mismatch")
	// ErrMatrixMismatch reports a header with the wrong version matrix.
	ErrMatrixMismatch = errors.New("block: version matrix mismatch")
	// ErrAggregateStatements reports an aggregate whose statements do not
	// cover the block's transactions.
	ErrAggregateStatements = errors.New("block: aggregate statements mismatch")
	// ErrMissingStatement reports a transaction without a public statement.
	ErrMissingStatement = errors.New("block: missing public statement")
)

// ProofChecker verifies one transaction proof for a version binding.
// *txproof.Registry backs the production implementation.
type ProofChecker interface {
	Check(b version.Binding, proof []byte, public *txproof.PublicInputs) error
}

// RegistryChecker verifies proofs through the suite registry.
type RegistryChecker struct {
	Registry *txproof.Registry
}

func (c RegistryChecker) Check(b version.Binding, proof []byte, public *txproof.PublicInputs) error {
	suite, err := c.Registry.Get(b)
	if err != nil {
		return err
	}
	return suite.Verify(proof, public)
}

// AggregateVerifier verifies one batch proof over padded statements.
// *aggregate.Aggregator satisfies it.
type AggregateVerifier interface {
	Verify(proof []byte, publics []*txproof.PublicInputs) error
}

// Gate validates and imports blocks.
type Gate struct {
	state       *State
	checker     ProofChecker
	agg         AggregateVerifier
	schedule    *version.Schedule
	concurrency int
	log         zerolog.Logger
}

// NewGate wires the pipeline. agg may be nil when the deployment only
// carries per-transaction proofs.
func NewGate(state *State, checker ProofChecker, agg AggregateVerifier, schedule *version.Schedule, log zerolog.Logger) *Gate {
	return &Gate{
		state:    state,
		checker:  checker,
		agg:      agg,
		schedule: schedule,
		log:      log.With().Str("component", "gate").Logger(),
	}
}

// SetMaxConcurrency bounds parallel proof verification. Zero or negative
// means unbounded.
func (g *Gate) SetMaxConcurrency(n int) {
	g.concurrency = n
}

// CheckTransaction validates one transaction against current state for
// mempool admission: schedule, statement sanity, anchor, freshness, proof.
func (g *Gate) CheckTransaction(tx *Transaction, height, timestamp uint64) error {
	if err := g.schedule.Check(tx.Binding, height); err != nil {
		return err
	}
	if err := tx.Public.CheckCanonical(); err != nil {
		return err
	}
	if tx.Public.Binding != tx.Binding {
		return fmt.Errorf("%w: statement %s, envelope %s",
			version.ErrUnsupportedVersion, tx.Public.Binding, tx.Binding)
	}
	if tx.Public.BlockTime != timestamp {
		return ErrTimestampMismatch
	}
	anchor, err := sponge.DigestFromBytes(tx.Public.Anchor[:])
	if err != nil {
		return err
	}
	if !anchor.IsZero() && !g.state.ContainsRoot(anchor) {
		return ErrAnchor
	}
	nfs, err := tx.Public.ActiveNullifiers()
	if err != nil {
		return err
	}
	for _, nf := range nfs {
		if g.state.Spent(nf) {
			return ErrDoubleSpend
		}
	}
	return g.checker.Check(tx.Binding, tx.Proof, tx.Public)
}

// Import validates a candidate block and applies it atomically.
func (g *Gate) Import(ctx context.Context, b *Block) error {
	t, spent, height, lastHash := g.state.fork()

	if b.Header.Height != height+1 {
		return fmt.Errorf("%w: got %d, tip %d", ErrHeight, b.Header.Height, height)
	}
	if b.Header.PrevHash != lastHash {
		return ErrPrevHash
	}

	// Step 1: version schedule.
	bindings := make([]version.Binding, len(b.Transactions))
	for i := range b.Transactions {
		bindings[i] = b.Transactions[i].Binding
	}
	if idx, bad := g.schedule.FirstUnsupported(bindings, b.Header.Height); idx >= 0 {
		return fmt.Errorf("transaction %d: %w: %s at height %d",
			idx, version.ErrUnsupportedVersion, bad, b.Header.Height)
	}
	if b.Header.VersionMatrix != g.schedule.MatrixCommitment(b.Header.Height) {
		return ErrMatrixMismatch
	}

	// Statement sanity before any curve work: canonical digests, the block's
	// timestamp, a known anchor.
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		if tx.Public == nil {
			return fmt.Errorf("transaction %d: %w", i, ErrMissingStatement)
		}
		if err := tx.Public.CheckCanonical(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if tx.Public.Binding != tx.Binding {
			return fmt.Errorf("transaction %d: %w: statement %s, envelope %s",
				i, version.ErrUnsupportedVersion, tx.Public.Binding, tx.Binding)
		}
		if tx.Public.BlockTime != b.Header.Timestamp {
			return fmt.Errorf("transaction %d: %w", i, ErrTimestampMismatch)
		}
		anchor, err := sponge.DigestFromBytes(tx.Public.Anchor[:])
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if !anchor.IsZero() && !t.ContainsRoot(anchor) {
			return fmt.Errorf("transaction %d: %w", i, ErrAnchor)
		}
	}

	// Step 2: proof validity.
	if err := g.verifyProofs(ctx, b); err != nil {
		return err
	}

	// Step 3: nullifier freshness.
	nullifiers, err := g.checkNullifiers(b, spent)
	if err != nil {
		return err
	}

	// Step 4: proof binding.
	binding, err := ProofBinding(b.Transactions)
	if err != nil {
		return err
	}
	if binding != b.Header.ProofBinding {
		return ErrProofBinding
	}

	// Step 5: state replay.
	if err := g.replay(b, t, spent, nullifiers); err != nil {
		return err
	}

	hash, err := b.Hash()
	if err != nil {
		return err
	}
	g.state.commit(t, spent, b.Header.Height, hash)
	g.log.Info().
		Uint64("height", b.Header.Height).
		Int("transactions", len(b.Transactions)).
		Bool("aggregated", b.Aggregate != nil).
		Msg("block imported")
	return nil
}

// verifyProofs runs per-transaction verification in parallel, or checks the
// single aggregate proof when the block carries one.
func (g *Gate) verifyProofs(ctx context.Context, b *Block) error {
	if b.Aggregate != nil {
		return g.verifyAggregate(b)
	}
	eg, _ := errgroup.WithContext(ctx)
	if g.concurrency > 0 {
		eg.SetLimit(g.concurrency)
	}
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		idx := i
		eg.Go(func() error {
			if err := g.checker.Check(tx.Binding, tx.Proof, tx.Public); err != nil {
				return fmt.Errorf("transaction %d: %w", idx, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (g *Gate) verifyAggregate(b *Block) error {
	if g.agg == nil {
		return fmt.Errorf("%w: no aggregate verifier configured", ErrAggregateStatements)
	}
	stmts := b.Aggregate.Statements
	if len(stmts) < len(b.Transactions) {
		return fmt.Errorf("%w: %d statements for %d transactions",
			ErrAggregateStatements, len(stmts), len(b.Transactions))
	}
	for i := range b.Transactions {
		got, err := stmts[i].MarshalCanonical()
		if err != nil {
			return err
		}
		want, err := b.Transactions[i].Public.MarshalCanonical()
		if err != nil {
			return err
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("statement %d: %w", i, ErrAggregateStatements)
		}
	}
	// Padding slots must be inert: no spends, no mints, no fees.
	for i := len(b.Transactions); i < len(stmts); i++ {
		nfs, err := stmts[i].ActiveNullifiers()
		if err != nil {
			return fmt.Errorf("padding %d: %w", i, err)
		}
		cms, err := stmts[i].ActiveCommitments()
		if err != nil {
			return fmt.Errorf("padding %d: %w", i, err)
		}
		if len(nfs) != 0 || len(cms) != 0 || stmts[i].Fee != 0 || stmts[i].ValueBalance != 0 {
			return fmt.Errorf("padding %d: %w: not a null statement", i, ErrAggregateStatements)
		}
	}
	return g.agg.Verify(b.Aggregate.Proof, stmts)
}

// checkNullifiers gathers the block's spend markers in order and rejects
// ledger or intra-block repeats. The intra-block check sorts a copy and scans
// for adjacent equals, leaving the consensus ordering untouched.
func (g *Gate) checkNullifiers(b *Block, spent *nullifier.Set) ([]sponge.Digest, error) {
	var ordered []sponge.Digest
	for i := range b.Transactions {
		nfs, err := b.Transactions[i].Public.ActiveNullifiers()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		for _, nf := range nfs {
			if spent.Contains(nf) {
				return nil, fmt.Errorf("transaction %d: %w: already on ledger", i, ErrDoubleSpend)
			}
			ordered = append(ordered, nf)
		}
	}
	sorted := make([][sponge.DigestSize]byte, len(ordered))
	for i, nf := range ordered {
		sorted[i] = nf.Bytes()
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("%w: nullifier repeated within block", ErrDoubleSpend)
		}
	}
	return ordered, nil
}

// replay applies the block to forked state and compares every header
// commitment against the recomputed values.
func (g *Gate) replay(b *Block, t *tree.Tree, spent *nullifier.Set, nullifiers []sponge.Digest) error {
	var commitments []sponge.Digest
	for i := range b.Transactions {
		cms, err := b.Transactions[i].Public.ActiveCommitments()
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		commitments = append(commitments, cms...)
	}
	if _, err := t.Extend(commitments); err != nil {
		return err
	}
	if t.Root().Bytes() != b.Header.TreeRoot {
		return fmt.Errorf("%w: accumulator root", ErrRootMismatch)
	}
	if err := spent.InsertAll(nullifiers); err != nil {
		return fmt.Errorf("%w: %v", ErrDoubleSpend, err)
	}
	if spent.Commitment() != b.Header.NullifierCommitment {
		return fmt.Errorf("%w: nullifier commitment", ErrRootMismatch)
	}

	payload, err := b.MarshalPayload()
	if err != nil {
		return err
	}
	blob, err := da.Encode(payload, dataShardsFor(len(payload)))
	if err != nil {
		return fmt.Errorf("block: availability encoding: %w", err)
	}
	if blob.Root() != b.Header.DARoot {
		return fmt.Errorf("%w: availability root", ErrRootMismatch)
	}
	return nil
}

// Produce assembles a block from candidate transactions at the next height,
// then imports it through the full pipeline. When aggregator is set the block
// carries one recursive proof and the gate verifies that instead of each
// transaction proof.
func (g *Gate) Produce(ctx context.Context, txs []Transaction, timestamp uint64, aggregator *aggregate.Aggregator) (*Block, error) {
	t, spent, height, lastHash := g.state.fork()

	var commitments, nullifiers []sponge.Digest
	for i := range txs {
		cms, err := txs[i].Public.ActiveCommitments()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		commitments = append(commitments, cms...)
		nfs, err := txs[i].Public.ActiveNullifiers()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		nullifiers = append(nullifiers, nfs...)
	}
	if _, err := t.Extend(commitments); err != nil {
		return nil, err
	}
	if err := spent.InsertAll(nullifiers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDoubleSpend, err)
	}

	binding, err := ProofBinding(txs)
	if err != nil {
		return nil, err
	}
	b := &Block{
		Header: Header{
			Height:              height + 1,
			Timestamp:           timestamp,
			PrevHash:            lastHash,
			TreeRoot:            t.Root().Bytes(),
			NullifierCommitment: spent.Commitment(),
			ProofBinding:        binding,
			VersionMatrix:       g.schedule.MatrixCommitment(height + 1),
		},
		Transactions: txs,
	}
	if aggregator != nil {
		batch := make([]aggregate.Batch, len(txs))
		for i := range txs {
			batch[i] = aggregate.Batch{Proof: txs[i].Proof, Public: txs[i].Public}
		}
		proof, publics, err := aggregator.Prove(batch)
		if err != nil {
			return nil, fmt.Errorf("block: aggregation: %w", err)
		}
		b.Aggregate = &AggregateProof{Proof: proof, Statements: publics}
	}
	payload, err := b.MarshalPayload()
	if err != nil {
		return nil, err
	}
	blob, err := da.Encode(payload, dataShardsFor(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("block: availability encoding: %w", err)
	}
	b.Header.DARoot = blob.Root()

	if err := g.Import(ctx, b); err != nil {
		return nil, fmt.Errorf("block: produced block rejected: %w", err)
	}
	return b, nil
}
