// block.go - Block and transaction types and the header commitment.

package block

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"

	"github.com/Pauli-Group/Hegemon-sub003/internal/txproof"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

const blockHashContext = "hegemon-pool block v1"

var detMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	detMode = mode
}

// Transaction is one shielded transfer as it travels in a block: the proof,
// its public statement, and the encrypted note payloads for recipients.
type Transaction struct {
	Binding  version.Binding       `cbor:"1,keyasint"`
	Proof    []byte                `cbor:"2,keyasint"`
	Public   *txproof.PublicInputs `cbor:"3,keyasint"`
	Payloads [][]byte              `cbor:"4,keyasint"`
}

// ProofHash binds the proof bytes to the statement.
func (tx *Transaction) ProofHash() ([48]byte, error) {
	return txproof.ProofHash(tx.Proof, tx.Public)
}

// Header commits to everything a validator replays: the post-state
// accumulator root, the nullifier ledger, the availability encoding, the
// ordered proof sequence and the active version matrix.
type Header struct {
	Height              uint64   `cbor:"1,keyasint"`
	Timestamp           uint64   `cbor:"2,keyasint"`
	PrevHash            [48]byte `cbor:"3,keyasint"`
	TreeRoot            [48]byte `cbor:"4,keyasint"`
	NullifierCommitment [48]byte `cbor:"5,keyasint"`
	DARoot              [48]byte `cbor:"6,keyasint"`
	ProofBinding        [48]byte `cbor:"7,keyasint"`
	VersionMatrix       [48]byte `cbor:"8,keyasint"`
}

// AggregateProof carries one recursive proof covering the whole batch. The
// statement list is padded to the aggregation batch size; the leading entries
// must match the block's transactions.
type AggregateProof struct {
	Proof      []byte                  `cbor:"1,keyasint"`
	Statements []*txproof.PublicInputs `cbor:"2,keyasint"`
}

// Block is a candidate or accepted block.
type Block struct {
	Header       Header          `cbor:"1,keyasint"`
	Transactions []Transaction   `cbor:"2,keyasint"`
	Aggregate    *AggregateProof `cbor:"3,keyasint,omitempty"`
}

// Hash is the canonical block identifier: blake3 over the encoded header.
func (b *Block) Hash() ([48]byte, error) {
	var out [48]byte
	enc, err := detMode.Marshal(&b.Header)
	if err != nil {
		return out, fmt.Errorf("block: header encoding: %w", err)
	}
	h := blake3.New(48, nil)
	h.Write([]byte(blockHashContext))
	h.Write(enc)
	h.Sum(out[:0])
	return out, nil
}

// MarshalPayload returns the deterministic availability payload: the full
// transaction list, proofs included.
func (b *Block) MarshalPayload() ([]byte, error) {
	enc, err := detMode.Marshal(b.Transactions)
	if err != nil {
		return nil, fmt.Errorf("block: payload encoding: %w", err)
	}
	return enc, nil
}

// ProofBinding chains the ordered per-transaction proof hashes.
func ProofBinding(txs []Transaction) ([48]byte, error) {
	var out [48]byte
	h := blake3.New(48, nil)
	h.Write([]byte("hegemon-pool proof binding v1"))
	for i := range txs {
		ph, err := txs[i].ProofHash()
		if err != nil {
			return out, fmt.Errorf("transaction %d: %w", i, err)
		}
		h.Write(ph[:])
	}
	h.Sum(out[:0])
	return out, nil
}

// dataShardsFor fixes the availability shard count for a payload size. The
// rule is part of consensus: replicas must encode identically.
func dataShardsFor(payloadLen int) int {
	shards := payloadLen/1024 + 1
	if shards > 128 {
		shards = 128
	}
	return shards
}
