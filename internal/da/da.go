// da.go - Data-availability encoding for block payloads.
//
// A block's side data is split into Reed-Solomon shards so any k of k+m
// shards reconstruct the payload, and committed under a blake3 Merkle root so
// individual shards verify against the header without the full payload.

package da

import (
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
	"lukechampine.com/blake3"
)

const (
	leafDomain = "da-leaf"
	nodeDomain = "da-node"
	// maxShards is the Reed-Solomon codeword bound over GF(2^8).
	maxShards = 255
)

var (
	// ErrEmptyPayload reports an encode of zero bytes.
	ErrEmptyPayload = errors.New("da: empty payload")
	// ErrTooManyShards reports a shard count past the codeword bound.
	ErrTooManyShards = errors.New("da: shard count exceeds 255")
	// ErrShardIndex reports an out-of-range shard index.
	ErrShardIndex = errors.New("da: shard index out of range")
	// ErrShardMismatch reports a shard that fails its inclusion proof.
	ErrShardMismatch = errors.New("da: shard does not match commitment")
	// ErrReconstruct reports too few intact shards to rebuild the payload.
	ErrReconstruct = errors.New("da: reconstruction failed")
)

// ParityFor returns the parity shard count for k data shards: half again,
// rounded up, so any third of the codeword may go missing.
func ParityFor(dataShards int) int {
	return (dataShards + 1) / 2
}

// Blob is an erasure-coded payload with its Merkle commitment.
type Blob struct {
	DataShards   int
	ParityShards int
	PayloadLen   int
	Shards       [][]byte
	root         [48]byte
}

// Encode shards the payload and builds its commitment.
func Encode(payload []byte, dataShards int) (*Blob, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if dataShards <= 0 {
		return nil, fmt.Errorf("da: data shard count %d", dataShards)
	}
	parity := ParityFor(dataShards)
	if dataShards+parity > maxShards {
		return nil, fmt.Errorf("%w: %d data + %d parity", ErrTooManyShards, dataShards, parity)
	}
	enc, err := reedsolomon.New(dataShards, parity)
	if err != nil {
		return nil, fmt.Errorf("da: encoder: %w", err)
	}
	shards, err := enc.Split(payload)
	if err != nil {
		return nil, fmt.Errorf("da: split: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("da: encode: %w", err)
	}
	b := &Blob{
		DataShards:   dataShards,
		ParityShards: parity,
		PayloadLen:   len(payload),
		Shards:       shards,
	}
	b.root = merkleRoot(shardLeaves(shards))
	return b, nil
}

// Root returns the Merkle commitment over all shards.
func (b *Blob) Root() [48]byte { return b.root }

// TotalShards returns the codeword length.
func (b *Blob) TotalShards() int { return b.DataShards + b.ParityShards }

// Payload reassembles the original bytes from the data shards.
func (b *Blob) Payload() []byte {
	out := make([]byte, 0, b.PayloadLen)
	for _, shard := range b.Shards[:b.DataShards] {
		out = append(out, shard...)
	}
	return out[:b.PayloadLen]
}

// Proof returns the Merkle siblings for one shard, bottom up.
func (b *Blob) Proof(index int) ([][48]byte, error) {
	if index < 0 || index >= len(b.Shards) {
		return nil, fmt.Errorf("%w: %d", ErrShardIndex, index)
	}
	layers := merkleLayers(shardLeaves(b.Shards))
	var proof [][48]byte
	idx := index
	for _, layer := range layers[:len(layers)-1] {
		sibling := idx ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof, nil
}

// VerifyShard checks one shard against the commitment. The proof length may
// vary with position because ragged layers promote their last node.
func VerifyShard(root [48]byte, index, total int, shard []byte, proof [][48]byte) error {
	if index < 0 || index >= total {
		return fmt.Errorf("%w: %d", ErrShardIndex, index)
	}
	current := leafHash(shard)
	idx := index
	width := total
	cursor := 0
	for width > 1 {
		if idx^1 < width {
			if cursor >= len(proof) {
				return fmt.Errorf("%w: truncated proof", ErrShardMismatch)
			}
			sibling := proof[cursor]
			cursor++
			if idx%2 == 0 {
				current = nodeHash(current, sibling)
			} else {
				current = nodeHash(sibling, current)
			}
		}
		idx /= 2
		width = (width + 1) / 2
	}
	if cursor != len(proof) {
		return fmt.Errorf("%w: trailing proof nodes", ErrShardMismatch)
	}
	if current != root {
		return ErrShardMismatch
	}
	return nil
}

// Reconstruct rebuilds the payload from a partial shard set. Missing shards
// are nil; shardSet is repaired in place.
func Reconstruct(shardSet [][]byte, dataShards, payloadLen int) ([]byte, error) {
	parity := ParityFor(dataShards)
	if len(shardSet) != dataShards+parity {
		return nil, fmt.Errorf("%w: %d shards, want %d", ErrReconstruct, len(shardSet), dataShards+parity)
	}
	enc, err := reedsolomon.New(dataShards, parity)
	if err != nil {
		return nil, fmt.Errorf("da: encoder: %w", err)
	}
	if err := enc.Reconstruct(shardSet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconstruct, err)
	}
	ok, err := enc.Verify(shardSet)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: codeword check failed", ErrReconstruct)
	}
	out := make([]byte, 0, payloadLen)
	for _, shard := range shardSet[:dataShards] {
		out = append(out, shard...)
	}
	if payloadLen > len(out) {
		return nil, fmt.Errorf("%w: payload length %d exceeds shards", ErrReconstruct, payloadLen)
	}
	return out[:payloadLen], nil
}

func leafHash(shard []byte) [48]byte {
	h := blake3.New(48, nil)
	h.Write([]byte(leafDomain))
	h.Write(shard)
	var out [48]byte
	h.Sum(out[:0])
	return out
}

func nodeHash(left, right [48]byte) [48]byte {
	h := blake3.New(48, nil)
	h.Write([]byte(nodeDomain))
	h.Write(left[:])
	h.Write(right[:])
	var out [48]byte
	h.Sum(out[:0])
	return out
}

func shardLeaves(shards [][]byte) [][48]byte {
	leaves := make([][48]byte, len(shards))
	for i, shard := range shards {
		leaves[i] = leafHash(shard)
	}
	return leaves
}

// merkleLayers builds all layers bottom up. An odd node at the end of a layer
// is promoted unchanged.
func merkleLayers(leaves [][48]byte) [][][48]byte {
	layers := [][][48]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][48]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, nodeHash(current[i], current[i+1]))
			} else {
				next = append(next, current[i])
			}
		}
		layers = append(layers, next)
		current = next
	}
	return layers
}

func merkleRoot(leaves [][48]byte) [48]byte {
	layers := merkleLayers(leaves)
	return layers[len(layers)-1][0]
}
