// sample.go - Availability sampling index selection.
//
// Light verifiers fetch a handful of shards per block. Indices derive from the
// node's private sampling secret and the block hash, so providers cannot
// predict which shards a given node will audit, while the node itself
// resamples the same indices on retry.

package da

import (
	"math/rand/v2"
)

// SampleIndices returns count distinct shard indices in [0, total), or all of
// them when count >= total. Deterministic in (nodeSecret, blockHash).
func SampleIndices(nodeSecret [32]byte, blockHash [48]byte, total, count int) []int {
	if total <= 0 || count <= 0 {
		return nil
	}
	if count >= total {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}
	var seed [32]byte
	for i := range seed {
		seed[i] = nodeSecret[i] ^ blockHash[i]
	}
	rng := rand.New(rand.NewChaCha8(seed))

	// Partial Fisher-Yates over the index space.
	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}
	out := make([]int, count)
	for i := 0; i < count; i++ {
		j := i + rng.IntN(total-i)
		indices[i], indices[j] = indices[j], indices[i]
		out[i] = indices[i]
	}
	return out
}
