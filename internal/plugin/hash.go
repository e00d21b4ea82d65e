package plugin

import "github.com/cespare/xxhash/v2"

// ContentHash computes a stable 64-bit hash of raw plugin bytes, used as a
// cross-mod fingerprint. xxhash is deterministic across runs and machines
// for identical input.
func ContentHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}
