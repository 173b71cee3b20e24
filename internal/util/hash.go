// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// KeyHash hashes an opaque byte key with xxHash64. It is used to route keys
// to shards and, with different seed derivations, to seed the TinyLFU
// frequency sketch's rows. xxHash is fast, stable across runs (no per-process
// randomization) and non-cryptographic, matching the routing hash called for
// in the shard manager design.
func KeyHash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// SeededHash mixes a row seed into the key's xxHash64 so each sketch row
// gets an independent-looking hash. Every call hashes the key again; the
// seed only changes the final mixing step.
func SeededHash(key []byte, seed uint64) uint64 {
	h := xxhash.Sum64(key)
	h ^= seed
	h *= 0x9e3779b97f4a7c15 // golden-ratio multiplicative mix, same family balios uses
	h ^= h >> 32
	return h
}
