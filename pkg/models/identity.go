package models

import "github.com/cespare/xxhash/v2"

// Identity is implemented by the key types that identify persisted rows.
// Equal and Hash must agree: equal identities always produce equal hashes.
type Identity interface {
	Equal(other any) bool
	Hash() uint64
	String() string
}

const (
	hashSeed       uint64 = 1
	hashMultiplier uint64 = 31
)

// combineHash folds parts into a single hash with a polynomial combination,
// so the position of each part affects the result.
func combineHash(parts ...uint64) uint64 {
	h := hashSeed
	for _, part := range parts {
		h = hashMultiplier*h + part
	}

	return h
}

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
