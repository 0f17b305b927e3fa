package queryset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQueryset separates queryset hashes from any other content hash.
const DomainQueryset = "queries-benchmark/queryset/v1"

// Hash returns the content-addressed identity of a queryset definition:
// SHA256(domain + 0x00 + canonical JSON), hex encoded.
//
// Two querysets hash equal exactly when the engine would receive the same
// publish payload.
func Hash(q *Queryset) (string, error) {
	canonical, err := MarshalCanonical(q)
	if err != nil {
		return "", fmt.Errorf("hash queryset: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainQueryset))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or for querysets known to be valid.
func MustHash(q *Queryset) string {
	h, err := Hash(q)
	if err != nil {
		panic(err)
	}
	return h
}
