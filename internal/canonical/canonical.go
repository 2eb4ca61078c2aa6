// Package canonical provides deterministic serialization and hashing for
// tamper-evident records. JSON payloads are canonicalized per RFC 8785 (JCS)
// before hashing so that hashes are stable across platforms and key orderings.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// ZeroHash is the 64-character all-zero digest used for the genesis block's
// previous hash and the Merkle root of an empty entry list.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Marshal returns the RFC 8785 canonical JSON encoding of v.
// Map keys are sorted by UTF-8 code point; integers stay integers because
// the intermediate decode preserves json.Number. Timestamps must be passed
// as RFC 3339 UTC strings (see Timestamp).
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	// Round-trip through json.Number so numeric literals are preserved
	// exactly rather than forced through float64.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonical: remarshal: %w", err)
	}
	out, err := jcs.Transform(normalized)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform: %w", err)
	}
	return out, nil
}

// Hash returns the SHA-256 hex digest of the canonical encoding of v.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// HashBytes returns the SHA-256 hex digest of raw bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString returns the SHA-256 hex digest of a string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// Timestamp formats t for inclusion in canonical payloads: RFC 3339 UTC with
// a trailing Z and second precision. Hashed payloads must never carry
// locale- or monotonic-clock-dependent representations.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// MerkleRoot computes the root over entry data hashes per the ledger scheme:
// an odd count is promoted to even by duplicating the last leaf, then levels
// are reduced pairwise with SHA256(a || b) over the concatenated hex strings
// until one root remains. An empty list maps to ZeroHash.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ZeroHash
	}
	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, HashString(level[i]+level[i+1]))
		}
		level = next
	}
	return level[0]
}
