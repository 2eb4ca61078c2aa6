package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeys(t *testing.T) {
	out, err := Marshal(map[string]any{"b": 2, "a": 1, "c": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":"x"}`, string(out))
}

func TestMarshal_IntegersStayIntegers(t *testing.T) {
	out, err := Marshal(map[string]any{"count": 10, "ratio": 0.5})
	require.NoError(t, err)
	assert.Equal(t, `{"count":10,"ratio":0.5}`, string(out))
}

func TestHash_Deterministic(t *testing.T) {
	payload := map[string]any{
		"user_id":   "user_001",
		"timestamp": Timestamp(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		"nested":    map[string]any{"z": 1, "a": 2},
	}
	h1, err := Hash(payload)
	require.NoError(t, err)
	h2, err := Hash(payload)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHash_KeyOrderIndependent(t *testing.T) {
	h1, err := Hash(map[string]any{"a": 1, "b": "two"})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"b": "two", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestTimestamp_UTCWithZ(t *testing.T) {
	ts := Timestamp(time.Date(2026, 3, 1, 7, 30, 15, 999999999, time.FixedZone("JST", 9*3600)))
	assert.Equal(t, "2026-02-28T22:30:15Z", ts)
}

func TestMerkleRoot_Empty(t *testing.T) {
	assert.Equal(t, ZeroHash, MerkleRoot(nil))
}

func TestMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := HashString("only")
	assert.Equal(t, leaf, MerkleRoot([]string{leaf}))
}

func TestMerkleRoot_OddCountDuplicatesLast(t *testing.T) {
	a, b, c := HashString("a"), HashString("b"), HashString("c")
	want := HashString(HashString(a+b) + HashString(c+c))
	assert.Equal(t, want, MerkleRoot([]string{a, b, c}))
}

func TestMerkleRoot_OrderMatters(t *testing.T) {
	a, b := HashString("a"), HashString("b")
	assert.NotEqual(t, MerkleRoot([]string{a, b}), MerkleRoot([]string{b, a}))
}
