package ledger

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNew_GenesisBlock(t *testing.T) {
	l := New(testLogger())

	blocks := l.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, 0, blocks[0].BlockID)
	assert.Equal(t, canonical.ZeroHash, blocks[0].PreviousBlockHash)
	assert.Empty(t, blocks[0].Entries)
	assert.NotEmpty(t, blocks[0].BlockHash)
	assert.True(t, l.VerifyIntegrity())
}

func TestAppend_PendingUntilThreshold(t *testing.T) {
	l := New(testLogger())

	id, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"action": "read"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, l.PendingCount())
	assert.Equal(t, 1, l.BlockCount())

	entry, err := l.GetEntry(id)
	require.NoError(t, err)
	assert.Equal(t, model.EntryDataAccess, entry.EntryType)
	assert.Len(t, entry.DataHash, 64)
	assert.Empty(t, entry.BlockHash, "pending entries are not yet sealed")
}

func TestAppend_AutoSealAtThreshold(t *testing.T) {
	l := New(testLogger())

	for i := 0; i < DefaultBlockThreshold; i++ {
		_, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, l.BlockCount(), "genesis + one sealed block")
	assert.Equal(t, 0, l.PendingCount())
	assert.True(t, l.VerifyIntegrity())

	sealed := l.Blocks()[1]
	assert.Len(t, sealed.Entries, DefaultBlockThreshold)
	for _, e := range sealed.Entries {
		assert.Equal(t, sealed.BlockHash, e.BlockHash)
	}
}

func TestVerifyIntegrity_DetectsTampering(t *testing.T) {
	l := New(testLogger())
	for i := 0; i < DefaultBlockThreshold; i++ {
		_, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}
	require.True(t, l.VerifyIntegrity())

	l.mu.Lock()
	l.blocks[1].BlockHash = "x"
	l.mu.Unlock()

	assert.False(t, l.VerifyIntegrity())
}

func TestVerifyIntegrity_DetectsEntryTampering(t *testing.T) {
	l := New(testLogger())
	for i := 0; i < DefaultBlockThreshold; i++ {
		_, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}

	l.mu.Lock()
	l.blocks[1].Entries[3].DataHash = canonical.HashString("forged")
	l.mu.Unlock()

	assert.False(t, l.VerifyIntegrity(), "merkle root no longer matches entries")
}

func TestForceCommit(t *testing.T) {
	l := New(testLogger())

	_, ok, err := l.ForceCommit()
	require.NoError(t, err)
	assert.False(t, ok, "empty pending buffer is a no-op")

	_, err = l.Append(model.EntryConsentGranted, "user_001", map[string]any{"form": "f1"}, nil)
	require.NoError(t, err)

	blockID, ok, err := l.ForceCommit()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, blockID)
	assert.Equal(t, 0, l.PendingCount())
	assert.True(t, l.VerifyIntegrity())
}

func TestChainLinkage(t *testing.T) {
	l := New(testLogger())
	for i := 0; i < 25; i++ {
		_, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}
	_, _, err := l.ForceCommit()
	require.NoError(t, err)

	blocks := l.Blocks()
	require.Len(t, blocks, 4) // genesis + 10 + 10 + 5
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].BlockHash, blocks[i].PreviousBlockHash)
	}
}

func TestAuditTrail_NewestFirst(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	l := New(testLogger(), WithClock(func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}))

	for i := 0; i < 12; i++ {
		user := "user_001"
		if i%3 == 0 {
			user = "user_002"
		}
		_, err := l.Append(model.EntryDataAccess, user, map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}

	trail := l.AuditTrail("user_001")
	require.Len(t, trail, 8)
	for i := 1; i < len(trail); i++ {
		assert.False(t, trail[i].Timestamp.After(trail[i-1].Timestamp))
	}
	for _, e := range trail {
		assert.Equal(t, "user_001", e.UserID)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	l := New(testLogger())
	_, err := l.GetEntry(99)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEntryTypes(t *testing.T) {
	l := New(testLogger())
	_, err := l.Append(model.EntryConsentGranted, "u", map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	_, err = l.Append(model.EntryDataAccess, "u", map[string]any{"a": 2}, nil)
	require.NoError(t, err)
	_, err = l.Append(model.EntryDataAccess, "u", map[string]any{"a": 3}, nil)
	require.NoError(t, err)

	counts := l.EntryTypes()
	assert.Equal(t, 1, counts[model.EntryConsentGranted])
	assert.Equal(t, 2, counts[model.EntryDataAccess])
}

func TestSQLiteArchive_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	archive, err := OpenArchive(path)
	require.NoError(t, err)
	defer archive.Close()

	l := New(testLogger(), WithArchiver(archive))
	for i := 0; i < DefaultBlockThreshold; i++ {
		_, err := l.Append(model.EntryGenomicAnalysis, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}

	stored, err := archive.Blocks()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, l.Blocks()[1].BlockHash, stored[0].BlockHash)
	assert.Equal(t, l.Blocks()[1].MerkleRoot, stored[0].MerkleRoot)
	assert.Len(t, stored[0].Entries, DefaultBlockThreshold)
}

func TestRestoreFromArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	archive, err := OpenArchive(path)
	require.NoError(t, err)
	defer archive.Close()

	l := New(testLogger(), WithArchiver(archive))
	for i := 0; i < 2*DefaultBlockThreshold; i++ {
		_, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, l.BlockCount())

	// A fresh process restores the archived chain and keeps appending.
	stored, err := archive.Blocks()
	require.NoError(t, err)
	require.Len(t, stored, 2)

	restored := New(testLogger())
	require.NoError(t, restored.Restore(stored))
	assert.Equal(t, 3, restored.BlockCount())
	assert.True(t, restored.VerifyIntegrity())

	entry, err := restored.GetEntry(0)
	require.NoError(t, err)
	assert.Equal(t, model.EntryDataAccess, entry.EntryType)

	id, err := restored.Append(model.EntryDataAccess, "user_001", map[string]any{"n": 99}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*DefaultBlockThreshold, id, "entry IDs continue after the restored chain")
}

func TestRestoreRejectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	archive, err := OpenArchive(path)
	require.NoError(t, err)
	defer archive.Close()

	l := New(testLogger(), WithArchiver(archive))
	for i := 0; i < DefaultBlockThreshold; i++ {
		_, err := l.Append(model.EntryDataAccess, "user_001", map[string]any{"n": i}, nil)
		require.NoError(t, err)
	}

	stored, err := archive.Blocks()
	require.NoError(t, err)
	stored[0].Entries[0].DataHash = "0000000000000000000000000000000000000000000000000000000000000000"

	err = New(testLogger()).Restore(stored)
	assert.ErrorIs(t, err, ErrCompromised)
}
