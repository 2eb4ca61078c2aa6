// Package ledger implements the append-only, hash-chained audit ledger.
//
// Entries accumulate in a pending buffer and are sealed into blocks — either
// automatically when the buffer reaches the block threshold, or explicitly
// via ForceCommit. Each block carries a Merkle root over its entries' data
// hashes and a header hash chaining it to the previous block. A single
// writer lane serializes all additions; readers observe a consistent
// snapshot of sealed blocks plus the pending buffer.
package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// DefaultBlockThreshold is the pending-entry count that triggers auto-seal.
const DefaultBlockThreshold = 10

// ErrEntryNotFound is returned when an entry ID is unknown.
var ErrEntryNotFound = fmt.Errorf("ledger: entry not found")

// ErrCompromised is returned by VerifyIntegrity when the chain fails
// verification. The ledger attempts no self-repair.
var ErrCompromised = fmt.Errorf("ledger: integrity verification failed")

// Archiver receives sealed blocks for durable storage. Implementations must
// be append-only; the in-memory chain remains the source of truth.
type Archiver interface {
	AppendBlock(block model.Block) error
}

// Ledger is the append-only audit chain.
type Ledger struct {
	mu          sync.RWMutex
	blocks      []model.Block
	pending     []model.LedgerEntry
	entryBlock  map[int]int // entry_id → block_id, built at seal time
	nextEntryID int
	threshold   int
	archive     Archiver
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithBlockThreshold overrides the auto-seal threshold.
func WithBlockThreshold(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.threshold = n
		}
	}
}

// WithArchiver attaches a durable block store.
func WithArchiver(a Archiver) Option {
	return func(l *Ledger) { l.archive = a }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger containing only the genesis block. The genesis block
// has an all-zero previous hash and no entries.
func New(logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		entryBlock: make(map[int]int),
		threshold:  DefaultBlockThreshold,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	genesis := model.Block{
		BlockID:           0,
		Timestamp:         l.now().UTC(),
		PreviousBlockHash: canonical.ZeroHash,
		MerkleRoot:        canonical.ZeroHash,
		Entries:           nil,
	}
	genesis.BlockHash = blockHeaderHash(genesis)
	l.blocks = []model.Block{genesis}
	return l
}

// Append canonicalizes payload, hashes it, and appends a new entry to the
// pending buffer. When the buffer reaches the block threshold the block is
// sealed before Append returns. The returned entry ID is a monotonic index.
func (l *Ledger) Append(entryType model.EntryType, userID string, payload map[string]any, metadata map[string]any) (int, error) {
	dataHash, err := canonical.Hash(payload)
	if err != nil {
		return 0, fmt.Errorf("ledger: hash payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := model.LedgerEntry{
		EntryID:      l.nextEntryID,
		EntryType:    entryType,
		UserID:       userID,
		Timestamp:    l.now().UTC(),
		DataHash:     dataHash,
		PreviousHash: l.blocks[len(l.blocks)-1].BlockHash,
		Metadata:     metadata,
	}
	l.nextEntryID++
	l.pending = append(l.pending, entry)

	if len(l.pending) >= l.threshold {
		if err := l.sealLocked(); err != nil {
			// Roll back the pending entry so the failed append is not exposed.
			l.pending = l.pending[:len(l.pending)-1]
			l.nextEntryID--
			return 0, err
		}
	}
	return entry.EntryID, nil
}

// ForceCommit seals the current pending entries into a block. Returns the
// new block ID, or ok=false when there was nothing to seal.
func (l *Ledger) ForceCommit() (int, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return 0, false, nil
	}
	if err := l.sealLocked(); err != nil {
		return 0, false, err
	}
	return l.blocks[len(l.blocks)-1].BlockID, true, nil
}

// Restore installs previously archived blocks as the sealed chain after
// verifying them. Genesis is never archived, so its slot is rebuilt with the
// first restored block's previous hash; VerifyIntegrity only checks genesis
// through that link. Call before the first Append.
func (l *Ledger) Restore(blocks []model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	for i, b := range blocks {
		if b.BlockID != i+1 {
			return fmt.Errorf("ledger: restore: unexpected block id %d at position %d", b.BlockID, i)
		}
		if i > 0 && b.PreviousBlockHash != blocks[i-1].BlockHash {
			return fmt.Errorf("%w: chain break at block %d", ErrCompromised, b.BlockID)
		}
		if b.BlockHash != blockHeaderHash(b) {
			return fmt.Errorf("%w: header hash mismatch at block %d", ErrCompromised, b.BlockID)
		}
		leaves := make([]string, len(b.Entries))
		for j, e := range b.Entries {
			leaves[j] = e.DataHash
		}
		if b.MerkleRoot != canonical.MerkleRoot(leaves) {
			return fmt.Errorf("%w: merkle root mismatch at block %d", ErrCompromised, b.BlockID)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	genesis := l.blocks[0]
	genesis.BlockHash = blocks[0].PreviousBlockHash
	l.blocks = append([]model.Block{genesis}, blocks...)
	l.entryBlock = make(map[int]int)
	next := 0
	for _, b := range blocks {
		for _, e := range b.Entries {
			l.entryBlock[e.EntryID] = b.BlockID
			if e.EntryID >= next {
				next = e.EntryID + 1
			}
		}
	}
	l.nextEntryID = next

	l.logger.Info("ledger: restored from archive", "blocks", len(blocks), "next_entry_id", next)
	return nil
}

// sealLocked moves the pending buffer into a new sealed block.
// Caller must hold l.mu.
func (l *Ledger) sealLocked() error {
	leaves := make([]string, len(l.pending))
	for i, e := range l.pending {
		leaves[i] = e.DataHash
	}

	block := model.Block{
		BlockID:           len(l.blocks),
		Timestamp:         l.now().UTC(),
		PreviousBlockHash: l.blocks[len(l.blocks)-1].BlockHash,
		MerkleRoot:        canonical.MerkleRoot(leaves),
		Entries:           l.pending,
	}
	block.BlockHash = blockHeaderHash(block)
	for i := range block.Entries {
		block.Entries[i].BlockHash = block.BlockHash
	}

	if l.archive != nil {
		if err := l.archive.AppendBlock(block); err != nil {
			return fmt.Errorf("ledger: archive block %d: %w", block.BlockID, err)
		}
	}

	l.blocks = append(l.blocks, block)
	for _, e := range block.Entries {
		l.entryBlock[e.EntryID] = block.BlockID
	}
	l.pending = nil

	l.logger.Info("ledger: block sealed",
		"block_id", block.BlockID,
		"entries", len(block.Entries),
		"merkle_root", block.MerkleRoot,
	)
	return nil
}

// blockHeaderHash computes the block hash over the header fields only.
// Entries are bound through the Merkle root, not hashed directly.
func blockHeaderHash(b model.Block) string {
	header := map[string]any{
		"block_id":            b.BlockID,
		"timestamp":           canonical.Timestamp(b.Timestamp),
		"previous_block_hash": b.PreviousBlockHash,
		"merkle_root":         b.MerkleRoot,
		"nonce":               b.Nonce,
	}
	h, err := canonical.Hash(header)
	if err != nil {
		// The header contains only strings and ints; canonicalization
		// cannot fail for this shape.
		panic(fmt.Sprintf("ledger: header hash: %v", err))
	}
	return h
}

// GetEntry looks an entry up by ID, checking the pending buffer first and
// then the sealed blocks.
func (l *Ledger) GetEntry(entryID int) (model.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.pending {
		if e.EntryID == entryID {
			return e, nil
		}
	}
	if blockID, ok := l.entryBlock[entryID]; ok {
		for _, e := range l.blocks[blockID].Entries {
			if e.EntryID == entryID {
				return e, nil
			}
		}
	}
	return model.LedgerEntry{}, ErrEntryNotFound
}

// AuditTrail returns every entry for a user, pending and sealed, newest
// first. Ties on timestamp are broken by entry ID descending.
func (l *Ledger) AuditTrail(userID string) []model.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var trail []model.LedgerEntry
	for _, b := range l.blocks {
		for _, e := range b.Entries {
			if e.UserID == userID {
				trail = append(trail, e)
			}
		}
	}
	for _, e := range l.pending {
		if e.UserID == userID {
			trail = append(trail, e)
		}
	}

	sort.SliceStable(trail, func(i, j int) bool {
		if !trail[i].Timestamp.Equal(trail[j].Timestamp) {
			return trail[i].Timestamp.After(trail[j].Timestamp)
		}
		return trail[i].EntryID > trail[j].EntryID
	})
	return trail
}

// VerifyIntegrity walks every sealed block and checks the previous-hash
// chain, the recomputed header hash, and the recomputed Merkle root.
// A false result means the ledger is compromised; no repair is attempted.
func (l *Ledger) VerifyIntegrity() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := 1; i < len(l.blocks); i++ {
		b := l.blocks[i]
		if b.PreviousBlockHash != l.blocks[i-1].BlockHash {
			l.logger.Error("ledger: broken chain", "block_id", b.BlockID)
			return false
		}
		if b.BlockHash != blockHeaderHash(b) {
			l.logger.Error("ledger: block hash mismatch", "block_id", b.BlockID)
			return false
		}
		leaves := make([]string, len(b.Entries))
		for j, e := range b.Entries {
			leaves[j] = e.DataHash
		}
		if b.MerkleRoot != canonical.MerkleRoot(leaves) {
			l.logger.Error("ledger: merkle root mismatch", "block_id", b.BlockID)
			return false
		}
	}
	return true
}

// Blocks returns a snapshot copy of the sealed chain.
func (l *Ledger) Blocks() []model.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

// BlockCount returns the number of blocks including genesis.
func (l *Ledger) BlockCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// PendingCount returns the number of unsealed entries.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// EntryTypes returns the set of entry types present anywhere in the ledger.
// Diagnostic helper for compliance reporting.
func (l *Ledger) EntryTypes() map[model.EntryType]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[model.EntryType]int)
	for _, b := range l.blocks {
		for _, e := range b.Entries {
			counts[e.EntryType]++
		}
	}
	for _, e := range l.pending {
		counts[e.EntryType]++
	}
	return counts
}
