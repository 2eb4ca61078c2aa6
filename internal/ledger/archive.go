package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// SQLiteArchive persists sealed blocks to an embedded append-only store.
// The in-memory chain stays authoritative; the archive exists so sealed
// blocks survive process restarts and can be re-verified offline.
type SQLiteArchive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the block archive at path.
func OpenArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open archive: %w", err)
	}
	// Single writer, matching the ledger's single-writer discipline.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	block_id            INTEGER PRIMARY KEY,
	sealed_at           TEXT NOT NULL,
	previous_block_hash TEXT NOT NULL,
	merkle_root         TEXT NOT NULL,
	block_hash          TEXT NOT NULL,
	entries_json        TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create archive schema: %w", err)
	}
	return &SQLiteArchive{db: db}, nil
}

// AppendBlock stores one sealed block. Re-sealing an existing block ID is a
// conflict: the archive is append-only.
func (a *SQLiteArchive) AppendBlock(block model.Block) error {
	entries, err := json.Marshal(block.Entries)
	if err != nil {
		return fmt.Errorf("ledger: marshal entries: %w", err)
	}
	_, err = a.db.Exec(
		`INSERT INTO blocks (block_id, sealed_at, previous_block_hash, merkle_root, block_hash, entries_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		block.BlockID,
		block.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		block.PreviousBlockHash,
		block.MerkleRoot,
		block.BlockHash,
		string(entries),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert block %d: %w", block.BlockID, err)
	}
	return nil
}

// Blocks loads every archived block ordered by block ID. Timestamps round-
// trip through the stored second-precision form, so restored header hashes
// recompute exactly.
func (a *SQLiteArchive) Blocks() ([]model.Block, error) {
	rows, err := a.db.Query(
		`SELECT block_id, sealed_at, previous_block_hash, merkle_root, block_hash, entries_json
		 FROM blocks ORDER BY block_id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query archive: %w", err)
	}
	defer rows.Close()

	var blocks []model.Block
	for rows.Next() {
		var b model.Block
		var sealedAt, entriesJSON string
		if err := rows.Scan(&b.BlockID, &sealedAt, &b.PreviousBlockHash, &b.MerkleRoot, &b.BlockHash, &entriesJSON); err != nil {
			return nil, fmt.Errorf("ledger: scan archive row: %w", err)
		}
		if b.Timestamp, err = time.Parse(time.RFC3339, sealedAt); err != nil {
			return nil, fmt.Errorf("ledger: parse sealed_at for block %d: %w", b.BlockID, err)
		}
		if err := json.Unmarshal([]byte(entriesJSON), &b.Entries); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal entries for block %d: %w", b.BlockID, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// Close releases the underlying database handle.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
