// Package genomic implements anchor+diff storage for individual genomes.
// A content-addressed anchor sequence is shared by many individuals; each
// individual is stored as a set of variant diffs against the anchor and
// materialized back to a full sequence on demand.
package genomic

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// ErrAnchorNotFound is returned when an anchor ID is unknown.
var ErrAnchorNotFound = errors.New("genomic: anchor not found")

// defaultAnchorQuality is assigned to newly created anchors.
const defaultAnchorQuality = 0.95

// defaultVariantQuality replaces a missing or unparsable VCF QUAL field.
const defaultVariantQuality = 0.9

// BaseResolver maps an anchor's sequence hash to its base sequence text.
// The default resolver returns a deterministic fixed-length stub; a real
// deployment resolves against a reference-genome store.
type BaseResolver func(sequenceHash string) string

// StubBaseSequence is the deterministic 400bp stub used by the reference
// implementation: "ATCG" repeated 100 times.
func StubBaseSequence(string) string {
	return strings.Repeat("ATCG", 100)
}

// Store holds anchors and per-individual diffs.
type Store struct {
	mu            sync.Mutex
	anchorsByHash map[string]*model.AnchorSequence
	anchorsByID   map[string]*model.AnchorSequence
	diffs         map[string][]model.GenomicDifference // anchor_id → diffs, all individuals
	resolve       BaseResolver
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBaseResolver substitutes the reference-genome lookup.
func WithBaseResolver(r BaseResolver) Option {
	return func(s *Store) { s.resolve = r }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty genomic store.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		anchorsByHash: make(map[string]*model.AnchorSequence),
		anchorsByID:   make(map[string]*model.AnchorSequence),
		diffs:         make(map[string][]model.GenomicDifference),
		resolve:       StubBaseSequence,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAnchor registers a reference sequence, de-duplicating by content
// hash: a second call with an identical sequence increments the existing
// anchor's usage count and returns it.
func (s *Store) CreateAnchor(sequence, referenceGenome string) model.AnchorSequence {
	hash := canonical.HashString(sequence)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.anchorsByHash[hash]; ok {
		existing.UsageCount++
		return *existing
	}

	anchor := &model.AnchorSequence{
		AnchorID:        "anchor_" + hash[:12],
		SequenceHash:    hash,
		ReferenceGenome: referenceGenome,
		QualityScore:    defaultAnchorQuality,
		UsageCount:      1,
		CreatedAt:       s.now().UTC(),
	}
	s.anchorsByHash[hash] = anchor
	s.anchorsByID[anchor.AnchorID] = anchor

	s.logger.Info("anchor created", "anchor_id", anchor.AnchorID, "reference", referenceGenome)
	return *anchor
}

// Anchor returns an anchor by ID.
func (s *Store) Anchor(anchorID string) (model.AnchorSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.anchorsByID[anchorID]
	if !ok {
		return model.AnchorSequence{}, ErrAnchorNotFound
	}
	return *a, nil
}

// StoreDifferences records an individual's variants against an anchor.
// Diffs from distinct individuals coexist under the same anchor.
func (s *Store) StoreDifferences(anchorID, individualID string, variants []model.Variant) ([]model.GenomicDifference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.anchorsByID[anchorID]; !ok {
		return nil, ErrAnchorNotFound
	}

	now := s.now().UTC()
	stored := make([]model.GenomicDifference, 0, len(variants))
	for _, v := range variants {
		diff := model.GenomicDifference{
			DiffID:          "diff_" + uuid.NewString()[:8],
			AnchorID:        anchorID,
			IndividualID:    individualID,
			Position:        v.Position,
			ReferenceAllele: v.Ref,
			AlternateAllele: v.Alt,
			QualityScore:    v.Quality,
			CreatedAt:       now,
		}
		s.diffs[anchorID] = append(s.diffs[anchorID], diff)
		stored = append(stored, diff)
	}
	return stored, nil
}

// ParseVCF extracts variants from VCF text. Header lines (leading '#') and
// blank lines are skipped. A data line needs at least six tab-separated
// fields: CHROM POS ID REF ALT QUAL. A missing or unparsable QUAL ('.')
// falls back to the default quality.
func ParseVCF(text string) []model.Variant {
	var variants []model.Variant
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 6 {
			continue
		}
		var pos int
		if _, err := fmt.Sscanf(fields[1], "%d", &pos); err != nil {
			continue
		}
		quality := defaultVariantQuality
		if fields[5] != "." {
			var q float64
			if _, err := fmt.Sscanf(fields[5], "%g", &q); err == nil {
				quality = q
			}
		}
		variants = append(variants, model.Variant{
			Chromosome: fields[0],
			Position:   pos,
			ID:         fields[2],
			Ref:        fields[3],
			Alt:        fields[4],
			Quality:    quality,
		})
	}
	return variants
}

// MaterializeResult carries a reconstructed sequence plus diagnostics.
type MaterializeResult struct {
	Sequence string
	Applied  int
	Skipped  int // non-SNV diffs, see package doc
}

// Materialize reconstructs an individual's sequence from the anchor's base
// sequence and that individual's diffs. Diffs are applied in descending
// position order. Only single-nucleotide substitutions (|ref|==|alt|==1)
// are applied; indels are skipped and counted in Skipped.
func (s *Store) Materialize(individualID, anchorID string) (MaterializeResult, error) {
	s.mu.Lock()
	anchor, ok := s.anchorsByID[anchorID]
	if !ok {
		s.mu.Unlock()
		return MaterializeResult{}, ErrAnchorNotFound
	}
	var own []model.GenomicDifference
	for _, d := range s.diffs[anchorID] {
		if d.IndividualID == individualID {
			own = append(own, d)
		}
	}
	hash := anchor.SequenceHash
	s.mu.Unlock()

	// Base resolution and substitution run outside the lock; they touch no
	// shared state.
	seq := []byte(s.resolve(hash))
	sort.Slice(own, func(i, j int) bool { return own[i].Position > own[j].Position })

	result := MaterializeResult{}
	for _, d := range own {
		if len(d.ReferenceAllele) != 1 || len(d.AlternateAllele) != 1 {
			result.Skipped++
			continue
		}
		idx := d.Position - 1
		if idx < 0 || idx >= len(seq) {
			result.Skipped++
			continue
		}
		seq[idx] = d.AlternateAllele[0]
		result.Applied++
	}
	result.Sequence = string(seq)
	return result, nil
}

// StoreFromVCF is the ingest path behind POST /genomic/store: it parses the
// VCF, creates (or reuses) the anchor for the reference genome, and stores
// the individual's diffs. The compression ratio is original size over the
// approximate diff encoding size; it is a diagnostic, not a correctness
// property.
func (s *Store) StoreFromVCF(individualID, vcfText, referenceGenome string) (model.AnchorSequence, []model.GenomicDifference, float64, error) {
	variants := ParseVCF(vcfText)
	base := s.resolve(canonical.HashString(referenceGenome))
	anchor := s.CreateAnchor(base, referenceGenome)

	diffs, err := s.StoreDifferences(anchor.AnchorID, individualID, variants)
	if err != nil {
		return model.AnchorSequence{}, nil, 0, err
	}

	compressed := 64 // anchor hash reference
	for _, d := range diffs {
		compressed += 8 + len(d.ReferenceAllele) + len(d.AlternateAllele)
	}
	ratio := float64(len(base)) / float64(compressed)
	return anchor, diffs, ratio, nil
}
