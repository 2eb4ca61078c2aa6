// Package evidence accumulates Bayesian evidence per theory version across
// families and recomputes posterior support. Bayes factors multiply across
// records after per-record weighting and a shrinkage dampener that prevents
// over-confident accumulation on small trails.
package evidence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// ErrInvalidEvidence is returned for non-positive Bayes factors or negative
// weights.
var ErrInvalidEvidence = errors.New("evidence: invalid evidence")

// minWeightedBF floors each record's weighted contribution so a single
// pathological record cannot zero out the whole product.
const minWeightedBF = 0.01

// Accumulator stores evidence trails keyed by (theory_id, theory_version).
type Accumulator struct {
	mu     sync.Mutex
	trails map[string][]model.EvidenceRecord
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(logger *slog.Logger, opts ...Option) *Accumulator {
	a := &Accumulator{
		trails: make(map[string][]model.EvidenceRecord),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func trailKey(theoryID, version string) string {
	return theoryID + "@" + version
}

// Add appends an evidence record to a theory version's trail. The Bayes
// factor must be strictly positive and the weight non-negative.
func (a *Accumulator) Add(theoryID, version, familyID string, bayesFactor float64, evidenceType string, weight float64, source string) (model.EvidenceRecord, error) {
	if bayesFactor <= 0 {
		return model.EvidenceRecord{}, fmt.Errorf("%w: bayes factor must be positive, got %g", ErrInvalidEvidence, bayesFactor)
	}
	if weight < 0 {
		return model.EvidenceRecord{}, fmt.Errorf("%w: weight must be non-negative, got %g", ErrInvalidEvidence, weight)
	}

	record := model.EvidenceRecord{
		TheoryID:      theoryID,
		TheoryVersion: version,
		FamilyID:      familyID,
		BayesFactor:   bayesFactor,
		EvidenceType:  evidenceType,
		Weight:        weight,
		Timestamp:     a.now().UTC(),
		Source:        source,
	}

	a.mu.Lock()
	key := trailKey(theoryID, version)
	a.trails[key] = append(a.trails[key], record)
	count := len(a.trails[key])
	a.mu.Unlock()

	a.logger.Info("evidence added",
		"theory_id", theoryID,
		"version", version,
		"family_id", familyID,
		"bayes_factor", bayesFactor,
		"trail_length", count,
	)
	return record, nil
}

// shrinkage dampens accumulation while the trail is short.
func shrinkage(n int) float64 {
	switch {
	case n >= 10:
		return 1.0
	case n >= 5:
		return 0.8
	case n >= 2:
		return 0.6
	default:
		return 0.4
	}
}

// UpdatePosterior recomputes the accumulated Bayes factor and posterior for
// a theory version given a prior. Deterministic for a given trail.
func (a *Accumulator) UpdatePosterior(theoryID, version string, prior float64) model.AccumulationResult {
	a.mu.Lock()
	trail := a.trails[trailKey(theoryID, version)]
	records := make([]model.EvidenceRecord, len(trail))
	copy(records, trail)
	a.mu.Unlock()

	result := model.AccumulationResult{
		TheoryID:      theoryID,
		TheoryVersion: version,
		EvidenceCount: len(records),
	}

	if len(records) == 0 {
		result.AccumulatedBF = 1
		result.Posterior = prior
		result.SupportClass = model.SupportInsufficient
		return result
	}

	s := shrinkage(len(records))
	accumulated := 1.0
	families := make(map[string]struct{})
	for _, r := range records {
		weighted := 1 + (r.BayesFactor-1)*r.Weight*s
		if weighted < minWeightedBF {
			weighted = minWeightedBF
		}
		accumulated *= weighted
		families[r.FamilyID] = struct{}{}
	}

	denom := prior*accumulated + (1 - prior)
	posterior := 0.0
	if denom != 0 {
		posterior = prior * accumulated / denom
	}

	result.AccumulatedBF = accumulated
	result.Posterior = posterior
	result.SupportClass = model.ClassifySupport(accumulated)
	result.FamiliesAnalyzed = len(families)
	return result
}

// Trail returns a theory version's evidence records in insertion order.
func (a *Accumulator) Trail(theoryID, version string) []model.EvidenceRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	trail := a.trails[trailKey(theoryID, version)]
	out := make([]model.EvidenceRecord, len(trail))
	copy(out, trail)
	return out
}

// Count returns the trail length for a theory version.
func (a *Accumulator) Count(theoryID, version string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.trails[trailKey(theoryID, version)])
}
