package evidence

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

func newAccumulator() *Accumulator {
	return NewAccumulator(slog.New(slog.DiscardHandler))
}

func TestAdd_RejectsInvalid(t *testing.T) {
	a := newAccumulator()

	_, err := a.Add("T", "1.0.0", "fam1", 0, "segregation", 1, "")
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = a.Add("T", "1.0.0", "fam1", -2, "segregation", 1, "")
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = a.Add("T", "1.0.0", "fam1", 2, "segregation", -1, "")
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	assert.Equal(t, 0, a.Count("T", "1.0.0"))
}

func TestUpdatePosterior_EmptyTrail(t *testing.T) {
	a := newAccumulator()

	result := a.UpdatePosterior("T", "1.0.0", 0.1)
	assert.Equal(t, 1.0, result.AccumulatedBF)
	assert.Equal(t, 0.1, result.Posterior)
	assert.Equal(t, model.SupportInsufficient, result.SupportClass)
	assert.Equal(t, 0, result.EvidenceCount)
	assert.Equal(t, 0, result.FamiliesAnalyzed)
}

// Two families with BF 2 and 3 at prior 0.1: shrinkage 0.6 gives weighted
// factors 1.6 and 2.2, accumulated BF 3.52, posterior ≈ 0.2811.
func TestUpdatePosterior_TwoFamilies(t *testing.T) {
	a := newAccumulator()
	_, err := a.Add("T", "1.0.0", "fam1", 2, "segregation", 1, "")
	require.NoError(t, err)
	_, err = a.Add("T", "1.0.0", "fam2", 3, "segregation", 1, "")
	require.NoError(t, err)

	result := a.UpdatePosterior("T", "1.0.0", 0.1)
	assert.InDelta(t, 3.52, result.AccumulatedBF, 1e-9)
	assert.InDelta(t, 0.1*3.52/(0.1*3.52+0.9), result.Posterior, 1e-9)
	assert.InDelta(t, 0.28115, result.Posterior, 1e-4)
	assert.Equal(t, model.SupportModerate, result.SupportClass)
	assert.Equal(t, 2, result.EvidenceCount)
	assert.Equal(t, 2, result.FamiliesAnalyzed)
}

func TestUpdatePosterior_NeutralEvidence(t *testing.T) {
	a := newAccumulator()
	prior := 0.25

	_, err := a.Add("T", "1.0.0", "fam1", 1, "segregation", 1, "")
	require.NoError(t, err)

	result := a.UpdatePosterior("T", "1.0.0", prior)
	assert.Equal(t, 1.0, result.AccumulatedBF, "BF=1 is neutral regardless of shrinkage")
	assert.Equal(t, prior, result.Posterior)
}

func TestUpdatePosterior_SupportiveEvidenceRaisesPosterior(t *testing.T) {
	a := newAccumulator()
	prior := 0.2

	before := a.UpdatePosterior("T", "1.0.0", prior).Posterior
	_, err := a.Add("T", "1.0.0", "fam1", 5, "de_novo", 1, "")
	require.NoError(t, err)
	after := a.UpdatePosterior("T", "1.0.0", prior).Posterior

	assert.Greater(t, after, before)
}

func TestShrinkage_Table(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{1, 0.4}, {2, 0.6}, {4, 0.6}, {5, 0.8}, {9, 0.8}, {10, 1.0}, {50, 1.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shrinkage(tt.n), "n=%d", tt.n)
	}
}

func TestSupportClass_InclusiveThresholds(t *testing.T) {
	assert.Equal(t, model.SupportWeak, model.ClassifySupport(1))
	assert.Equal(t, model.SupportModerate, model.ClassifySupport(3))
	assert.Equal(t, model.SupportStrong, model.ClassifySupport(10))
	assert.Equal(t, model.SupportInsufficient, model.ClassifySupport(0.99))
}

func TestUpdatePosterior_FloorsWeightedBF(t *testing.T) {
	a := newAccumulator()
	// BF far below 1 with a large weight would go negative without the floor.
	_, err := a.Add("T", "1.0.0", "fam1", 0.001, "segregation", 10, "")
	require.NoError(t, err)

	result := a.UpdatePosterior("T", "1.0.0", 0.5)
	assert.Equal(t, 0.01, result.AccumulatedBF)
	assert.Greater(t, result.Posterior, 0.0)
}

func TestTrail_InsertionOrder(t *testing.T) {
	a := newAccumulator()
	for i, fam := range []string{"fam1", "fam2", "fam1"} {
		_, err := a.Add("T", "1.0.0", fam, float64(i+2), "segregation", 1, "lab")
		require.NoError(t, err)
	}

	trail := a.Trail("T", "1.0.0")
	require.Len(t, trail, 3)
	assert.Equal(t, "fam1", trail[0].FamilyID)
	assert.Equal(t, 2.0, trail[0].BayesFactor)
	assert.Equal(t, "fam1", trail[2].FamilyID)
	assert.Equal(t, 4.0, trail[2].BayesFactor)

	result := a.UpdatePosterior("T", "1.0.0", 0.1)
	assert.Equal(t, 2, result.FamiliesAnalyzed, "distinct families")
}

func TestTrails_VersionsIndependent(t *testing.T) {
	a := newAccumulator()
	_, err := a.Add("T", "1.0.0", "fam1", 2, "segregation", 1, "")
	require.NoError(t, err)
	_, err = a.Add("T", "1.0.1", "fam1", 9, "segregation", 1, "")
	require.NoError(t, err)

	assert.Equal(t, 1, a.Count("T", "1.0.0"))
	assert.Equal(t, 1, a.Count("T", "1.0.1"))
	assert.NotEqual(t,
		a.UpdatePosterior("T", "1.0.0", 0.1).AccumulatedBF,
		a.UpdatePosterior("T", "1.0.1", 0.1).AccumulatedBF)
}
