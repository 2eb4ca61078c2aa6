package theory

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtergo/dnaresearch-sub000/internal/evidence"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// auditEntry captures what the engine handed to the ledger; the real ledger
// only keeps a hash of the payload, so the stub records it directly.
type auditEntry struct {
	entryType model.EntryType
	userID    string
	payload   map[string]any
}

type memAudit struct {
	entries []auditEntry
}

func (m *memAudit) Append(entryType model.EntryType, userID string, payload, metadata map[string]any) (int, error) {
	m.entries = append(m.entries, auditEntry{entryType: entryType, userID: userID, payload: payload})
	return len(m.entries) - 1, nil
}

type failingAudit struct{}

func (failingAudit) Append(model.EntryType, string, map[string]any, map[string]any) (int, error) {
	return 0, errors.New("ledger unavailable")
}

func newTestEngine(t *testing.T) (*Engine, *evidence.Accumulator, *memAudit) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	acc := evidence.NewAccumulator(logger)
	audit := &memAudit{}
	return NewEngine(acc, audit, logger), acc, audit
}

func validRequest() model.CreateTheoryRequest {
	return model.CreateTheoryRequest{
		ID:      "shank3-syndromic",
		Version: "1.0.0",
		Scope:   model.ScopeAutism,
		Title:   "SHANK3 disruption in syndromic presentation",
		Criteria: model.TheoryCriteria{
			Genes:    []string{"SHANK3"},
			Pathways: []string{"synaptic_scaffolding", "glutamate_signaling"},
		},
		EvidenceModel: model.EvidenceModel{
			Priors: 0.1,
			LikelihoodWeights: map[string]float64{
				"variant_hit": 1.5,
				"pathway":     2.0,
			},
		},
		Author: "researcher_1",
		Tags:   []string{"autosomal", "neuro"},
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	req := model.CreateTheoryRequest{
		Version: "not-semver",
		Scope:   model.TheoryScope("astrology"),
		EvidenceModel: model.EvidenceModel{
			Priors:            1.5,
			LikelihoodWeights: map[string]float64{"variant_hit": -1},
		},
	}
	issues := Validate(req)

	fields := make(map[string]bool)
	for _, issue := range issues {
		fields[issue.Field] = true
	}
	assert.True(t, fields["id"])
	assert.True(t, fields["version"])
	assert.True(t, fields["scope"])
	assert.True(t, fields["evidence_model.priors"])
	assert.True(t, fields["evidence_model.likelihood_weights.variant_hit"])
	assert.True(t, fields["criteria"])
}

func TestValidateRejectsPrereleaseVersions(t *testing.T) {
	req := validRequest()
	req.Version = "1.0.0-rc.1"
	issues := Validate(req)
	require.Len(t, issues, 1)
	assert.Equal(t, "version", issues[0].Field)

	req.Version = "1.0.0+build.5"
	issues = Validate(req)
	require.Len(t, issues, 1)
	assert.Equal(t, "version", issues[0].Field)
}

func TestCreateAndGet(t *testing.T) {
	e, _, _ := newTestEngine(t)

	th, issues, err := e.Create(validRequest())
	require.NoError(t, err)
	require.Empty(t, issues)
	assert.Equal(t, model.LifecycleDraft, th.Lifecycle)

	got, err := e.Get("shank3-syndromic")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Version)

	_, err = e.Get("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, issues, err := e.Create(validRequest())
	require.NoError(t, err)
	require.Empty(t, issues)

	_, issues, err = e.Create(validRequest())
	assert.ErrorIs(t, err, ErrExists)
	assert.Empty(t, issues)
}

func TestCreateReturnsIssuesWithoutStoring(t *testing.T) {
	e, _, _ := newTestEngine(t)

	req := validRequest()
	req.Criteria = model.TheoryCriteria{}
	_, issues, err := e.Create(req)
	require.NoError(t, err)
	assert.NotEmpty(t, issues)

	_, err = e.Get(req.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsNewestVersion(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Version = "1.1.0"
	req.Title = "SHANK3 disruption, revised criteria"
	_, _, err = e.Create(req)
	require.NoError(t, err)

	got, err := e.Get("shank3-syndromic")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Version)

	old, err := e.GetVersion("shank3-syndromic", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "SHANK3 disruption in syndromic presentation", old.Title)
}

const executionVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\n" +
	"22\t50700000\trs1\tA\tG\t99\n" +
	"chr22\t50710000\trs2\tC\tT\t80\n" +
	"1\t12345\trs3\tG\tA\t50\n"

func TestExecute(t *testing.T) {
	e, acc, audit := newTestEngine(t)
	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	result, err := e.Execute("shank3-syndromic", "researcher_1", executionVCF, "family_007")
	require.NoError(t, err)

	assert.Equal(t, 3, result.VariantCount)
	assert.Equal(t, 2, result.GeneHits, "two variants fall in the SHANK3 region")

	// likelihood = (1 + 2*1.5) * (1 + 2*2.0*0.1) = 4 * 1.4 = 5.6
	// null = 0.001 * 3 = 0.003, BF = 5.6 / 0.003
	wantBF := 5.6 / 0.003
	assert.InDelta(t, wantBF, result.BayesFactor, 1e-9)
	assert.Equal(t, model.SupportStrong, result.SupportClass)

	wantPosterior := 0.1 * wantBF / (0.1*wantBF + 0.9)
	assert.InDelta(t, wantPosterior, result.Posterior, 1e-9)

	assert.GreaterOrEqual(t, result.ExecutionTimeMS, int64(1))
	assert.Len(t, result.ArtifactHash, 64)

	// The execution feeds the evidence trail and the audit log.
	trail := acc.Trail("shank3-syndromic", "1.0.0")
	require.Len(t, trail, 1)
	assert.Equal(t, "family_007", trail[0].FamilyID)
	assert.InDelta(t, wantBF, trail[0].BayesFactor, 1e-9)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, model.EntryTheoryExecution, audit.entries[0].entryType)
	assert.Equal(t, "researcher_1", audit.entries[0].userID)
	assert.Equal(t, "family_007", audit.entries[0].payload["family_id"])
}

func TestExecuteLedgerFailureRecordsNoEvidence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	acc := evidence.NewAccumulator(logger)
	e := NewEngine(acc, failingAudit{}, logger)
	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	_, err = e.Execute("shank3-syndromic", "u1", executionVCF, "f1")
	require.Error(t, err)
	assert.Empty(t, acc.Trail("shank3-syndromic", "1.0.0"),
		"an execution that cannot be audited must leave no evidence behind")
}

func TestExecuteUnknownTheory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Execute("nope", "u1", executionVCF, "f1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteEmptyVCF(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	result, err := e.Execute("shank3-syndromic", "u1", "##fileformat=VCFv4.2\n", "f1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.VariantCount)
	assert.Equal(t, 0, result.GeneHits)

	// likelihood = 1 * 1.4, null floors at 0.001
	assert.InDelta(t, 1.4/0.001, result.BayesFactor, 1e-9)
}

func TestFork(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	resp, issues, err := e.Fork("shank3-syndromic", "shank3-regulatory", map[string]any{
		"title":   "SHANK3 regulatory-region variants",
		"genes":   []any{"SHANK3", "NRXN1"},
		"priors":  0.05,
		"ignored": "no such field",
		"scope":   string(model.ScopeAutism), // unchanged, must not be reported
	}, "testing regulatory hypothesis")
	require.NoError(t, err)
	require.Empty(t, issues)

	assert.Equal(t, "shank3-regulatory", resp.Theory.ID)
	assert.Equal(t, "1.0.1", resp.Theory.Version, "patch bump from parent")
	assert.Equal(t, model.LifecycleDraft, resp.Theory.Lifecycle)
	assert.ElementsMatch(t, []string{"title", "criteria.genes", "evidence_model.priors"}, resp.ChangedFields)
	assert.Equal(t, []string{"SHANK3", "NRXN1"}, resp.Theory.Criteria.Genes)
	assert.InDelta(t, 0.05, resp.Theory.EvidenceModel.Priors, 1e-12)

	assert.Equal(t, "shank3-syndromic", resp.Lineage.ParentID)
	assert.Equal(t, "1.0.0", resp.Lineage.ParentVersion)
	assert.Equal(t, "testing regulatory hypothesis", resp.Lineage.ForkReason)

	lineage := e.Lineage("shank3-regulatory")
	require.Len(t, lineage, 1)
	assert.Equal(t, resp.Lineage, lineage[0])

	// Parent is untouched by child mutations.
	parent, err := e.Get("shank3-syndromic")
	require.NoError(t, err)
	assert.Equal(t, []string{"SHANK3"}, parent.Criteria.Genes)
	assert.InDelta(t, 0.1, parent.EvidenceModel.Priors, 1e-12)
}

func TestForkUnknownParent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.Fork("nope", "child", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForkRevalidatesModifications(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	_, issues, err := e.Fork("shank3-syndromic", "shank3-variant", map[string]any{
		"priors": 1.5,
		"scope":  "astrology",
	}, "testing out-of-range values")
	require.NoError(t, err)
	require.NotEmpty(t, issues)

	fields := make(map[string]bool)
	for _, issue := range issues {
		fields[issue.Field] = true
	}
	assert.True(t, fields["evidence_model.priors"])
	assert.True(t, fields["scope"])

	// The invalid child was never stored.
	_, err = e.Get("shank3-variant")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetLifecycleAndComments(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.Create(validRequest())
	require.NoError(t, err)

	require.NoError(t, e.SetLifecycle("shank3-syndromic", "1.0.0", model.LifecycleActive))
	th, err := e.GetVersion("shank3-syndromic", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleActive, th.Lifecycle)

	assert.ErrorIs(t, e.SetLifecycle("shank3-syndromic", "9.9.9", model.LifecycleActive), ErrNotFound)

	require.NoError(t, e.AddComment("shank3-syndromic", "needs more trios"))
	assert.ErrorIs(t, e.AddComment("nope", "x"), ErrNotFound)
}

func TestList(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	e, acc, _ := newTestEngine(t)
	e.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	mk := func(id, title string, scope model.TheoryScope, author string, tags []string) {
		req := validRequest()
		req.ID = id
		req.Title = title
		req.Scope = scope
		req.Author = author
		req.Tags = tags
		_, issues, err := e.Create(req)
		require.NoError(t, err)
		require.Empty(t, issues)
	}
	mk("t-alpha", "Alpha hypothesis", model.ScopeAutism, "alice", []string{"neuro"})
	mk("t-beta", "Beta hypothesis", model.ScopeCancer, "bob", []string{"oncology", "neuro"})
	mk("t-gamma", "Gamma hypothesis", model.ScopeCancer, "alice", []string{"oncology"})

	_, err := acc.Add("t-beta", "1.0.0", "f1", 5.0, "literature", 1.0, "curation")
	require.NoError(t, err)
	require.NoError(t, e.AddComment("t-gamma", "under review"))

	t.Run("no filter, created_at desc by default order flag", func(t *testing.T) {
		entries, total, hasMore := e.List(ListOptions{})
		assert.Equal(t, 3, total)
		assert.False(t, hasMore)
		require.Len(t, entries, 3)
		assert.Equal(t, "t-gamma", entries[0].Theory.ID, "newest first when descending")
	})

	t.Run("scope filter", func(t *testing.T) {
		scope := model.ScopeCancer
		entries, total, _ := e.List(ListOptions{Filter: Filter{Scope: &scope}})
		assert.Equal(t, 2, total)
		for _, en := range entries {
			assert.Equal(t, model.ScopeCancer, en.Theory.Scope)
		}
	})

	t.Run("author filter", func(t *testing.T) {
		author := "alice"
		_, total, _ := e.List(ListOptions{Filter: Filter{Author: &author}})
		assert.Equal(t, 2, total)
	})

	t.Run("has_comments filter", func(t *testing.T) {
		yes := true
		entries, total, _ := e.List(ListOptions{Filter: Filter{HasComments: &yes}})
		require.Equal(t, 1, total)
		assert.Equal(t, "t-gamma", entries[0].Theory.ID)
	})

	t.Run("search across title and tags", func(t *testing.T) {
		_, total, _ := e.List(ListOptions{Filter: Filter{Search: "beta"}})
		assert.Equal(t, 1, total)
		_, total, _ = e.List(ListOptions{Filter: Filter{Search: "oncology"}})
		assert.Equal(t, 2, total)
	})

	t.Run("tag membership requires every tag", func(t *testing.T) {
		entries, total, _ := e.List(ListOptions{Filter: Filter{Tags: []string{"oncology", "neuro"}}})
		require.Equal(t, 1, total)
		assert.Equal(t, "t-beta", entries[0].Theory.ID)
	})

	t.Run("sort by evidence_count desc", func(t *testing.T) {
		entries, _, _ := e.List(ListOptions{SortBy: SortEvidenceCount})
		require.Len(t, entries, 3)
		assert.Equal(t, "t-beta", entries[0].Theory.ID)
		assert.Equal(t, 1, entries[0].EvidenceCount)
	})

	t.Run("sort by posterior asc", func(t *testing.T) {
		entries, _, _ := e.List(ListOptions{SortBy: SortPosterior, Ascending: true})
		require.Len(t, entries, 3)
		assert.Equal(t, "t-beta", entries[2].Theory.ID, "only theory with evidence sorts last ascending")
	})

	t.Run("sort by title asc", func(t *testing.T) {
		entries, _, _ := e.List(ListOptions{SortBy: SortTitle, Ascending: true})
		assert.Equal(t, "t-alpha", entries[0].Theory.ID)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, total, hasMore := e.List(ListOptions{SortBy: SortTitle, Ascending: true, Limit: 2})
		assert.Equal(t, 3, total)
		assert.True(t, hasMore)
		require.Len(t, entries, 2)

		entries, total, hasMore = e.List(ListOptions{SortBy: SortTitle, Ascending: true, Limit: 2, Offset: 2})
		assert.Equal(t, 3, total)
		assert.False(t, hasMore)
		require.Len(t, entries, 1)
		assert.Equal(t, "t-gamma", entries[0].Theory.ID)

		entries, total, hasMore = e.List(ListOptions{Offset: 10})
		assert.Equal(t, 3, total)
		assert.False(t, hasMore)
		assert.Empty(t, entries)
	})
}
