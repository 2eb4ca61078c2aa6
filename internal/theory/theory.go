// Package theory implements the theory engine: definition and validation of
// genetic theories, execution against variant sets, forking with lineage,
// and listing with composable filters.
package theory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

var (
	// ErrNotFound is returned when a theory ID (or version) is unknown.
	ErrNotFound = errors.New("theory: not found")
	// ErrExists is returned when creating a duplicate (id, version).
	ErrExists = errors.New("theory: already exists")
)

// PosteriorSource is the slice of the evidence accumulator the engine needs
// for execution and posterior-based sorting.
type PosteriorSource interface {
	Add(theoryID, version, familyID string, bayesFactor float64, evidenceType string, weight float64, source string) (model.EvidenceRecord, error)
	UpdatePosterior(theoryID, version string, prior float64) model.AccumulationResult
	Count(theoryID, version string) int
}

// AuditLog is the slice of the ledger the engine depends on.
type AuditLog interface {
	Append(entryType model.EntryType, userID string, payload, metadata map[string]any) (int, error)
}

// Engine owns theory definitions and their lineage.
type Engine struct {
	mu       sync.Mutex
	theories map[string]*model.Theory // id@version
	versions map[string][]string      // id → versions in creation order
	lineage  []model.TheoryLineage
	comments map[string][]string // id → free-text comments

	evidence PosteriorSource
	audit    AuditLog
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an empty theory engine.
func NewEngine(evidence PosteriorSource, audit AuditLog, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		theories: make(map[string]*model.Theory),
		versions: make(map[string][]string),
		comments: make(map[string][]string),
		evidence: evidence,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func key(id, version string) string { return id + "@" + version }

// Create validates and stores a new theory. Validation failures are
// returned as a non-empty issue list with a nil error so callers can show
// every problem at once; the theory is stored only when issues is empty.
func (e *Engine) Create(req model.CreateTheoryRequest) (model.Theory, []Issue, error) {
	if issues := Validate(req); len(issues) > 0 {
		return model.Theory{}, issues, nil
	}

	now := e.now().UTC()
	th := model.Theory{
		ID:            req.ID,
		Version:       req.Version,
		Scope:         req.Scope,
		Title:         req.Title,
		Description:   req.Description,
		Criteria:      req.Criteria,
		EvidenceModel: req.EvidenceModel,
		Author:        req.Author,
		CreatedAt:     now,
		UpdatedAt:     now,
		Lifecycle:     model.LifecycleDraft,
		Tags:          req.Tags,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	k := key(th.ID, th.Version)
	if _, ok := e.theories[k]; ok {
		return model.Theory{}, nil, fmt.Errorf("%w: %s", ErrExists, k)
	}
	e.theories[k] = &th
	e.versions[th.ID] = append(e.versions[th.ID], th.Version)

	e.logger.Info("theory created", "theory_id", th.ID, "version", th.Version, "scope", th.Scope)
	return th, nil, nil
}

// Get returns the newest version of a theory.
func (e *Engine) Get(id string) (model.Theory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	versions := e.versions[id]
	if len(versions) == 0 {
		return model.Theory{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *e.theories[key(id, versions[len(versions)-1])], nil
}

// GetVersion returns a specific theory version.
func (e *Engine) GetVersion(id, version string) (model.Theory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.theories[key(id, version)]
	if !ok {
		return model.Theory{}, fmt.Errorf("%w: %s@%s", ErrNotFound, id, version)
	}
	return *th, nil
}

// SetLifecycle moves a theory version to a new lifecycle state.
func (e *Engine) SetLifecycle(id, version string, lc model.TheoryLifecycle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.theories[key(id, version)]
	if !ok {
		return fmt.Errorf("%w: %s@%s", ErrNotFound, id, version)
	}
	th.Lifecycle = lc
	th.UpdatedAt = e.now().UTC()
	return nil
}

// AddComment attaches a free-text comment to a theory ID.
func (e *Engine) AddComment(id, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.versions[id]) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.comments[id] = append(e.comments[id], text)
	return nil
}

// Fork deep-copies a parent theory into a new ID, applies the given field
// modifications, bumps the patch version, and records a lineage row. The
// modified child passes through the same validation as Create; issues are
// returned as a non-empty list with a nil error and nothing is stored.
func (e *Engine) Fork(parentID, newID string, modifications map[string]any, reason string) (model.ForkTheoryResponse, []Issue, error) {
	parent, err := e.Get(parentID)
	if err != nil {
		return model.ForkTheoryResponse{}, nil, err
	}

	v, err := semver.StrictNewVersion(parent.Version)
	if err != nil {
		return model.ForkTheoryResponse{}, nil, fmt.Errorf("theory: parent version %q: %w", parent.Version, err)
	}
	newVersion := v.IncPatch().String()

	now := e.now().UTC()
	child := deepCopy(parent)
	child.ID = newID
	child.Version = newVersion
	child.CreatedAt = now
	child.UpdatedAt = now
	child.Lifecycle = model.LifecycleDraft

	changed := applyModifications(&child, modifications)
	if issues := Validate(model.CreateTheoryRequest{
		ID:            child.ID,
		Version:       child.Version,
		Scope:         child.Scope,
		Title:         child.Title,
		Description:   child.Description,
		Criteria:      child.Criteria,
		EvidenceModel: child.EvidenceModel,
		Author:        child.Author,
		Tags:          child.Tags,
	}); len(issues) > 0 {
		return model.ForkTheoryResponse{}, issues, nil
	}

	lineage := model.TheoryLineage{
		TheoryID:      newID,
		Version:       newVersion,
		ParentID:      parent.ID,
		ParentVersion: parent.Version,
		ForkReason:    reason,
		CreatedAt:     now,
	}

	e.mu.Lock()
	k := key(newID, newVersion)
	if _, ok := e.theories[k]; ok {
		e.mu.Unlock()
		return model.ForkTheoryResponse{}, nil, fmt.Errorf("%w: %s", ErrExists, k)
	}
	e.theories[k] = &child
	e.versions[newID] = append(e.versions[newID], newVersion)
	e.lineage = append(e.lineage, lineage)
	e.mu.Unlock()

	e.logger.Info("theory forked",
		"parent", parent.ID+"@"+parent.Version,
		"child", k,
		"changed_fields", changed,
	)
	return model.ForkTheoryResponse{Theory: child, ChangedFields: changed, Lineage: lineage}, nil, nil
}

// Lineage returns the lineage rows for a theory ID.
func (e *Engine) Lineage(id string) []model.TheoryLineage {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.TheoryLineage
	for _, l := range e.lineage {
		if l.TheoryID == id {
			out = append(out, l)
		}
	}
	return out
}

func deepCopy(t model.Theory) model.Theory {
	c := t
	c.Criteria.Genes = append([]string(nil), t.Criteria.Genes...)
	c.Criteria.Pathways = append([]string(nil), t.Criteria.Pathways...)
	c.Criteria.Phenotypes = append([]string(nil), t.Criteria.Phenotypes...)
	c.Tags = append([]string(nil), t.Tags...)
	if t.EvidenceModel.LikelihoodWeights != nil {
		c.EvidenceModel.LikelihoodWeights = make(map[string]float64, len(t.EvidenceModel.LikelihoodWeights))
		for k, v := range t.EvidenceModel.LikelihoodWeights {
			c.EvidenceModel.LikelihoodWeights[k] = v
		}
	}
	return c
}

// applyModifications overwrites recognized fields and returns the names of
// every field that changed or was added. Unknown keys are ignored.
func applyModifications(t *model.Theory, mods map[string]any) []string {
	var changed []string
	record := func(field string) { changed = append(changed, field) }

	for _, field := range []string{"title", "description", "scope", "tags", "genes", "pathways", "phenotypes", "priors"} {
		raw, ok := mods[field]
		if !ok {
			continue
		}
		switch field {
		case "title":
			if s, ok := raw.(string); ok && s != t.Title {
				t.Title = s
				record("title")
			}
		case "description":
			if s, ok := raw.(string); ok && s != t.Description {
				t.Description = s
				record("description")
			}
		case "scope":
			if s, ok := raw.(string); ok && model.TheoryScope(s) != t.Scope {
				t.Scope = model.TheoryScope(s)
				record("scope")
			}
		case "tags":
			if ss, ok := toStringSlice(raw); ok {
				t.Tags = ss
				record("tags")
			}
		case "genes":
			if ss, ok := toStringSlice(raw); ok {
				t.Criteria.Genes = ss
				record("criteria.genes")
			}
		case "pathways":
			if ss, ok := toStringSlice(raw); ok {
				t.Criteria.Pathways = ss
				record("criteria.pathways")
			}
		case "phenotypes":
			if ss, ok := toStringSlice(raw); ok {
				t.Criteria.Phenotypes = ss
				record("criteria.phenotypes")
			}
		case "priors":
			if f, ok := toFloat(raw); ok && f != t.EvidenceModel.Priors {
				t.EvidenceModel.Priors = f
				record("evidence_model.priors")
			}
		}
	}
	return changed
}

func toStringSlice(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
