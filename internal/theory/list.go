package theory

import (
	"sort"
	"strings"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// Filter selects theories for listing. All set fields must match
// (filters compose with AND).
type Filter struct {
	Scope       *model.TheoryScope
	Lifecycle   *model.TheoryLifecycle
	Author      *string
	HasComments *bool
	Search      string   // substring across title, id, and tags
	Tags        []string // theory must carry every listed tag
}

// Sort keys accepted by List.
const (
	SortPosterior     = "posterior"
	SortEvidenceCount = "evidence_count"
	SortCreatedAt     = "created_at"
	SortUpdatedAt     = "updated_at"
	SortTitle         = "title"
)

// ListOptions bundles filtering, ordering, and pagination.
type ListOptions struct {
	Filter    Filter
	SortBy    string // defaults to created_at
	Ascending bool
	Limit     int // defaults to 20
	Offset    int
}

// ListEntry is a theory plus the evidence summary used for sorting.
type ListEntry struct {
	Theory        model.Theory `json:"theory"`
	Posterior     float64      `json:"posterior"`
	EvidenceCount int          `json:"evidence_count"`
}

// List returns the newest version of every theory matching the filter,
// sorted and paginated. total is the match count before pagination.
func (e *Engine) List(opts ListOptions) (entries []ListEntry, total int, hasMore bool) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.SortBy == "" {
		opts.SortBy = SortCreatedAt
	}

	e.mu.Lock()
	ids := make([]string, 0, len(e.versions))
	for id := range e.versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matched []ListEntry
	for _, id := range ids {
		versions := e.versions[id]
		th := *e.theories[key(id, versions[len(versions)-1])]
		if !e.matchesLocked(th, opts.Filter) {
			continue
		}
		matched = append(matched, ListEntry{Theory: th})
	}
	e.mu.Unlock()

	// Evidence summaries are fetched outside the engine lock; the
	// accumulator has its own.
	for i := range matched {
		th := matched[i].Theory
		acc := e.evidence.UpdatePosterior(th.ID, th.Version, th.EvidenceModel.Priors)
		matched[i].Posterior = acc.Posterior
		matched[i].EvidenceCount = acc.EvidenceCount
	}

	sortEntries(matched, opts.SortBy, opts.Ascending)

	total = len(matched)
	if opts.Offset >= len(matched) {
		return nil, total, false
	}
	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[opts.Offset:end], total, end < total
}

// matchesLocked applies the filter. Caller must hold e.mu.
func (e *Engine) matchesLocked(th model.Theory, f Filter) bool {
	if f.Scope != nil && th.Scope != *f.Scope {
		return false
	}
	if f.Lifecycle != nil && th.Lifecycle != *f.Lifecycle {
		return false
	}
	if f.Author != nil && th.Author != *f.Author {
		return false
	}
	if f.HasComments != nil && (len(e.comments[th.ID]) > 0) != *f.HasComments {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(th.Title), q) ||
			strings.Contains(strings.ToLower(th.ID), q)
		for _, tag := range th.Tags {
			hit = hit || strings.Contains(strings.ToLower(tag), q)
		}
		if !hit {
			return false
		}
	}
	for _, want := range f.Tags {
		found := false
		for _, tag := range th.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortEntries(entries []ListEntry, sortBy string, ascending bool) {
	less := func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch sortBy {
		case SortPosterior:
			if a.Posterior != b.Posterior {
				return a.Posterior < b.Posterior
			}
		case SortEvidenceCount:
			if a.EvidenceCount != b.EvidenceCount {
				return a.EvidenceCount < b.EvidenceCount
			}
		case SortUpdatedAt:
			if !a.Theory.UpdatedAt.Equal(b.Theory.UpdatedAt) {
				return a.Theory.UpdatedAt.Before(b.Theory.UpdatedAt)
			}
		case SortTitle:
			if a.Theory.Title != b.Theory.Title {
				return a.Theory.Title < b.Theory.Title
			}
		default: // created_at
			if !a.Theory.CreatedAt.Equal(b.Theory.CreatedAt) {
				return a.Theory.CreatedAt.Before(b.Theory.CreatedAt)
			}
		}
		return a.Theory.ID < b.Theory.ID
	}
	if ascending {
		sort.SliceStable(entries, less)
	} else {
		sort.SliceStable(entries, func(i, j int) bool { return less(j, i) })
	}
}
