package theory

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// Issue is a single validation problem. Validation collects every issue so
// callers can display the full list at once instead of fixing one at a time.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validScopes = func() map[model.TheoryScope]bool {
	m := make(map[model.TheoryScope]bool, len(model.AllTheoryScopes))
	for _, s := range model.AllTheoryScopes {
		m[s] = true
	}
	return m
}()

// Validate checks a theory definition before storage.
func Validate(req model.CreateTheoryRequest) []Issue {
	var issues []Issue
	add := func(field, message string) {
		issues = append(issues, Issue{Field: field, Message: message})
	}

	if req.ID == "" {
		add("id", "id is required")
	}
	if req.Version == "" {
		add("version", "version is required")
	} else if v, err := semver.StrictNewVersion(req.Version); err != nil || v.Prerelease() != "" || v.Metadata() != "" {
		add("version", fmt.Sprintf("version %q is not plain semver X.Y.Z", req.Version))
	}
	if req.Scope == "" {
		add("scope", "scope is required")
	} else if !validScopes[req.Scope] {
		add("scope", fmt.Sprintf("scope %q is not one of the supported research domains", req.Scope))
	}
	if req.EvidenceModel.Priors < 0 || req.EvidenceModel.Priors > 1 {
		add("evidence_model.priors", fmt.Sprintf("priors must be in [0,1], got %g", req.EvidenceModel.Priors))
	}
	for name, w := range req.EvidenceModel.LikelihoodWeights {
		if w <= 0 {
			add("evidence_model.likelihood_weights."+name, "likelihood weights must be positive")
		}
	}
	if len(req.Criteria.Genes) == 0 && len(req.Criteria.Pathways) == 0 && len(req.Criteria.Phenotypes) == 0 {
		add("criteria", "criteria must contain at least one of genes, pathways, or phenotypes")
	}
	return issues
}
