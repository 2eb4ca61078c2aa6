package theory

import (
	"crypto/md5" //nolint:gosec // fingerprint of the input VCF, not a security control
	"encoding/hex"
	"fmt"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/genes"
	"github.com/xtergo/dnaresearch-sub000/internal/genomic"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// Likelihood weight names recognized in a theory's evidence model. Absent
// weights default to 1.0.
const (
	weightVariantHit = "variant_hit"
	weightPathway    = "pathway"
)

// Execute runs the newest version of a theory against a VCF for one family,
// records the resulting Bayes factor in the evidence accumulator, and writes
// a THEORY_EXECUTION ledger entry attributed to userID.
func (e *Engine) Execute(theoryID, userID, vcfText, familyID string) (model.ExecutionResult, error) {
	th, err := e.Get(theoryID)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	start := time.Now()
	variants := genomic.ParseVCF(vcfText)

	geneHits := 0
	for _, v := range variants {
		if genes.InRegion(v.Chromosome, v.Position, th.Criteria.Genes) {
			geneHits++
		}
	}

	wHit := weightOrDefault(th.EvidenceModel.LikelihoodWeights, weightVariantHit)
	wPathway := weightOrDefault(th.EvidenceModel.LikelihoodWeights, weightPathway)

	likelihood := (1 + float64(geneHits)*wHit) * (1 + float64(len(th.Criteria.Pathways))*wPathway*0.1)
	nullLikelihood := 0.001 * float64(len(variants))
	if nullLikelihood < 0.001 {
		nullLikelihood = 0.001
	}

	bayesFactor := 0.0
	if nullLikelihood != 0 {
		bayesFactor = likelihood / nullLikelihood
	}

	prior := th.EvidenceModel.Priors
	denom := prior*bayesFactor + (1 - prior)
	posterior := 0.0
	if denom != 0 {
		posterior = prior * bayesFactor / denom
	}

	elapsed := time.Since(start).Milliseconds()
	if elapsed < 1 {
		elapsed = 1
	}

	now := e.now().UTC()
	vcfSum := md5.Sum([]byte(vcfText)) //nolint:gosec // see import note
	artifactHash, err := canonical.Hash(map[string]any{
		"theory_id":      th.ID,
		"theory_version": th.Version,
		"vcf_md5":        hex.EncodeToString(vcfSum[:]),
		"family_id":      familyID,
		"timestamp":      canonical.Timestamp(now),
	})
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("theory: artifact hash: %w", err)
	}

	result := model.ExecutionResult{
		TheoryID:        th.ID,
		TheoryVersion:   th.Version,
		FamilyID:        familyID,
		VariantCount:    len(variants),
		GeneHits:        geneHits,
		BayesFactor:     bayesFactor,
		Posterior:       posterior,
		SupportClass:    model.ClassifySupport(bayesFactor),
		ExecutionTimeMS: elapsed,
		ArtifactHash:    artifactHash,
		Timestamp:       now,
	}

	// The ledger entry precedes the evidence write: if the append fails the
	// accumulator is untouched and the caller can re-run the execution.
	payload := map[string]any{
		"theory_id":      th.ID,
		"theory_version": th.Version,
		"family_id":      familyID,
		"artifact_hash":  artifactHash,
		"gene_hits":      geneHits,
		"variant_count":  len(variants),
		"timestamp":      canonical.Timestamp(now),
	}
	if _, err := e.audit.Append(model.EntryTheoryExecution, userID, payload, map[string]any{
		"support_class": string(result.SupportClass),
	}); err != nil {
		return model.ExecutionResult{}, fmt.Errorf("theory: ledger append: %w", err)
	}

	if _, err := e.evidence.Add(th.ID, th.Version, familyID, bayesFactor, "theory_execution", 1.0, "execution"); err != nil {
		return model.ExecutionResult{}, fmt.Errorf("theory: record evidence: %w", err)
	}

	e.logger.Info("theory executed",
		"theory_id", th.ID,
		"version", th.Version,
		"family_id", familyID,
		"gene_hits", geneHits,
		"bayes_factor", bayesFactor,
		"support_class", result.SupportClass,
	)
	return result, nil
}

func weightOrDefault(weights map[string]float64, name string) float64 {
	if w, ok := weights[name]; ok {
		return w
	}
	return 1.0
}
