// Package model defines the domain types shared across the platform core:
// consent records, ledger entries, genomic anchors and diffs, theories,
// evidence, webhook events, and the closed enums that describe them.
//
// All cross-component references are by stable string identifier. Components
// own their entities exclusively; model types carry no behavior beyond
// validation helpers.
package model

import "time"

// ConsentType is a category of data use a user can consent to.
// The set is closed; extending it requires a code release.
type ConsentType string

const (
	ConsentGenomicAnalysis       ConsentType = "genomic_analysis"
	ConsentDataSharing           ConsentType = "data_sharing"
	ConsentResearchParticipation ConsentType = "research_participation"
	ConsentCommercialUse         ConsentType = "commercial_use"
	ConsentLongTermStorage       ConsentType = "long_term_storage"
)

// AllConsentTypes lists every valid consent type in declaration order.
var AllConsentTypes = []ConsentType{
	ConsentGenomicAnalysis,
	ConsentDataSharing,
	ConsentResearchParticipation,
	ConsentCommercialUse,
	ConsentLongTermStorage,
}

// ConsentStatus is the lifecycle state of a single consent record.
type ConsentStatus string

const (
	ConsentActive    ConsentStatus = "active"
	ConsentWithdrawn ConsentStatus = "withdrawn"
	ConsentExpired   ConsentStatus = "expired"
	ConsentPending   ConsentStatus = "pending"
)

// ConsentForm is an immutable registered consent form. One capture of a form
// yields one ConsentRecord per consent type the form grants.
type ConsentForm struct {
	FormID         string        `json:"form_id"`
	Version        string        `json:"version"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	ConsentTypes   []ConsentType `json:"consent_types"`
	RequiredFields []string      `json:"required_fields"`
	ConsentText    string        `json:"consent_text"`
	ValidityDays   int           `json:"validity_days,omitempty"` // 0 = no expiry
}

// ConsentRecord is a single (user, consent type) grant with lifecycle.
type ConsentRecord struct {
	ConsentID        string         `json:"consent_id"`
	UserID           string         `json:"user_id"`
	ConsentType      ConsentType    `json:"consent_type"`
	Status           ConsentStatus  `json:"status"`
	GrantedAt        time.Time      `json:"granted_at"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	WithdrawnAt      *time.Time     `json:"withdrawn_at,omitempty"`
	DigitalSignature string         `json:"digital_signature"`
	IPAddress        string         `json:"ip_address"`
	UserAgent        string         `json:"user_agent"`
	ConsentTextHash  string         `json:"consent_text_hash"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Action is an operation gated by consent. Closed set.
type Action string

const (
	ActionReadGenomicData Action = "read_genomic_data"
	ActionAnalyzeVariants Action = "analyze_variants"
	ActionShareData       Action = "share_data"
	ActionGenerateReports Action = "generate_reports"
	ActionExecuteTheory   Action = "execute_theory"
)

// AccessResult is the outcome of an access-control check.
type AccessResult struct {
	AuditID             string        `json:"audit_id"`
	UserID              string        `json:"user_id"`
	Action              Action        `json:"action"`
	ResourceID          string        `json:"resource_id"`
	Granted             bool          `json:"granted"`
	Reason              string        `json:"reason"`
	ConsentTypesChecked []ConsentType `json:"consent_types_checked"`
	MissingConsents     []ConsentType `json:"missing_consents,omitempty"`
	Timestamp           time.Time     `json:"timestamp"`
	IPAddress           string        `json:"ip_address,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// EntryType classifies an audit ledger entry.
type EntryType string

const (
	EntryConsentGranted   EntryType = "consent_granted"
	EntryConsentWithdrawn EntryType = "consent_withdrawn"
	EntryDataAccess       EntryType = "data_access"
	EntryTheoryExecution  EntryType = "theory_execution"
	EntryEvidenceAdded    EntryType = "evidence_added"
	EntryGenomicAnalysis  EntryType = "genomic_analysis"
	EntryReportGenerated  EntryType = "report_generated"
)

// LedgerEntry is a single append-only audit record. DataHash is the SHA-256
// of the canonicalized payload; PreviousHash is the chain tip's block hash at
// append time; BlockHash is assigned when the entry is sealed.
type LedgerEntry struct {
	EntryID      int            `json:"entry_id"`
	EntryType    EntryType      `json:"entry_type"`
	UserID       string         `json:"user_id"`
	Timestamp    time.Time      `json:"timestamp"`
	DataHash     string         `json:"data_hash"`
	PreviousHash string         `json:"previous_hash"`
	BlockHash    string         `json:"block_hash,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Block is a sealed group of ledger entries with a Merkle root over their
// data hashes. Nonce is unused and present only for format stability.
type Block struct {
	BlockID           int           `json:"block_id"`
	Timestamp         time.Time     `json:"timestamp"`
	PreviousBlockHash string        `json:"previous_block_hash"`
	MerkleRoot        string        `json:"merkle_root"`
	Entries           []LedgerEntry `json:"entries"`
	BlockHash         string        `json:"block_hash"`
	Nonce             int           `json:"nonce"`
}

// AnchorSequence is a content-addressed reference sequence shared by many
// individuals. De-duplicated by SequenceHash.
type AnchorSequence struct {
	AnchorID        string    `json:"anchor_id"`
	SequenceHash    string    `json:"sequence_hash"`
	ReferenceGenome string    `json:"reference_genome"`
	QualityScore    float64   `json:"quality_score"`
	UsageCount      int       `json:"usage_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// GenomicDifference is one individual's variant against an anchor.
// Position is 1-based.
type GenomicDifference struct {
	DiffID          string    `json:"diff_id"`
	AnchorID        string    `json:"anchor_id"`
	IndividualID    string    `json:"individual_id"`
	Position        int       `json:"position"`
	ReferenceAllele string    `json:"reference_allele"`
	AlternateAllele string    `json:"alternate_allele"`
	QualityScore    float64   `json:"quality_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// Variant is a parsed VCF data line.
type Variant struct {
	Chromosome string  `json:"chromosome"`
	Position   int     `json:"position"`
	ID         string  `json:"id"`
	Ref        string  `json:"ref"`
	Alt        string  `json:"alt"`
	Quality    float64 `json:"quality"`
}

// TheoryScope is the research domain of a theory. Closed set.
type TheoryScope string

const (
	ScopeAutism         TheoryScope = "autism"
	ScopeCancer         TheoryScope = "cancer"
	ScopeCardiovascular TheoryScope = "cardiovascular"
	ScopeNeurological   TheoryScope = "neurological"
	ScopeMetabolic      TheoryScope = "metabolic"
)

// AllTheoryScopes lists every valid scope.
var AllTheoryScopes = []TheoryScope{
	ScopeAutism, ScopeCancer, ScopeCardiovascular, ScopeNeurological, ScopeMetabolic,
}

// TheoryLifecycle is the publication state of a theory version.
type TheoryLifecycle string

const (
	LifecycleDraft      TheoryLifecycle = "draft"
	LifecycleActive     TheoryLifecycle = "active"
	LifecycleDeprecated TheoryLifecycle = "deprecated"
	LifecycleArchived   TheoryLifecycle = "archived"
)

// TheoryCriteria selects the genomic features a theory is about. At least
// one of Genes/Pathways/Phenotypes must be non-empty.
type TheoryCriteria struct {
	Genes      []string `json:"genes,omitempty"`
	Pathways   []string `json:"pathways,omitempty"`
	Phenotypes []string `json:"phenotypes,omitempty"`
}

// EvidenceModel parameterizes a theory's Bayesian update.
type EvidenceModel struct {
	Priors            float64            `json:"priors"`
	LikelihoodWeights map[string]float64 `json:"likelihood_weights,omitempty"`
}

// Theory is a user-defined genetic hypothesis with semver versioning.
type Theory struct {
	ID            string          `json:"id"`
	Version       string          `json:"version"`
	Scope         TheoryScope     `json:"scope"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Criteria      TheoryCriteria  `json:"criteria"`
	EvidenceModel EvidenceModel   `json:"evidence_model"`
	Author        string          `json:"author"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lifecycle     TheoryLifecycle `json:"lifecycle"`
	Tags          []string        `json:"tags,omitempty"`
}

// TheoryLineage links a forked theory version to its parent.
type TheoryLineage struct {
	TheoryID      string    `json:"theory_id"`
	Version       string    `json:"version"`
	ParentID      string    `json:"parent_id,omitempty"`
	ParentVersion string    `json:"parent_version,omitempty"`
	ForkReason    string    `json:"fork_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SupportClass is the categorical strength of accumulated evidence.
type SupportClass string

const (
	SupportInsufficient SupportClass = "insufficient"
	SupportWeak         SupportClass = "weak"
	SupportModerate     SupportClass = "moderate"
	SupportStrong       SupportClass = "strong"
)

// ClassifySupport maps a Bayes factor to its support class.
// Thresholds are inclusive at 1, 3, and 10.
func ClassifySupport(bayesFactor float64) SupportClass {
	switch {
	case bayesFactor >= 10:
		return SupportStrong
	case bayesFactor >= 3:
		return SupportModerate
	case bayesFactor >= 1:
		return SupportWeak
	default:
		return SupportInsufficient
	}
}

// EvidenceRecord is one family's contribution to a theory version's posterior.
type EvidenceRecord struct {
	TheoryID      string    `json:"theory_id"`
	TheoryVersion string    `json:"theory_version"`
	FamilyID      string    `json:"family_id"`
	BayesFactor   float64   `json:"bayes_factor"`
	EvidenceType  string    `json:"evidence_type"`
	Weight        float64   `json:"weight"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source,omitempty"`
}

// AccumulationResult is the output of a posterior recomputation.
type AccumulationResult struct {
	TheoryID         string       `json:"theory_id"`
	TheoryVersion    string       `json:"theory_version"`
	AccumulatedBF    float64      `json:"accumulated_bf"`
	Posterior        float64      `json:"posterior"`
	SupportClass     SupportClass `json:"support_class"`
	EvidenceCount    int          `json:"evidence_count"`
	FamiliesAnalyzed int          `json:"families_analyzed"`
}

// ExecutionResult is the outcome of running a theory against a variant set.
type ExecutionResult struct {
	TheoryID        string       `json:"theory_id"`
	TheoryVersion   string       `json:"theory_version"`
	FamilyID        string       `json:"family_id"`
	VariantCount    int          `json:"variant_count"`
	GeneHits        int          `json:"gene_hits"`
	BayesFactor     float64      `json:"bayes_factor"`
	Posterior       float64      `json:"posterior"`
	SupportClass    SupportClass `json:"support_class"`
	ExecutionTimeMS int64        `json:"execution_time_ms"`
	ArtifactHash    string       `json:"artifact_hash"`
	Timestamp       time.Time    `json:"timestamp"`
}

// EventType classifies a sequencing-partner webhook callback.
type EventType string

const (
	EventSequencingComplete EventType = "sequencing_complete"
	EventQCComplete         EventType = "qc_complete"
	EventAnalysisComplete   EventType = "analysis_complete"
	EventUploadComplete     EventType = "upload_complete"
	EventErrorNotification  EventType = "error_notification"
)

// EventStatus is the per-event state machine state.
//
// received → processing → completed
// received → processing → retrying → processing → {completed | failed}
type EventStatus string

const (
	EventReceived   EventStatus = "received"
	EventProcessing EventStatus = "processing"
	EventCompleted  EventStatus = "completed"
	EventFailed     EventStatus = "failed"
	EventRetrying   EventStatus = "retrying"
)

// WebhookPartner is a registered sequencing partner.
type WebhookPartner struct {
	PartnerID       string      `json:"partner_id"`
	Name            string      `json:"name"`
	Secret          string      `json:"-"`
	Active          bool        `json:"active"`
	SupportedEvents []EventType `json:"supported_events"`
	WebhookURL      string      `json:"webhook_url,omitempty"`
	TimeoutSeconds  int         `json:"timeout_seconds,omitempty"`
	MaxRetries      int         `json:"max_retries"`
}

// WebhookEvent is an admitted partner callback moving through the pipeline.
type WebhookEvent struct {
	EventID      string         `json:"event_id"`
	PartnerID    string         `json:"partner_id"`
	EventType    EventType      `json:"event_type"`
	Data         map[string]any `json:"data"`
	Timestamp    time.Time      `json:"timestamp"`
	Status       EventStatus    `json:"status"`
	Signature    string         `json:"-"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	NextRetry    *time.Time     `json:"next_retry,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
}

// Gene is a catalog entry backing gene search and the region table used by
// theory execution.
type Gene struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Chromosome  string `json:"chromosome"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Description string `json:"description,omitempty"`
}
