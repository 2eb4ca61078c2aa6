package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error. For consent denials AuditID carries the
// access-control correlation ID; for validation failures Details holds the
// per-field error list.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	AuditID string `json:"audit_id,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnsupportedEvent = "UNSUPPORTED_EVENT"
	ErrCodeIntegrity        = "INTEGRITY_FAILURE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// CaptureConsentRequest is the request body for POST /consent/capture.
type CaptureConsentRequest struct {
	UserID           string            `json:"user_id"`
	FormID           string            `json:"form_id"`
	UserData         map[string]string `json:"user_data"`
	DigitalSignature string            `json:"digital_signature"`
}

// WithdrawConsentRequest is the request body for POST /consent/withdraw.
type WithdrawConsentRequest struct {
	UserID      string      `json:"user_id"`
	ConsentType ConsentType `json:"consent_type"`
	Reason      string      `json:"reason,omitempty"`
}

// ConsentStatusResponse is the response for GET /consent/check/{user}.
type ConsentStatusResponse struct {
	UserID   string                      `json:"user_id"`
	Consents map[ConsentType]bool        `json:"consents"`
	Records  map[ConsentType]interface{} `json:"records,omitempty"`
}

// CreateTheoryRequest is the request body for POST /theories.
type CreateTheoryRequest struct {
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Scope         TheoryScope    `json:"scope"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Criteria      TheoryCriteria `json:"criteria"`
	EvidenceModel EvidenceModel  `json:"evidence_model"`
	Author        string         `json:"author,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
}

// ExecuteTheoryRequest is the request body for POST /theories/{id}/execute.
type ExecuteTheoryRequest struct {
	VCF      string `json:"vcf"`
	FamilyID string `json:"family_id"`
}

// AddEvidenceRequest is the request body for POST /theories/{id}/evidence.
type AddEvidenceRequest struct {
	TheoryVersion string   `json:"theory_version"`
	FamilyID      string   `json:"family_id"`
	BayesFactor   float64  `json:"bayes_factor"`
	EvidenceType  string   `json:"evidence_type"`
	Weight        *float64 `json:"weight,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// ForkTheoryRequest is the request body for POST /theories/{id}/fork.
type ForkTheoryRequest struct {
	NewID         string         `json:"new_id"`
	Modifications map[string]any `json:"modifications,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// ForkTheoryResponse reports which fields a fork changed.
type ForkTheoryResponse struct {
	Theory        Theory        `json:"theory"`
	ChangedFields []string      `json:"changed_fields"`
	Lineage       TheoryLineage `json:"lineage"`
}

// StoreGenomicRequest is the request body for POST /genomic/store.
type StoreGenomicRequest struct {
	IndividualID    string `json:"individual_id"`
	VCF             string `json:"vcf"`
	ReferenceGenome string `json:"reference_genome"`
}

// StoreGenomicResponse reports the anchor and stored diffs.
type StoreGenomicResponse struct {
	Anchor           AnchorSequence      `json:"anchor"`
	Differences      []GenomicDifference `json:"differences"`
	CompressionRatio float64             `json:"compression_ratio"`
}

// MaterializeResponse is the response for GET /genomic/materialize.
type MaterializeResponse struct {
	IndividualID string `json:"individual_id"`
	AnchorID     string `json:"anchor_id"`
	Sequence     string `json:"sequence"`
	AppliedDiffs int    `json:"applied_diffs"`
	SkippedDiffs int    `json:"skipped_diffs"`
}

// InterpretRequest is the request body for POST /genes/{gene}/interpret.
type InterpretRequest struct {
	Position int    `json:"position"`
	Ref      string `json:"ref"`
	Alt      string `json:"alt"`
}

// PresignUploadRequest is the request body for POST /files/presign.
type PresignUploadRequest struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	FileType  string `json:"file_type"`
	Checksum  string `json:"checksum"`
	TTLHours  int    `json:"ttl_hours,omitempty"`
}

// CompleteUploadRequest is the request body for POST /files/{id}/complete.
type CompleteUploadRequest struct {
	Checksum string `json:"checksum"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	LedgerBlocks int       `json:"ledger_blocks"`
	QueueDepth   int       `json:"queue_depth"`
	Uptime       int64     `json:"uptime_seconds"`
}
