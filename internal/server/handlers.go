package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/access"
	"github.com/xtergo/dnaresearch-sub000/internal/cache"
	"github.com/xtergo/dnaresearch-sub000/internal/compliance"
	"github.com/xtergo/dnaresearch-sub000/internal/consent"
	"github.com/xtergo/dnaresearch-sub000/internal/evidence"
	"github.com/xtergo/dnaresearch-sub000/internal/genes"
	"github.com/xtergo/dnaresearch-sub000/internal/genomic"
	"github.com/xtergo/dnaresearch-sub000/internal/ledger"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
	"github.com/xtergo/dnaresearch-sub000/internal/theory"
	"github.com/xtergo/dnaresearch-sub000/internal/upload"
	"github.com/xtergo/dnaresearch-sub000/internal/webhook"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Ledger     *ledger.Ledger
	Consent    *consent.Store
	Access     *access.Controller
	Genomic    *genomic.Store
	Evidence   *evidence.Accumulator
	Theories   *theory.Engine
	Webhooks   *webhook.Pipeline
	Cache      *cache.Cache
	Compliance *compliance.Registry
	Uploads    *upload.Coordinator

	Logger              *slog.Logger
	Version             string
	CacheTTL            time.Duration
	MaxRequestBodyBytes int64

	startedAt time.Time
}

// NewHandlers wires the handler set. All dependencies are required.
func NewHandlers(h Handlers) *Handlers {
	h.startedAt = time.Now()
	if h.CacheTTL <= 0 {
		h.CacheTTL = 5 * time.Minute
	}
	return &h
}

// respondError maps component failures to the HTTP status table.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *consent.MissingFieldsError
	switch {
	case errors.As(err, &missing):
		writeErrorDetail(w, r, http.StatusBadRequest, model.ErrorDetail{
			Code:    model.ErrCodeInvalidInput,
			Message: "required user data fields are missing",
			Details: missing.Fields,
		})
	case errors.Is(err, consent.ErrFormNotFound),
		errors.Is(err, theory.ErrNotFound),
		errors.Is(err, genomic.ErrAnchorNotFound),
		errors.Is(err, upload.ErrNotFound),
		errors.Is(err, webhook.ErrEventNotFound),
		errors.Is(err, compliance.ErrNotFound),
		errors.Is(err, ledger.ErrEntryNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	case errors.Is(err, theory.ErrExists),
		errors.Is(err, consent.ErrFormExists),
		errors.Is(err, compliance.ErrBadTransition):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
	case errors.Is(err, webhook.ErrUnsupportedEvent):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeUnsupportedEvent, err.Error())
	case errors.Is(err, webhook.ErrUnknownPartner),
		errors.Is(err, webhook.ErrBadSignature):
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, err.Error())
	case errors.Is(err, evidence.ErrInvalidEvidence),
		errors.Is(err, webhook.ErrBadPayload),
		errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, upload.ErrBadExtension),
		errors.Is(err, upload.ErrTooLarge):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, ledger.ErrCompromised):
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeIntegrity, err.Error())
	case errors.Is(err, webhook.ErrQueueFull):
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, err.Error())
	default:
		h.Logger.Error("unhandled error", "error", err, "path", r.URL.Path)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// authorize runs the consent gate for an action. The audit ID is surfaced in
// the X-Access-Audit-ID header whether or not access is granted.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request, action model.Action, resourceID string) (string, bool) {
	userID := UserIDFromContext(r.Context())
	result, err := h.Access.Check(access.Request{
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		IPAddress:  r.RemoteAddr,
	})
	if err != nil {
		h.respondError(w, r, err)
		return "", false
	}
	w.Header().Set("X-Access-Audit-ID", result.AuditID)
	if !result.Granted {
		writeErrorDetail(w, r, http.StatusForbidden, model.ErrorDetail{
			Code:    model.ErrCodeForbidden,
			Message: result.Reason,
			Details: result.MissingConsents,
			AuditID: result.AuditID,
		})
		return "", false
	}
	return userID, true
}

// HandleHealth reports liveness plus a few cheap gauges.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:       "ok",
		Timestamp:    time.Now().UTC(),
		Version:      h.Version,
		LedgerBlocks: h.Ledger.BlockCount(),
		QueueDepth:   h.Webhooks.QueueDepth(),
		Uptime:       int64(time.Since(h.startedAt).Seconds()),
	})
}

// --- Genes ---

// HandleGeneSearch serves catalog search, fronted by the response cache.
func (h *Handlers) HandleGeneSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	limitStr := r.URL.Query().Get("limit")
	limit, _ := strconv.Atoi(limitStr)

	key := cache.Key("/v1/genes/search", map[string]string{"query": query, "limit": limitStr})
	if cached, ok := h.Cache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, cached)
		return
	}

	results := genes.Search(query, limit)
	h.Cache.Set(key, results, h.CacheTTL)
	writeJSON(w, r, http.StatusOK, results)
}

// HandleGetGene serves gene metadata.
func (h *Handlers) HandleGetGene(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	gene, ok := genes.Lookup(symbol)
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "unknown gene: "+symbol)
		return
	}
	writeJSON(w, r, http.StatusOK, gene)
}

// HandleInterpretVariant classifies a variant within a gene. Consent-gated:
// interpretation is an analysis of the caller's variant data.
func (h *Handlers) HandleInterpretVariant(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if _, ok := h.authorize(w, r, model.ActionAnalyzeVariants, symbol); !ok {
		return
	}

	var req model.InterpretRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	interp, ok := genes.Interpret(symbol, req.Position, req.Ref, req.Alt)
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "unknown gene: "+symbol)
		return
	}
	writeJSON(w, r, http.StatusOK, interp)
}

// --- Theories ---

// HandleCreateTheory validates and stores a theory.
func (h *Handlers) HandleCreateTheory(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTheoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Author == "" {
		req.Author = UserIDFromContext(r.Context())
	}

	th, issues, err := h.Theories.Create(req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if len(issues) > 0 {
		writeErrorDetail(w, r, http.StatusBadRequest, model.ErrorDetail{
			Code:    model.ErrCodeInvalidInput,
			Message: "theory validation failed",
			Details: issues,
		})
		return
	}

	h.Cache.InvalidatePattern("/v1/theories")
	writeJSON(w, r, http.StatusCreated, th)
}

// HandleListTheories lists with filters, sorting, and pagination from query
// parameters.
func (h *Handlers) HandleListTheories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := theory.ListOptions{
		SortBy:    q.Get("sort_by"),
		Ascending: q.Get("order") == "asc",
	}
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))

	if v := q.Get("scope"); v != "" {
		scope := model.TheoryScope(v)
		opts.Filter.Scope = &scope
	}
	if v := q.Get("lifecycle"); v != "" {
		lc := model.TheoryLifecycle(v)
		opts.Filter.Lifecycle = &lc
	}
	if v := q.Get("author"); v != "" {
		opts.Filter.Author = &v
	}
	if v := q.Get("has_comments"); v != "" {
		hc := v == "true"
		opts.Filter.HasComments = &hc
	}
	opts.Filter.Search = q.Get("search")
	if tags, ok := q["tag"]; ok {
		opts.Filter.Tags = tags
	}

	entries, total, hasMore := h.Theories.List(opts)
	writeList(w, r, entries, total, hasMore, opts.Limit, opts.Offset)
}

// HandleGetTheory serves the newest version of a theory.
func (h *Handlers) HandleGetTheory(w http.ResponseWriter, r *http.Request) {
	th, err := h.Theories.Get(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, th)
}

// HandleExecuteTheory runs a theory against a VCF. Consent-gated.
func (h *Handlers) HandleExecuteTheory(w http.ResponseWriter, r *http.Request) {
	theoryID := r.PathValue("id")
	userID, ok := h.authorize(w, r, model.ActionExecuteTheory, theoryID)
	if !ok {
		return
	}

	var req model.ExecuteTheoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.VCF == "" || req.FamilyID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "vcf and family_id are required")
		return
	}

	result, err := h.Theories.Execute(theoryID, userID, req.VCF, req.FamilyID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleAddEvidence appends an evidence record and mirrors it to the ledger.
func (h *Handlers) HandleAddEvidence(w http.ResponseWriter, r *http.Request) {
	theoryID := r.PathValue("id")

	var req model.AddEvidenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	version := req.TheoryVersion
	if version == "" {
		th, err := h.Theories.Get(theoryID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		version = th.Version
	}
	// Absent weight defaults to 1.0; an explicit zero is a valid boundary
	// value and passes through.
	weight := 1.0
	if req.Weight != nil {
		weight = *req.Weight
	}

	record, err := h.Evidence.Add(theoryID, version, req.FamilyID, req.BayesFactor, req.EvidenceType, weight, req.Source)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	userID := UserIDFromContext(r.Context())
	if _, err := h.Ledger.Append(model.EntryEvidenceAdded, userID, map[string]any{
		"theory_id":      theoryID,
		"theory_version": version,
		"family_id":      req.FamilyID,
		"bayes_factor":   req.BayesFactor,
		"evidence_type":  req.EvidenceType,
	}, nil); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, record)
}

// HandleGetPosterior recomputes the posterior for a theory version. The
// prior query parameter overrides the theory's own prior.
func (h *Handlers) HandleGetPosterior(w http.ResponseWriter, r *http.Request) {
	theoryID := r.PathValue("id")
	th, err := h.Theories.Get(theoryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	version := r.URL.Query().Get("version")
	if version == "" {
		version = th.Version
	}
	prior := th.EvidenceModel.Priors
	if v := r.URL.Query().Get("prior"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || p > 1 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "prior must be a number in [0,1]")
			return
		}
		prior = p
	}

	writeJSON(w, r, http.StatusOK, h.Evidence.UpdatePosterior(theoryID, version, prior))
}

// HandleForkTheory forks a theory into a new ID with a patch version bump.
func (h *Handlers) HandleForkTheory(w http.ResponseWriter, r *http.Request) {
	parentID := r.PathValue("id")

	var req model.ForkTheoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.NewID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "new_id is required")
		return
	}

	resp, issues, err := h.Theories.Fork(parentID, req.NewID, req.Modifications, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if len(issues) > 0 {
		writeErrorDetail(w, r, http.StatusBadRequest, model.ErrorDetail{
			Code:    model.ErrCodeInvalidInput,
			Message: "fork validation failed",
			Details: issues,
		})
		return
	}
	h.Cache.InvalidatePattern("/v1/theories")
	writeJSON(w, r, http.StatusCreated, resp)
}

// HandleSetLifecycle transitions a theory version's lifecycle state.
func (h *Handlers) HandleSetLifecycle(w http.ResponseWriter, r *http.Request) {
	theoryID := r.PathValue("id")

	var req struct {
		Version   string                `json:"version,omitempty"`
		Lifecycle model.TheoryLifecycle `json:"lifecycle"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Version == "" {
		th, err := h.Theories.Get(theoryID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		req.Version = th.Version
	}

	if err := h.Theories.SetLifecycle(theoryID, req.Version, req.Lifecycle); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.Cache.InvalidatePattern("/v1/theories")
	writeJSON(w, r, http.StatusOK, map[string]any{
		"theory_id": theoryID,
		"version":   req.Version,
		"lifecycle": req.Lifecycle,
	})
}

// HandleAddComment appends a review comment to a theory.
func (h *Handlers) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	theoryID := r.PathValue("id")

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "text is required")
		return
	}

	if err := h.Theories.AddComment(theoryID, req.Text); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"theory_id": theoryID,
		"text":      req.Text,
	})
}

// HandleTheoryLineage serves the fork ancestry of a theory ID.
func (h *Handlers) HandleTheoryLineage(w http.ResponseWriter, r *http.Request) {
	theoryID := r.PathValue("id")
	if _, err := h.Theories.Get(theoryID); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.Theories.Lineage(theoryID))
}

// --- Genomic ---

// HandleStoreGenomic stores a VCF as anchor plus differences. Consent-gated.
func (h *Handlers) HandleStoreGenomic(w http.ResponseWriter, r *http.Request) {
	var req model.StoreGenomicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.IndividualID == "" || req.VCF == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "individual_id and vcf are required")
		return
	}

	userID, ok := h.authorize(w, r, model.ActionReadGenomicData, req.IndividualID)
	if !ok {
		return
	}

	anchor, diffs, ratio, err := h.Genomic.StoreFromVCF(req.IndividualID, req.VCF, req.ReferenceGenome)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if _, err := h.Ledger.Append(model.EntryGenomicAnalysis, userID, map[string]any{
		"individual_id": req.IndividualID,
		"anchor_id":     anchor.AnchorID,
		"diff_count":    len(diffs),
	}, nil); err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.StoreGenomicResponse{
		Anchor:           anchor,
		Differences:      diffs,
		CompressionRatio: ratio,
	})
}

// HandleMaterialize reconstructs an individual's sequence. Consent-gated.
func (h *Handlers) HandleMaterialize(w http.ResponseWriter, r *http.Request) {
	individualID := r.PathValue("individual")
	anchorID := r.PathValue("anchor")

	if _, ok := h.authorize(w, r, model.ActionReadGenomicData, individualID); !ok {
		return
	}

	result, err := h.Genomic.Materialize(individualID, anchorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.MaterializeResponse{
		IndividualID: individualID,
		AnchorID:     anchorID,
		Sequence:     result.Sequence,
		AppliedDiffs: result.Applied,
		SkippedDiffs: result.Skipped,
	})
}

// --- Consent ---

// HandleCaptureConsent captures a consent form signature.
func (h *Handlers) HandleCaptureConsent(w http.ResponseWriter, r *http.Request) {
	var req model.CaptureConsentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = UserIDFromContext(r.Context())
	}

	record, err := h.Consent.Capture(userID, req.FormID, req.UserData, r.RemoteAddr, r.UserAgent(), req.DigitalSignature)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, record)
}

// HandleWithdrawConsent withdraws all active records of a consent type.
func (h *Handlers) HandleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	var req model.WithdrawConsentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = UserIDFromContext(r.Context())
	}

	withdrawn, err := h.Consent.Withdraw(userID, req.ConsentType, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"user_id":      userID,
		"consent_type": req.ConsentType,
		"withdrawn":    withdrawn,
	})
}

// HandleConsentStatus reports the current consent map for a user.
func (h *Handlers) HandleConsentStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	writeJSON(w, r, http.StatusOK, model.ConsentStatusResponse{
		UserID:   userID,
		Consents: h.Consent.Status(userID),
	})
}

// --- Ledger ---

// HandleAuditTrail serves a user's ledger entries, newest first.
func (h *Handlers) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Ledger.AuditTrail(r.PathValue("user")))
}

// HandleVerifyLedger runs an integrity check over the sealed chain.
func (h *Handlers) HandleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	intact := h.Ledger.VerifyIntegrity()
	if !intact {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeIntegrity, "ledger integrity check failed")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"intact":          true,
		"blocks":          h.Ledger.BlockCount(),
		"pending":         h.Ledger.PendingCount(),
		"entries_by_type": h.Ledger.EntryTypes(),
	})
}

// --- Webhooks ---

// HandleWebhook ingests a partner callback. Authentication is the HMAC
// signature, not the session layer.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	partnerID := r.PathValue("partner")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.MaxRequestBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "read body: "+err.Error())
		return
	}

	event, err := h.Webhooks.Ingest(partnerID, body, r.Header.Get("X-Signature"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, event)
}

// HandleGetWebhookEvent reports the state of an admitted event.
func (h *Handlers) HandleGetWebhookEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Webhooks.Event(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, event)
}

// --- Uploads ---

// HandlePresignUpload issues a signed upload ticket.
func (h *Handlers) HandlePresignUpload(w http.ResponseWriter, r *http.Request) {
	var req model.PresignUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	userID := UserIDFromContext(r.Context())
	up, err := h.Uploads.CreatePresigned(req.Filename, req.SizeBytes, req.FileType, req.Checksum, userID, req.TTLHours)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, up)
}

// HandleCompleteUpload finalizes an upload ticket by checksum.
func (h *Handlers) HandleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req model.CompleteUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	status, err := h.Uploads.Complete(r.PathValue("id"), req.Checksum)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"upload_id": r.PathValue("id"),
		"status":    status,
	})
}

// --- Compliance and cache ---

// HandleComplianceReport serves the weighted compliance score.
func (h *Handlers) HandleComplianceReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Compliance.Score())
}

// HandleCacheStats serves cache hit/miss counters.
func (h *Handlers) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Cache.Stats())
}
