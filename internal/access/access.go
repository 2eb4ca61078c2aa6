// Package access gates every data operation against the consent store.
// Each check produces a fresh audit ID, is recorded in the component's own
// in-memory log, and is delegated to the audit ledger as a DATA_ACCESS
// entry. Auditing is per-attempt: repeating the same request yields a new
// audit ID and a new ledger entry.
package access

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// requiredConsents is the fixed action → required-consent-types table.
// Reload only through process restart.
var requiredConsents = map[model.Action][]model.ConsentType{
	model.ActionReadGenomicData: {model.ConsentGenomicAnalysis},
	model.ActionAnalyzeVariants: {model.ConsentGenomicAnalysis},
	model.ActionShareData:       {model.ConsentDataSharing},
	model.ActionGenerateReports: {model.ConsentGenomicAnalysis},
	model.ActionExecuteTheory:   {model.ConsentGenomicAnalysis, model.ConsentResearchParticipation},
}

// RequiredConsents returns the consent types an action requires.
func RequiredConsents(action model.Action) []model.ConsentType {
	return requiredConsents[action]
}

// ConsentChecker is the slice of the consent store the controller depends on.
type ConsentChecker interface {
	Check(userID string, consentType model.ConsentType) bool
}

// AuditLog is the slice of the ledger the controller depends on.
type AuditLog interface {
	Append(entryType model.EntryType, userID string, payload, metadata map[string]any) (int, error)
}

// Request describes one access attempt.
type Request struct {
	UserID     string
	Action     model.Action
	ResourceID string
	IPAddress  string
	Metadata   map[string]any
}

// Controller evaluates access requests.
type Controller struct {
	consents ConsentChecker
	audit    AuditLog
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	counter int64
	log     []model.AccessResult
}

// NewController creates an access controller.
func NewController(consents ConsentChecker, audit AuditLog, logger *slog.Logger) *Controller {
	return &Controller{
		consents: consents,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Check evaluates an access request against the consent table. The returned
// audit ID is surfaced to callers for response-header correlation. A ledger
// write failure fails the check: the attempt must not proceed unaudited.
func (c *Controller) Check(req Request) (model.AccessResult, error) {
	now := c.now().UTC()

	c.mu.Lock()
	c.counter++
	auditID := fmt.Sprintf("audit_%06d_%s", c.counter, now.Format("20060102T150405Z"))
	c.mu.Unlock()

	required := requiredConsents[req.Action]
	result := model.AccessResult{
		AuditID:             auditID,
		UserID:              req.UserID,
		Action:              req.Action,
		ResourceID:          req.ResourceID,
		ConsentTypesChecked: required,
		Timestamp:           now,
		IPAddress:           req.IPAddress,
		Metadata:            req.Metadata,
	}

	if len(required) == 0 {
		result.Granted = true
		result.Reason = "no consent required"
	} else {
		var missing []model.ConsentType
		for _, ct := range required {
			if !c.consents.Check(req.UserID, ct) {
				missing = append(missing, ct)
			}
		}
		if len(missing) > 0 {
			result.Granted = false
			result.MissingConsents = missing
			result.Reason = "missing required consents: " + joinConsentTypes(missing)
		} else {
			result.Granted = true
			result.Reason = "All required consents valid"
		}
	}

	payload := map[string]any{
		"audit_id":    auditID,
		"action":      string(req.Action),
		"resource_id": req.ResourceID,
		"granted":     result.Granted,
		"timestamp":   canonical.Timestamp(now),
	}
	meta := map[string]any{
		"access_granted": result.Granted,
		"reason":         result.Reason,
	}
	if req.IPAddress != "" {
		meta["ip_address"] = req.IPAddress
	}
	if _, err := c.audit.Append(model.EntryDataAccess, req.UserID, payload, meta); err != nil {
		return model.AccessResult{}, fmt.Errorf("access: ledger append: %w", err)
	}

	c.mu.Lock()
	c.log = append(c.log, result)
	c.mu.Unlock()

	c.logger.Info("access check",
		"audit_id", auditID,
		"user_id", req.UserID,
		"action", req.Action,
		"granted", result.Granted,
	)
	return result, nil
}

// Log returns a snapshot of the in-memory access log for a user.
func (c *Controller) Log(userID string) []model.AccessResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.AccessResult
	for _, r := range c.log {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func joinConsentTypes(types []model.ConsentType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
