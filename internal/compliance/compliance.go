// Package compliance maintains privacy impact assessments, data processing
// agreements, and breach records, and computes an aggregate compliance score
// with regulatory deadlines attached.
package compliance

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record ID is unknown.
	ErrNotFound = errors.New("compliance: record not found")
	// ErrBadTransition is returned for lifecycle moves that go backwards
	// or skip the defined order.
	ErrBadTransition = errors.New("compliance: invalid lifecycle transition")
)

// Breach notification deadline and DPA lifetimes mandated by policy.
const (
	BreachNotificationWindow = 72 * time.Hour
	DefaultDPALifetime       = 3 * 365 * 24 * time.Hour
	DPAExpiringSoonWindow    = 90 * 24 * time.Hour
)

// PIAStatus is the lifecycle of a privacy impact assessment.
type PIAStatus string

const (
	PIADraft    PIAStatus = "draft"
	PIAInReview PIAStatus = "in_review"
	PIAApproved PIAStatus = "approved"
	PIARejected PIAStatus = "rejected"
)

// DPAStatus is the lifecycle of a data processing agreement.
type DPAStatus string

const (
	DPAActive     DPAStatus = "active"
	DPAExpired    DPAStatus = "expired"
	DPATerminated DPAStatus = "terminated"
)

// BreachStatus is the lifecycle of a breach record.
type BreachStatus string

const (
	BreachReported      BreachStatus = "reported"
	BreachInvestigating BreachStatus = "investigating"
	BreachContained     BreachStatus = "contained"
	BreachResolved      BreachStatus = "resolved"
)

// PIA is a privacy impact assessment for one processing activity.
type PIA struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	ProcessingActivity string     `json:"processing_activity"`
	Status             PIAStatus  `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	DecidedAt          *time.Time `json:"decided_at,omitempty"`
}

// DPA is a data processing agreement with an external processor.
type DPA struct {
	ID          string    `json:"id"`
	PartnerName string    `json:"partner_name"`
	Status      DPAStatus `json:"status"`
	SignedAt    time.Time `json:"signed_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Breach is a reported data breach with its notification deadline.
type Breach struct {
	ID                   string       `json:"id"`
	Description          string       `json:"description"`
	Severity             string       `json:"severity"`
	Status               BreachStatus `json:"status"`
	ReportedAt           time.Time    `json:"reported_at"`
	NotificationDeadline time.Time    `json:"notification_deadline"`
	ResolvedAt           *time.Time   `json:"resolved_at,omitempty"`
}

// Report is the aggregate compliance picture.
type Report struct {
	Score              float64 `json:"score"`
	ApprovedPIARatio   float64 `json:"approved_pia_ratio"`
	ResolvedBreachRatio float64 `json:"resolved_breach_ratio"`
	ActiveDPARatio     float64 `json:"active_dpa_ratio"`
	TotalPIAs          int     `json:"total_pias"`
	TotalDPAs          int     `json:"total_dpas"`
	TotalBreaches      int     `json:"total_breaches"`
}

// Registry owns all compliance records.
type Registry struct {
	mu       sync.Mutex
	pias     map[string]*PIA
	dpas     map[string]*DPA
	breaches map[string]*Breach

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		pias:     make(map[string]*PIA),
		dpas:     make(map[string]*DPA),
		breaches: make(map[string]*Breach),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// CreatePIA registers a new assessment in draft state.
func (r *Registry) CreatePIA(title, processingActivity string) PIA {
	pia := PIA{
		ID:                 newID("pia"),
		Title:              title,
		ProcessingActivity: processingActivity,
		Status:             PIADraft,
		CreatedAt:          r.now().UTC(),
	}
	r.mu.Lock()
	r.pias[pia.ID] = &pia
	r.mu.Unlock()
	r.logger.Info("pia created", "pia_id", pia.ID, "activity", processingActivity)
	return pia
}

var piaOrder = map[PIAStatus]int{PIADraft: 0, PIAInReview: 1, PIAApproved: 2, PIARejected: 2}

// SetPIAStatus advances an assessment through its lifecycle. Approved and
// rejected are terminal.
func (r *Registry) SetPIAStatus(id string, status PIAStatus) (PIA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pia, ok := r.pias[id]
	if !ok {
		return PIA{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	from, to := piaOrder[pia.Status], piaOrder[status]
	if to != from+1 || pia.Status == PIAApproved || pia.Status == PIARejected {
		return PIA{}, fmt.Errorf("%w: pia %s → %s", ErrBadTransition, pia.Status, status)
	}
	pia.Status = status
	if status == PIAApproved || status == PIARejected {
		decided := r.now().UTC()
		pia.DecidedAt = &decided
	}
	return *pia, nil
}

// CreateDPA registers an active agreement. A zero lifetime gets the 3-year
// default.
func (r *Registry) CreateDPA(partnerName string, lifetime time.Duration) DPA {
	if lifetime <= 0 {
		lifetime = DefaultDPALifetime
	}
	now := r.now().UTC()
	dpa := DPA{
		ID:          newID("dpa"),
		PartnerName: partnerName,
		Status:      DPAActive,
		SignedAt:    now,
		ExpiresAt:   now.Add(lifetime),
	}
	r.mu.Lock()
	r.dpas[dpa.ID] = &dpa
	r.mu.Unlock()
	r.logger.Info("dpa created", "dpa_id", dpa.ID, "partner", partnerName, "expires_at", dpa.ExpiresAt)
	return dpa
}

// TerminateDPA ends an agreement early.
func (r *Registry) TerminateDPA(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dpa, ok := r.dpas[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if dpa.Status != DPAActive {
		return fmt.Errorf("%w: dpa %s → %s", ErrBadTransition, dpa.Status, DPATerminated)
	}
	dpa.Status = DPATerminated
	return nil
}

// ExpiringSoonDPAs returns active agreements inside the 90-day warning
// window, expired ones excluded.
func (r *Registry) ExpiringSoonDPAs() []DPA {
	now := r.now().UTC()
	cutoff := now.Add(DPAExpiringSoonWindow)

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DPA
	for _, dpa := range r.dpas {
		if dpa.Status == DPAActive && dpa.ExpiresAt.After(now) && dpa.ExpiresAt.Before(cutoff) {
			out = append(out, *dpa)
		}
	}
	return out
}

// ReportBreach records a breach; the 72-hour notification clock starts now.
func (r *Registry) ReportBreach(description, severity string) Breach {
	now := r.now().UTC()
	breach := Breach{
		ID:                   newID("breach"),
		Description:          description,
		Severity:             severity,
		Status:               BreachReported,
		ReportedAt:           now,
		NotificationDeadline: now.Add(BreachNotificationWindow),
	}
	r.mu.Lock()
	r.breaches[breach.ID] = &breach
	r.mu.Unlock()
	r.logger.Warn("breach reported",
		"breach_id", breach.ID,
		"severity", severity,
		"notification_deadline", breach.NotificationDeadline,
	)
	return breach
}

var breachOrder = map[BreachStatus]int{
	BreachReported: 0, BreachInvestigating: 1, BreachContained: 2, BreachResolved: 3,
}

// SetBreachStatus moves a breach forward through its lifecycle. Skipping
// ahead is allowed; moving backwards is not.
func (r *Registry) SetBreachStatus(id string, status BreachStatus) (Breach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	breach, ok := r.breaches[id]
	if !ok {
		return Breach{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if breachOrder[status] <= breachOrder[breach.Status] {
		return Breach{}, fmt.Errorf("%w: breach %s → %s", ErrBadTransition, breach.Status, status)
	}
	breach.Status = status
	if status == BreachResolved {
		resolved := r.now().UTC()
		breach.ResolvedAt = &resolved
	}
	return *breach, nil
}

// GetPIA returns an assessment by ID.
func (r *Registry) GetPIA(id string) (PIA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pia, ok := r.pias[id]
	if !ok {
		return PIA{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *pia, nil
}

// GetBreach returns a breach record by ID.
func (r *Registry) GetBreach(id string) (Breach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	breach, ok := r.breaches[id]
	if !ok {
		return Breach{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *breach, nil
}

// Score computes the weighted compliance score. An empty population
// contributes its full weight rather than dragging the score to zero.
func (r *Registry) Score() Report {
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	report := Report{
		TotalPIAs:     len(r.pias),
		TotalDPAs:     len(r.dpas),
		TotalBreaches: len(r.breaches),
	}

	report.ApprovedPIARatio = 1.0
	if len(r.pias) > 0 {
		approved := 0
		for _, pia := range r.pias {
			if pia.Status == PIAApproved {
				approved++
			}
		}
		report.ApprovedPIARatio = float64(approved) / float64(len(r.pias))
	}

	report.ResolvedBreachRatio = 1.0
	if len(r.breaches) > 0 {
		resolved := 0
		for _, breach := range r.breaches {
			if breach.Status == BreachResolved {
				resolved++
			}
		}
		report.ResolvedBreachRatio = float64(resolved) / float64(len(r.breaches))
	}

	report.ActiveDPARatio = 1.0
	if len(r.dpas) > 0 {
		active := 0
		for _, dpa := range r.dpas {
			if dpa.Status == DPAActive && dpa.ExpiresAt.After(now) {
				active++
			}
		}
		report.ActiveDPARatio = float64(active) / float64(len(r.dpas))
	}

	report.Score = 0.4*report.ApprovedPIARatio + 0.3*report.ResolvedBreachRatio + 0.3*report.ActiveDPARatio
	return report
}
