// Package consent implements the consent store: form registration, consent
// capture, validity checks with automatic expiry, and withdrawal. Every
// capture and withdrawal is recorded in the audit ledger; a ledger failure
// fails the operation because the audit trail is a correctness property.
package consent

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

var (
	// ErrFormNotFound is returned when a form ID is not registered.
	ErrFormNotFound = errors.New("consent: form not found")
	// ErrFormExists is returned when registering a duplicate form ID.
	// Forms are immutable after registration.
	ErrFormExists = errors.New("consent: form already registered")
)

// MissingFieldsError reports required user-data fields absent from a capture.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("consent: missing required fields: %v", e.Fields)
}

// AuditLog is the slice of the ledger the consent store depends on.
type AuditLog interface {
	Append(entryType model.EntryType, userID string, payload, metadata map[string]any) (int, error)
}

// SignatureVerifier decides whether a digital signature is valid for a
// form's consent text and the captured user data. The scheme is pluggable;
// the store depends only on the boolean result.
type SignatureVerifier func(consentText string, userData map[string]string, signature string) bool

// DefaultSignatureVerifier accepts signatures that begin with the 16-char
// hex prefix of SHA256(consent_text || canonical(user_data)). Intentionally
// weak; a production deployment substitutes a public-key scheme.
func DefaultSignatureVerifier(consentText string, userData map[string]string, signature string) bool {
	canon, err := canonical.Marshal(userData)
	if err != nil {
		return false
	}
	expected := canonical.HashString(consentText + string(canon))[:16]
	return len(signature) >= 16 && signature[:16] == expected
}

// Store holds registered forms and captured consent records.
type Store struct {
	mu      sync.Mutex
	forms   map[string]model.ConsentForm
	records map[string][]*model.ConsentRecord // user_id → records, insertion order
	audit   AuditLog
	verify  SignatureVerifier
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSignatureVerifier substitutes the signature scheme.
func WithSignatureVerifier(v SignatureVerifier) Option {
	return func(s *Store) { s.verify = v }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty consent store backed by the given audit log.
func NewStore(audit AuditLog, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		forms:   make(map[string]model.ConsentForm),
		records: make(map[string][]*model.ConsentRecord),
		audit:   audit,
		verify:  DefaultSignatureVerifier,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterForm adds an immutable consent form.
func (s *Store) RegisterForm(form model.ConsentForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[form.FormID]; ok {
		return ErrFormExists
	}
	s.forms[form.FormID] = form
	return nil
}

// Form returns a registered form by ID.
func (s *Store) Form(formID string) (model.ConsentForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.forms[formID]
	if !ok {
		return model.ConsentForm{}, ErrFormNotFound
	}
	return form, nil
}

// Capture records a user's consent to every type granted by a form.
// It fails with ErrFormNotFound for unknown forms and *MissingFieldsError
// when required user-data fields are absent. One CONSENT_GRANTED ledger
// event is emitted per capture. Returns the first record as primary.
func (s *Store) Capture(userID, formID string, userData map[string]string, ip, userAgent, signature string) (model.ConsentRecord, error) {
	s.mu.Lock()
	form, ok := s.forms[formID]
	s.mu.Unlock()
	if !ok {
		return model.ConsentRecord{}, ErrFormNotFound
	}

	var missing []string
	for _, field := range form.RequiredFields {
		if _, ok := userData[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return model.ConsentRecord{}, &MissingFieldsError{Fields: missing}
	}

	now := s.now().UTC()
	textHash := canonical.HashString(form.ConsentText)
	signatureValid := s.verify(form.ConsentText, userData, signature)

	// Deterministic ID prefix shared by all records of this capture.
	prefix := canonical.HashString(fmt.Sprintf("%s|%s|%d|%s", userID, formID, now.Unix(), textHash))[:16]

	var expiresAt *time.Time
	if form.ValidityDays > 0 {
		exp := now.AddDate(0, 0, form.ValidityDays)
		expiresAt = &exp
	}

	userDataMeta := make(map[string]any, len(userData))
	for k, v := range userData {
		userDataMeta[k] = v
	}

	records := make([]*model.ConsentRecord, 0, len(form.ConsentTypes))
	for _, ct := range form.ConsentTypes {
		records = append(records, &model.ConsentRecord{
			ConsentID:        fmt.Sprintf("%s_%s", prefix, ct),
			UserID:           userID,
			ConsentType:      ct,
			Status:           model.ConsentActive,
			GrantedAt:        now,
			ExpiresAt:        expiresAt,
			DigitalSignature: signature,
			IPAddress:        ip,
			UserAgent:        userAgent,
			ConsentTextHash:  textHash,
			Metadata: map[string]any{
				"form_id":         form.FormID,
				"form_version":    form.Version,
				"user_data":       userDataMeta,
				"signature_valid": signatureValid,
			},
		})
	}

	payload := map[string]any{
		"form_id":           formID,
		"form_version":      form.Version,
		"consent_text_hash": textHash,
		"consent_types":     consentTypeNames(form.ConsentTypes),
		"granted_at":        canonical.Timestamp(now),
	}
	if _, err := s.audit.Append(model.EntryConsentGranted, userID, payload, map[string]any{
		"ip_address": ip,
		"user_agent": userAgent,
	}); err != nil {
		return model.ConsentRecord{}, fmt.Errorf("consent: ledger append: %w", err)
	}

	s.mu.Lock()
	s.records[userID] = append(s.records[userID], records...)
	s.mu.Unlock()

	s.logger.Info("consent captured",
		"user_id", userID,
		"form_id", formID,
		"types", len(records),
		"signature_valid", signatureValid,
	)
	return *records[0], nil
}

// Check reports whether the user holds a non-expired ACTIVE consent of the
// given type. An ACTIVE record past its expiry is mutated to EXPIRED on read.
func (s *Store) Check(userID string, consentType model.ConsentType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	// Newest ACTIVE record wins: scan from the end.
	recs := s.records[userID]
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if r.ConsentType != consentType || r.Status != model.ConsentActive {
			continue
		}
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			r.Status = model.ConsentExpired
			return false
		}
		return true
	}
	return false
}

// Withdraw sets every ACTIVE record for (user, type) to WITHDRAWN and emits
// a CONSENT_WITHDRAWN ledger event. Returns true iff at least one record
// was withdrawn.
func (s *Store) Withdraw(userID string, consentType model.ConsentType, reason string) (bool, error) {
	s.mu.Lock()
	var matched []*model.ConsentRecord
	for _, r := range s.records[userID] {
		if r.ConsentType == consentType && r.Status == model.ConsentActive {
			matched = append(matched, r)
		}
	}
	s.mu.Unlock()

	if len(matched) == 0 {
		return false, nil
	}

	// The ledger event precedes the state change, same as Capture: if the
	// append fails the records stay ACTIVE and a retry can still withdraw
	// them with a matching CONSENT_WITHDRAWN entry.
	now := s.now().UTC()
	payload := map[string]any{
		"consent_type": string(consentType),
		"withdrawn_at": canonical.Timestamp(now),
		"records":      len(matched),
	}
	if _, err := s.audit.Append(model.EntryConsentWithdrawn, userID, payload, map[string]any{
		"withdrawal_reason": reason,
	}); err != nil {
		return false, fmt.Errorf("consent: ledger append: %w", err)
	}

	s.mu.Lock()
	for _, r := range matched {
		r.Status = model.ConsentWithdrawn
		t := now
		r.WithdrawnAt = &t
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata["withdrawal_reason"] = reason
	}
	s.mu.Unlock()

	s.logger.Info("consent withdrawn", "user_id", userID, "consent_type", consentType, "records", len(matched))
	return true, nil
}

// Status returns the per-type validity map for a user, applying the same
// expiry-on-read rule as Check.
func (s *Store) Status(userID string) map[model.ConsentType]bool {
	out := make(map[model.ConsentType]bool, len(model.AllConsentTypes))
	for _, ct := range model.AllConsentTypes {
		out[ct] = s.Check(userID, ct)
	}
	return out
}

// Records returns a snapshot of a user's consent records in insertion order.
func (s *Store) Records(userID string) []model.ConsentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ConsentRecord, 0, len(s.records[userID]))
	for _, r := range s.records[userID] {
		out = append(out, *r)
	}
	return out
}

func consentTypeNames(types []model.ConsentType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
