package consent

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtergo/dnaresearch-sub000/internal/canonical"
	"github.com/xtergo/dnaresearch-sub000/internal/ledger"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func genomicForm() model.ConsentForm {
	return model.ConsentForm{
		FormID:  "genomic_analysis_v1",
		Version: "1.0",
		Title:   "Genomic Analysis Consent",
		ConsentTypes: []model.ConsentType{
			model.ConsentGenomicAnalysis,
			model.ConsentResearchParticipation,
		},
		RequiredFields: []string{"full_name", "date_of_birth"},
		ConsentText:    "I consent to the analysis of my genomic data for research purposes.",
		ValidityDays:   365,
	}
}

func newStore(t *testing.T, opts ...Option) (*Store, *ledger.Ledger) {
	t.Helper()
	led := ledger.New(testLogger())
	s := NewStore(led, testLogger(), opts...)
	require.NoError(t, s.RegisterForm(genomicForm()))
	return s, led
}

func validUserData() map[string]string {
	return map[string]string{"full_name": "Ada Example", "date_of_birth": "1990-01-01"}
}

func TestCapture_CreatesRecordPerConsentType(t *testing.T) {
	s, led := newStore(t)

	primary, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "10.0.0.1", "test-agent", "sig")
	require.NoError(t, err)

	assert.Equal(t, model.ConsentActive, primary.Status)
	assert.Equal(t, model.ConsentGenomicAnalysis, primary.ConsentType)
	assert.Len(t, primary.ConsentTextHash, 64)
	require.NotNil(t, primary.ExpiresAt)
	assert.True(t, primary.ExpiresAt.After(primary.GrantedAt))

	records := s.Records("user_001")
	require.Len(t, records, 2)
	// All records of one capture share the consent_id prefix.
	assert.Equal(t, records[0].ConsentID[:16], records[1].ConsentID[:16])
	assert.NotEqual(t, records[0].ConsentID, records[1].ConsentID)

	counts := led.EntryTypes()
	assert.Equal(t, 1, counts[model.EntryConsentGranted], "one ledger event per capture")
}

func TestCapture_FormNotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Capture("user_001", "nope", validUserData(), "", "", "sig")
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestCapture_MissingFields(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Capture("user_001", "genomic_analysis_v1", map[string]string{"full_name": "Ada"}, "", "", "sig")

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"date_of_birth"}, missing.Fields)
}

func TestCheck_ActiveRecord(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)

	assert.True(t, s.Check("user_001", model.ConsentGenomicAnalysis))
	assert.True(t, s.Check("user_001", model.ConsentResearchParticipation))
	assert.False(t, s.Check("user_001", model.ConsentDataSharing))
	assert.False(t, s.Check("user_002", model.ConsentGenomicAnalysis))
}

func TestCheck_ExpiresOnRead(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newStore(t, WithClock(func() time.Time { return current }))

	_, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)
	assert.True(t, s.Check("user_001", model.ConsentGenomicAnalysis))

	current = current.AddDate(0, 0, 366)
	assert.False(t, s.Check("user_001", model.ConsentGenomicAnalysis))

	records := s.Records("user_001")
	assert.Equal(t, model.ConsentExpired, records[0].Status, "expiry is persisted on read")
}

func TestWithdraw(t *testing.T) {
	s, led := newStore(t)
	_, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)

	ok, err := s.Withdraw("user_001", model.ConsentGenomicAnalysis, "changed my mind")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.Check("user_001", model.ConsentGenomicAnalysis))
	// The sibling consent type from the same form is untouched.
	assert.True(t, s.Check("user_001", model.ConsentResearchParticipation))

	records := s.Records("user_001")
	assert.Equal(t, model.ConsentWithdrawn, records[0].Status)
	assert.NotNil(t, records[0].WithdrawnAt)
	assert.Equal(t, "changed my mind", records[0].Metadata["withdrawal_reason"])

	counts := led.EntryTypes()
	assert.Equal(t, 1, counts[model.EntryConsentWithdrawn])

	ok, err = s.Withdraw("user_001", model.ConsentGenomicAnalysis, "again")
	require.NoError(t, err)
	assert.False(t, ok, "nothing active to withdraw")
}

// flakyAudit fails every append while fail is set, then behaves normally.
type flakyAudit struct {
	fail      bool
	withdrawn int
}

func (a *flakyAudit) Append(entryType model.EntryType, _ string, _, _ map[string]any) (int, error) {
	if a.fail {
		return 0, errors.New("ledger unavailable")
	}
	if entryType == model.EntryConsentWithdrawn {
		a.withdrawn++
	}
	return 0, nil
}

func TestWithdraw_LedgerFailureLeavesConsentActive(t *testing.T) {
	audit := &flakyAudit{}
	s := NewStore(audit, testLogger())
	require.NoError(t, s.RegisterForm(genomicForm()))
	_, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)

	audit.fail = true
	ok, err := s.Withdraw("user_001", model.ConsentGenomicAnalysis, "erasure request")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, s.Check("user_001", model.ConsentGenomicAnalysis),
		"records stay ACTIVE when the withdrawal cannot be audited")

	// Once the ledger recovers the retry withdraws and is audited.
	audit.fail = false
	ok, err = s.Withdraw("user_001", model.ConsentGenomicAnalysis, "erasure request")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.Check("user_001", model.ConsentGenomicAnalysis))
	assert.Equal(t, 1, audit.withdrawn)
}

func TestCaptureAfterWithdraw_RestoresConsent(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)

	_, err = s.Withdraw("user_001", model.ConsentGenomicAnalysis, "pause")
	require.NoError(t, err)
	assert.False(t, s.Check("user_001", model.ConsentGenomicAnalysis))

	_, err = s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)
	assert.True(t, s.Check("user_001", model.ConsentGenomicAnalysis))
}

func TestRegisterForm_Duplicate(t *testing.T) {
	s, _ := newStore(t)
	assert.ErrorIs(t, s.RegisterForm(genomicForm()), ErrFormExists)
}

func TestDefaultSignatureVerifier(t *testing.T) {
	text := "consent text"
	data := map[string]string{"full_name": "Ada"}
	canon, err := canonical.Marshal(data)
	require.NoError(t, err)
	valid := canonical.HashString(text + string(canon))[:16]

	assert.True(t, DefaultSignatureVerifier(text, data, valid))
	assert.True(t, DefaultSignatureVerifier(text, data, valid+"trailing"))
	assert.False(t, DefaultSignatureVerifier(text, data, "sig"))
	assert.False(t, DefaultSignatureVerifier(text, data, ""))
}

func TestStatus(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Capture("user_001", "genomic_analysis_v1", validUserData(), "", "", "sig")
	require.NoError(t, err)

	status := s.Status("user_001")
	assert.True(t, status[model.ConsentGenomicAnalysis])
	assert.True(t, status[model.ConsentResearchParticipation])
	assert.False(t, status[model.ConsentCommercialUse])
	assert.Len(t, status, len(model.AllConsentTypes))
}
