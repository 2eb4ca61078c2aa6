package access

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtergo/dnaresearch-sub000/internal/consent"
	"github.com/xtergo/dnaresearch-sub000/internal/ledger"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func setup(t *testing.T) (*Controller, *consent.Store, *ledger.Ledger) {
	t.Helper()
	led := ledger.New(testLogger())
	store := consent.NewStore(led, testLogger())
	require.NoError(t, store.RegisterForm(model.ConsentForm{
		FormID:  "genomic_analysis_v1",
		Version: "1.0",
		ConsentTypes: []model.ConsentType{
			model.ConsentGenomicAnalysis,
			model.ConsentResearchParticipation,
		},
		RequiredFields: []string{"full_name"},
		ConsentText:    "research consent",
	}))
	return NewController(store, led, testLogger()), store, led
}

func capture(t *testing.T, store *consent.Store) {
	t.Helper()
	_, err := store.Capture("user_001", "genomic_analysis_v1",
		map[string]string{"full_name": "Ada Example"}, "10.0.0.1", "test", "sig")
	require.NoError(t, err)
}

func TestCheck_GrantedAfterConsent(t *testing.T) {
	ctrl, store, led := setup(t)
	capture(t, store)

	result, err := ctrl.Check(Request{
		UserID:     "user_001",
		Action:     model.ActionAnalyzeVariants,
		ResourceID: "/genes/BRCA1/interpret",
	})
	require.NoError(t, err)

	assert.True(t, result.Granted)
	assert.Equal(t, "All required consents valid", result.Reason)
	assert.Contains(t, result.ConsentTypesChecked, model.ConsentGenomicAnalysis)
	assert.NotEmpty(t, result.AuditID)

	assert.Len(t, ctrl.Log("user_001"), 1)

	counts := led.EntryTypes()
	assert.Equal(t, 1, counts[model.EntryConsentGranted])
	assert.Equal(t, 1, counts[model.EntryDataAccess])
}

func TestCheck_DeniedWithoutConsent(t *testing.T) {
	ctrl, _, led := setup(t)

	result, err := ctrl.Check(Request{
		UserID:     "user_001",
		Action:     model.ActionAnalyzeVariants,
		ResourceID: "/genes/BRCA1/interpret",
	})
	require.NoError(t, err)

	assert.False(t, result.Granted)
	assert.Contains(t, result.Reason, "genomic_analysis")
	assert.Equal(t, []model.ConsentType{model.ConsentGenomicAnalysis}, result.MissingConsents)

	trail := led.AuditTrail("user_001")
	require.NotEmpty(t, trail)
	assert.Equal(t, model.EntryDataAccess, trail[0].EntryType)
	assert.Equal(t, false, trail[0].Metadata["access_granted"])
}

func TestCheck_DenialListsExactlyMissingTypes(t *testing.T) {
	ctrl, store, _ := setup(t)

	// Grant only genomic_analysis via withdrawal of the sibling type.
	capture(t, store)
	_, err := store.Withdraw("user_001", model.ConsentResearchParticipation, "test")
	require.NoError(t, err)

	result, err := ctrl.Check(Request{
		UserID: "user_001",
		Action: model.ActionExecuteTheory,
	})
	require.NoError(t, err)

	assert.False(t, result.Granted)
	assert.Equal(t, []model.ConsentType{model.ConsentResearchParticipation}, result.MissingConsents)
	assert.Contains(t, result.Reason, "research_participation")
	assert.NotContains(t, result.Reason, "genomic_analysis,")
}

func TestCheck_FreshAuditIDPerAttempt(t *testing.T) {
	ctrl, store, led := setup(t)
	capture(t, store)

	r1, err := ctrl.Check(Request{UserID: "user_001", Action: model.ActionReadGenomicData})
	require.NoError(t, err)
	r2, err := ctrl.Check(Request{UserID: "user_001", Action: model.ActionReadGenomicData})
	require.NoError(t, err)

	assert.NotEqual(t, r1.AuditID, r2.AuditID)
	assert.Equal(t, 2, led.EntryTypes()[model.EntryDataAccess], "auditing is per-attempt")
}

func TestRequiredConsents_Table(t *testing.T) {
	tests := []struct {
		action model.Action
		want   []model.ConsentType
	}{
		{model.ActionReadGenomicData, []model.ConsentType{model.ConsentGenomicAnalysis}},
		{model.ActionAnalyzeVariants, []model.ConsentType{model.ConsentGenomicAnalysis}},
		{model.ActionShareData, []model.ConsentType{model.ConsentDataSharing}},
		{model.ActionGenerateReports, []model.ConsentType{model.ConsentGenomicAnalysis}},
		{model.ActionExecuteTheory, []model.ConsentType{model.ConsentGenomicAnalysis, model.ConsentResearchParticipation}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredConsents(tt.action), string(tt.action))
	}
}
