package webhook

import (
	"fmt"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// handle dispatches an event to its per-type handler and returns the
// processing result recorded on the event.
func handle(event model.WebhookEvent) (map[string]any, error) {
	switch event.EventType {
	case model.EventSequencingComplete:
		return handleSequencingComplete(event.Data)
	case model.EventQCComplete:
		return handleQCComplete(event.Data)
	case model.EventAnalysisComplete:
		return handleAnalysisComplete(event.Data)
	case model.EventUploadComplete:
		return handleUploadComplete(event.Data)
	case model.EventErrorNotification:
		return handleErrorNotification(event.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.EventType)
	}
}

func handleSequencingComplete(data map[string]any) (map[string]any, error) {
	sampleID, _ := data["sample_id"].(string)
	if sampleID == "" {
		return nil, fmt.Errorf("webhook: sequencing_complete missing sample_id")
	}
	result := map[string]any{
		"sample_id": sampleID,
		"next_step": "quality_control",
	}
	if files, ok := data["files"].([]any); ok {
		result["processed_files"] = len(files)
	}
	return result, nil
}

func handleQCComplete(data map[string]any) (map[string]any, error) {
	metrics, _ := data["qc_metrics"].(map[string]any)
	passed, _ := metrics["passed"].(bool)

	result := map[string]any{
		"qc_passed": passed,
		"next_step": "resequencing_required",
	}
	if passed {
		result["next_step"] = "variant_calling"
	}
	if score, ok := metrics["quality_score"]; ok {
		result["quality_score"] = score
	}
	if coverage, ok := metrics["coverage"]; ok {
		result["coverage"] = coverage
	}
	return result, nil
}

func handleAnalysisComplete(data map[string]any) (map[string]any, error) {
	variantCount, _ := data["variant_count"].(float64)
	quality := "standard"
	if variantCount > 1000 {
		quality = "high"
	}
	return map[string]any{
		"variant_count":    int(variantCount),
		"analysis_quality": quality,
		"next_step":        "report_generation",
	}, nil
}

func handleUploadComplete(data map[string]any) (map[string]any, error) {
	verified, _ := data["checksum_verified"].(bool)
	return map[string]any{
		"upload_verified": verified,
		"next_step":       "file_processing",
	}, nil
}

func handleErrorNotification(data map[string]any) (map[string]any, error) {
	severity, _ := data["severity"].(string)
	return map[string]any{
		"severity":           severity,
		"requires_attention": severity == "high" || severity == "critical",
	}, nil
}
