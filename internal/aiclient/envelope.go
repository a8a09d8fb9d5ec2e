// Package aiclient dispatches high-severity detections to the AI
// Orchestrator, checking the knowledge cache first to bound call cost.
package aiclient

import (
	"time"

	"github.com/vigilnet/vigilnet/internal/models"
)

// detectionEnvelope is the detection slice of the orchestrate request body.
type detectionEnvelope struct {
	DetectionType string                   `json:"detection_type"`
	Severity      models.Severity          `json:"severity"`
	DetectedAt    time.Time                `json:"detected_at"`
	GroupKey      string                   `json:"group_key"`
	Evidence      models.DetectionEvidence `json:"evidence"`
}

// OrchestrateRequest is the body of POST /v1/ata/orchestrate.
type OrchestrateRequest struct {
	TenantID         string                    `json:"tenant_id"`
	SiteID           *string                   `json:"site_id,omitempty"`
	SourceID         *string                   `json:"source_id,omitempty"`
	Detection        detectionEnvelope         `json:"detection"`
	RawEvents        []rawEventSample          `json:"raw_events"`
	NormalizedEvents []*models.NormalizedEvent `json:"normalized_events"`
}

type rawEventSample struct {
	ReceivedAt time.Time `json:"received_at"`
	RawMessage string    `json:"raw_message"`
}

// OrchestrateResponse covers both possible shapes: a no-threat short
// circuit, or the full analysis/recommendations/judge/report bundle.
type OrchestrateResponse struct {
	Status    string `json:"status,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	LatencyMS *int   `json:"latency_ms,omitempty"`

	Analysis        *analysisPayload        `json:"analysis,omitempty"`
	Recommendations *recommendationsPayload `json:"recommendations,omitempty"`
	Judge           *judgePayload           `json:"judge,omitempty"`
	Report          *reportPayload          `json:"report,omitempty"`
}

type analysisPayload struct {
	ThreatDetected  bool             `json:"threat_detected"`
	ThreatType      *string          `json:"threat_type,omitempty"`
	ConfidenceScore *float64         `json:"confidence_score,omitempty"`
	Severity        *models.Severity `json:"severity,omitempty"`
	ContextSummary  *string          `json:"context_summary,omitempty"`
	IOCs            []string         `json:"iocs,omitempty"`
	ModelUsed       *string          `json:"model_used,omitempty"`
	TokensUsed      *int             `json:"tokens_used,omitempty"`
	LatencyMS       *int             `json:"latency_ms,omitempty"`
}

type recommendationsPayload struct {
	Urgency    string                     `json:"urgency"`
	Actions    []models.RecommendedAction `json:"actions"`
	ModelUsed  *string                    `json:"model_used,omitempty"`
	TokensUsed *int                       `json:"tokens_used,omitempty"`
	LatencyMS  *int                       `json:"latency_ms,omitempty"`
}

type judgePayload struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

type reportPayload struct {
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	ModelUsed  *string `json:"model_used,omitempty"`
	TokensUsed *int    `json:"tokens_used,omitempty"`
	LatencyMS  *int    `json:"latency_ms,omitempty"`
}

const statusNoThreatDetected = "no_threat_detected"
