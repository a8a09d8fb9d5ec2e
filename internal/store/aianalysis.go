package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigilnet/vigilnet/internal/models"
)

// AIAnalysisRepository persists the AIAnalysis/AIRecommendation/AIReport
// row family produced by a detection's orchestrator dispatch.
type AIAnalysisRepository struct {
	*Pool
}

func NewAIAnalysisRepository(p *Pool) *AIAnalysisRepository { return &AIAnalysisRepository{Pool: p} }

func (r *AIAnalysisRepository) CreateAnalysis(ctx context.Context, a *models.AIAnalysis) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		INSERT INTO ai_analyses
			(id, detection_id, tenant_id, threat_detected, threat_type, confidence_score,
			 context_summary, iocs, model_used, tokens_used, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.DetectionID, a.TenantID, a.ThreatDetected, a.ThreatType, a.ConfidenceScore,
		a.ContextSummary, a.IOCs, a.ModelUsed, a.TokensUsed, a.LatencyMS, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ai analysis: %w", err)
	}
	return nil
}

func (r *AIAnalysisRepository) CreateRecommendation(ctx context.Context, rec *models.AIRecommendation) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	actionsJSON, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("marshal recommendation actions: %w", err)
	}

	_, err = r.Exec(ctx, `
		INSERT INTO ai_recommendations
			(id, detection_id, tenant_id, urgency, actions, model_used, tokens_used, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.DetectionID, rec.TenantID, rec.Urgency, actionsJSON, rec.ModelUsed, rec.TokensUsed, rec.LatencyMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ai recommendation: %w", err)
	}
	return nil
}

func (r *AIAnalysisRepository) CreateReport(ctx context.Context, rep *models.AIReport) error {
	ctx, cancel := WriteContext(ctx)
	defer cancel()

	_, err := r.Exec(ctx, `
		INSERT INTO ai_reports
			(id, detection_id, tenant_id, subject, body, status, sent_at, model_used, tokens_used, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rep.ID, rep.DetectionID, rep.TenantID, rep.Subject, rep.Body, rep.Status, rep.SentAt,
		rep.ModelUsed, rep.TokensUsed, rep.LatencyMS, rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ai report: %w", err)
	}
	return nil
}

// HasAnalysis reports whether a detection already has an AIAnalysis row.
func (r *AIAnalysisRepository) HasAnalysis(ctx context.Context, detectionID string) (bool, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	var exists bool
	err := r.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ai_analyses WHERE detection_id = $1)`, detectionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ai analysis existence: %w", err)
	}
	return exists, nil
}

// ReportByDetection returns the AIReport for a detection, if any, so the
// Batcher/Email Dispatcher can fold it into the digest body.
func (r *AIAnalysisRepository) ReportByDetection(ctx context.Context, detectionID string) (*models.AIReport, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	rep := &models.AIReport{}
	err := r.QueryRow(ctx, `
		SELECT id, detection_id, tenant_id, subject, body, status, sent_at, model_used, tokens_used, latency_ms, created_at
		FROM ai_reports WHERE detection_id = $1
	`, detectionID).Scan(&rep.ID, &rep.DetectionID, &rep.TenantID, &rep.Subject, &rep.Body, &rep.Status,
		&rep.SentAt, &rep.ModelUsed, &rep.TokensUsed, &rep.LatencyMS, &rep.CreatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	return rep, nil
}
