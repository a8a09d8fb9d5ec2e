package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/aicache"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/store"
)

// Client dispatches detections to the AI Orchestrator, consulting the
// knowledge cache first.
type Client struct {
	http *http.Client
	url  string

	cache        *store.AICacheRepository
	analyses     *store.AIAnalysisRepository
	normalized   *store.NormalizedEventRepository
	rawEvents    *store.RawEventRepository
	cacheTTLDays int

	log *logging.Logger
}

func New(url string, cache *store.AICacheRepository, analyses *store.AIAnalysisRepository,
	normalized *store.NormalizedEventRepository, rawEvents *store.RawEventRepository,
	cacheTTLDays int, log *logging.Logger) *Client {
	return &Client{
		http:         &http.Client{Timeout: 60 * time.Second},
		url:          url,
		cache:        cache,
		analyses:     analyses,
		normalized:   normalized,
		rawEvents:    rawEvents,
		cacheTTLDays: cacheTTLDays,
		log:          log,
	}
}

// Dispatch carries one detection through the cache-check-then-dispatch
// flow, persisting whatever it learns.
func (c *Client) Dispatch(ctx context.Context, d *models.Detection) error {
	signature := aicache.Signature(d)

	if entry, err := c.cache.Lookup(ctx, d.TenantID, signature); err == nil {
		return c.persistFromCache(ctx, d, entry)
	} else if err != store.ErrNotFound {
		c.log.Error("ai cache lookup failed, proceeding to live dispatch", "err", err, "detection_id", d.ID)
	}

	req, err := c.buildRequest(ctx, d)
	if err != nil {
		return fmt.Errorf("build orchestrator request: %w", err)
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		// Network error, timeout, or cancellation: surface it but never
		// poison the cache with a failed attempt.
		return fmt.Errorf("orchestrator call failed: %w", err)
	}

	if resp.Status == statusNoThreatDetected {
		return nil
	}

	return c.persistAndCache(ctx, d, signature, resp)
}

func (c *Client) buildRequest(ctx context.Context, d *models.Detection) (OrchestrateRequest, error) {
	normSamples, err := c.normalized.SampleByIDs(ctx, d.RelatedEventIDs, 10)
	if err != nil {
		return OrchestrateRequest{}, fmt.Errorf("sample normalized events: %w", err)
	}

	rawIDs := make([]string, 0, len(normSamples))
	for _, n := range normSamples {
		rawIDs = append(rawIDs, n.RawEventID)
	}
	rawSamples, err := c.rawEvents.SampleByIDs(ctx, rawIDs, 10)
	if err != nil {
		return OrchestrateRequest{}, fmt.Errorf("sample raw events: %w", err)
	}

	rawPayload := make([]rawEventSample, 0, len(rawSamples))
	for _, r := range rawSamples {
		rawPayload = append(rawPayload, rawEventSample{ReceivedAt: r.ReceivedAt, RawMessage: r.RawMessage})
	}

	return OrchestrateRequest{
		TenantID: d.TenantID,
		SiteID:   d.SiteID,
		SourceID: d.SourceID,
		Detection: detectionEnvelope{
			DetectionType: d.DetectionType,
			Severity:      d.Severity,
			DetectedAt:    d.LastEventAt,
			GroupKey:      d.GroupKey,
			Evidence:      d.Evidence,
		},
		RawEvents:        rawPayload,
		NormalizedEvents: normSamples,
	}, nil
}

func (c *Client) call(ctx context.Context, body OrchestrateRequest) (*OrchestrateResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal orchestrate request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/ata/orchestrate", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("orchestrator returned status %d", httpResp.StatusCode)
	}

	var resp OrchestrateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode orchestrator response: %w", err)
	}
	return &resp, nil
}

func (c *Client) persistAndCache(ctx context.Context, d *models.Detection, signature string, resp *OrchestrateResponse) error {
	entry := &models.AICacheEntry{
		ID:               uuid.New().String(),
		TenantID:         d.TenantID,
		PatternSignature: signature,
		DetectionType:    d.DetectionType,
		Severity:         d.Severity,
	}

	if resp.Analysis != nil {
		a := &models.AIAnalysis{
			ID:              uuid.New().String(),
			DetectionID:     d.ID,
			TenantID:        d.TenantID,
			ThreatDetected:  resp.Analysis.ThreatDetected,
			ThreatType:      resp.Analysis.ThreatType,
			ConfidenceScore: resp.Analysis.ConfidenceScore,
			ContextSummary:  resp.Analysis.ContextSummary,
			IOCs:            resp.Analysis.IOCs,
			ModelUsed:       resp.Analysis.ModelUsed,
			TokensUsed:      resp.Analysis.TokensUsed,
			LatencyMS:       resp.Analysis.LatencyMS,
			CreatedAt:       time.Now().UTC(),
		}
		if err := c.analyses.CreateAnalysis(ctx, a); err != nil {
			return fmt.Errorf("persist ai analysis: %w", err)
		}
		entry.ThreatDetected = a.ThreatDetected
		entry.ThreatType = a.ThreatType
		entry.ConfidenceScore = a.ConfidenceScore
		entry.ContextSummary = a.ContextSummary
	}

	if resp.Recommendations != nil && len(resp.Recommendations.Actions) > 0 {
		actions := resp.Recommendations.Actions
		if resp.Judge != nil && resp.Judge.Result == "fail" {
			actions = stripUnsafeCLI(actions)
			c.log.Warn("ai judge failed, dropping cli commands from recommendation", "detection_id", d.ID, "reason", resp.Judge.Reason)
		}
		rec := &models.AIRecommendation{
			ID:          uuid.New().String(),
			DetectionID: d.ID,
			TenantID:    d.TenantID,
			Urgency:     resp.Recommendations.Urgency,
			Actions:     actions,
			ModelUsed:   resp.Recommendations.ModelUsed,
			TokensUsed:  resp.Recommendations.TokensUsed,
			LatencyMS:   resp.Recommendations.LatencyMS,
			CreatedAt:   time.Now().UTC(),
		}
		if err := c.analyses.CreateRecommendation(ctx, rec); err != nil {
			return fmt.Errorf("persist ai recommendation: %w", err)
		}
		entry.RecommendedActions = rec.Actions
	}

	if resp.Report != nil {
		rep := &models.AIReport{
			ID:          uuid.New().String(),
			DetectionID: d.ID,
			TenantID:    d.TenantID,
			Subject:     resp.Report.Subject,
			Body:        resp.Report.Body,
			Status:      models.ReportGenerated,
			ModelUsed:   resp.Report.ModelUsed,
			TokensUsed:  resp.Report.TokensUsed,
			LatencyMS:   resp.Report.LatencyMS,
			CreatedAt:   time.Now().UTC(),
		}
		if err := c.analyses.CreateReport(ctx, rep); err != nil {
			return fmt.Errorf("persist ai report: %w", err)
		}
		entry.ReportSubject = &rep.Subject
		entry.ReportBody = &rep.Body
	}

	if err := c.cache.Upsert(ctx, entry, c.cacheTTLDays); err != nil {
		return fmt.Errorf("upsert ai cache: %w", err)
	}

	return nil
}

// stripUnsafeCLI removes cli_commands from every action, keeping the
// narrative recommendation when the Judge rejects the generated commands.
func stripUnsafeCLI(actions []models.RecommendedAction) []models.RecommendedAction {
	out := make([]models.RecommendedAction, len(actions))
	for i, a := range actions {
		a.CLICommands = nil
		out[i] = a
	}
	return out
}

// persistFromCache replays a cached verdict onto a new detection without
// calling the orchestrator.
func (c *Client) persistFromCache(ctx context.Context, d *models.Detection, entry *models.AICacheEntry) error {
	a := &models.AIAnalysis{
		ID:              uuid.New().String(),
		DetectionID:     d.ID,
		TenantID:        d.TenantID,
		ThreatDetected:  entry.ThreatDetected,
		ThreatType:      entry.ThreatType,
		ConfidenceScore: entry.ConfidenceScore,
		ContextSummary:  entry.ContextSummary,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.analyses.CreateAnalysis(ctx, a); err != nil {
		return fmt.Errorf("persist cached ai analysis: %w", err)
	}

	if len(entry.RecommendedActions) > 0 {
		rec := &models.AIRecommendation{
			ID:          uuid.New().String(),
			DetectionID: d.ID,
			TenantID:    d.TenantID,
			Actions:     entry.RecommendedActions,
			CreatedAt:   time.Now().UTC(),
		}
		if err := c.analyses.CreateRecommendation(ctx, rec); err != nil {
			return fmt.Errorf("persist cached ai recommendation: %w", err)
		}
	}

	if entry.ReportSubject != nil && entry.ReportBody != nil {
		rep := &models.AIReport{
			ID:          uuid.New().String(),
			DetectionID: d.ID,
			TenantID:    d.TenantID,
			Subject:     *entry.ReportSubject,
			Body:        *entry.ReportBody,
			Status:      models.ReportGenerated,
			CreatedAt:   time.Now().UTC(),
		}
		if err := c.analyses.CreateReport(ctx, rep); err != nil {
			return fmt.Errorf("persist cached ai report: %w", err)
		}
	}

	return nil
}
