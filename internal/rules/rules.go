// Package rules implements the windowed-aggregation detection engine:
// scan NormalizedEvents per rule, group by the rule's key, and fold
// qualifying groups into open Detections.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/store"
)

// Rule is one detection rule definition.
type Rule struct {
	Name          string
	EventTypes    []string
	Threshold     int
	WindowMinutes int
	Severity      models.Severity
	GroupBy       string // src_ip | src_user | src_ip_user
}

// ReferenceRules are the three MVP rules.
var ReferenceRules = []Rule{
	{
		Name:          "vpn_bruteforce",
		EventTypes:    []string{"vpn_login_fail"},
		Threshold:     3,
		WindowMinutes: 15,
		Severity:      models.SeverityHigh,
		GroupBy:       "src_ip",
	},
	{
		Name:          "admin_bruteforce",
		EventTypes:    []string{"admin_login_fail"},
		Threshold:     3,
		WindowMinutes: 15,
		Severity:      models.SeverityCritical,
		GroupBy:       "src_ip",
	},
	{
		Name:          "config_change_burst",
		EventTypes:    []string{"config_change"},
		Threshold:     10,
		WindowMinutes: 5,
		Severity:      models.SeverityMedium,
		GroupBy:       "src_user",
	},
}

// EscalationEnabled toggles the optional severity-escalation hook: raise
// the base severity by one level at 5x threshold and two levels at 20x
// threshold, capping at critical.
const EscalationEnabled = true

// Engine evaluates rules against the normalized-event store and folds
// qualifying groups into the detection store.
type Engine struct {
	rules      []Rule
	normalized *store.NormalizedEventRepository
	detections *store.DetectionRepository
	log        *logging.Logger
}

func NewEngine(rules []Rule, normalized *store.NormalizedEventRepository, detections *store.DetectionRepository, log *logging.Logger) *Engine {
	return &Engine{rules: rules, normalized: normalized, detections: detections, log: log}
}

// EvaluateAll runs every rule once, returning the number of detections
// created or updated.
func (e *Engine) EvaluateAll(ctx context.Context) (int, error) {
	total := 0
	for _, rule := range e.rules {
		n, err := e.evaluate(ctx, rule)
		if err != nil {
			e.log.Error("rule evaluation failed", "err", err, "rule", rule.Name)
			continue
		}
		total += n
	}
	return total, nil
}

func (e *Engine) evaluate(ctx context.Context, rule Rule) (int, error) {
	since := time.Now().Add(-time.Duration(rule.WindowMinutes) * time.Minute)

	groups, err := e.normalized.AggregateByGroupKey(ctx, rule.EventTypes, since, rule.GroupBy, rule.Threshold)
	if err != nil {
		return 0, fmt.Errorf("aggregate for rule %s: %w", rule.Name, err)
	}

	count := 0
	for _, g := range groups {
		severity := rule.Severity
		if EscalationEnabled {
			severity = escalate(rule.Severity, g.EventCount, rule.Threshold)
		}

		candidate := &models.Detection{
			ID:            uuid.New().String(),
			TenantID:      g.TenantID,
			SiteID:        g.SiteID,
			SourceID:      g.SourceID,
			DetectionType: rule.Name,
			Severity:      severity,
			GroupKey:      g.GroupKey,
			WindowMinutes: rule.WindowMinutes,
			EventCount:    g.EventCount,
			FirstEventAt:  g.FirstEventAt,
			LastEventAt:   g.LastEventAt,
			Evidence: models.DetectionEvidence{
				DistinctSrcIPs:   g.DistinctSrcIPs,
				DistinctSrcUsers: g.DistinctSrcUsers,
			},
			RelatedEventIDs: g.EventIDs,
			CreatedAt:       time.Now().UTC(),
		}

		if _, _, err := e.detections.UpsertOpenDetection(ctx, candidate); err != nil {
			e.log.Error("upsert open detection failed", "err", err, "rule", rule.Name, "group_key", g.GroupKey)
			continue
		}
		count++
	}

	return count, nil
}

// escalate raises severity by one level at 5x threshold, two levels at 20x
// threshold, capping at critical.
func escalate(base models.Severity, eventCount, threshold int) models.Severity {
	if threshold <= 0 {
		return base
	}
	ratio := float64(eventCount) / float64(threshold)
	switch {
	case ratio >= 20:
		return base.EscalateBy(2)
	case ratio >= 5:
		return base.EscalateBy(1)
	default:
		return base
	}
}
