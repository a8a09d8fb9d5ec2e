// Package models holds the domain entities of the telemetry pipeline.
// All identifiers are UUID strings.
package models

import "time"

// PlanTier names a rate-limit tier assigned to a Tenant.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanBasic      PlanTier = "basic"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Severity orders from least to most urgent; Rank gives total ordering for
// max() aggregation (Digest.severity, detection escalation).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the severity's position in the info < low < medium < high <
// critical ordering. Unknown values rank below info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Max returns the higher-ranked of two severities.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// EscalateBy raises s by levels steps, capping at critical.
func (s Severity) EscalateBy(levels int) Severity {
	order := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	rank := s.Rank()
	if rank < 0 {
		rank = 0
	}
	rank += levels
	if rank >= len(order) {
		rank = len(order) - 1
	}
	return order[rank]
}

// Transport identifies how a RawEvent reached the Ingest Front Door.
type Transport string

const (
	TransportUDP  Transport = "udp"
	TransportTCP  Transport = "tcp"
	TransportHTTP Transport = "http"
)

// DeliveryStatus is the lifecycle state of an EmailDelivery row.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// ReportStatus is the lifecycle state of an AIReport row.
type ReportStatus string

const (
	ReportGenerated ReportStatus = "generated"
	ReportSent      ReportStatus = "sent"
	ReportFailed    ReportStatus = "failed"
)

// Tenant is a customer organization; referenced by every tenant-scoped row.
type Tenant struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Status        string    `db:"status"`
	PlanTier      PlanTier  `db:"plan_tier"`
	DefaultLocale string    `db:"default_locale"`
	Timezone      string    `db:"timezone"`
	CreatedAt     time.Time `db:"created_at"`
}

// APIKey authenticates a Collector or other caller for a Tenant. The
// plaintext token is never persisted, only KeyHash.
type APIKey struct {
	ID         string     `db:"id"`
	TenantID   string     `db:"tenant_id"`
	KeyHash    string     `db:"key_hash"`
	Prefix     string     `db:"prefix"`
	Name       string     `db:"name"`
	IsActive   bool       `db:"is_active"`
	LastUsedAt *time.Time `db:"last_used_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// RawEvent is one syslog line as received by the Ingest Worker, before
// normalization. Parsed transitions false→true exactly once.
type RawEvent struct {
	ID            string    `db:"id"`
	TenantID      string    `db:"tenant_id"`
	SiteID        *string   `db:"site_id"`
	SourceID      *string   `db:"source_id"`
	ReceivedAt    time.Time `db:"received_at"`
	SourceIP      *string   `db:"source_ip"`
	Transport     Transport `db:"transport"`
	RawMessage    string    `db:"raw_message"`
	CollectorName *string   `db:"collector_name"`
	Parsed        bool      `db:"parsed"`
	ParseError    *string   `db:"parse_error"`
	PayloadSHA256 *string   `db:"payload_sha256"`
}

// NormalizedEvent is the structured result of parsing exactly one RawEvent.
// Immutable once written.
type NormalizedEvent struct {
	ID         string            `db:"id"`
	RawEventID string            `db:"raw_event_id"`
	TenantID   string            `db:"tenant_id"`
	SiteID     *string           `db:"site_id"`
	SourceID   *string           `db:"source_id"`
	TS         time.Time         `db:"ts"`
	Vendor     string            `db:"vendor"`
	Product    string            `db:"product"`
	EventType  string            `db:"event_type"`
	Subtype    *string           `db:"subtype"`
	Action     *string           `db:"action"`
	Severity   Severity          `db:"severity"`
	SrcIP      *string           `db:"src_ip"`
	DstIP      *string           `db:"dst_ip"`
	SrcUser    *string           `db:"src_user"`
	DstUser    *string           `db:"dst_user"`
	SrcPort    *int              `db:"src_port"`
	DstPort    *int              `db:"dst_port"`
	Interface  *string           `db:"interface"`
	VDOM       *string           `db:"vdom"`
	PolicyID   *string           `db:"policy_id"`
	SessionID  *string           `db:"session_id"`
	Message    *string           `db:"message"`
	KV         map[string]string `db:"kv"`
}

// Detection is a rule-produced record of a grouping key exceeding a
// threshold within a window. Later overlapping matches update the open
// (reported_digest_id IS NULL) detection for (tenant_id, detection_type,
// group_key); see store.DetectionRepository.UpsertOpenDetection.
type Detection struct {
	ID               string            `db:"id"`
	TenantID         string            `db:"tenant_id"`
	SiteID           *string           `db:"site_id"`
	SourceID         *string           `db:"source_id"`
	DetectionType    string            `db:"detection_type"`
	Severity         Severity          `db:"severity"`
	GroupKey         string            `db:"group_key"`
	WindowMinutes    int               `db:"window_minutes"`
	EventCount       int               `db:"event_count"`
	FirstEventAt     time.Time         `db:"first_event_at"`
	LastEventAt      time.Time         `db:"last_event_at"`
	Evidence         DetectionEvidence `db:"evidence"`
	RelatedEventIDs  []string          `db:"related_event_ids"`
	ReportedDigestID *string           `db:"reported_digest_id"`
	Acknowledged     bool              `db:"acknowledged"`
	CreatedAt        time.Time         `db:"created_at"`
}

// DetectionEvidence is the structured evidence attached to a Detection,
// modeled as a typed struct rather than opaque free-form data, with a
// side channel for anything the rule didn't explicitly extract.
type DetectionEvidence struct {
	DistinctSrcIPs   []string          `json:"distinct_src_ips,omitempty"`
	DistinctSrcUsers []string          `json:"distinct_src_users,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// IsOpen reports whether the detection has not yet been folded into a digest.
func (d Detection) IsOpen() bool {
	return d.ReportedDigestID == nil
}

// Digest is the tenant-scoped consolidation of one or more detections into
// a single outbound message.
type Digest struct {
	ID             string    `db:"id"`
	TenantID       string    `db:"tenant_id"`
	WindowStart    time.Time `db:"window_start"`
	WindowEnd      time.Time `db:"window_end"`
	Severity       Severity  `db:"severity"`
	DetectionCount int       `db:"detection_count"`
	EventCount     int       `db:"event_count"`
	Subject        string    `db:"subject"`
	BodyText       string    `db:"body_text"`
	BodyHTML       *string   `db:"body_html"`
	Locale         string    `db:"locale"`
	CreatedAt      time.Time `db:"created_at"`
}

// EmailDelivery records one delivery attempt of a Digest to a recipient.
type EmailDelivery struct {
	ID            string         `db:"id"`
	DigestID      string         `db:"digest_id"`
	TenantID      string         `db:"tenant_id"`
	Recipient     string         `db:"recipient"`
	ProviderMsgID *string        `db:"provider_message_id"`
	Status        DeliveryStatus `db:"status"`
	Error         *string        `db:"error"`
	SentAt        *time.Time     `db:"sent_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

// AIAnalysis is a downstream agent's threat assessment of a Detection.
type AIAnalysis struct {
	ID              string    `db:"id"`
	DetectionID     string    `db:"detection_id"`
	TenantID        string    `db:"tenant_id"`
	ThreatDetected  bool      `db:"threat_detected"`
	ThreatType      *string   `db:"threat_type"`
	ConfidenceScore *float64  `db:"confidence_score"`
	ContextSummary  *string   `db:"context_summary"`
	IOCs            []string  `db:"iocs"`
	ModelUsed       *string   `db:"model_used"`
	TokensUsed      *int      `db:"tokens_used"`
	LatencyMS       *int      `db:"latency_ms"`
	CreatedAt       time.Time `db:"created_at"`
}

// RecommendedAction is one remediation step suggested by the advisor agent.
type RecommendedAction struct {
	Priority    int      `json:"priority"`
	Action      string   `json:"action"`
	CLICommands []string `json:"cli_commands,omitempty"`
	RiskLevel   string   `json:"risk_level"`
	Reversible  bool     `json:"reversible"`
}

// AIRecommendation is a set of remediation actions for a Detection.
type AIRecommendation struct {
	ID          string              `db:"id"`
	DetectionID string              `db:"detection_id"`
	TenantID    string              `db:"tenant_id"`
	Urgency     string              `db:"urgency"`
	Actions     []RecommendedAction `db:"actions"`
	ModelUsed   *string             `db:"model_used"`
	TokensUsed  *int                `db:"tokens_used"`
	LatencyMS   *int                `db:"latency_ms"`
	CreatedAt   time.Time           `db:"created_at"`
}

// AIReport is the human-readable write-up for a Detection, ready for
// inclusion in a digest.
type AIReport struct {
	ID          string       `db:"id"`
	DetectionID string       `db:"detection_id"`
	TenantID    string       `db:"tenant_id"`
	Subject     string       `db:"subject"`
	Body        string       `db:"body"`
	Status      ReportStatus `db:"status"`
	SentAt      *time.Time   `db:"sent_at"`
	ModelUsed   *string      `db:"model_used"`
	TokensUsed  *int         `db:"tokens_used"`
	LatencyMS   *int         `db:"latency_ms"`
	CreatedAt   time.Time    `db:"created_at"`
}

// AICacheEntry is a pattern-signature keyed cache row bounding downstream
// AI call cost. Unique per (tenant_id, pattern_signature).
type AICacheEntry struct {
	ID                 string              `db:"id"`
	TenantID           string              `db:"tenant_id"`
	PatternSignature   string              `db:"pattern_signature"`
	DetectionType      string              `db:"detection_type"`
	Severity           Severity            `db:"severity"`
	ThreatDetected     bool                `db:"threat_detected"`
	ThreatType         *string             `db:"threat_type"`
	ConfidenceScore    *float64            `db:"confidence_score"`
	ContextSummary     *string             `db:"context_summary"`
	RecommendedActions []RecommendedAction `db:"recommended_actions"`
	ReportSubject      *string             `db:"report_subject"`
	ReportBody         *string             `db:"report_body"`
	HitCount           int                 `db:"hit_count"`
	LastHitAt          *time.Time          `db:"last_hit_at"`
	ExpiresAt          time.Time           `db:"expires_at"`
	IsValid            bool                `db:"is_valid"`
}
