package normalizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/store"
)

// eventTypeRule maps one (type, subtype, action) triple to a canonical
// event_type. An empty field in the rule matches any value.
type eventTypeRule struct {
	Type, Subtype, Action string
	EventType             string
}

// eventTypeTable is the deterministic mapping from native log fields to the
// canonical event types the Rules Engine's reference rules key on.
var eventTypeTable = []eventTypeRule{
	{Type: "event", Subtype: "vpn", Action: "ssl-login-fail", EventType: "vpn_login_fail"},
	{Type: "event", Subtype: "vpn", Action: "login-fail", EventType: "vpn_login_fail"},
	{Type: "event", Subtype: "vpn", Action: "tunnel-up", EventType: "vpn_tunnel_up"},
	{Type: "event", Subtype: "vpn", Action: "tunnel-down", EventType: "vpn_tunnel_down"},
	{Type: "event", Subtype: "system", Action: "admin-login-fail", EventType: "admin_login_fail"},
	{Type: "event", Subtype: "system", Action: "login-fail", EventType: "admin_login_fail"},
	{Type: "event", Subtype: "system", Action: "admin-login", EventType: "admin_login_success"},
	{Type: "event", Subtype: "system", Action: "config-change", EventType: "config_change"},
	{Type: "event", Subtype: "system", Action: "cfg-change", EventType: "config_change"},
	{Type: "traffic", Subtype: "forward", Action: "deny", EventType: "traffic_denied"},
	{Type: "traffic", Subtype: "forward", Action: "accept", EventType: "traffic_allowed"},
	{Type: "utm", Subtype: "virus", EventType: "malware_detected"},
	{Type: "utm", Subtype: "ips", EventType: "intrusion_detected"},
}

// deriveEventType finds the most specific matching rule, falling back to
// "<type>_<subtype>" or "unknown" when nothing matches.
func deriveEventType(logType, subtype, action string) string {
	for _, rule := range eventTypeTable {
		if rule.Type != "" && rule.Type != logType {
			continue
		}
		if rule.Subtype != "" && rule.Subtype != subtype {
			continue
		}
		if rule.Action != "" && rule.Action != action {
			continue
		}
		return rule.EventType
	}

	if logType != "" && subtype != "" {
		return fmt.Sprintf("%s_%s", logType, subtype)
	}
	return "unknown"
}

// deriveSeverity maps a log's native syslog-style severity word to the
// canonical Severity scale.
func deriveSeverity(level string) models.Severity {
	switch strings.ToLower(level) {
	case "emergency", "alert", "critical":
		return models.SeverityCritical
	case "error":
		return models.SeverityHigh
	case "warning":
		return models.SeverityMedium
	case "notice":
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

var embeddedIPPattern = regexp.MustCompile(`\(([0-9]{1,3}(?:\.[0-9]{1,3}){3})\)`)

// Normalizer drains unparsed RawEvents on each pipeline tick.
type Normalizer struct {
	parser    Parser
	rawEvents *store.RawEventRepository
	log       *logging.Logger
}

func New(parser Parser, rawEvents *store.RawEventRepository, log *logging.Logger) *Normalizer {
	return &Normalizer{parser: parser, rawEvents: rawEvents, log: log}
}

// NormalizeBatch selects up to n unparsed RawEvents, normalizes each, and
// returns the count successfully processed (parse failures still count as
// processed, since the RawEvent is marked parsed either way).
func (n *Normalizer) NormalizeBatch(ctx context.Context, batchSize int) (int, error) {
	raws, err := n.rawEvents.SelectUnparsed(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("select unparsed raw events: %w", err)
	}

	processed := 0
	for _, raw := range raws {
		if err := n.normalizeOne(ctx, raw); err != nil {
			n.log.Error("normalize failed, marking parse_error", "err", err, "raw_event_id", raw.ID)
			msg := err.Error()
			if markErr := n.rawEvents.MarkParseFailed(ctx, raw.ID, msg); markErr != nil {
				n.log.Error("mark parse failed errored", "err", markErr, "raw_event_id", raw.ID)
				continue
			}
		}
		processed++
	}

	return processed, nil
}

func (n *Normalizer) normalizeOne(ctx context.Context, raw *models.RawEvent) error {
	rec, err := n.parser.Parse(raw.RawMessage)
	if err != nil {
		return fmt.Errorf("parse raw message: %w", err)
	}

	ts := raw.ReceivedAt
	if rec.HasTimestamp {
		ts = rec.Timestamp
	}

	srcIP := rec.SrcIP
	if srcIP == "" {
		if m := embeddedIPPattern.FindStringSubmatch(raw.RawMessage); len(m) == 2 {
			srcIP = m[1]
		}
	}
	if srcIP == "" && raw.SourceIP != nil {
		srcIP = *raw.SourceIP
	}

	ne := &models.NormalizedEvent{
		ID:         uuid.New().String(),
		RawEventID: raw.ID,
		TenantID:   raw.TenantID,
		SiteID:     raw.SiteID,
		SourceID:   raw.SourceID,
		TS:         ts,
		Vendor:     "fortinet",
		Product:    "fortigate",
		EventType:  deriveEventType(rec.Type, rec.Subtype, rec.Action),
		Severity:   deriveSeverity(rec.Level),
		KV:         rec.Fields,
	}
	if rec.Subtype != "" {
		ne.Subtype = &rec.Subtype
	}
	if rec.Action != "" {
		ne.Action = &rec.Action
	}
	if srcIP != "" {
		ne.SrcIP = &srcIP
	}
	if rec.DstIP != "" {
		ne.DstIP = &rec.DstIP
	}
	if rec.SrcUser != "" {
		ne.SrcUser = &rec.SrcUser
	}
	if rec.DstUser != "" {
		ne.DstUser = &rec.DstUser
	}
	if rec.SrcPort != 0 {
		ne.SrcPort = &rec.SrcPort
	}
	if rec.DstPort != 0 {
		ne.DstPort = &rec.DstPort
	}
	if rec.Interface != "" {
		ne.Interface = &rec.Interface
	}
	if rec.VDOM != "" {
		ne.VDOM = &rec.VDOM
	}
	if rec.PolicyID != "" {
		ne.PolicyID = &rec.PolicyID
	}
	if rec.SessionID != "" {
		ne.SessionID = &rec.SessionID
	}
	if rec.Message != "" {
		ne.Message = &rec.Message
	}

	return n.rawEvents.MarkParsedWithNormalized(ctx, raw.ID, ne)
}
