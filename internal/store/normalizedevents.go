package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilnet/vigilnet/internal/models"
)

// NormalizedEventRepository serves the Rules Engine's windowed read and
// the AI client's sample-event lookups.
type NormalizedEventRepository struct {
	*Pool
}

func NewNormalizedEventRepository(p *Pool) *NormalizedEventRepository {
	return &NormalizedEventRepository{Pool: p}
}

// GroupCount is one (tenant, site, source, group_key) aggregate produced by
// the Rules Engine's windowed scan.
type GroupCount struct {
	TenantID         string
	SiteID           *string
	SourceID         *string
	GroupKey         string
	EventCount       int
	FirstEventAt     time.Time
	LastEventAt      time.Time
	DistinctSrcIPs   []string
	DistinctSrcUsers []string
	EventIDs         []string
}

// AggregateByGroupKey scans NormalizedEvents newer than since whose
// event_type is in eventTypes, grouping by (tenant_id, site_id, source_id,
// groupByColumn), and returns groups meeting threshold.
func (r *NormalizedEventRepository) AggregateByGroupKey(ctx context.Context, eventTypes []string, since time.Time, groupByColumn string, threshold int) ([]GroupCount, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	groupExpr := groupKeyExpr(groupByColumn)

	rows, err := r.Query(ctx, fmt.Sprintf(`
		SELECT tenant_id, site_id, source_id, %s AS group_key,
		       count(*) AS event_count,
		       min(ts) AS first_event_at,
		       max(ts) AS last_event_at,
		       array_remove(array_agg(DISTINCT src_ip), NULL) AS src_ips,
		       array_remove(array_agg(DISTINCT src_user), NULL) AS src_users,
		       array_agg(id) AS event_ids
		FROM normalized_events
		WHERE ts >= $1 AND event_type = ANY($2) AND %s IS NOT NULL
		GROUP BY tenant_id, site_id, source_id, %s
		HAVING count(*) >= $3
	`, groupExpr, groupExpr, groupExpr), since, eventTypes, threshold)
	if err != nil {
		return nil, fmt.Errorf("aggregate normalized events: %w", err)
	}
	defer rows.Close()

	var out []GroupCount
	for rows.Next() {
		g := GroupCount{}
		if err := rows.Scan(&g.TenantID, &g.SiteID, &g.SourceID, &g.GroupKey, &g.EventCount,
			&g.FirstEventAt, &g.LastEventAt, &g.DistinctSrcIPs, &g.DistinctSrcUsers, &g.EventIDs); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// groupKeyExpr maps a rule's group_by name to the backing column(s),
// composing src_ip_user as a deterministic concatenation.
func groupKeyExpr(groupBy string) string {
	switch groupBy {
	case "src_user":
		return "src_user"
	case "src_ip_user":
		return "(src_ip || ':' || coalesce(src_user, ''))"
	default:
		return "src_ip"
	}
}

// SampleByIDs returns up to limit NormalizedEvents for the AI envelope's
// sample payload.
func (r *NormalizedEventRepository) SampleByIDs(ctx context.Context, ids []string, limit int) ([]*models.NormalizedEvent, error) {
	ctx, cancel := QueryContext(ctx)
	defer cancel()

	if len(ids) > limit {
		ids = ids[:limit]
	}

	rows, err := r.Query(ctx, `
		SELECT id, raw_event_id, tenant_id, site_id, source_id, ts, vendor, product,
		       event_type, subtype, action, severity, src_ip, dst_ip, src_user, dst_user,
		       src_port, dst_port, interface, vdom, policy_id, session_id, message, kv
		FROM normalized_events WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("sample normalized events: %w", err)
	}
	defer rows.Close()

	var out []*models.NormalizedEvent
	for rows.Next() {
		n := &models.NormalizedEvent{}
		if err := rows.Scan(&n.ID, &n.RawEventID, &n.TenantID, &n.SiteID, &n.SourceID, &n.TS, &n.Vendor, &n.Product,
			&n.EventType, &n.Subtype, &n.Action, &n.Severity, &n.SrcIP, &n.DstIP, &n.SrcUser, &n.DstUser,
			&n.SrcPort, &n.DstPort, &n.Interface, &n.VDOM, &n.PolicyID, &n.SessionID, &n.Message, &n.KV); err != nil {
			return nil, fmt.Errorf("scan normalized event: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
