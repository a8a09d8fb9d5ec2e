package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigilnet/vigilnet/internal/queue"
)

// JetStreamDLQ mirrors batches that exhausted their retry budget onto a
// JetStream subject, one message per event, so they are kept in the
// COLLECTOR_DLQ stream instead of being lost when the collector restarts.
type JetStreamDLQ struct {
	client *queue.Client
}

func NewJetStreamDLQ(client *queue.Client) *JetStreamDLQ {
	return &JetStreamDLQ{client: client}
}

type dlqMessage struct {
	Reason     string `json:"reason"`
	RawMessage string `json:"raw_message"`
	SourceIP   string `json:"source_ip,omitempty"`
}

func (d *JetStreamDLQ) Write(ctx context.Context, reason string, events []BufferedEvent) error {
	for _, e := range events {
		data, err := json.Marshal(dlqMessage{Reason: reason, RawMessage: e.RawMessage, SourceIP: e.SourceIP})
		if err != nil {
			return fmt.Errorf("marshal dlq message: %w", err)
		}
		if _, err := d.client.PublishSync(ctx, "collector.dlq."+reason, data); err != nil {
			return fmt.Errorf("publish dlq message: %w", err)
		}
	}
	return nil
}
