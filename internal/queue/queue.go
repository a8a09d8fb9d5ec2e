// Package queue wraps NATS JetStream for the durable ingest and AI
// dispatch queues.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamSpec names a JetStream stream and the subjects it captures.
type StreamSpec struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
}

var (
	// IngestStream carries raw ingest payloads from the Ingest Front Door
	// to the Ingest Worker.
	IngestStream = StreamSpec{Name: "INGEST", Subjects: []string{"ingest.events"}, MaxAge: 24 * time.Hour}

	// AIDispatchStream carries high-severity detections awaiting AI
	// analysis.
	AIDispatchStream = StreamSpec{Name: "AI_DISPATCH", Subjects: []string{"ai.dispatch"}, MaxAge: 24 * time.Hour}

	// CollectorDLQStream mirrors edge Collector events that exhausted their
	// retry budget, keyed by drop reason, so an operator can inspect or
	// replay them later.
	CollectorDLQStream = StreamSpec{Name: "COLLECTOR_DLQ", Subjects: []string{"collector.dlq.*"}, MaxAge: 7 * 24 * time.Hour}
)

// Client wraps a NATS connection plus its JetStream context. Shutdown
// closes the underlying connection exactly once.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Config holds NATS client connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig(name string) Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          name,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Connect opens the NATS connection and wraps it with a JetStream context.
func Connect(cfg Config) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Client{conn: conn, js: js}, nil
}

// EnsureStream creates or updates a stream from spec.
func (c *Client) EnsureStream(ctx context.Context, spec StreamSpec) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     spec.Name,
		Subjects: spec.Subjects,
		MaxAge:   spec.MaxAge,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", spec.Name, err)
	}
	return stream, nil
}

// PublishSync publishes data to subject and waits for the broker's ack.
func (c *Client) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	ack, err := c.js.Publish(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", subject, err)
	}
	return ack, nil
}

// Msg and MessageBatch re-export the jetstream types callers need to drain
// a Consumer, so packages outside internal/queue don't import nats.go
// directly.
type Msg = jetstream.Msg
type MessageBatch = jetstream.MessageBatch

// Consumer is a durable pull consumer bound to one stream.
type Consumer struct {
	consumer jetstream.Consumer
}

// EnsureConsumer creates or binds a durable pull consumer with the given
// concurrency-friendly ack-wait.
func (c *Client) EnsureConsumer(ctx context.Context, streamName, durableName string, ackWait time.Duration) (*Consumer, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("bind stream %s: %w", streamName, err)
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   durableName,
		AckPolicy: jetstream.AckExplicitPolicy,
		AckWait:   ackWait,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure consumer %s: %w", durableName, err)
	}
	return &Consumer{consumer: cons}, nil
}

// Fetch pulls up to batchSize messages, blocking up to maxWait.
func (c *Consumer) Fetch(batchSize int, maxWait time.Duration) (MessageBatch, error) {
	return c.consumer.Fetch(batchSize, jetstream.FetchMaxWait(maxWait))
}

// IsConnected reports whether the underlying NATS connection is live.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close drains and closes the connection exactly once.
func (c *Client) Close() error {
	return c.conn.Drain()
}
