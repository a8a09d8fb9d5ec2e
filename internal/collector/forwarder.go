package collector

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Forwarder posts buffered batches to the cloud ingest endpoint, carrying
// the collector's API key, a descriptive User-Agent, and a payload digest
// the ingest side uses for replay dedup.
type Forwarder struct {
	client        *http.Client
	bulkURL       string
	singleURL     string
	apiKey        string
	collectorName string
	siteID        string
	version       string
}

func NewForwarder(bulkURL, singleURL, apiKey, collectorName, siteID, version string, timeout time.Duration) *Forwarder {
	return &Forwarder{
		client:        &http.Client{Timeout: timeout},
		bulkURL:       bulkURL,
		singleURL:     singleURL,
		apiKey:        apiKey,
		collectorName: collectorName,
		siteID:        siteID,
		version:       version,
	}
}

type bulkPayload struct {
	Events []eventPayload `json:"events"`
}

type eventPayload struct {
	RawMessage string    `json:"raw_message"`
	ReceivedAt time.Time `json:"received_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
	SiteID     string    `json:"site_id,omitempty"`
}

// FlushBatch attempts one bulk POST, and on any non-2xx response falls back
// to posting events individually so a single malformed line cannot sink an
// entire batch. Returns the events that still failed to send.
func (f *Forwarder) FlushBatch(ctx context.Context, events []BufferedEvent) (failed []BufferedEvent, retryable bool) {
	if ok, _ := f.postBulk(ctx, events); ok {
		return nil, false
	}

	var stillFailed []BufferedEvent
	anyRetryable := false
	for _, e := range events {
		ok, retry := f.postSingle(ctx, e)
		if !ok {
			stillFailed = append(stillFailed, e)
			if retry {
				anyRetryable = true
			}
		}
	}
	return stillFailed, anyRetryable
}

func (f *Forwarder) postBulk(ctx context.Context, events []BufferedEvent) (ok bool, retryable bool) {
	payload := bulkPayload{Events: make([]eventPayload, len(events))}
	for i, e := range events {
		payload.Events[i] = eventPayload{RawMessage: e.RawMessage, ReceivedAt: e.ReceivedAt, SourceIP: e.SourceIP, SiteID: f.siteID}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, false
	}
	return f.post(ctx, f.bulkURL, body)
}

func (f *Forwarder) postSingle(ctx context.Context, e BufferedEvent) (ok bool, retryable bool) {
	body, err := json.Marshal(eventPayload{RawMessage: e.RawMessage, ReceivedAt: e.ReceivedAt, SourceIP: e.SourceIP, SiteID: f.siteID})
	if err != nil {
		return false, false
	}
	return f.post(ctx, f.singleURL, body)
}

func (f *Forwarder) post(ctx context.Context, url string, body []byte) (ok bool, retryable bool) {
	digest := sha256.Sum256(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", f.collectorName, f.version))
	req.Header.Set("x-payload-sha256", hex.EncodeToString(digest[:]))

	resp, err := f.client.Do(req)
	if err != nil {
		return false, true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, false
	}

	// 401/403 mean the API key is bad or revoked: retrying will never help.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, false
	}
	// 429/5xx are transient; any other 4xx indicates a malformed payload
	// this collector cannot fix by retrying.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return false, true
	}
	return false, false
}
