// Command seed generates synthetic FortiGate-style syslog traffic and
// posts it to an Ingest Front Door for testing and demos, including a
// canned VPN brute-force attack pattern that exercises the Rules Engine.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

type eventPayload struct {
	RawMessage string `json:"raw_message"`
	ReceivedAt string `json:"received_at"`
	SourceIP   string `json:"source_ip,omitempty"`
	SiteID     string `json:"site_id,omitempty"`
}

type bulkPayload struct {
	Events []eventPayload `json:"events"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8088", "ingest front door base URL")
	apiKey := flag.String("key", "", "tenant API key")
	count := flag.Int("count", 200, "number of baseline events to generate")
	batchSize := flag.Int("batch", 50, "events per bulk request, max 100")
	attack := flag.String("attack", "", "attack pattern to inject: vpn_bruteforce, admin_bruteforce, config_burst")
	attackSrcIP := flag.String("attack-src-ip", "", "source IP for the attack pattern (random if empty)")
	flag.Parse()

	if *apiKey == "" {
		log.Fatal("seed: -key is required")
	}
	if *batchSize > 100 {
		*batchSize = 100
	}

	gofakeit.Seed(time.Now().UnixNano())
	client := &http.Client{Timeout: 10 * time.Second}

	if *attack != "" {
		srcIP := *attackSrcIP
		if srcIP == "" {
			srcIP = gofakeit.IPv4Address()
		}
		events := attackEvents(*attack, srcIP)
		if events == nil {
			log.Fatalf("seed: unknown attack pattern %q", *attack)
		}
		log.Printf("injecting attack pattern %q (%d events, src_ip=%s)", *attack, len(events), srcIP)
		if err := sendBatches(client, *baseURL, *apiKey, events, *batchSize); err != nil {
			log.Fatalf("seed: attack injection failed: %v", err)
		}
	}

	baseline := make([]eventPayload, 0, *count)
	for i := 0; i < *count; i++ {
		baseline = append(baseline, baselineEvent())
	}

	log.Printf("sending %d baseline events", len(baseline))
	if err := sendBatches(client, *baseURL, *apiKey, baseline, *batchSize); err != nil {
		log.Fatalf("seed: baseline send failed: %v", err)
	}

	log.Println("seed complete")
}

func sendBatches(client *http.Client, baseURL, apiKey string, events []eventPayload, batchSize int) error {
	for i := 0; i < len(events); i += batchSize {
		end := i + batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := postBulk(client, baseURL, apiKey, events[i:end]); err != nil {
			return fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func postBulk(client *http.Client, baseURL, apiKey string, events []eventPayload) error {
	body, err := json.Marshal(bulkPayload{Events: events})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/ingest/syslog/bulk", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vigilnet-seed/1.0.0")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}

// baselineEvent produces one plausible, non-malicious FortiGate log line.
func baselineEvent() eventPayload {
	kinds := []string{"traffic", "vpn", "utm"}
	kind := kinds[rand.Intn(len(kinds))]

	var msg string
	switch kind {
	case "traffic":
		msg = fmt.Sprintf(`date=%s time=%s logid="0000000013" type="traffic" subtype="forward" level="notice" action="accept" srcip=%s srcport=%d dstip=%s dstport=%d policyid="%d" srcintf="port1" dstintf="port2" msg="traffic accepted"`,
			nowDate(), nowTime(), gofakeit.IPv4Address(), randPort(), gofakeit.IPv4Address(), []int{80, 443, 22}[rand.Intn(3)], rand.Intn(20)+1)
	case "vpn":
		msg = fmt.Sprintf(`date=%s time=%s logid="0101037138" type="event" subtype="vpn" level="information" action="tunnel-up" user="%s" remip=%s msg="SSL VPN tunnel established"`,
			nowDate(), nowTime(), gofakeit.Username(), gofakeit.IPv4Address())
	default:
		msg = fmt.Sprintf(`date=%s time=%s logid="0419016384" type="utm" subtype="app-ctrl" level="notice" action="pass" srcip=%s dstip=%s msg="application control event"`,
			nowDate(), nowTime(), gofakeit.IPv4Address(), gofakeit.IPv4Address())
	}

	return eventPayload{
		RawMessage: msg,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// attackEvents builds the raw lines for one canned detection scenario,
// all sharing attackSrcIP so they land in the same rule group key.
func attackEvents(pattern, srcIP string) []eventPayload {
	switch pattern {
	case "vpn_bruteforce":
		return repeatVPNLoginFail(srcIP, 5)
	case "admin_bruteforce":
		return repeatAdminLoginFail(srcIP, 5)
	case "config_burst":
		return repeatConfigChange(srcIP, 12)
	default:
		return nil
	}
}

func repeatVPNLoginFail(srcIP string, n int) []eventPayload {
	out := make([]eventPayload, n)
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf(`date=%s time=%s logid="0101039936" type="event" subtype="vpn" level="error" action="login-fail" user="%s" srcip=%s remip=%s msg="SSL VPN login failed"`,
			nowDate(), nowTime(), gofakeit.Username(), srcIP, srcIP)
		out[i] = eventPayload{RawMessage: msg, ReceivedAt: time.Now().UTC().Format(time.RFC3339), SourceIP: srcIP}
	}
	return out
}

func repeatAdminLoginFail(srcIP string, n int) []eventPayload {
	out := make([]eventPayload, n)
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf(`date=%s time=%s logid="0100032002" type="event" subtype="system" level="alert" action="login-fail" user="admin" srcip=%s msg="administrator login failed"`,
			nowDate(), nowTime(), srcIP)
		out[i] = eventPayload{RawMessage: msg, ReceivedAt: time.Now().UTC().Format(time.RFC3339), SourceIP: srcIP}
	}
	return out
}

func repeatConfigChange(srcIP string, n int) []eventPayload {
	user := gofakeit.Username()
	out := make([]eventPayload, n)
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf(`date=%s time=%s logid="0100044546" type="event" subtype="system" level="warning" action="cfg-change" user="%s" srcip=%s msg="configuration changed"`,
			nowDate(), nowTime(), user, srcIP)
		out[i] = eventPayload{RawMessage: msg, ReceivedAt: time.Now().UTC().Format(time.RFC3339), SourceIP: srcIP}
	}
	return out
}

func nowDate() string { return time.Now().UTC().Format("2006-01-02") }
func nowTime() string { return time.Now().UTC().Format("15:04:05") }
func randPort() int   { return rand.Intn(65535-1024) + 1024 }
