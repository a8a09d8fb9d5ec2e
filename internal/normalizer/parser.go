// Package normalizer turns RawEvents into structured NormalizedEvents
// through a pluggable vendor Parser, invoked by the Pipeline Scheduler.
package normalizer

import "time"

// ParsedRecord is the structured output of one Parser.Parse call: the
// fields a vendor syslog dialect can plausibly carry, plus the full
// free-form key=value mapping for anything the parser didn't explicitly
// extract.
type ParsedRecord struct {
	Type    string
	Subtype string
	Action  string

	// Level is the log's native syslog-style severity word
	// (emergency|alert|critical|error|warning|notice|info|debug).
	Level string

	Timestamp    time.Time
	HasTimestamp bool

	SrcIP, DstIP     string
	SrcUser, DstUser string
	SrcPort, DstPort int
	Interface, VDOM  string
	PolicyID         string
	SessionID        string
	Message          string

	Fields map[string]string
}

// Parser turns one raw syslog line into a ParsedRecord.
type Parser interface {
	Parse(raw string) (ParsedRecord, error)
}
