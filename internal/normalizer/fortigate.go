package normalizer

import (
	"strconv"
	"strings"
	"time"
)

// FortiGateParser parses FortiGate-style key=value syslog lines, e.g.:
//
//	date=2026-08-06 time=10:23:45 devname="FW01" devid="FG100E" logid="0001000014"
//	type="event" subtype="vpn" action="ssl-login-fail" level="warning"
//	srcip=203.0.113.5 srcport=51514 user="jdoe" reason="invalid password"
type FortiGateParser struct{}

func NewFortiGateParser() *FortiGateParser { return &FortiGateParser{} }

func (p *FortiGateParser) Parse(raw string) (ParsedRecord, error) {
	fields := splitKV(raw)

	rec := ParsedRecord{
		Type:      fields["type"],
		Subtype:   fields["subtype"],
		Action:    fields["action"],
		Level:     fields["level"],
		SrcIP:     firstNonEmpty(fields["srcip"], extractParenIP(raw)),
		DstIP:     fields["dstip"],
		SrcUser:   firstNonEmpty(fields["user"], fields["srcuser"]),
		DstUser:   fields["dstuser"],
		Interface: firstNonEmpty(fields["srcintf"], fields["interface"]),
		VDOM:      fields["vd"],
		PolicyID:  fields["policyid"],
		SessionID: fields["sessionid"],
		Message:   firstNonEmpty(fields["msg"], fields["reason"]),
		Fields:    fields,
	}

	if p, err := strconv.Atoi(fields["srcport"]); err == nil {
		rec.SrcPort = p
	}
	if p, err := strconv.Atoi(fields["dstport"]); err == nil {
		rec.DstPort = p
	}

	if fields["date"] != "" && fields["time"] != "" {
		if ts, err := time.Parse("2006-01-02 15:04:05", fields["date"]+" "+fields["time"]); err == nil {
			rec.Timestamp = ts.UTC()
			rec.HasTimestamp = true
		}
	}

	return rec, nil
}

// splitKV tokenizes a key=value line, honoring double-quoted values that
// may themselves contain spaces.
func splitKV(raw string) map[string]string {
	out := make(map[string]string)
	i := 0
	n := len(raw)

	for i < n {
		for i < n && raw[i] == ' ' {
			i++
		}
		start := i
		for i < n && raw[i] != '=' && raw[i] != ' ' {
			i++
		}
		if i >= n || raw[i] != '=' {
			// not a key=value token; skip to next space
			for i < n && raw[i] != ' ' {
				i++
			}
			continue
		}
		key := raw[start:i]
		i++ // skip '='

		var value string
		if i < n && raw[i] == '"' {
			i++
			vstart := i
			for i < n && raw[i] != '"' {
				i++
			}
			value = raw[vstart:i]
			if i < n {
				i++ // skip closing quote
			}
		} else {
			vstart := i
			for i < n && raw[i] != ' ' {
				i++
			}
			value = raw[vstart:i]
		}

		out[strings.ToLower(key)] = value
	}

	return out
}

// extractParenIP pulls an IP out of a UI-style "...(1.2.3.4)" suffix, the
// fallback source when no explicit srcip field is present.
func extractParenIP(raw string) string {
	open := strings.LastIndex(raw, "(")
	shut := strings.LastIndex(raw, ")")
	if open < 0 || shut <= open {
		return ""
	}
	candidate := raw[open+1 : shut]
	if strings.Count(candidate, ".") == 3 {
		return candidate
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
