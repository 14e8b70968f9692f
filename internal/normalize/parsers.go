package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// parsedPayload is what a payloadParser extracts from one message.
type parsedPayload struct {
	Timestamp time.Time
	Fields    map[string]string
}

// jsonParser handles api and audit payloads, which are Kubernetes audit
// events serialized as JSON. It flattens a fixed allowlist of fields;
// everything else in the event stays available through the raw message.
type jsonParser struct{}

// auditTimestampKeys are tried in order. stageTimestamp is closest to when
// the event actually completed.
var auditTimestampKeys = []string{"stageTimestamp", "requestReceivedTimestamp", "timestamp", "time"}

func (jsonParser) Parse(message string) parsedPayload {
	var payload map[string]any
	if err := json.Unmarshal([]byte(message), &payload); err != nil {
		return parsedPayload{}
	}

	var out parsedPayload
	for _, key := range auditTimestampKeys {
		if s, ok := payload[key].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				out.Timestamp = ts
				break
			}
		}
	}

	fields := make(map[string]string)
	putString(fields, "verb", payload, "verb")
	putString(fields, "uri", payload, "requestURI")
	putString(fields, "stage", payload, "stage")
	putString(fields, "level", payload, "level")
	putString(fields, "userAgent", payload, "userAgent")
	putString(fields, "user", payload, "user", "username")
	putString(fields, "resource", payload, "objectRef", "resource")
	putString(fields, "namespace", payload, "objectRef", "namespace")
	putString(fields, "name", payload, "objectRef", "name")
	putString(fields, "reason", payload, "responseStatus", "reason")

	if code, ok := dig(payload, "responseStatus", "code"); ok {
		if n, ok := code.(float64); ok {
			fields["code"] = fmt.Sprintf("%d", int(n))
		}
	}
	if ips, ok := payload["sourceIPs"].([]any); ok && len(ips) > 0 {
		if ip, ok := ips[0].(string); ok {
			fields["sourceIP"] = ip
		}
	}

	if len(fields) > 0 {
		out.Fields = fields
	}
	return out
}

// putString copies a nested string value into fields under name, if present.
func putString(fields map[string]string, name string, payload map[string]any, path ...string) {
	v, ok := dig(payload, path...)
	if !ok {
		return
	}
	if s, ok := v.(string); ok && s != "" {
		fields[name] = s
	}
}

// dig walks a nested map by key path.
func dig(payload map[string]any, path ...string) (any, bool) {
	var cur any = payload
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// klogParser handles authenticator, controller-manager, and scheduler lines,
// which use the klog header format:
//
//	I0213 14:00:05.123456       1 controller.go:123] message
//
// Some authenticator builds emit logfmt instead (time="..." level=... msg=...),
// so that shape is tried second.
type klogParser struct{}

var (
	klogHeaderRe = regexp.MustCompile(`^([IWEF])(\d{2})(\d{2})\s+(\d{2}):(\d{2}):(\d{2})\.(\d{6})\s+\d+\s+(\S+\.go:\d+)\]`)
	logfmtTimeRe = regexp.MustCompile(`\btime="([^"]+)"`)
	logfmtLvlRe  = regexp.MustCompile(`\blevel=(\w+)`)
)

var klogSeverities = map[string]string{
	"I": "info",
	"W": "warning",
	"E": "error",
	"F": "fatal",
}

func (klogParser) Parse(message string) parsedPayload {
	if m := klogHeaderRe.FindStringSubmatch(message); m != nil {
		ts := klogTimestamp(m[2], m[3], m[4], m[5], m[6], m[7])
		return parsedPayload{
			Timestamp: ts,
			Fields: map[string]string{
				"severity": klogSeverities[m[1]],
				"source":   m[8],
			},
		}
	}

	if m := logfmtTimeRe.FindStringSubmatch(message); m != nil {
		var out parsedPayload
		if ts, err := time.Parse(time.RFC3339, m[1]); err == nil {
			out.Timestamp = ts
		}
		if lvl := logfmtLvlRe.FindStringSubmatch(message); lvl != nil {
			out.Fields = map[string]string{"severity": lvl[1]}
		}
		return out
	}

	return parsedPayload{}
}

// klogTimestamp reconstructs a timestamp from a klog header, which carries
// no year. The current year is assumed; a result more than a day in the
// future means the line straddled a year boundary.
func klogTimestamp(month, day, hour, minute, sec, micro string) time.Time {
	ts, err := time.Parse("2006 0102 15:04:05.000000 MST",
		fmt.Sprintf("%d %s%s %s:%s:%s.%s UTC", time.Now().UTC().Year(), month, day, hour, minute, sec, micro))
	if err != nil {
		return time.Time{}
	}
	if ts.After(time.Now().UTC().Add(24 * time.Hour)) {
		ts = ts.AddDate(-1, 0, 0)
	}
	return ts
}

// rawParser is the fallback for unknown categories; it extracts nothing.
type rawParser struct{}

func (rawParser) Parse(string) parsedPayload { return parsedPayload{} }
