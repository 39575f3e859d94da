package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Candidate keys, in priority order, for each normalized field.
var (
	actionKeys    = []string{"action", "outcome"}
	sourceKeys    = []string{"source", "kind", "service"}
	clientIPKeys  = []string{"client_ip", "ip"}
	countryKeys   = []string{"client_country_name", "country"}
	ruleKeys      = []string{"rule_message", "rule_id"}
	rayIDKeys     = []string{"ray_id", "rayid"}
	timestampKeys = []string{"occurred_at", "datetime", "timestamp", "time"}
)

// Normalize maps the heterogeneous keys of a RawEvent onto a NormalizedEvent.
func Normalize(raw RawEvent) NormalizedEvent {
	return NormalizedEvent{
		Action:    pickStr(raw, actionKeys...),
		Source:    pickStr(raw, sourceKeys...),
		ClientIP:  pickStr(raw, clientIPKeys...),
		Country:   pickStr(raw, countryKeys...),
		Rule:      pickStr(raw, ruleKeys...),
		RayID:     pickStr(raw, rayIDKeys...),
		Timestamp: EventTimestamp(raw),
	}
}

// EventTimestamp returns the first candidate timestamp field that parses,
// or the zero time.
func EventTimestamp(raw RawEvent) time.Time {
	for _, k := range timestampKeys {
		s, ok := raw[k].(string)
		if !ok {
			continue
		}
		if t, err := ParseTimestamp(s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseTimestamp parses the ISO-8601 variants Cloudflare emits and returns UTC.
// Timestamps without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp: %q", s)
}

// FormatTimestamp renders t the way cursors and embeds store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// pickStr returns the first non-empty value among keys. Non-string scalars
// (numeric rule ids) are stringified.
func pickStr(m RawEvent, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch vv := v.(type) {
		case string:
			s = vv
		case float64:
			s = strconv.FormatFloat(vv, 'f', -1, 64)
		case bool, int, int64:
			s = fmt.Sprint(vv)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
