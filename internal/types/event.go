package types

import "time"

// RawEvent is a security event exactly as the upstream transport returned it.
// Keys differ between the REST listings and the GraphQL analytics dataset.
type RawEvent map[string]any

// NormalizedEvent is the fixed-shape view of a RawEvent. Empty strings mean
// the field was absent upstream.
type NormalizedEvent struct {
	Action    string
	Source    string
	ClientIP  string
	Country   string
	Rule      string
	RayID     string
	Timestamp time.Time // zero when no candidate field parsed
}

// HasTimestamp reports whether the event carried a parseable timestamp.
func (e NormalizedEvent) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// Zone is a monitored Cloudflare zone
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Notification is one rendered security event, ready for dispatch
type Notification struct {
	ID       string
	ZoneID   string
	ZoneName string
	Title    string
	Body     string
	Embed    *Embed
}

// Embed is the structured webhook payload for a notification
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is a single name/value row of an Embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
