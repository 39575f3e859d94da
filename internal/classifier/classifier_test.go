package classifier

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   types.NormalizedEvent
		want string
	}{
		{"managed challenge", types.NormalizedEvent{Action: "managed_challenge"}, "Managed Challenge"},
		{"upper case", types.NormalizedEvent{Action: "JS_CHALLENGE"}, "JavaScript Challenge"},
		{"source keyword", types.NormalizedEvent{Action: "log", Source: "BotFight"}, "Bot Fight Mode"},
		{"rule keyword", types.NormalizedEvent{Rule: "Rate limiting rule 42"}, "Rate Limit"},
		{"waf", types.NormalizedEvent{Source: "WAF"}, "WAF Rule"},
		{"plain block", types.NormalizedEvent{Action: "block", Rule: "SQLi attempt"}, "Block"},
		{"no match", types.NormalizedEvent{Action: "log", Source: "country"}, "General Security Event"},
		{"empty", types.NormalizedEvent{}, "General Security Event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ev).Label; got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyFirstEntryWins(t *testing.T) {
	// "block" and "botfight" both appear; botfight sits earlier in the table.
	ev := types.NormalizedEvent{Action: "block", Source: "botFight"}
	if got := Classify(ev).Label; got != "Bot Fight Mode" {
		t.Fatalf("Classify() = %q, want Bot Fight Mode", got)
	}

	// firewallmanaged and waf both match.
	ev = types.NormalizedEvent{Source: "firewallManaged", Rule: "waf"}
	if got := Classify(ev).Label; got != "Managed Firewall Rule" {
		t.Fatalf("Classify() = %q, want Managed Firewall Rule", got)
	}
}

func TestColor(t *testing.T) {
	tests := map[string]int{
		"block":             ColorBlock,
		"DENY":              ColorBlock,
		"managed_challenge": ColorChallenge,
		"challenge":         ColorChallenge,
		"log":               ColorDefault,
		"":                  ColorDefault,
		"blocked":           ColorDefault,
	}
	for action, want := range tests {
		if got := Color(action); got != want {
			t.Errorf("Color(%q) = %d, want %d", action, got, want)
		}
	}
}

func TestFormatBlockEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ev := types.NormalizedEvent{
		Action:    "block",
		ClientIP:  "1.2.3.4",
		Rule:      "SQLi attempt",
		Timestamp: ts,
	}

	n := Format("zone-1", "example.com", ev)

	if n.Title != "example.com: block" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.ZoneID != "zone-1" || n.ZoneName != "example.com" {
		t.Errorf("zone = %q/%q", n.ZoneID, n.ZoneName)
	}
	if _, err := uuid.Parse(n.ID); err != nil {
		t.Errorf("ID %q is not a uuid: %v", n.ID, err)
	}
	if n.Body != "Cloudflare - 1.2.3.4 | SQLi attempt" {
		t.Errorf("Body = %q", n.Body)
	}

	e := n.Embed
	if e == nil {
		t.Fatal("Embed is nil")
	}
	if e.Color != ColorBlock {
		t.Errorf("Color = %d", e.Color)
	}
	if e.Description != "Cloudflare security event" {
		t.Errorf("Description = %q", e.Description)
	}
	if e.Timestamp != "2024-05-01T10:00:00Z" {
		t.Errorf("Timestamp = %q", e.Timestamp)
	}

	want := []types.EmbedField{
		{Name: "Client IP", Value: "1.2.3.4", Inline: true},
		{Name: "Country", Value: "Unknown", Inline: true},
		{Name: "Rule", Value: "SQLi attempt"},
		{Name: "Ray ID", Value: "n/a", Inline: true},
		{Name: "Attack Vector", Value: "Block", Inline: true},
		{Name: "Vector Description", Value: "Request was blocked by a firewall or security rule."},
	}
	if len(e.Fields) != len(want) {
		t.Fatalf("got %d fields", len(e.Fields))
	}
	for i := range want {
		if e.Fields[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, e.Fields[i], want[i])
		}
	}
}

func TestFormatFallbacks(t *testing.T) {
	n := Format("z", "z", types.NormalizedEvent{})

	if n.Title != "z: Security event" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Embed.Timestamp != "" {
		t.Errorf("Timestamp = %q, want empty", n.Embed.Timestamp)
	}
	if n.Embed.Fields[0].Value != "Unknown IP" {
		t.Errorf("Client IP = %q", n.Embed.Fields[0].Value)
	}
	if n.Embed.Fields[4].Value != GeneralVector.Label {
		t.Errorf("vector = %q", n.Embed.Fields[4].Value)
	}
	if n.Body != "Cloudflare - Unknown IP" {
		t.Errorf("Body = %q", n.Body)
	}
}

func TestFormatBodyFull(t *testing.T) {
	ev := types.NormalizedEvent{
		Action:   "managed_challenge",
		Source:   "firewallManaged",
		ClientIP: "2001:db8::1",
		Country:  "Germany",
		Rule:     "100015",
		RayID:    "8a1b2c3d4e5f",
	}
	n := Format("z", "shop.example", ev)

	if n.Body != "firewallManaged - 2001:db8::1 (Germany) | 100015 | Ray ID: 8a1b2c3d4e5f" {
		t.Errorf("Body = %q", n.Body)
	}
	if n.Embed.Color != ColorChallenge {
		t.Errorf("Color = %d", n.Embed.Color)
	}
}

func TestFormatIDsAreUnique(t *testing.T) {
	a := Format("z", "z", types.NormalizedEvent{})
	b := Format("z", "z", types.NormalizedEvent{})
	if a.ID == b.ID {
		t.Fatal("notification ids collide")
	}
}
