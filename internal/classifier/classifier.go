package classifier

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

// Embed colors
const (
	ColorBlock     = 15158332
	ColorChallenge = 16753920
	ColorDefault   = 15105570
)

// Vector is the attack-vector label assigned to an event
type Vector struct {
	Label       string
	Description string
}

type vectorRule struct {
	keyword string
	vector  Vector
}

var botFight = Vector{"Bot Fight Mode", "Cloudflare detected bot-like traffic and applied bot mitigation."}

// vectorTable is matched in order, first hit wins. Specific mitigations come
// before the generic "block" keyword.
var vectorTable = []vectorRule{
	{"managed_challenge", Vector{"Managed Challenge", "Cloudflare issued an adaptive challenge to verify the client is not automated."}},
	{"js_challenge", Vector{"JavaScript Challenge", "Browser must execute JavaScript to pass; blocks many basic bots."}},
	{"captcha", Vector{"CAPTCHA Challenge", "User-facing CAPTCHA was required to proceed."}},
	{"botfight", botFight},
	{"bot_fight_mode", botFight},
	{"link_maze", Vector{"Link Maze", "Hidden links were injected to slow down scrapers and bots."}},
	{"rate", Vector{"Rate Limit", "Traffic exceeded a rate-limiting threshold."}},
	{"firewallmanaged", Vector{"Managed Firewall Rule", "Cloudflare managed rules triggered a block or challenge."}},
	{"waf", Vector{"WAF Rule", "Web Application Firewall rule matched the request."}},
	{"block", Vector{"Block", "Request was blocked by a firewall or security rule."}},
}

// GeneralVector is returned when no keyword matches
var GeneralVector = Vector{
	Label:       "General Security Event",
	Description: "Cloudflare detected a security event. Review the rule message and Ray ID for details.",
}

// Classify labels an event by keyword over its action, source and rule text.
func Classify(ev types.NormalizedEvent) Vector {
	haystack := strings.ToLower(strings.Join([]string{ev.Action, ev.Source, ev.Rule}, " "))
	for _, r := range vectorTable {
		if strings.Contains(haystack, r.keyword) {
			return r.vector
		}
	}
	return GeneralVector
}

// Color picks the embed color for an action
func Color(action string) int {
	a := strings.ToLower(action)
	switch {
	case strings.Contains(a, "challenge"):
		return ColorChallenge
	case a == "block" || a == "deny":
		return ColorBlock
	default:
		return ColorDefault
	}
}

// Format renders ev as a Notification for the given zone
func Format(zoneID, zoneName string, ev types.NormalizedEvent) types.Notification {
	action := orDefault(ev.Action, "Security event")
	source := orDefault(ev.Source, "Cloudflare")
	clientIP := orDefault(ev.ClientIP, "Unknown IP")
	vector := Classify(ev)

	embed := &types.Embed{
		Title:       zoneName + ": " + action,
		Description: source + " security event",
		Color:       Color(ev.Action),
		Fields: []types.EmbedField{
			{Name: "Client IP", Value: clientIP, Inline: true},
			{Name: "Country", Value: orDefault(ev.Country, "Unknown"), Inline: true},
			{Name: "Rule", Value: orDefault(ev.Rule, "n/a")},
			{Name: "Ray ID", Value: orDefault(ev.RayID, "n/a"), Inline: true},
			{Name: "Attack Vector", Value: vector.Label, Inline: true},
			{Name: "Vector Description", Value: vector.Description},
		},
	}
	if ev.HasTimestamp() {
		embed.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339)
	}

	return types.Notification{
		ID:       uuid.NewString(),
		ZoneID:   zoneID,
		ZoneName: zoneName,
		Title:    embed.Title,
		Body:     body(source, clientIP, ev),
		Embed:    embed,
	}
}

// body is the one-line text used by channels without structured fields
func body(source, clientIP string, ev types.NormalizedEvent) string {
	head := source + " - " + clientIP
	if ev.Country != "" {
		head += " (" + ev.Country + ")"
	}
	parts := []string{head}
	if ev.Rule != "" {
		parts = append(parts, ev.Rule)
	}
	if ev.RayID != "" {
		parts = append(parts, "Ray ID: "+ev.RayID)
	}
	return strings.Join(parts, " | ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
