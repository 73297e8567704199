package notifications

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go-icewatch/types"
)

// Embed colors, decimal RGB.
const (
	colorNewHigh   = 0xFF0000 // red: new incident, high confidence
	colorNewMedium = 0xFF4500 // orange-red
	colorNewLow    = 0xFF8C00 // dark orange
	colorUpdate    = 0x3498DB // blue: update to existing incident
)

var sourceLabels = map[string]string{
	"iceout":    "Iceout.org",
	"stopice":   "StopICE.net",
	"bluesky":   "Bluesky",
	"instagram": "Instagram",
	"rss":       "News (RSS)",
}

// webhookPayload is the Discord-compatible webhook body.
type webhookPayload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      embedFooter  `json:"footer"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func confidenceBand(score float64) string {
	switch {
	case score >= 0.7:
		return "HIGH"
	case score >= 0.45:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func sourceLabel(source string) string {
	if label, ok := sourceLabels[source]; ok {
		return label
	}
	return source
}

func excerpt(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) > 120 {
		return text[:120] + "..."
	}
	return text
}

func memberField(r *types.Report, prefix string) embedField {
	value := excerpt(r.Content)
	if r.URL != "" {
		value += fmt.Sprintf("\n[View on %s](%s)", sourceLabel(r.Source), r.URL)
	}
	name := sourceLabel(r.Source)
	if r.Author != "" {
		name += " — " + r.Author
	}
	return embedField{Name: prefix + name, Value: value}
}

// buildNewPayload formats the first alert for an incident: location up
// front, confidence and sources in the summary, one excerpt per member.
func buildNewPayload(cl *types.Cluster, summary string, now time.Time) webhookPayload {
	band := confidenceBand(cl.Confidence)
	color := colorNewLow
	switch band {
	case "HIGH":
		color = colorNewHigh
	case "MEDIUM":
		color = colorNewMedium
	}

	platforms := make([]string, 0, cl.SourceDiversity())
	for source := range cl.SourceSet() {
		platforms = append(platforms, sourceLabel(source))
	}
	sort.Strings(platforms)

	desc := fmt.Sprintf("**%s confidence** | %d reports across %s\nFirst reported: %s",
		band, len(cl.Members), strings.Join(platforms, ", "),
		cl.EarliestObservation().Format("3:04 PM MST"))
	if summary != "" {
		desc = summary + "\n\n" + desc
	}

	e := embed{
		Title:       "ICE ACTIVITY: " + cl.Label,
		Description: desc,
		Color:       color,
		Footer:      embedFooter{Text: "ICE Activity Monitor | Unverified community reporting | Confirm before acting"},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	for i, m := range cl.Members {
		if i >= 6 {
			break
		}
		e.Fields = append(e.Fields, memberField(m, ""))
	}

	return webhookPayload{Username: "ICE Activity Monitor", Embeds: []embed{e}}
}

// buildUpdatePayload formats a follow-up: only the reports that arrived
// since the previous emission are excerpted.
func buildUpdatePayload(cl *types.Cluster, newMembers []*types.Report, now time.Time) webhookPayload {
	desc := fmt.Sprintf("**%d new source(s)** confirming earlier reports\nNow at **%s** confidence | %d total reports",
		len(newMembers), confidenceBand(cl.Confidence), len(cl.Members))

	e := embed{
		Title:       "UPDATE: " + cl.Label,
		Description: desc,
		Color:       colorUpdate,
		Footer:      embedFooter{Text: "ICE Activity Monitor | Unverified community reporting | Confirm before acting"},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	for i, m := range newMembers {
		if i >= 4 {
			break
		}
		e.Fields = append(e.Fields, memberField(m, "NEW: "))
	}

	return webhookPayload{Username: "ICE Activity Monitor", Embeds: []embed{e}}
}
