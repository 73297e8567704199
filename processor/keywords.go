package processor

import (
	"regexp"
	"strings"
)

// Enforcement-activity keywords. Single tokens are matched with word
// boundaries ("ice" matches "notice" and "service" without them); phrases
// are specific enough for substring matching.
var enforcementExactRE = regexp.MustCompile(
	`(?i)\b(?:ice|i\.c\.e\.|ero|cbp|raid|raids|detention|detained|agents|enforcement|deportation|immigration)\b`,
)

var enforcementPhrases = []string{
	"border patrol",
	"la migra",
	"immigration and customs enforcement",
	"immigration enforcement",
	"enforcement and removal",
	"deportation raid",
	"immigration raid",
	"immigration arrest",
	"federal agents",
	"detention center",
	"immigration checkpoint",
	"ice agents",
	"ice raid",
	"ice officers",
	"immigration officers",
	"customs enforcement",
	"removal operations",
	"ice vehicle",
	"unmarked van",
	"unmarked suv",
	"ice sighting",
	"ice spotted",
	"ice activity",
	"immigration sweep",
	"ice detainer",
}

// Contextual cues that disambiguate a bare "ice" match from hockey,
// weather, and dessert.
var iceContextRE = regexp.MustCompile(
	`(?i)\b(?:agent|agents|raid|van|vans|checkpoint|officer|officers|vehicle|vehicles|suv|detain|detained|arrest|migra|enforcement|deport)\b`,
)

// Phrases where "ice" is definitely not the agency.
var noiseContextRE = regexp.MustCompile(
	`(?i)\b(?:ice cream|ice fishing|ice skating|icy roads|black ice|ice dam|ice storm|ice hockey|ice rink|dry ice|thin ice|break the ice|ice scraper|ice melt|ice cold|iced coffee|iced tea)\b`,
)

// Real-time activity signals: these phrases indicate CURRENT/ongoing
// activity, not coverage of past events.
var realtimeSignalRE = regexp.MustCompile(
	`(?i)\b(?:right now|happening now|happening|currently|on scene|minutes ago|this morning|just saw|just spotted|spotted at|seen at|heads up|avoid .{0,20}area|stay away from|confirmed sighting|unconfirmed sighting|ice sighting|ice spotted|community alert|rapid response)\b`,
)

// Retrospective and news-article markers: court cases, policy coverage,
// past-tense reporting.
var newsPatternRE = regexp.MustCompile(
	`(?i)\b(?:` +
		`arrested for|charged with|pleaded guilty|found guilty|sentenced to|` +
		`indicted|convicted of|faces charges|facing charges|` +
		`court documents|court ruling|court order|ruling|lawsuit|` +
		`appeals court|federal court|supreme court|district court|` +
		`was deported|were deported|been deported|` +
		`executive order|policy|legislation|lawmakers|` +
		`announced|press conference|in a statement|released a statement|` +
		`according to .{0,30}report|study finds|data shows|` +
		`fiscal year|annual report|statistics show|` +
		`officials said|sources say|` +
		`earlier today|yesterday|last week|last month|last year|` +
		`opinion:|editorial:|analysis:|commentary:` +
		`)\b`,
)

var pastDateRE = regexp.MustCompile(
	`(?i)\b(?:on (?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2}|in (?:19|20)\d{2})\b`,
)

// MatchEnforcementKeywords returns the enforcement keywords found in text,
// lowercased.
func MatchEnforcementKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matches []string
	for _, m := range enforcementExactRE.FindAllString(lower, -1) {
		matches = append(matches, m)
	}
	for _, p := range enforcementPhrases {
		if strings.Contains(lower, p) {
			matches = append(matches, p)
		}
	}
	return matches
}

// onlyBareICE reports whether every matched keyword is the bare token
// "ice".
func onlyBareICE(matches []string) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m != "ice" {
			return false
		}
	}
	return true
}

// IsEnforcementRelevant applies the keyword relevance rule: at least one
// enforcement keyword, with bare "ice" requiring a contextual cue and no
// noise context overriding it.
func IsEnforcementRelevant(text string) bool {
	matches := MatchEnforcementKeywords(text)
	if len(matches) == 0 {
		return false
	}
	if onlyBareICE(matches) {
		if noiseContextRE.MatchString(text) {
			return false
		}
		if !iceContextRE.MatchString(text) {
			return false
		}
	}
	return true
}

// HasRealtimeSignal reports whether text carries an explicit
// current-activity phrase.
func HasRealtimeSignal(text string) bool {
	return realtimeSignalRE.MatchString(text)
}

// HasNewsPattern reports whether text reads as retrospective news
// coverage rather than a live report.
func HasNewsPattern(text string) bool {
	return newsPatternRE.MatchString(text) || pastDateRE.MatchString(text)
}
