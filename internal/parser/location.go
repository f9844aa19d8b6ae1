package parser

import (
	"regexp"
	"strings"
	"unicode"
)

// Latin location patterns, applied in order. Both are anchored to short
// capture windows so matching stays linear in the input length.
var (
	// "weather in Tokyo", "forecast for New York"
	prepositionPattern = regexp.MustCompile(`(?i)\b(?:in|at|near)\s+([A-Za-z][A-Za-z .'\-]{0,40})`)
	// "Tokyo weather", "San Francisco forecast"
	leadingNamePattern = regexp.MustCompile(`(?i)^\s*([A-Za-z][A-Za-z .'\-]{0,40}?)\s+(?:weather|forecast)\b`)
)

// extractLocations returns the distinct place-name candidates found in the
// query, in discovery order. CJK candidates come from contiguous Han runs
// with domain words stripped from their edges; Latin candidates come from the
// ordered pattern list with a stopword cut. More than one candidate signals
// ambiguity to the confidence scorer.
func extractLocations(text string) []string {
	var candidates []string
	seen := make(map[string]struct{})

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, name)
	}

	for _, run := range hanRuns(text) {
		if name := trimDomainWords(run); validCJKName(name) {
			add(name)
		}
	}

	for _, m := range prepositionPattern.FindAllStringSubmatch(text, -1) {
		add(cutAtStopword(m[1]))
	}
	// Location-then-keyword is the weaker pattern; only consult it when the
	// explicit patterns found nothing.
	if len(candidates) == 0 {
		if m := leadingNamePattern.FindStringSubmatch(text); m != nil {
			add(cutAtStopword(m[1]))
		}
	}

	return candidates
}

// hanRuns splits text into maximal runs of Han characters. Kana and
// punctuation act as separators, so Japanese particles delimit runs.
func hanRuns(text string) []string {
	var runs []string
	var current []rune
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			current = append(current, r)
			continue
		}
		if len(current) > 0 {
			runs = append(runs, string(current))
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, string(current))
	}
	return runs
}

// trimDomainWords strips known weather, time, metric and activity words from
// both edges of a Han run until a fixed point, leaving the presumed place
// name. "沖繩明天天氣預報" reduces to "沖繩".
func trimDomainWords(run string) string {
	for {
		before := run
		for _, w := range cjkStripWords {
			run = strings.TrimPrefix(run, w)
			run = strings.TrimSuffix(run, w)
		}
		if run == before {
			return run
		}
	}
}

// validCJKName accepts candidates of two to eight runes. Single characters
// left over after stripping are almost always noise, not place names.
func validCJKName(name string) bool {
	n := len([]rune(name))
	return n >= 2 && n <= 8
}

// cutAtStopword truncates a Latin capture at its first stopword token, so
// "Tokyo today please" yields "Tokyo" and "surf conditions" yields nothing.
func cutAtStopword(capture string) string {
	var kept []string
	for _, tok := range strings.Fields(capture) {
		trimmed := strings.Trim(tok, ".,!?'’")
		clean := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(trimmed, "'", ""), "’", ""))
		if _, stop := latinStopwords[clean]; stop {
			break
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}
