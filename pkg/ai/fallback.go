package ai

import (
	"context"
	"strings"
)

// FallbackExtractor is a deterministic keyword scanner used when the
// reasoning service is unreachable. Matches are weaker than model output
// but ranking must keep working on them.
type FallbackExtractor struct{}

var fallbackIndustries = []string{
	"fintech", "banking", "insurance", "healthcare", "pharma", "biotech",
	"energy", "logistics", "retail", "telecom", "semiconductor", "automotive",
	"aerospace", "agriculture", "construction", "mining", "media", "gaming",
	"cybersecurity", "saas", "ecommerce",
}

var fallbackGeographies = []string{
	"north america", "latin america", "europe", "emea", "apac", "asia",
	"middle east", "africa", "united states", "china", "india", "japan",
	"germany", "brazil", "united kingdom",
}

var fallbackSeniorities = []string{
	"c-suite", "executive", "vp", "director", "manager", "senior", "analyst",
}

// Extract scans the question text for known industry, geography and
// seniority keywords. Topics are the remaining capitalised multi-word runs.
func (FallbackExtractor) Extract(_ context.Context, questionText string) (Extraction, error) {
	lowered := strings.ToLower(questionText)

	var result Extraction
	for _, industry := range fallbackIndustries {
		if strings.Contains(lowered, industry) {
			result.Industries = append(result.Industries, industry)
		}
	}

	for _, geo := range fallbackGeographies {
		if strings.Contains(lowered, geo) {
			result.Geography = geo
			break
		}
	}

	for _, seniority := range fallbackSeniorities {
		if strings.Contains(lowered, seniority) {
			result.SeniorityRequired = seniority
			break
		}
	}

	result.Topics = capitalisedRuns(questionText)

	return result, nil
}

// capitalisedRuns collects runs of consecutive capitalised words, which in
// practice pick up company and product names from question prose.
func capitalisedRuns(text string) []string {
	words := strings.Fields(text)

	var runs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, strings.Join(current, " "))
			current = nil
		}
	}

	for i, word := range words {
		trimmed := strings.Trim(word, ".,;:!?()\"'")
		if trimmed == "" {
			flush()
			continue
		}
		first := rune(trimmed[0])
		// Skip sentence-initial words: they capitalise regardless of meaning.
		if first >= 'A' && first <= 'Z' && i > 0 && !strings.ContainsAny(words[i-1], ".!?") {
			current = append(current, trimmed)
			continue
		}
		flush()
	}
	flush()

	if len(runs) > 8 {
		runs = runs[:8]
	}

	return runs
}
