// Package scoring contains the pure scoring functions shared by the queue
// engine and the settlement engine. Nothing in this package touches storage
// or the network; collaborator results arrive as plain inputs.
package scoring

import (
	"sort"
	"strings"

	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/pkg/ai"
)

// Relevance factor weights. The breakdown map always reconciles to the total.
const (
	companyMatchPoints   = 30
	industryMatchPoints  = 20
	expertisePointsPer   = 5
	expertisePointsCap   = 20
	geographyMatchPoints = 10

	seniorityExactPoints    = 10
	seniorityOverPoints     = 8
	seniorityOneUnderPoints = 4

	performancePointsMax = 5
	experiencePointsCap  = 5
)

// Relevance scores how well an expert fits a question's extracted requirements.
// Deterministic: identical inputs always produce the identical total and breakdown.
func Relevance(expert models.Expert, entities ai.Extraction) (int, map[string]int) {
	breakdown := map[string]int{
		"company":     companyScore(expert.Employer, entities.Companies),
		"industry":    industryScore(expert.Industry, entities.Industries),
		"expertise":   expertiseScore(expert.Tags(), entities),
		"geography":   geographyScore(expert.Geography, entities.Geography),
		"seniority":   seniorityScore(expert.YearsExperience, entities.SeniorityRequired),
		"performance": performanceScore(expert),
		"experience":  experienceScore(expert.AnswerCount),
	}

	total := 0
	keys := make([]string, 0, len(breakdown))
	for key := range breakdown {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		total += breakdown[key]
	}

	return total, breakdown
}

func companyScore(employer string, companies []string) int {
	if employer == "" {
		return 0
	}

	lowered := strings.ToLower(employer)
	for _, company := range companies {
		candidate := strings.ToLower(strings.TrimSpace(company))
		if candidate == "" {
			continue
		}
		if strings.Contains(lowered, candidate) || strings.Contains(candidate, lowered) {
			return companyMatchPoints
		}
	}
	return 0
}

func industryScore(industry string, industries []string) int {
	if industry == "" {
		return 0
	}

	for _, candidate := range industries {
		if strings.EqualFold(strings.TrimSpace(candidate), industry) {
			return industryMatchPoints
		}
	}
	return 0
}

func expertiseScore(tags []string, entities ai.Extraction) int {
	wanted := make(map[string]struct{}, len(entities.Topics)+1)
	for _, topic := range entities.Topics {
		wanted[strings.ToLower(strings.TrimSpace(topic))] = struct{}{}
	}
	if entities.FunctionalExpertise != "" {
		wanted[strings.ToLower(entities.FunctionalExpertise)] = struct{}{}
	}

	score := 0
	for _, tag := range tags {
		if _, ok := wanted[strings.ToLower(strings.TrimSpace(tag))]; ok {
			score += expertisePointsPer
		}
	}
	if score > expertisePointsCap {
		score = expertisePointsCap
	}
	return score
}

func geographyScore(geography, wanted string) int {
	if geography == "" || wanted == "" {
		return 0
	}
	if strings.EqualFold(geography, wanted) {
		return geographyMatchPoints
	}
	return 0
}

// seniorityLevel maps a requirement keyword to an ordered tier. Tier 0 means
// the requirement is unknown and the factor contributes nothing.
func seniorityLevel(requirement string) int {
	switch strings.ToLower(strings.TrimSpace(requirement)) {
	case "analyst", "junior":
		return 1
	case "senior":
		return 2
	case "manager":
		return 3
	case "director":
		return 4
	case "vp":
		return 5
	case "executive", "c-suite":
		return 6
	default:
		return 0
	}
}

// expertLevel derives a seniority tier from years of experience.
func expertLevel(years int) int {
	switch {
	case years >= 20:
		return 6
	case years >= 15:
		return 5
	case years >= 10:
		return 4
	case years >= 7:
		return 3
	case years >= 4:
		return 2
	default:
		return 1
	}
}

func seniorityScore(years int, requirement string) int {
	required := seniorityLevel(requirement)
	if required == 0 {
		return 0
	}

	actual := expertLevel(years)
	switch {
	case actual == required:
		return seniorityExactPoints
	case actual > required:
		return seniorityOverPoints
	case actual == required-1:
		return seniorityOneUnderPoints
	default:
		return 0
	}
}

func performanceScore(expert models.Expert) int {
	mean := (expert.AccuracyRate + expert.ResponseRate + expert.VerificationRate) / 3
	if mean < 0 {
		mean = 0
	}
	if mean > 1 {
		mean = 1
	}
	return int(mean * performancePointsMax)
}

func experienceScore(answerCount int) int {
	if answerCount > experiencePointsCap {
		return experiencePointsCap
	}
	if answerCount < 0 {
		return 0
	}
	return answerCount
}
