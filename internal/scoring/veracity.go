package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/veriq-app/veriq-go-api/pkg/ai"
)

// Fixed dimension weights, in percent. They sum to 100.
const (
	identityWeight      = 15
	profileMatchWeight  = 15
	answerQualityWeight = 20
	documentWeight      = 15
	contradictionWeight = 20
	corroborationWeight = 15
)

// fallbackScoreCeiling caps every heuristic sub-score when the reasoning
// service is unreachable, so a defaulted assessment can never clear the
// payment gate on its own.
const fallbackScoreCeiling = 60

// VeracityInput bundles the artefacts judged by the veracity gate.
type VeracityInput struct {
	QuestionText   string
	QuestionSector string
	AnswerContent  string
	Sources        []string
	DocumentURLs   []string
	ExpertName     string
	ExpertEmployer string
	ExpertIndustry string
	ExpertTags     []string
}

// VeracityResult is the six-dimension verdict plus the weighted overall score.
type VeracityResult struct {
	Identity      ai.Dimension
	ProfileMatch  ai.Dimension
	AnswerQuality ai.Dimension
	Documents     ai.Dimension
	Contradiction ai.Dimension
	Corroboration ai.Dimension
	Overall       int
	Degraded      bool
}

// Veracity computes the six sub-scores and the weighted overall score. The
// assessor call may fail; the result then falls back to conservative local
// heuristics and is marked Degraded. This function never returns an error.
func Veracity(ctx context.Context, input VeracityInput, assessor ai.Assessor) VeracityResult {
	var result VeracityResult

	assessment, err := assess(ctx, input, assessor)
	if err != nil {
		result = heuristicResult(input)
		result.Degraded = true
	} else {
		result = VeracityResult{
			Identity:      assessment.Identity,
			ProfileMatch:  assessment.ProfileMatch,
			AnswerQuality: assessment.AnswerQuality,
			Documents:     assessment.Documents,
			Contradiction: assessment.Contradiction,
			Corroboration: assessment.Corroboration,
		}
	}

	clamp(&result.Identity)
	clamp(&result.ProfileMatch)
	clamp(&result.AnswerQuality)
	clamp(&result.Documents)
	clamp(&result.Contradiction)
	clamp(&result.Corroboration)

	weighted := result.Identity.Score*identityWeight +
		result.ProfileMatch.Score*profileMatchWeight +
		result.AnswerQuality.Score*answerQualityWeight +
		result.Documents.Score*documentWeight +
		result.Contradiction.Score*contradictionWeight +
		result.Corroboration.Score*corroborationWeight

	result.Overall = weighted / 100
	if result.Overall < 0 {
		result.Overall = 0
	}
	if result.Overall > 100 {
		result.Overall = 100
	}

	return result
}

func assess(ctx context.Context, input VeracityInput, assessor ai.Assessor) (ai.AssessmentResult, error) {
	if assessor == nil {
		return ai.AssessmentResult{}, fmt.Errorf("no assessor configured")
	}

	return assessor.Assess(ctx, ai.AssessmentInput{
		QuestionText:   input.QuestionText,
		AnswerContent:  input.AnswerContent,
		Sources:        input.Sources,
		DocumentURLs:   input.DocumentURLs,
		ExpertName:     input.ExpertName,
		ExpertEmployer: input.ExpertEmployer,
		ExpertIndustry: input.ExpertIndustry,
		ExpertTags:     input.ExpertTags,
	})
}

// heuristicResult derives conservative sub-scores from locally observable
// signal only. Every dimension is capped below the payment threshold.
func heuristicResult(input VeracityInput) VeracityResult {
	evidence := "reasoning service unavailable; conservative default applied"

	identity := 0
	if input.ExpertName != "" {
		identity += 20
	}
	if input.ExpertEmployer != "" {
		identity += 20
	}
	if input.ExpertIndustry != "" {
		identity += 10
	}

	profile := 0
	if input.QuestionSector != "" && strings.EqualFold(input.QuestionSector, input.ExpertIndustry) {
		profile = 50
	}
	profile += 5 * len(input.ExpertTags)

	quality := len(input.AnswerContent) / 50
	quality += 10 * len(input.Sources)

	documents := 15 * len(input.DocumentURLs)

	return VeracityResult{
		Identity:      ai.Dimension{Score: capped(identity), Evidence: evidence},
		ProfileMatch:  ai.Dimension{Score: capped(profile), Evidence: evidence},
		AnswerQuality: ai.Dimension{Score: capped(quality), Evidence: evidence},
		Documents:     ai.Dimension{Score: capped(documents), Evidence: evidence},
		Contradiction: ai.Dimension{Score: 50, Evidence: evidence, Flags: []string{"unverified"}},
		Corroboration: ai.Dimension{Score: 0, Evidence: evidence, Flags: []string{"unverified"}},
	}
}

func capped(score int) int {
	if score > fallbackScoreCeiling {
		return fallbackScoreCeiling
	}
	if score < 0 {
		return 0
	}
	return score
}

func clamp(d *ai.Dimension) {
	if d.Score < 0 {
		d.Score = 0
	}
	if d.Score > 100 {
		d.Score = 100
	}
}
