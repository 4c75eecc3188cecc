package ai

import "context"

// Extraction is the structured requirement profile pulled out of a question's text.
type Extraction struct {
	Companies           []string `json:"companies"`
	Industries          []string `json:"industries"`
	Topics              []string `json:"topics"`
	Geography           string   `json:"geography"`
	SeniorityRequired   string   `json:"seniority_required"`
	FunctionalExpertise string   `json:"functional_expertise"`
}

// Empty reports whether the extraction carries no usable signal.
func (e Extraction) Empty() bool {
	return len(e.Companies) == 0 && len(e.Industries) == 0 && len(e.Topics) == 0 &&
		e.Geography == "" && e.SeniorityRequired == "" && e.FunctionalExpertise == ""
}

// Extractor pulls entities and requirements out of raw question text.
type Extractor interface {
	Extract(ctx context.Context, questionText string) (Extraction, error)
}

// AssessmentInput carries everything the reasoning service needs to judge an answer.
type AssessmentInput struct {
	QuestionText   string
	AnswerContent  string
	Sources        []string
	DocumentURLs   []string
	ExpertName     string
	ExpertEmployer string
	ExpertIndustry string
	ExpertTags     []string
}

// Dimension is one judged facet of an assessment: a 0-100 score plus the
// evidence the model actually found and any red flags it raised.
type Dimension struct {
	Score    int      `json:"score"`
	Evidence string   `json:"evidence"`
	Flags    []string `json:"flags,omitempty"`
}

// AssessmentResult is the per-dimension verdict returned by the reasoning service.
// A partial result (some dimensions zero-valued) is valid; callers apply defaults.
type AssessmentResult struct {
	Identity      Dimension              `json:"identity"`
	ProfileMatch  Dimension              `json:"profile_match"`
	AnswerQuality Dimension              `json:"answer_quality"`
	Documents     Dimension              `json:"documents"`
	Contradiction Dimension              `json:"contradiction"`
	Corroboration Dimension              `json:"corroboration"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// Assessor is a reasoning service capable of judging answer veracity.
type Assessor interface {
	Assess(ctx context.Context, input AssessmentInput) (AssessmentResult, error)
}
