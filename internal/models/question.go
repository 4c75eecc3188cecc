package models

import "time"

// Question is a paid research question backed by escrowed funds.
type Question struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Text             string     `gorm:"type:text;not null" json:"text"`
	Sector           string     `gorm:"size:128" json:"sector"`
	EscrowAmount     float64    `gorm:"not null" json:"escrow_amount"`
	Status           string     `gorm:"size:32;not null" json:"status"`
	AssignedExpertID *uint      `json:"assigned_expert_id"`
	AssignmentDue    *time.Time `json:"assignment_due"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

const (
	// QuestionStatusOpen indicates the question has no expert queue yet.
	QuestionStatusOpen = "open"
	// QuestionStatusAssigned indicates one expert currently holds the question.
	QuestionStatusAssigned = "assigned"
	// QuestionStatusAnswered indicates a paid answer exists for the question.
	QuestionStatusAnswered = "answered"
	// QuestionStatusNoExperts indicates every queued candidate declined or timed out.
	QuestionStatusNoExperts = "no_experts_available"
)

var questionTransitions = map[string][]string{
	QuestionStatusOpen:     {QuestionStatusAssigned, QuestionStatusNoExperts},
	QuestionStatusAssigned: {QuestionStatusAssigned, QuestionStatusAnswered, QuestionStatusNoExperts},
}

// CanTransition reports whether moving the question to the target status is legal.
func (q Question) CanTransition(target string) bool {
	for _, allowed := range questionTransitions[q.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsResolved reports whether the question reached a terminal state.
func (q Question) IsResolved() bool {
	return q.Status == QuestionStatusAnswered || q.Status == QuestionStatusNoExperts
}
