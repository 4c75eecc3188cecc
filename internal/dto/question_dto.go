package dto

import (
	"time"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// CreateQuestionRequest describes the payload for posting a new question.
type CreateQuestionRequest struct {
	Text         string  `json:"text" validate:"required,min=20"`
	Sector       string  `json:"sector" validate:"omitempty,max=128"`
	EscrowAmount float64 `json:"escrow_amount" validate:"required,gt=0"`
}

// AssignmentActionRequest identifies the expert acting on an assignment.
type AssignmentActionRequest struct {
	ExpertID uint `json:"expert_id" validate:"required,gt=0"`
}

// QuestionResponse is returned to API clients when viewing questions.
type QuestionResponse struct {
	ID               uint       `json:"id"`
	Text             string     `json:"text"`
	Sector           string     `json:"sector,omitempty"`
	EscrowAmount     float64    `json:"escrow_amount"`
	Status           string     `json:"status"`
	AssignedExpertID *uint      `json:"assigned_expert_id"`
	AssignmentDue    *time.Time `json:"assignment_due"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewQuestionResponse converts a Question model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	return QuestionResponse{
		ID:               model.ID,
		Text:             model.Text,
		Sector:           model.Sector,
		EscrowAmount:     model.EscrowAmount,
		Status:           model.Status,
		AssignedExpertID: model.AssignedExpertID,
		AssignmentDue:    model.AssignmentDue,
		CreatedAt:        model.CreatedAt,
	}
}
