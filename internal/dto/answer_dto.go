package dto

import (
	"time"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// SubmitAnswerRequest describes the payload for an expert answer submission.
type SubmitAnswerRequest struct {
	QuestionID   uint     `json:"question_id" validate:"required,gt=0"`
	ExpertID     uint     `json:"expert_id" validate:"required,gt=0"`
	Content      string   `json:"content" validate:"required,min=50"`
	Sources      []string `json:"sources" validate:"omitempty,dive,min=3"`
	DocumentURLs []string `json:"document_urls" validate:"omitempty,dive,url"`
}

// RejectAnswerRequest describes an admin rejection.
type RejectAnswerRequest struct {
	Reason     string `json:"reason" validate:"required,min=3"`
	ReviewerID uint   `json:"reviewer_id" validate:"required,gt=0"`
}

// AnswerResponse is returned to API clients when viewing answers.
type AnswerResponse struct {
	ID            uint       `json:"id"`
	QuestionID    uint       `json:"question_id"`
	ExpertID      uint       `json:"expert_id"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	RejectReason  string     `json:"reject_reason,omitempty"`
	ReviewedBy    *uint      `json:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// VeracityResponse serializes the six-dimension verdict for one answer.
type VeracityResponse struct {
	AnswerID           uint   `json:"answer_id"`
	IdentityScore      int    `json:"identity_score"`
	ProfileMatchScore  int    `json:"profile_match_score"`
	AnswerQualityScore int    `json:"answer_quality_score"`
	DocumentScore      int    `json:"document_score"`
	ContradictionScore int    `json:"contradiction_score"`
	CorroborationScore int    `json:"corroboration_score"`
	OverallScore       int    `json:"overall_score"`
	Payable            bool   `json:"payable"`
	ReviewNote         string `json:"review_note,omitempty"`
}

// NewAnswerResponse converts an Answer model into a DTO.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:            model.ID,
		QuestionID:    model.QuestionID,
		ExpertID:      model.ExpertID,
		Content:       model.Content,
		Status:        model.Status,
		PaymentStatus: model.PaymentStatus,
		RejectReason:  model.RejectReason,
		ReviewedBy:    model.ReviewedBy,
		ReviewedAt:    model.ReviewedAt,
		CreatedAt:     model.CreatedAt,
	}
}

// NewVeracityResponse converts a VeracityScore model into a DTO.
func NewVeracityResponse(model models.VeracityScore) VeracityResponse {
	return VeracityResponse{
		AnswerID:           model.AnswerID,
		IdentityScore:      model.IdentityScore,
		ProfileMatchScore:  model.ProfileMatchScore,
		AnswerQualityScore: model.AnswerQualityScore,
		DocumentScore:      model.DocumentScore,
		ContradictionScore: model.ContradictionScore,
		CorroborationScore: model.CorroborationScore,
		OverallScore:       model.OverallScore,
		Payable:            model.Payable(),
		ReviewNote:         model.ReviewNote,
	}
}
