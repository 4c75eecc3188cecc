package dto

import (
	"time"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// TransactionResponse is returned to API clients when viewing settlements.
type TransactionResponse struct {
	ID             uint       `json:"id"`
	AnswerID       uint       `json:"answer_id"`
	TotalAmount    float64    `json:"total_amount"`
	ExpertAmount   float64    `json:"expert_amount"`
	PlatformAmount float64    `json:"platform_amount"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewTransactionResponse converts a PaymentTransaction model into a DTO.
func NewTransactionResponse(model models.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		ID:             model.ID,
		AnswerID:       model.AnswerID,
		TotalAmount:    model.TotalAmount,
		ExpertAmount:   model.ExpertAmount,
		PlatformAmount: model.PlatformAmount,
		Status:         model.Status,
		ErrorMessage:   model.ErrorMessage,
		ProcessedAt:    model.ProcessedAt,
		CreatedAt:      model.CreatedAt,
	}
}
