package dto

import (
	"time"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// QueueEntryResponse is returned when viewing a question's candidate queue.
type QueueEntryResponse struct {
	ID             uint       `json:"id"`
	QuestionID     uint       `json:"question_id"`
	ExpertID       uint       `json:"expert_id"`
	Position       int        `json:"position"`
	RelevanceScore int        `json:"relevance_score"`
	Status         string     `json:"status"`
	AssignedAt     *time.Time `json:"assigned_at"`
	RespondedAt    *time.Time `json:"responded_at"`
}

// AssignmentResponse describes the active assignment handed to an expert.
type AssignmentResponse struct {
	QuestionID uint      `json:"question_id"`
	ExpertID   uint      `json:"expert_id"`
	Deadline   time.Time `json:"deadline"`
}

// NewQueueEntryResponse converts a QueueEntry model into a DTO.
func NewQueueEntryResponse(model models.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:             model.ID,
		QuestionID:     model.QuestionID,
		ExpertID:       model.ExpertID,
		Position:       model.Position,
		RelevanceScore: model.RelevanceScore,
		Status:         model.Status,
		AssignedAt:     model.AssignedAt,
		RespondedAt:    model.RespondedAt,
	}
}

// NewQueueEntryResponseSlice converts queue entry models into DTOs.
func NewQueueEntryResponseSlice(entries []models.QueueEntry) []QueueEntryResponse {
	responses := make([]QueueEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewQueueEntryResponse(entry))
	}

	return responses
}
