package models

import "time"

// QueueEntry is one (question, expert) slot in a question's ranked candidate list.
// Position is fixed at insertion; escalation walks positions upward, it never reorders.
type QueueEntry struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	QuestionID     uint       `gorm:"not null;index:idx_queue_question" json:"question_id"`
	ExpertID       uint       `gorm:"not null" json:"expert_id"`
	Position       int        `gorm:"not null" json:"position"`
	RelevanceScore int        `gorm:"not null" json:"relevance_score"`
	Status         string     `gorm:"size:32;not null" json:"status"`
	AssignedAt     *time.Time `json:"assigned_at"`
	RespondedAt    *time.Time `json:"responded_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	// QueueEntryStatusWaiting indicates the expert has not been offered the question yet.
	QueueEntryStatusWaiting = "waiting"
	// QueueEntryStatusAssigned indicates the expert currently holds the question.
	QueueEntryStatusAssigned = "assigned"
	// QueueEntryStatusDeclined indicates the expert turned the question down.
	QueueEntryStatusDeclined = "declined"
	// QueueEntryStatusExpired indicates the response window lapsed without a reply.
	QueueEntryStatusExpired = "expired"
)

var queueEntryTransitions = map[string][]string{
	QueueEntryStatusWaiting:  {QueueEntryStatusAssigned},
	QueueEntryStatusAssigned: {QueueEntryStatusDeclined, QueueEntryStatusExpired},
}

// CanTransition reports whether moving the entry to the target status is legal.
func (e QueueEntry) CanTransition(target string) bool {
	for _, allowed := range queueEntryTransitions[e.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}
