package models

import (
	"time"

	"gorm.io/datatypes"
)

// Answer is an expert's submission against an assigned question.
type Answer struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	QuestionID    uint           `gorm:"not null;index" json:"question_id"`
	ExpertID      uint           `gorm:"not null" json:"expert_id"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Sources       datatypes.JSON `gorm:"type:json" json:"sources"`
	DocumentURLs  datatypes.JSON `gorm:"type:json" json:"document_urls"`
	Status        string         `gorm:"size:32;not null" json:"status"`
	PaymentStatus string         `gorm:"size:32;not null" json:"payment_status"`
	RejectReason  string         `gorm:"type:text" json:"reject_reason"`
	ReviewedBy    *uint          `json:"reviewed_by"`
	ReviewedAt    *time.Time     `json:"reviewed_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Question      Question       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
	Expert        Expert         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"expert"`
}

const (
	// AnswerStatusUnderReview indicates the answer awaits the veracity gate and admin review.
	AnswerStatusUnderReview = "under_review"
	// AnswerStatusApproved indicates an admin accepted the answer for payment.
	AnswerStatusApproved = "approved"
	// AnswerStatusRejected indicates the answer was refused, by the gate or by an admin.
	AnswerStatusRejected = "rejected"

	// PaymentStatusPending indicates no settlement decision has been made.
	PaymentStatusPending = "pending"
	// PaymentStatusPaid indicates the expert share has been credited.
	PaymentStatusPaid = "paid"
	// PaymentStatusRejected indicates the answer will never be paid.
	PaymentStatusRejected = "rejected"
)

var answerTransitions = map[string][]string{
	AnswerStatusUnderReview: {AnswerStatusApproved, AnswerStatusRejected},
}

// CanTransition reports whether moving the answer to the target status is legal.
func (a Answer) CanTransition(target string) bool {
	for _, allowed := range answerTransitions[a.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsReviewed reports whether the answer has left the under-review state.
func (a Answer) IsReviewed() bool {
	return a.Status != AnswerStatusUnderReview
}

// VeracityScore holds the six-dimension quality assessment of one answer.
// Immutable after admin review except for the review annotation fields.
type VeracityScore struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	AnswerID             uint              `gorm:"not null;uniqueIndex" json:"answer_id"`
	IdentityScore        int               `gorm:"not null" json:"identity_score"`
	ProfileMatchScore    int               `gorm:"not null" json:"profile_match_score"`
	AnswerQualityScore   int               `gorm:"not null" json:"answer_quality_score"`
	DocumentScore        int               `gorm:"not null" json:"document_score"`
	ContradictionScore   int               `gorm:"not null" json:"contradiction_score"`
	CorroborationScore   int               `gorm:"not null" json:"corroboration_score"`
	OverallScore         int               `gorm:"not null" json:"overall_score"`
	Evidence             datatypes.JSONMap `gorm:"type:json" json:"evidence"`
	Flags                datatypes.JSONMap `gorm:"type:json" json:"flags"`
	ReviewNote           string            `gorm:"type:text" json:"review_note"`
	ReviewedBy           *uint             `json:"reviewed_by"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// PaymentThreshold is the minimum overall veracity score eligible for settlement.
const PaymentThreshold = 80

// Payable reports whether the score clears the payment gate.
func (v VeracityScore) Payable() bool {
	return v.OverallScore >= PaymentThreshold
}
