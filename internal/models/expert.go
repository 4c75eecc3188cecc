package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Expert is a candidate who can be queued against questions.
type Expert struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"size:255;not null" json:"name"`
	Email               string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Employer            string         `gorm:"size:255" json:"employer"`
	Industry            string         `gorm:"size:128" json:"industry"`
	ExpertiseTags       datatypes.JSON `gorm:"type:json" json:"expertise_tags"`
	YearsExperience     int            `json:"years_experience"`
	Geography           string         `gorm:"size:128" json:"geography"`
	VerificationTier    int            `gorm:"not null;default:0" json:"verification_tier"`
	Suspended           bool           `gorm:"not null;default:false" json:"suspended"`
	AnswerCount         int            `gorm:"not null;default:0" json:"answer_count"`
	AccuracyRate        float64        `json:"accuracy_rate"`
	ResponseRate        float64        `json:"response_rate"`
	VerificationRate    float64        `json:"verification_rate"`
	WalletBalance       float64        `gorm:"not null;default:0" json:"wallet_balance"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// MinimumVerificationTier is the tier required before an expert may be queued.
const MinimumVerificationTier = 1

// Eligible reports whether the expert may receive assignments.
func (e Expert) Eligible() bool {
	return !e.Suspended && e.VerificationTier >= MinimumVerificationTier
}

// Tags decodes the expertise tag list; a malformed column yields nil.
func (e Expert) Tags() []string {
	if len(e.ExpertiseTags) == 0 {
		return nil
	}

	var tags []string
	if err := json.Unmarshal(e.ExpertiseTags, &tags); err != nil {
		return nil
	}
	return tags
}
