package models

import "time"

// ExpertRanking is the authoritative performance aggregate for one expert.
// The settlement engine updates it incrementally; the ranking aggregator
// recomputes it wholesale and owns the global rank column.
type ExpertRanking struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ExpertID            uint      `gorm:"not null;uniqueIndex" json:"expert_id"`
	TotalAnswers        int       `gorm:"not null;default:0" json:"total_answers"`
	AcceptedAnswers     int       `gorm:"not null;default:0" json:"accepted_answers"`
	RejectedAnswers     int       `gorm:"not null;default:0" json:"rejected_answers"`
	ExpiredAssignments  int       `gorm:"not null;default:0" json:"expired_assignments"`
	TotalEarnings       float64   `gorm:"not null;default:0" json:"total_earnings"`
	AvgVeracityScore    float64   `json:"avg_veracity_score"`
	AvgResponseMinutes  float64   `json:"avg_response_minutes"`
	PerformanceScore    float64   `json:"performance_score"`
	SpeedScore          float64   `json:"speed_score"`
	FrequencyScore      float64   `json:"frequency_score"`
	OverallScore        float64   `json:"overall_score"`
	GlobalRank          int       `json:"global_rank"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AcceptanceRate returns the share of answers that were accepted.
func (r ExpertRanking) AcceptanceRate() float64 {
	if r.TotalAnswers == 0 {
		return 0
	}
	return float64(r.AcceptedAnswers) / float64(r.TotalAnswers)
}
