package dto

import "github.com/veriq-app/veriq-go-api/internal/models"

// LeaderboardEntry is one row of the global expert leaderboard.
type LeaderboardEntry struct {
	ExpertID         uint    `json:"expert_id"`
	GlobalRank       int     `json:"global_rank"`
	OverallScore     float64 `json:"overall_score"`
	PerformanceScore float64 `json:"performance_score"`
	SpeedScore       float64 `json:"speed_score"`
	FrequencyScore   float64 `json:"frequency_score"`
	TotalAnswers     int     `json:"total_answers"`
	AcceptedAnswers  int     `json:"accepted_answers"`
	TotalEarnings    float64 `json:"total_earnings"`
}

// NewLeaderboardEntry converts an ExpertRanking model into a DTO.
func NewLeaderboardEntry(model models.ExpertRanking) LeaderboardEntry {
	return LeaderboardEntry{
		ExpertID:         model.ExpertID,
		GlobalRank:       model.GlobalRank,
		OverallScore:     model.OverallScore,
		PerformanceScore: model.PerformanceScore,
		SpeedScore:       model.SpeedScore,
		FrequencyScore:   model.FrequencyScore,
		TotalAnswers:     model.TotalAnswers,
		AcceptedAnswers:  model.AcceptedAnswers,
		TotalEarnings:    model.TotalEarnings,
	}
}
