package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/veriq-app/veriq-go-api/internal/dto"
	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/repository"
)

// Composite score weights, in percent.
const (
	performanceWeight = 50
	speedWeight       = 30
	frequencyWeight   = 20
)

// frequencyWindow is the lookback for the answer-frequency sub-score.
const frequencyWindow = 30 * 24 * time.Hour

const leaderboardCacheKey = "veriq:leaderboard"

// RankingService periodically recomputes every expert's composite score and
// dense global rank. The recompute is authoritative over the settlement
// engine's incremental updates to the derived columns.
type RankingService interface {
	Recompute(ctx context.Context) error
	Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, error)
}

type rankingService struct {
	rankings repository.RankingRepository
	answers  repository.AnswerRepository
	redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRankingService constructs the aggregator.
func NewRankingService(
	rankings repository.RankingRepository,
	answers repository.AnswerRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) RankingService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &rankingService{
		rankings: rankings,
		answers:  answers,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "ranking_service").Logger(),
		now:      time.Now,
	}
}

// Recompute rebuilds every expert's sub-scores and overall score, then
// assigns a dense 1-based global rank ordered by overall score descending.
func (s *rankingService) Recompute(ctx context.Context) error {
	rankings, err := s.rankings.ListAll(ctx)
	if err != nil {
		return err
	}

	since := s.now().Add(-frequencyWindow)
	for i := range rankings {
		ranking := &rankings[i]

		recent, err := s.answers.CountByExpertSince(ctx, ranking.ExpertID, since)
		if err != nil {
			s.logger.Error().Err(err).Uint("expert_id", ranking.ExpertID).Msg("failed to count recent answers")
			continue
		}

		ranking.PerformanceScore = ranking.AcceptanceRate() * 100
		ranking.SpeedScore = speedScore(ranking.AvgResponseMinutes)
		ranking.FrequencyScore = frequencyScore(recent)
		ranking.OverallScore = (ranking.PerformanceScore*performanceWeight +
			ranking.SpeedScore*speedWeight +
			ranking.FrequencyScore*frequencyWeight) / 100

		if err := s.rankings.SaveScores(ctx, ranking); err != nil {
			s.logger.Error().Err(err).Uint("expert_id", ranking.ExpertID).Msg("failed to persist recomputed scores")
		}
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].OverallScore != rankings[j].OverallScore {
			return rankings[i].OverallScore > rankings[j].OverallScore
		}
		return rankings[i].ExpertID < rankings[j].ExpertID
	})

	// Dense rank: equal scores share a rank, the next distinct score
	// takes the following integer.
	rank := 0
	var previous float64
	for i := range rankings {
		if rank == 0 || rankings[i].OverallScore != previous {
			rank++
			previous = rankings[i].OverallScore
		}
		rankings[i].GlobalRank = rank
	}

	if err := s.rankings.SetRanks(ctx, rankings); err != nil {
		return err
	}

	s.cacheLeaderboard(ctx, rankings)
	s.logger.Info().Int("experts", len(rankings)).Msg("ranking recompute complete")

	return nil
}

// Leaderboard serves the ranked list, preferring the Redis cache.
func (s *rankingService) Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, leaderboardCacheKey).Bytes()
		if err == nil {
			var entries []dto.LeaderboardEntry
			if unmarshalErr := json.Unmarshal(cached, &entries); unmarshalErr == nil {
				return entries, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("leaderboard cache read failed")
		}
	}

	rankings, err := s.rankings.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].GlobalRank != rankings[j].GlobalRank {
			return rankings[i].GlobalRank < rankings[j].GlobalRank
		}
		return rankings[i].ExpertID < rankings[j].ExpertID
	})

	s.cacheLeaderboard(ctx, rankings)

	return leaderboardEntries(rankings), nil
}

func (s *rankingService) cacheLeaderboard(ctx context.Context, rankings []models.ExpertRanking) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(leaderboardEntries(rankings))
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, leaderboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache write failed")
	}
}

func leaderboardEntries(rankings []models.ExpertRanking) []dto.LeaderboardEntry {
	entries := make([]dto.LeaderboardEntry, 0, len(rankings))
	for _, ranking := range rankings {
		entries = append(entries, dto.NewLeaderboardEntry(ranking))
	}
	return entries
}

// speedScore buckets average minutes-to-answer into fixed tiers.
func speedScore(avgMinutes float64) float64 {
	switch {
	case avgMinutes <= 0:
		return 0
	case avgMinutes <= 30:
		return 100
	case avgMinutes <= 60:
		return 85
	case avgMinutes <= 120:
		return 70
	case avgMinutes <= 180:
		return 55
	case avgMinutes <= 360:
		return 40
	default:
		return 25
	}
}

// frequencyScore rewards answers in the lookback window, saturating at ten.
func frequencyScore(recentAnswers int64) float64 {
	score := float64(recentAnswers) * 10
	if score > 100 {
		score = 100
	}
	return score
}
