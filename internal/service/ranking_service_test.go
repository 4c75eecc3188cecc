package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

func seedRanking(store *memStore, expertID uint, accepted, total int, avgMinutes float64) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.rankings[expertID] = &models.ExpertRanking{
		ID:                 store.nextID(),
		ExpertID:           expertID,
		TotalAnswers:       total,
		AcceptedAnswers:    accepted,
		AvgResponseMinutes: avgMinutes,
	}
}

func seedRecentAnswers(store *memStore, expertID uint, count int) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for i := 0; i < count; i++ {
		id := store.nextID()
		store.answers[id] = &models.Answer{
			ID:        id,
			ExpertID:  expertID,
			CreatedAt: time.Now().Add(-time.Hour),
		}
	}
}

func TestRankingRecomputeScoresAndRanks(t *testing.T) {
	store := newMemStore()
	rankings := &fakeRankingRepo{store: store}
	answers := &fakeAnswerRepo{store: store}

	// Perfect acceptance, fast, active.
	seedRanking(store, 1, 10, 10, 25)
	seedRecentAnswers(store, 1, 10)
	// Half acceptance, slow, quiet.
	seedRanking(store, 2, 5, 10, 400)
	seedRecentAnswers(store, 2, 2)
	// No history at all.
	seedRanking(store, 3, 0, 0, 0)

	svc := NewRankingService(rankings, answers, nil, time.Minute, testLogger())
	require.NoError(t, svc.Recompute(context.Background()))

	first, err := rankings.GetByExpert(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 100.0, first.PerformanceScore)
	require.Equal(t, 100.0, first.SpeedScore)
	require.Equal(t, 100.0, first.FrequencyScore)
	require.Equal(t, 100.0, first.OverallScore)
	require.Equal(t, 1, first.GlobalRank)

	second, err := rankings.GetByExpert(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 50.0, second.PerformanceScore)
	require.Equal(t, 25.0, second.SpeedScore)
	require.Equal(t, 20.0, second.FrequencyScore)
	// 50*0.5 + 25*0.3 + 20*0.2
	require.InDelta(t, 36.5, second.OverallScore, 0.001)
	require.Equal(t, 2, second.GlobalRank)

	third, err := rankings.GetByExpert(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 0.0, third.OverallScore)
	require.Equal(t, 3, third.GlobalRank)
}

func TestRankingRecomputeDenseRankOnTies(t *testing.T) {
	store := newMemStore()
	rankings := &fakeRankingRepo{store: store}
	answers := &fakeAnswerRepo{store: store}

	// Two identical experts share rank 1; the next distinct score takes 2.
	seedRanking(store, 1, 10, 10, 25)
	seedRecentAnswers(store, 1, 10)
	seedRanking(store, 2, 10, 10, 25)
	seedRecentAnswers(store, 2, 10)
	seedRanking(store, 3, 0, 0, 0)

	svc := NewRankingService(rankings, answers, nil, time.Minute, testLogger())
	require.NoError(t, svc.Recompute(context.Background()))

	first, _ := rankings.GetByExpert(context.Background(), 1)
	second, _ := rankings.GetByExpert(context.Background(), 2)
	third, _ := rankings.GetByExpert(context.Background(), 3)

	require.Equal(t, 1, first.GlobalRank)
	require.Equal(t, 1, second.GlobalRank)
	require.Equal(t, 2, third.GlobalRank)
}

func TestRankingLeaderboardServedFromCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	store := newMemStore()
	rankings := &fakeRankingRepo{store: store}
	answers := &fakeAnswerRepo{store: store}

	seedRanking(store, 1, 10, 10, 25)
	seedRecentAnswers(store, 1, 10)
	seedRanking(store, 2, 5, 10, 400)

	svc := NewRankingService(rankings, answers, redisClient, time.Minute, testLogger())
	require.NoError(t, svc.Recompute(context.Background()))

	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint(1), entries[0].ExpertID)
	require.Equal(t, 1, entries[0].GlobalRank)

	// Wipe the backing store; the cached list must still be served.
	store.mu.Lock()
	store.rankings = map[uint]*models.ExpertRanking{}
	store.mu.Unlock()

	cached, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 2)
	require.Equal(t, uint(1), cached[0].ExpertID)
}

func TestRankingLeaderboardFallsBackWithoutRedis(t *testing.T) {
	store := newMemStore()
	rankings := &fakeRankingRepo{store: store}
	answers := &fakeAnswerRepo{store: store}

	seedRanking(store, 1, 10, 10, 25)
	seedRanking(store, 2, 5, 10, 400)

	svc := NewRankingService(rankings, answers, nil, time.Minute, testLogger())
	require.NoError(t, svc.Recompute(context.Background()))

	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 1, entries[0].GlobalRank)
}
