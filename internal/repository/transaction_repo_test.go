package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

func TestTransactionRepositoryMarkProcessingCAS(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)

	txn := models.PaymentTransaction{AnswerID: 1, IdempotencyKey: "key-1", TotalAmount: 1000, ExpertAmount: 500, PlatformAmount: 500}
	require.NoError(t, repo.Create(context.Background(), &txn))
	require.Equal(t, models.TransactionStatusPending, txn.Status)

	require.NoError(t, repo.MarkProcessing(context.Background(), txn.ID))

	// The claim is exclusive: a second attempt loses.
	require.ErrorIs(t, repo.MarkProcessing(context.Background(), txn.ID), ErrConflict)

	// A failed transaction is claimable again.
	require.NoError(t, repo.Fail(context.Background(), txn.ID, "ledger unavailable"))
	require.NoError(t, repo.MarkProcessing(context.Background(), txn.ID))

	stored, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusProcessing, stored.Status)
	require.Empty(t, stored.ErrorMessage, "reclaim clears the previous failure message")
}

func TestTransactionRepositorySettleFundsExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)

	expert := models.Expert{Name: "E", Email: "e@example.com", VerificationTier: 1}
	require.NoError(t, db.Create(&expert).Error)

	txn := models.PaymentTransaction{AnswerID: 1, IdempotencyKey: "key-1", TotalAmount: 1000, ExpertAmount: 500, PlatformAmount: 500}
	require.NoError(t, repo.Create(context.Background(), &txn))

	params := SettleFundsParams{
		TransactionID:   txn.ID,
		ExpertID:        expert.ID,
		ExpertAmount:    500,
		VeracityScore:   92,
		ResponseMinutes: 45,
	}

	credited, err := repo.SettleFunds(context.Background(), params)
	require.NoError(t, err)
	require.True(t, credited)

	// The marker blocks every subsequent fold.
	credited, err = repo.SettleFunds(context.Background(), params)
	require.NoError(t, err)
	require.False(t, credited)

	var storedExpert models.Expert
	require.NoError(t, db.First(&storedExpert, expert.ID).Error)
	require.Equal(t, 500.0, storedExpert.WalletBalance)
	require.Equal(t, 1, storedExpert.AnswerCount)

	var ranking models.ExpertRanking
	require.NoError(t, db.Where("expert_id = ?", expert.ID).First(&ranking).Error)
	require.Equal(t, 1, ranking.TotalAnswers)
	require.Equal(t, 1, ranking.AcceptedAnswers)
	require.Equal(t, 500.0, ranking.TotalEarnings)
	require.Equal(t, 92.0, ranking.AvgVeracityScore)
	require.Equal(t, 45.0, ranking.AvgResponseMinutes)
}

func TestTransactionRepositorySettleFundsRunningAverages(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)

	expert := models.Expert{Name: "E", Email: "e@example.com", VerificationTier: 1}
	require.NoError(t, db.Create(&expert).Error)

	scores := []int{80, 90, 100}
	minutes := []float64{30, 60, 90}
	for i := range scores {
		txn := models.PaymentTransaction{AnswerID: uint(i + 1), IdempotencyKey: "key-" + string(rune('a'+i)), TotalAmount: 200, ExpertAmount: 100, PlatformAmount: 100}
		require.NoError(t, repo.Create(context.Background(), &txn))

		_, err := repo.SettleFunds(context.Background(), SettleFundsParams{
			TransactionID:   txn.ID,
			ExpertID:        expert.ID,
			ExpertAmount:    100,
			VeracityScore:   scores[i],
			ResponseMinutes: minutes[i],
		})
		require.NoError(t, err)
	}

	var ranking models.ExpertRanking
	require.NoError(t, db.Where("expert_id = ?", expert.ID).First(&ranking).Error)
	require.Equal(t, 3, ranking.TotalAnswers)
	require.InDelta(t, 90.0, ranking.AvgVeracityScore, 0.001)
	require.InDelta(t, 60.0, ranking.AvgResponseMinutes, 0.001)
	require.Equal(t, 300.0, ranking.TotalEarnings)
}

func TestTransactionRepositoryCompleteAndFailCAS(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)

	txn := models.PaymentTransaction{AnswerID: 1, IdempotencyKey: "key-1", TotalAmount: 1000, ExpertAmount: 500, PlatformAmount: 500}
	require.NoError(t, repo.Create(context.Background(), &txn))

	// Neither terminal move is legal from pending.
	require.ErrorIs(t, repo.Complete(context.Background(), txn.ID, time.Now()), ErrConflict)
	require.ErrorIs(t, repo.Fail(context.Background(), txn.ID, "x"), ErrConflict)

	require.NoError(t, repo.MarkProcessing(context.Background(), txn.ID))
	require.NoError(t, repo.Complete(context.Background(), txn.ID, time.Now()))

	stored, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, stored.Status)
	require.NotNil(t, stored.ProcessedAt)

	// Completed is terminal.
	require.ErrorIs(t, repo.Fail(context.Background(), txn.ID, "x"), ErrConflict)
	require.ErrorIs(t, repo.MarkProcessing(context.Background(), txn.ID), ErrConflict)
}

func TestTransactionRepositoryListStuck(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)

	fresh := models.PaymentTransaction{AnswerID: 1, IdempotencyKey: "key-1", Status: models.TransactionStatusProcessing, TotalAmount: 100, ExpertAmount: 50, PlatformAmount: 50}
	require.NoError(t, db.Create(&fresh).Error)

	stale := models.PaymentTransaction{AnswerID: 2, IdempotencyKey: "key-2", Status: models.TransactionStatusProcessing, TotalAmount: 100, ExpertAmount: 50, PlatformAmount: 50}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Model(&models.PaymentTransaction{}).
		Where("id = ?", stale.ID).
		UpdateColumn("updated_at", time.Now().Add(-2*time.Hour)).Error)

	done := models.PaymentTransaction{AnswerID: 3, IdempotencyKey: "key-3", Status: models.TransactionStatusCompleted, TotalAmount: 100, ExpertAmount: 50, PlatformAmount: 50}
	require.NoError(t, db.Create(&done).Error)

	stuck, err := repo.ListStuck(context.Background(), time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	require.Equal(t, stale.ID, stuck[0].ID)
}
