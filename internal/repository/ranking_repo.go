package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// RankingRepository defines data operations for expert performance
// aggregates. Incremental updates run as single SQL statements so the
// settlement engine and the periodic aggregator never interleave partial
// writes on the same row.
type RankingRepository interface {
	GetByExpert(ctx context.Context, expertID uint) (models.ExpertRanking, error)
	ApplyRejection(ctx context.Context, expertID uint) error
	ApplyExpiryPenalty(ctx context.Context, expertID uint) error
	ListAll(ctx context.Context) ([]models.ExpertRanking, error)
	SaveScores(ctx context.Context, ranking *models.ExpertRanking) error
	SetRanks(ctx context.Context, rankings []models.ExpertRanking) error
}

type rankingRepository struct {
	db *gorm.DB
}

// NewRankingRepository instantiates the repository.
func NewRankingRepository(db *gorm.DB) RankingRepository {
	return &rankingRepository{db: db}
}

func (r *rankingRepository) GetByExpert(ctx context.Context, expertID uint) (models.ExpertRanking, error) {
	var ranking models.ExpertRanking
	if err := r.db.WithContext(ctx).
		Where(models.ExpertRanking{ExpertID: expertID}).
		FirstOrCreate(&ranking).Error; err != nil {
		return models.ExpertRanking{}, err
	}

	return ranking, nil
}

func (r *rankingRepository) ApplyRejection(ctx context.Context, expertID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ranking models.ExpertRanking
		if err := tx.Where(models.ExpertRanking{ExpertID: expertID}).
			FirstOrCreate(&ranking).Error; err != nil {
			return err
		}

		return tx.Model(&models.ExpertRanking{}).
			Where("expert_id = ?", expertID).
			Updates(map[string]interface{}{
				"total_answers":    gorm.Expr("total_answers + 1"),
				"rejected_answers": gorm.Expr("rejected_answers + 1"),
			}).Error
	})
}

func (r *rankingRepository) ApplyExpiryPenalty(ctx context.Context, expertID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ranking models.ExpertRanking
		if err := tx.Where(models.ExpertRanking{ExpertID: expertID}).
			FirstOrCreate(&ranking).Error; err != nil {
			return err
		}

		return tx.Model(&models.ExpertRanking{}).
			Where("expert_id = ?", expertID).
			Updates(map[string]interface{}{
				"expired_assignments": gorm.Expr("expired_assignments + 1"),
				"overall_score":       gorm.Expr("CASE WHEN overall_score >= ? THEN overall_score - ? ELSE 0 END", expiryPenaltyPoints, expiryPenaltyPoints),
			}).Error
	})
}

// expiryPenaltyPoints is the fixed deduction applied when an assignment lapses.
const expiryPenaltyPoints = 2.0

func (r *rankingRepository) ListAll(ctx context.Context) ([]models.ExpertRanking, error) {
	var rankings []models.ExpertRanking
	if err := r.db.WithContext(ctx).
		Order("expert_id ASC").
		Find(&rankings).Error; err != nil {
		return nil, err
	}

	return rankings, nil
}

// SaveScores persists an aggregator recompute. The whole row is written in
// one statement; the recompute is authoritative over any concurrent
// incremental change to the derived columns.
func (r *rankingRepository) SaveScores(ctx context.Context, ranking *models.ExpertRanking) error {
	return r.db.WithContext(ctx).Model(&models.ExpertRanking{}).
		Where("id = ?", ranking.ID).
		Updates(map[string]interface{}{
			"performance_score": ranking.PerformanceScore,
			"speed_score":       ranking.SpeedScore,
			"frequency_score":   ranking.FrequencyScore,
			"overall_score":     ranking.OverallScore,
		}).Error
}

func (r *rankingRepository) SetRanks(ctx context.Context, rankings []models.ExpertRanking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ranking := range rankings {
			if err := tx.Model(&models.ExpertRanking{}).
				Where("id = ?", ranking.ID).
				Update("global_rank", ranking.GlobalRank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
