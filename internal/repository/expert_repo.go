package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// ExpertRepository defines data operations for experts.
type ExpertRepository interface {
	GetByID(ctx context.Context, id uint) (models.Expert, error)
	ListEligible(ctx context.Context) ([]models.Expert, error)
	Create(ctx context.Context, expert *models.Expert) error
}

type expertRepository struct {
	db *gorm.DB
}

// NewExpertRepository instantiates the repository.
func NewExpertRepository(db *gorm.DB) ExpertRepository {
	return &expertRepository{db: db}
}

func (r *expertRepository) GetByID(ctx context.Context, id uint) (models.Expert, error) {
	var expert models.Expert
	if err := r.db.WithContext(ctx).First(&expert, id).Error; err != nil {
		return models.Expert{}, err
	}

	return expert, nil
}

func (r *expertRepository) ListEligible(ctx context.Context) ([]models.Expert, error) {
	var experts []models.Expert
	if err := r.db.WithContext(ctx).
		Where("suspended = ?", false).
		Where("verification_tier >= ?", models.MinimumVerificationTier).
		Order("id ASC").
		Find(&experts).Error; err != nil {
		return nil, err
	}

	return experts, nil
}

func (r *expertRepository) Create(ctx context.Context, expert *models.Expert) error {
	return r.db.WithContext(ctx).Create(expert).Error
}
