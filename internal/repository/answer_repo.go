package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// AnswerRepository defines data operations for answers and their veracity scores.
type AnswerRepository interface {
	Create(ctx context.Context, answer *models.Answer) error
	GetByID(ctx context.Context, id uint) (models.Answer, error)
	CountByExpertSince(ctx context.Context, expertID uint, since time.Time) (int64, error)
	SaveVeracity(ctx context.Context, score *models.VeracityScore) error
	GetVeracityByAnswer(ctx context.Context, answerID uint) (models.VeracityScore, error)
	MarkRejected(ctx context.Context, answerID uint, reason string, reviewer *uint, at time.Time) error
	MarkApproved(ctx context.Context, answerID uint, reviewer uint, at time.Time) error
	MarkPaid(ctx context.Context, answerID uint) error
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository instantiates the repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Create(ctx context.Context, answer *models.Answer) error {
	if answer.Status == "" {
		answer.Status = models.AnswerStatusUnderReview
	}
	if answer.PaymentStatus == "" {
		answer.PaymentStatus = models.PaymentStatusPending
	}
	return r.db.WithContext(ctx).Create(answer).Error
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (models.Answer, error) {
	var answer models.Answer
	if err := r.db.WithContext(ctx).
		Preload("Question").
		Preload("Expert").
		First(&answer, id).Error; err != nil {
		return models.Answer{}, err
	}

	return answer, nil
}

func (r *answerRepository) CountByExpertSince(ctx context.Context, expertID uint, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("expert_id = ?", expertID).
		Where("created_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *answerRepository) SaveVeracity(ctx context.Context, score *models.VeracityScore) error {
	return r.db.WithContext(ctx).Create(score).Error
}

func (r *answerRepository) GetVeracityByAnswer(ctx context.Context, answerID uint) (models.VeracityScore, error) {
	var score models.VeracityScore
	if err := r.db.WithContext(ctx).
		Where("answer_id = ?", answerID).
		First(&score).Error; err != nil {
		return models.VeracityScore{}, err
	}

	return score, nil
}

// MarkRejected is conditional on the answer still being under review, so a
// second reviewer or a racing gate decision cannot overwrite the first.
func (r *answerRepository) MarkRejected(ctx context.Context, answerID uint, reason string, reviewer *uint, at time.Time) error {
	updates := map[string]interface{}{
		"status":         models.AnswerStatusRejected,
		"payment_status": models.PaymentStatusRejected,
		"reject_reason":  reason,
		"reviewed_at":    at,
	}
	if reviewer != nil {
		updates["reviewed_by"] = *reviewer
	}

	result := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", answerID).
		Where("status = ?", models.AnswerStatusUnderReview).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *answerRepository) MarkApproved(ctx context.Context, answerID uint, reviewer uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", answerID).
		Where("status = ?", models.AnswerStatusUnderReview).
		Updates(map[string]interface{}{
			"status":      models.AnswerStatusApproved,
			"reviewed_by": reviewer,
			"reviewed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkPaid flips the payment status once the settlement completed.
func (r *answerRepository) MarkPaid(ctx context.Context, answerID uint) error {
	result := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", answerID).
		Where("payment_status = ?", models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusPaid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
