package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// QuestionRepository defines data operations for questions.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Question, error)
	Create(ctx context.Context, question *models.Question) error
	ListExpiredAssignments(ctx context.Context, now time.Time) ([]models.Question, error)
	MarkAnswered(ctx context.Context, id uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.Question{}, err
	}

	return question, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	if question.Status == "" {
		question.Status = models.QuestionStatusOpen
	}
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) ListExpiredAssignments(ctx context.Context, now time.Time) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.QuestionStatusAssigned).
		Where("assignment_due IS NOT NULL AND assignment_due < ?", now).
		Order("assignment_due ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

// MarkAnswered flips an assigned question to answered. Conditional on the
// current status so a competing terminal transition cannot be overwritten.
func (r *questionRepository) MarkAnswered(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		Where("status = ?", models.QuestionStatusAssigned).
		Updates(map[string]interface{}{
			"status":             models.QuestionStatusAnswered,
			"assigned_expert_id": nil,
			"assignment_due":     nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
