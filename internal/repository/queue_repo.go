package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// ErrConflict indicates a conditional update found the row in a different
// state than expected. The competing actor's transition already won.
var ErrConflict = errors.New("state conflict")

// QueueRepository defines data operations for queue entries and the
// question fields owned by the queue engine. Every mutating method is a
// compare-and-swap keyed on the current status.
type QueueRepository interface {
	CreateEntries(ctx context.Context, entries []models.QueueEntry) error
	ListByQuestion(ctx context.Context, questionID uint) ([]models.QueueEntry, error)
	GetActive(ctx context.Context, questionID uint) (models.QueueEntry, error)
	GetByQuestionAndExpert(ctx context.Context, questionID, expertID uint) (models.QueueEntry, error)
	NextWaiting(ctx context.Context, questionID uint) (models.QueueEntry, error)
	Activate(ctx context.Context, entryID, questionID, expertID uint, deadline time.Time) error
	RecordResponse(ctx context.Context, entryID uint, at time.Time) error
	Resolve(ctx context.Context, entry models.QueueEntry, target string, at time.Time) error
	ForfeitActive(ctx context.Context, questionID uint) error
	MarkNoExperts(ctx context.Context, questionID uint) (bool, error)
}

type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository instantiates the repository.
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) CreateEntries(ctx context.Context, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *queueRepository) ListByQuestion(ctx context.Context, questionID uint) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("position ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *queueRepository) GetActive(ctx context.Context, questionID uint) (models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Where("status = ?", models.QueueEntryStatusAssigned).
		First(&entry).Error; err != nil {
		return models.QueueEntry{}, err
	}

	return entry, nil
}

func (r *queueRepository) GetByQuestionAndExpert(ctx context.Context, questionID, expertID uint) (models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Where("expert_id = ?", expertID).
		Order("position ASC").
		First(&entry).Error; err != nil {
		return models.QueueEntry{}, err
	}

	return entry, nil
}

func (r *queueRepository) NextWaiting(ctx context.Context, questionID uint) (models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Where("status = ?", models.QueueEntryStatusWaiting).
		Order("position ASC").
		First(&entry).Error; err != nil {
		return models.QueueEntry{}, err
	}

	return entry, nil
}

// Activate moves a waiting entry to assigned and stamps the question's
// active-assignment fields, all in one transaction. Fails with ErrConflict
// when another entry already holds the assignment or the entry is no
// longer waiting.
func (r *queueRepository) Activate(ctx context.Context, entryID, questionID, expertID uint, deadline time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.QueueEntry{}).
			Where("question_id = ?", questionID).
			Where("status = ?", models.QueueEntryStatusAssigned).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrConflict
		}

		now := time.Now()
		result := tx.Model(&models.QueueEntry{}).
			Where("id = ?", entryID).
			Where("status = ?", models.QueueEntryStatusWaiting).
			Updates(map[string]interface{}{
				"status":      models.QueueEntryStatusAssigned,
				"assigned_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		result = tx.Model(&models.Question{}).
			Where("id = ?", questionID).
			Where("status IN ?", []string{models.QuestionStatusOpen, models.QuestionStatusAssigned}).
			Updates(map[string]interface{}{
				"status":             models.QuestionStatusAssigned,
				"assigned_expert_id": expertID,
				"assignment_due":     deadline,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		return nil
	})
}

// RecordResponse stamps an accept on the active entry. The responded_at
// guard makes accept and expire mutually exclusive: whichever commits
// first leaves the other's predicate unsatisfied.
func (r *queueRepository) RecordResponse(ctx context.Context, entryID uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("id = ?", entryID).
		Where("status = ?", models.QueueEntryStatusAssigned).
		Where("responded_at IS NULL").
		Update("responded_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Resolve moves the active entry to declined or expired and clears the
// question's active-assignment fields without touching its status.
func (r *queueRepository) Resolve(ctx context.Context, entry models.QueueEntry, target string, at time.Time) error {
	if !entry.CanTransition(target) {
		return ErrConflict
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": target}
		if target == models.QueueEntryStatusDeclined {
			updates["responded_at"] = at
		}

		result := tx.Model(&models.QueueEntry{}).
			Where("id = ?", entry.ID).
			Where("status = ?", models.QueueEntryStatusAssigned).
			Where("responded_at IS NULL").
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		return tx.Model(&models.Question{}).
			Where("id = ?", entry.QuestionID).
			Where("assigned_expert_id = ?", entry.ExpertID).
			Updates(map[string]interface{}{
				"assigned_expert_id": nil,
				"assignment_due":     nil,
			}).Error
	})
}

// ForfeitActive closes out an accepted assignment whose answer failed the
// payment gate. Unlike Resolve it tolerates a recorded response; the entry
// ends declined and the question's active-assignment fields clear.
func (r *queueRepository) ForfeitActive(ctx context.Context, questionID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.QueueEntry{}).
			Where("question_id = ?", questionID).
			Where("status = ?", models.QueueEntryStatusAssigned).
			Update("status", models.QueueEntryStatusDeclined)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		return tx.Model(&models.Question{}).
			Where("id = ?", questionID).
			Updates(map[string]interface{}{
				"assigned_expert_id": nil,
				"assignment_due":     nil,
			}).Error
	})
}

// MarkNoExperts drives the question to its terminal no-experts state.
// Returns false when the question already left the reachable states, which
// makes repeated escalation calls no-ops.
func (r *queueRepository) MarkNoExperts(ctx context.Context, questionID uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", questionID).
		Where("status IN ?", []string{models.QuestionStatusOpen, models.QuestionStatusAssigned}).
		Updates(map[string]interface{}{
			"status":             models.QuestionStatusNoExperts,
			"assigned_expert_id": nil,
			"assignment_due":     nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
