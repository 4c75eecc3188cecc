package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
)

// SettleFundsParams carries the inputs for the single-transaction settlement fold.
type SettleFundsParams struct {
	TransactionID   uint
	ExpertID        uint
	ExpertAmount    float64
	VeracityScore   int
	ResponseMinutes float64
}

// TransactionRepository defines data operations for payment transactions and
// the wallet credit they carry. Status moves are compare-and-swap updates.
type TransactionRepository interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	GetByID(ctx context.Context, id uint) (models.PaymentTransaction, error)
	GetByAnswerID(ctx context.Context, answerID uint) (models.PaymentTransaction, error)
	MarkProcessing(ctx context.Context, id uint) error
	SettleFunds(ctx context.Context, params SettleFundsParams) (bool, error)
	Complete(ctx context.Context, id uint, at time.Time) error
	Fail(ctx context.Context, id uint, message string) error
	ListStuck(ctx context.Context, olderThan time.Time) ([]models.PaymentTransaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository instantiates the repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) GetByID(ctx context.Context, id uint) (models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		return models.PaymentTransaction{}, err
	}

	return txn, nil
}

func (r *transactionRepository) GetByAnswerID(ctx context.Context, answerID uint) (models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("answer_id = ?", answerID).
		First(&txn).Error; err != nil {
		return models.PaymentTransaction{}, err
	}

	return txn, nil
}

// MarkProcessing claims the transaction for one settlement attempt. Only
// one caller can win the pending/failed -> processing swap; everyone else
// sees ErrConflict.
func (r *transactionRepository) MarkProcessing(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Where("status IN ?", []string{models.TransactionStatusPending, models.TransactionStatusFailed}).
		Updates(map[string]interface{}{
			"status":        models.TransactionStatusProcessing,
			"error_message": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// SettleFunds applies the expert share and the ranking fold exactly once.
// The wallet_credited column is the write-ahead marker: it flips in the same
// database transaction as the balance update and the ranking aggregates, so a
// retry that finds it set skips the whole fold and a crash mid-fold leaves
// nothing applied. Returns whether this call actually moved money.
func (r *transactionRepository) SettleFunds(ctx context.Context, params SettleFundsParams) (bool, error) {
	credited := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PaymentTransaction{}).
			Where("id = ?", params.TransactionID).
			Where("wallet_credited = ?", false).
			Update("wallet_credited", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		credited = true

		if err := tx.Model(&models.Expert{}).
			Where("id = ?", params.ExpertID).
			Updates(map[string]interface{}{
				"wallet_balance": gorm.Expr("wallet_balance + ?", params.ExpertAmount),
				"answer_count":   gorm.Expr("answer_count + 1"),
			}).Error; err != nil {
			return err
		}

		var ranking models.ExpertRanking
		if err := tx.Where(models.ExpertRanking{ExpertID: params.ExpertID}).
			FirstOrCreate(&ranking).Error; err != nil {
			return err
		}

		// Running means use the standard incremental-average formula.
		return tx.Model(&models.ExpertRanking{}).
			Where("expert_id = ?", params.ExpertID).
			Updates(map[string]interface{}{
				"total_answers":        gorm.Expr("total_answers + 1"),
				"accepted_answers":     gorm.Expr("accepted_answers + 1"),
				"total_earnings":       gorm.Expr("total_earnings + ?", params.ExpertAmount),
				"avg_veracity_score":   gorm.Expr("avg_veracity_score + (? - avg_veracity_score) / (total_answers + 1)", float64(params.VeracityScore)),
				"avg_response_minutes": gorm.Expr("avg_response_minutes + (? - avg_response_minutes) / (total_answers + 1)", params.ResponseMinutes),
			}).Error
	})
	return credited, err
}

func (r *transactionRepository) Complete(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Where("status = ?", models.TransactionStatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.TransactionStatusCompleted,
			"processed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *transactionRepository) Fail(ctx context.Context, id uint, message string) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Where("status = ?", models.TransactionStatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.TransactionStatusFailed,
			"error_message": message,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *transactionRepository) ListStuck(ctx context.Context, olderThan time.Time) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.TransactionStatusProcessing).
		Where("updated_at < ?", olderThan).
		Order("updated_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}

	return txns, nil
}
