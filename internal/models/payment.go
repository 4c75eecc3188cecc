package models

import "time"

// PaymentTransaction is the settlement record for one approved answer.
// WalletCredited is the write-ahead marker that keeps retries from
// crediting the expert twice when a previous attempt died mid-flight.
type PaymentTransaction struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	AnswerID       uint       `gorm:"not null;uniqueIndex" json:"answer_id"`
	IdempotencyKey string     `gorm:"size:64;uniqueIndex;not null" json:"idempotency_key"`
	TotalAmount    float64    `gorm:"not null" json:"total_amount"`
	ExpertAmount   float64    `gorm:"not null" json:"expert_amount"`
	PlatformAmount float64    `gorm:"not null" json:"platform_amount"`
	Status         string     `gorm:"size:32;not null" json:"status"`
	WalletCredited bool       `gorm:"not null;default:false" json:"wallet_credited"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	ProcessedAt    *time.Time `json:"processed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	// TransactionStatusPending indicates the transaction was created but not driven yet.
	TransactionStatusPending = "pending"
	// TransactionStatusProcessing indicates a settlement attempt is in flight.
	TransactionStatusProcessing = "processing"
	// TransactionStatusCompleted indicates funds moved and the answer was paid.
	TransactionStatusCompleted = "completed"
	// TransactionStatusFailed indicates the last attempt errored; retryable.
	TransactionStatusFailed = "failed"
)

var transactionTransitions = map[string][]string{
	TransactionStatusPending:    {TransactionStatusProcessing},
	TransactionStatusProcessing: {TransactionStatusCompleted, TransactionStatusFailed},
	TransactionStatusFailed:     {TransactionStatusProcessing},
}

// CanTransition reports whether moving the transaction to the target status is legal.
func (t PaymentTransaction) CanTransition(target string) bool {
	for _, allowed := range transactionTransitions[t.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsSettled reports whether the transaction reached the completed state.
func (t PaymentTransaction) IsSettled() bool {
	return t.Status == TransactionStatusCompleted
}
