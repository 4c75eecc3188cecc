package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/dto"
	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/observability"
	"github.com/veriq-app/veriq-go-api/internal/repository"
	"github.com/veriq-app/veriq-go-api/internal/scoring"
	"github.com/veriq-app/veriq-go-api/pkg/ai"
)

// ErrAnswerNotFound indicates the answer was not located.
var ErrAnswerNotFound = errors.New("answer not found")

// ErrAlreadyReviewed indicates the answer already left the under-review state.
var ErrAlreadyReviewed = errors.New("answer already reviewed")

// ErrAlreadyApproved indicates a settlement already exists for the answer.
var ErrAlreadyApproved = errors.New("answer already approved")

// ErrBelowThreshold indicates the veracity score does not clear the payment gate.
var ErrBelowThreshold = errors.New("veracity score below payment threshold")

// ErrTransactionNotFound indicates the payment transaction was not located.
var ErrTransactionNotFound = errors.New("transaction not found")

// SettlementService owns the payment state machine: the pre-payment veracity
// gate, transaction creation on approval, processing, and stuck-transaction
// recovery. Money moves exactly once per accepted answer.
type SettlementService interface {
	OnSubmission(ctx context.Context, payload dto.SubmitAnswerRequest) (dto.AnswerResponse, dto.VeracityResponse, error)
	Approve(ctx context.Context, answerID, reviewerID uint) (dto.TransactionResponse, error)
	Process(ctx context.Context, transactionID uint) (dto.TransactionResponse, error)
	Reject(ctx context.Context, answerID uint, payload dto.RejectAnswerRequest) (dto.AnswerResponse, error)
	RecoverStuck(ctx context.Context) error
}

type settlementService struct {
	answers     repository.AnswerRepository
	questions   repository.QuestionRepository
	entries     repository.QueueRepository
	txns        repository.TransactionRepository
	rankings    repository.RankingRepository
	queue       QueueService
	assessor    ai.Assessor
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	expertShare float64
	stuckWindow time.Duration
}

// NewSettlementService constructs the settlement engine.
func NewSettlementService(
	answers repository.AnswerRepository,
	questions repository.QuestionRepository,
	entries repository.QueueRepository,
	txns repository.TransactionRepository,
	rankings repository.RankingRepository,
	queue QueueService,
	assessor ai.Assessor,
	validate *validator.Validate,
	expertShare float64,
	stuckWindow time.Duration,
	logger zerolog.Logger,
) SettlementService {
	if expertShare <= 0 || expertShare >= 1 {
		expertShare = 0.5
	}
	if stuckWindow <= 0 {
		stuckWindow = 30 * time.Minute
	}

	return &settlementService{
		answers:     answers,
		questions:   questions,
		entries:     entries,
		txns:        txns,
		rankings:    rankings,
		queue:       queue,
		assessor:    assessor,
		validator:   validate,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "settlement_service").Logger(),
		tracer:      otel.Tracer("github.com/veriq-app/veriq-go-api/internal/service/settlement"),
		now:         time.Now,
		expertShare: expertShare,
		stuckWindow: stuckWindow,
	}
}

// OnSubmission persists the answer, runs the veracity gate and rejects plus
// escalates below-threshold work before any payment artifact can exist.
func (s *settlementService) OnSubmission(ctx context.Context, payload dto.SubmitAnswerRequest) (dto.AnswerResponse, dto.VeracityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.on_submission", trace.WithAttributes(
		attribute.Int64("question.id", int64(payload.QuestionID)),
		attribute.Int64("expert.id", int64(payload.ExpertID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AnswerResponse{}, dto.VeracityResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, dto.VeracityResponse{}, ErrQuestionNotFound
		}
		return dto.AnswerResponse{}, dto.VeracityResponse{}, err
	}

	if question.Status != models.QuestionStatusAssigned {
		return dto.AnswerResponse{}, dto.VeracityResponse{}, ErrAssignmentNotActive
	}
	if question.AssignedExpertID == nil || *question.AssignedExpertID != payload.ExpertID {
		return dto.AnswerResponse{}, dto.VeracityResponse{}, ErrNotAssignedExpert
	}

	answer := models.Answer{
		QuestionID:    payload.QuestionID,
		ExpertID:      payload.ExpertID,
		Content:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Content)),
		Sources:       mustJSON(payload.Sources),
		DocumentURLs:  mustJSON(payload.DocumentURLs),
		Status:        models.AnswerStatusUnderReview,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.answers.Create(ctx, &answer); err != nil {
		return dto.AnswerResponse{}, dto.VeracityResponse{}, err
	}

	loaded, err := s.answers.GetByID(ctx, answer.ID)
	if err != nil {
		return dto.AnswerResponse{}, dto.VeracityResponse{}, err
	}
	expert := loaded.Expert

	result := scoring.Veracity(ctx, scoring.VeracityInput{
		QuestionText:   question.Text,
		QuestionSector: question.Sector,
		AnswerContent:  answer.Content,
		Sources:        payload.Sources,
		DocumentURLs:   payload.DocumentURLs,
		ExpertName:     expert.Name,
		ExpertEmployer: expert.Employer,
		ExpertIndustry: expert.Industry,
		ExpertTags:     expert.Tags(),
	}, s.assessor)

	score := models.VeracityScore{
		AnswerID:           answer.ID,
		IdentityScore:      result.Identity.Score,
		ProfileMatchScore:  result.ProfileMatch.Score,
		AnswerQualityScore: result.AnswerQuality.Score,
		DocumentScore:      result.Documents.Score,
		ContradictionScore: result.Contradiction.Score,
		CorroborationScore: result.Corroboration.Score,
		OverallScore:       result.Overall,
		Evidence:           evidenceMap(result),
		Flags:              flagsMap(result),
	}
	if err := s.answers.SaveVeracity(ctx, &score); err != nil {
		return dto.AnswerResponse{}, dto.VeracityResponse{}, err
	}

	observability.VeracityScores().Observe(float64(result.Overall))
	span.SetAttributes(
		attribute.Int("veracity.overall", result.Overall),
		attribute.Bool("veracity.degraded", result.Degraded),
	)

	if !score.Payable() {
		now := s.now()
		if err := s.answers.MarkRejected(ctx, answer.ID, "veracity score below payment threshold", nil, now); err != nil {
			return dto.AnswerResponse{}, dto.VeracityResponse{}, err
		}
		answer.Status = models.AnswerStatusRejected
		answer.PaymentStatus = models.PaymentStatusRejected

		s.logger.Info().
			Uint("answer_id", answer.ID).
			Int("overall", result.Overall).
			Msg("answer failed veracity gate, forfeiting assignment")

		if err := s.queue.Forfeit(ctx, payload.QuestionID); err != nil {
			s.logger.Error().Err(err).Uint("question_id", payload.QuestionID).Msg("failed to escalate after gate rejection")
		}
	}

	return dto.NewAnswerResponse(answer), dto.NewVeracityResponse(score), nil
}

// Approve is valid exactly once per answer: a second approval finds the
// existing transaction and is rejected. Splits escrow by the fixed ratio
// and immediately drives the new transaction through Process.
func (s *settlementService) Approve(ctx context.Context, answerID, reviewerID uint) (dto.TransactionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.approve", trace.WithAttributes(
		attribute.Int64("answer.id", int64(answerID)),
		attribute.Int64("reviewer.id", int64(reviewerID)),
	))
	defer span.End()

	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TransactionResponse{}, ErrAnswerNotFound
		}
		return dto.TransactionResponse{}, err
	}

	if _, err := s.txns.GetByAnswerID(ctx, answerID); err == nil {
		return dto.TransactionResponse{}, ErrAlreadyApproved
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.TransactionResponse{}, err
	}

	score, err := s.answers.GetVeracityByAnswer(ctx, answerID)
	if err != nil {
		return dto.TransactionResponse{}, err
	}
	if !score.Payable() {
		return dto.TransactionResponse{}, ErrBelowThreshold
	}

	if err := s.answers.MarkApproved(ctx, answerID, reviewerID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return dto.TransactionResponse{}, ErrAlreadyReviewed
		}
		return dto.TransactionResponse{}, err
	}

	total := answer.Question.EscrowAmount
	expertAmount := total * s.expertShare
	txn := models.PaymentTransaction{
		AnswerID:       answerID,
		IdempotencyKey: uuid.NewString(),
		TotalAmount:    total,
		ExpertAmount:   expertAmount,
		PlatformAmount: total - expertAmount,
		Status:         models.TransactionStatusPending,
	}
	if err := s.txns.Create(ctx, &txn); err != nil {
		return dto.TransactionResponse{}, err
	}

	span.SetAttributes(attribute.Float64("settlement.expert_amount", expertAmount))
	return s.Process(ctx, txn.ID)
}

// Process drives one settlement attempt through the transaction state
// machine. Calling it on a completed transaction is a no-op; a retry of a
// stuck or failed attempt re-derives completed sub-steps from the
// write-ahead marker instead of re-crediting.
func (s *settlementService) Process(ctx context.Context, transactionID uint) (dto.TransactionResponse, error) {
	return s.process(ctx, transactionID, "")
}

func (s *settlementService) process(ctx context.Context, transactionID uint, failPrefix string) (dto.TransactionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.process", trace.WithAttributes(
		attribute.Int64("transaction.id", int64(transactionID)),
	))
	defer span.End()

	start := s.now()
	txn, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TransactionResponse{}, ErrTransactionNotFound
		}
		return dto.TransactionResponse{}, err
	}

	switch txn.Status {
	case models.TransactionStatusCompleted:
		return dto.NewTransactionResponse(txn), nil
	case models.TransactionStatusPending, models.TransactionStatusFailed:
		if err := s.txns.MarkProcessing(ctx, transactionID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// A competing attempt claimed it first.
				current, getErr := s.txns.GetByID(ctx, transactionID)
				if getErr != nil {
					return dto.TransactionResponse{}, getErr
				}
				return dto.NewTransactionResponse(current), nil
			}
			return dto.TransactionResponse{}, err
		}
	case models.TransactionStatusProcessing:
		// A stuck attempt being recovered; sub-steps below are idempotent.
	}

	if err := s.settle(ctx, txn); err != nil {
		message := err.Error()
		if failPrefix != "" {
			message = fmt.Sprintf("%s: %v", failPrefix, err)
		}
		if failErr := s.txns.Fail(ctx, transactionID, message); failErr != nil {
			s.logger.Error().Err(failErr).Uint("transaction_id", transactionID).Msg("failed to record settlement failure")
		}
		observability.Settlements().WithLabelValues(models.TransactionStatusFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement_failed")

		failed, getErr := s.txns.GetByID(ctx, transactionID)
		if getErr != nil {
			return dto.TransactionResponse{}, getErr
		}
		return dto.NewTransactionResponse(failed), err
	}

	observability.Settlements().WithLabelValues(models.TransactionStatusCompleted).Inc()
	observability.SettlementDuration().Observe(s.now().Sub(start).Seconds())

	completed, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		return dto.TransactionResponse{}, err
	}
	return dto.NewTransactionResponse(completed), nil
}

// settle performs the in-processing sub-steps: the atomic funds fold, the
// completed flip, and the answer/question finalization.
func (s *settlementService) settle(ctx context.Context, txn models.PaymentTransaction) error {
	answer, err := s.answers.GetByID(ctx, txn.AnswerID)
	if err != nil {
		return fmt.Errorf("load answer: %w", err)
	}

	score, err := s.answers.GetVeracityByAnswer(ctx, txn.AnswerID)
	if err != nil {
		return fmt.Errorf("load veracity score: %w", err)
	}

	credited, err := s.txns.SettleFunds(ctx, repository.SettleFundsParams{
		TransactionID:   txn.ID,
		ExpertID:        answer.ExpertID,
		ExpertAmount:    txn.ExpertAmount,
		VeracityScore:   score.OverallScore,
		ResponseMinutes: s.responseMinutes(ctx, answer),
	})
	if err != nil {
		return fmt.Errorf("settle funds: %w", err)
	}
	if !credited {
		s.logger.Info().Uint("transaction_id", txn.ID).Msg("wallet already credited, skipping fold")
	}

	if err := s.txns.Complete(ctx, txn.ID, s.now()); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("complete transaction: %w", err)
		}
	}

	// Only a completed transaction flips the answer and question.
	if err := s.answers.MarkPaid(ctx, txn.AnswerID); err != nil && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("mark answer paid: %w", err)
	}
	if err := s.questions.MarkAnswered(ctx, answer.QuestionID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("mark question answered: %w", err)
	}

	s.logger.Info().
		Uint("transaction_id", txn.ID).
		Uint("answer_id", txn.AnswerID).
		Float64("expert_amount", txn.ExpertAmount).
		Msg("settlement completed")

	return nil
}

func (s *settlementService) responseMinutes(ctx context.Context, answer models.Answer) float64 {
	entry, err := s.entries.GetByQuestionAndExpert(ctx, answer.QuestionID, answer.ExpertID)
	if err != nil || entry.AssignedAt == nil {
		return 0
	}
	return answer.CreatedAt.Sub(*entry.AssignedAt).Minutes()
}

// Reject refuses an answer without touching payment records and applies the
// rejection penalty to the author's aggregates.
func (s *settlementService) Reject(ctx context.Context, answerID uint, payload dto.RejectAnswerRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrAnswerNotFound
		}
		return dto.AnswerResponse{}, err
	}

	reviewer := payload.ReviewerID
	if err := s.answers.MarkRejected(ctx, answerID, payload.Reason, &reviewer, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return dto.AnswerResponse{}, ErrAlreadyReviewed
		}
		return dto.AnswerResponse{}, err
	}

	if err := s.rankings.ApplyRejection(ctx, answer.ExpertID); err != nil {
		s.logger.Warn().Err(err).Uint("expert_id", answer.ExpertID).Msg("failed to apply rejection penalty")
	}

	answer.Status = models.AnswerStatusRejected
	answer.PaymentStatus = models.PaymentStatusRejected
	answer.RejectReason = payload.Reason

	return dto.NewAnswerResponse(answer), nil
}

// RecoverStuck re-drives transactions that sat in processing past the
// staleness window. A second failure is forced to failed with a
// timeout-specific message instead of being left stuck.
func (s *settlementService) RecoverStuck(ctx context.Context) error {
	stuck, err := s.txns.ListStuck(ctx, s.now().Add(-s.stuckWindow))
	if err != nil {
		return err
	}

	for _, txn := range stuck {
		prefix := fmt.Sprintf("settlement stuck in processing beyond %s", s.stuckWindow)
		if _, err := s.process(ctx, txn.ID, prefix); err != nil {
			s.logger.Error().Err(err).Uint("transaction_id", txn.ID).Msg("stuck transaction recovery failed")
		}
	}

	return nil
}

func mustJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON([]byte("[]"))
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(encoded)
}

func evidenceMap(result scoring.VeracityResult) datatypes.JSONMap {
	return datatypes.JSONMap{
		"identity":       result.Identity.Evidence,
		"profile_match":  result.ProfileMatch.Evidence,
		"answer_quality": result.AnswerQuality.Evidence,
		"documents":      result.Documents.Evidence,
		"contradiction":  result.Contradiction.Evidence,
		"corroboration":  result.Corroboration.Evidence,
	}
}

func flagsMap(result scoring.VeracityResult) datatypes.JSONMap {
	flags := datatypes.JSONMap{}
	dimensions := map[string][]string{
		"identity":       result.Identity.Flags,
		"profile_match":  result.ProfileMatch.Flags,
		"answer_quality": result.AnswerQuality.Flags,
		"documents":      result.Documents.Flags,
		"contradiction":  result.Contradiction.Flags,
		"corroboration":  result.Corroboration.Flags,
	}
	for name, values := range dimensions {
		if len(values) > 0 {
			flags[name] = values
		}
	}
	if result.Degraded {
		flags["degraded"] = true
	}
	return flags
}
