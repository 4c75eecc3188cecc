package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/observability"
	"github.com/veriq-app/veriq-go-api/internal/repository"
)

// ExpirySweeper drives assignments past their deadline through the queue
// engine's escalation path. It is one of the two autonomous actors in the
// system; everything it does goes through the same conditional updates the
// user-triggered paths use.
type ExpirySweeper struct {
	questions repository.QuestionRepository
	entries   repository.QueueRepository
	rankings  repository.RankingRepository
	queue     QueueService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExpirySweeper constructs the sweeper.
func NewExpirySweeper(
	questions repository.QuestionRepository,
	entries repository.QueueRepository,
	rankings repository.RankingRepository,
	queue QueueService,
	logger zerolog.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		questions: questions,
		entries:   entries,
		rankings:  rankings,
		queue:     queue,
		logger:    logger.With().Str("component", "expiry_sweeper").Logger(),
		now:       time.Now,
	}
}

// Sweep expires every lapsed assignment. One question's failure is logged
// and skipped; it never aborts the rest of the batch.
func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	questions, err := s.questions.ListExpiredAssignments(ctx, s.now())
	if err != nil {
		return err
	}

	for _, question := range questions {
		if err := s.sweepOne(ctx, question); err != nil {
			observability.SweepErrors().Inc()
			s.logger.Error().Err(err).Uint("question_id", question.ID).Msg("failed to sweep expired assignment")
		}
	}

	return nil
}

func (s *ExpirySweeper) sweepOne(ctx context.Context, question models.Question) error {
	entry, err := s.entries.GetActive(ctx, question.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Resolved between the listing and now.
			return nil
		}
		return err
	}

	if err := s.entries.Resolve(ctx, entry, models.QueueEntryStatusExpired, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The expert's accept won the race; the assignment stands.
			return nil
		}
		return err
	}

	observability.SweepExpired().Inc()
	s.logger.Info().
		Uint("question_id", question.ID).
		Uint("expert_id", entry.ExpertID).
		Int("position", entry.Position).
		Msg("assignment expired")

	if err := s.rankings.ApplyExpiryPenalty(ctx, entry.ExpertID); err != nil {
		s.logger.Warn().Err(err).Uint("expert_id", entry.ExpertID).Msg("failed to apply expiry penalty")
	}

	return s.queue.Escalate(ctx, question.ID)
}
