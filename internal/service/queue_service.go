package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/dto"
	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/observability"
	"github.com/veriq-app/veriq-go-api/internal/repository"
	"github.com/veriq-app/veriq-go-api/internal/scoring"
	"github.com/veriq-app/veriq-go-api/pkg/ai"
)

// ErrQuestionNotFound indicates the question was not located.
var ErrQuestionNotFound = errors.New("question not found")

// ErrQuestionNotOpen indicates a queue build was requested for a question
// that already has one or reached a terminal state.
var ErrQuestionNotOpen = errors.New("question is not open")

// ErrNotAssignedExpert indicates the caller does not hold the active assignment.
var ErrNotAssignedExpert = errors.New("not your assignment")

// ErrAlreadyResolved indicates the question reached a terminal state.
var ErrAlreadyResolved = errors.New("question already resolved")

// ErrAssignmentExpired indicates the response window has lapsed.
var ErrAssignmentExpired = errors.New("assignment expired")

// ErrAssignmentNotActive indicates no live assignment exists, or a competing
// transition (typically the expiry sweeper) already resolved it.
var ErrAssignmentNotActive = errors.New("assignment not active")

// QueueService owns the candidate queue per question, the single active
// assignment and its deadline, and the escalation path.
type QueueService interface {
	BuildQueue(ctx context.Context, questionID uint) ([]dto.QueueEntryResponse, error)
	Accept(ctx context.Context, questionID, expertID uint) error
	Decline(ctx context.Context, questionID, expertID uint) error
	Escalate(ctx context.Context, questionID uint) error
	Forfeit(ctx context.Context, questionID uint) error
}

type queueService struct {
	questions      repository.QuestionRepository
	entries        repository.QueueRepository
	experts        repository.ExpertRepository
	extractor      ai.Extractor
	fallback       ai.Extractor
	notifier       NotificationSender
	logger         zerolog.Logger
	tracer         trace.Tracer
	now            func() time.Time
	responseWindow time.Duration
	topN           int
}

// NewQueueService constructs the queue engine.
func NewQueueService(
	questions repository.QuestionRepository,
	entries repository.QueueRepository,
	experts repository.ExpertRepository,
	extractor ai.Extractor,
	notifier NotificationSender,
	responseWindow time.Duration,
	topN int,
	logger zerolog.Logger,
) QueueService {
	if responseWindow <= 0 {
		responseWindow = 3 * time.Hour
	}
	if topN <= 0 {
		topN = 10
	}

	return &queueService{
		questions:      questions,
		entries:        entries,
		experts:        experts,
		extractor:      extractor,
		fallback:       ai.FallbackExtractor{},
		notifier:       notifier,
		logger:         logger.With().Str("component", "queue_service").Logger(),
		tracer:         otel.Tracer("github.com/veriq-app/veriq-go-api/internal/service/queue"),
		now:            time.Now,
		responseWindow: responseWindow,
		topN:           topN,
	}
}

// BuildQueue ranks every eligible expert against the question, persists the
// top candidates at positions 1..N and activates position 1.
func (s *queueService) BuildQueue(ctx context.Context, questionID uint) ([]dto.QueueEntryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "queue.build", trace.WithAttributes(
		attribute.Int64("question.id", int64(questionID)),
	))
	defer span.End()

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	if question.Status != models.QuestionStatusOpen {
		return nil, ErrQuestionNotOpen
	}

	entities := s.extract(ctx, question.Text)

	experts, err := s.experts.ListEligible(ctx)
	if err != nil {
		return nil, err
	}

	if len(experts) == 0 {
		if _, err := s.entries.MarkNoExperts(ctx, questionID); err != nil {
			return nil, err
		}
		s.logger.Warn().Uint("question_id", questionID).Msg("no eligible experts for question")
		return nil, nil
	}

	type ranked struct {
		expert models.Expert
		score  int
	}

	candidates := make([]ranked, 0, len(experts))
	for _, expert := range experts {
		total, _ := scoring.Relevance(expert, entities)
		candidates = append(candidates, ranked{expert: expert, score: total})
	}

	// Stable tie-break on expert id keeps rebuilds deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].expert.ID < candidates[j].expert.ID
	})

	if len(candidates) > s.topN {
		candidates = candidates[:s.topN]
	}

	entries := make([]models.QueueEntry, 0, len(candidates))
	for i, candidate := range candidates {
		entries = append(entries, models.QueueEntry{
			QuestionID:     questionID,
			ExpertID:       candidate.expert.ID,
			Position:       i + 1,
			RelevanceScore: candidate.score,
			Status:         models.QueueEntryStatusWaiting,
		})
	}

	if err := s.entries.CreateEntries(ctx, entries); err != nil {
		return nil, err
	}

	if err := s.assign(ctx, questionID, entries[0]); err != nil {
		return nil, err
	}

	persisted, err := s.entries.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("queue.size", len(persisted)))
	return dto.NewQueueEntryResponseSlice(persisted), nil
}

// extract runs the entity extractor and degrades to the deterministic
// keyword fallback when the collaborator is unavailable or returns nothing.
func (s *queueService) extract(ctx context.Context, questionText string) ai.Extraction {
	if s.extractor != nil {
		entities, err := s.extractor.Extract(ctx, questionText)
		if err == nil && !entities.Empty() {
			return entities
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("entity extractor unavailable, using keyword fallback")
		}
	}

	entities, _ := s.fallback.Extract(ctx, questionText)
	return entities
}

func (s *queueService) assign(ctx context.Context, questionID uint, entry models.QueueEntry) error {
	deadline := s.now().Add(s.responseWindow)

	if err := s.entries.Activate(ctx, entry.ID, questionID, entry.ExpertID, deadline); err != nil {
		return err
	}

	observability.Assignments().WithLabelValues("assigned").Inc()
	s.logger.Info().
		Uint("question_id", questionID).
		Uint("expert_id", entry.ExpertID).
		Int("position", entry.Position).
		Time("deadline", deadline).
		Msg("assignment activated")

	if s.notifier != nil {
		s.notifier.AssignmentOffered(ctx, entry.ExpertID, questionID, deadline)
	}

	return nil
}

// Accept records the expert's response inside the window. The conditional
// update on the entry guarantees accept and expire cannot both win.
func (s *queueService) Accept(ctx context.Context, questionID, expertID uint) error {
	entry, err := s.activeEntry(ctx, questionID, expertID)
	if err != nil {
		return err
	}

	if err := s.entries.RecordResponse(ctx, entry.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAssignmentNotActive
		}
		return err
	}

	observability.Assignments().WithLabelValues("accepted").Inc()
	return nil
}

// Decline releases the assignment and escalates to the next candidate.
func (s *queueService) Decline(ctx context.Context, questionID, expertID uint) error {
	entry, err := s.activeEntry(ctx, questionID, expertID)
	if err != nil {
		return err
	}

	if err := s.entries.Resolve(ctx, entry, models.QueueEntryStatusDeclined, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAssignmentNotActive
		}
		return err
	}

	observability.Assignments().WithLabelValues("declined").Inc()
	return s.Escalate(ctx, questionID)
}

// activeEntry validates the common accept/decline preconditions and returns
// the caller's live entry. Every failure is a typed, fail-closed error.
func (s *queueService) activeEntry(ctx context.Context, questionID, expertID uint) (models.QueueEntry, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QueueEntry{}, ErrQuestionNotFound
		}
		return models.QueueEntry{}, err
	}

	if question.IsResolved() {
		return models.QueueEntry{}, ErrAlreadyResolved
	}

	entry, err := s.entries.GetActive(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QueueEntry{}, ErrAssignmentNotActive
		}
		return models.QueueEntry{}, err
	}

	if entry.ExpertID != expertID {
		return models.QueueEntry{}, ErrNotAssignedExpert
	}

	if question.AssignmentDue == nil || !s.now().Before(*question.AssignmentDue) {
		return models.QueueEntry{}, ErrAssignmentExpired
	}

	return entry, nil
}

// Escalate hands the question to the lowest-position waiting candidate, or
// closes it out when the queue is exhausted. Idempotent on an empty queue.
func (s *queueService) Escalate(ctx context.Context, questionID uint) error {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if question.IsResolved() {
		return nil
	}

	next, err := s.entries.NextWaiting(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			transitioned, err := s.entries.MarkNoExperts(ctx, questionID)
			if err != nil {
				return err
			}
			if transitioned {
				s.logger.Warn().Uint("question_id", questionID).Msg("candidate queue exhausted")
			}
			return nil
		}
		return err
	}

	observability.Escalations().Inc()
	return s.assign(ctx, questionID, next)
}

// Forfeit closes out an accepted assignment whose answer failed the payment
// gate, then escalates to the next candidate.
func (s *queueService) Forfeit(ctx context.Context, questionID uint) error {
	if err := s.entries.ForfeitActive(ctx, questionID); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}

	return s.Escalate(ctx, questionID)
}
