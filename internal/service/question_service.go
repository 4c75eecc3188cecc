package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/dto"
	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/repository"
)

// QuestionService creates questions and exposes their state and queue.
type QuestionService interface {
	Create(ctx context.Context, payload dto.CreateQuestionRequest) (dto.QuestionResponse, []dto.QueueEntryResponse, error)
	Get(ctx context.Context, id uint) (dto.QuestionResponse, error)
	Queue(ctx context.Context, id uint) ([]dto.QueueEntryResponse, error)
}

type questionService struct {
	questions repository.QuestionRepository
	entries   repository.QueueRepository
	queue     QueueService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewQuestionService constructs the question service.
func NewQuestionService(
	questions repository.QuestionRepository,
	entries repository.QueueRepository,
	queue QueueService,
	validate *validator.Validate,
	logger zerolog.Logger,
) QuestionService {
	return &questionService{
		questions: questions,
		entries:   entries,
		queue:     queue,
		validator: validate,
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

// Create persists the question with its escrow and immediately builds the
// candidate queue against it.
func (s *questionService) Create(ctx context.Context, payload dto.CreateQuestionRequest) (dto.QuestionResponse, []dto.QueueEntryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, nil, err
	}

	question := models.Question{
		Text:         payload.Text,
		Sector:       payload.Sector,
		EscrowAmount: payload.EscrowAmount,
		Status:       models.QuestionStatusOpen,
	}
	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, nil, err
	}

	queue, err := s.queue.BuildQueue(ctx, question.ID)
	if err != nil {
		return dto.QuestionResponse{}, nil, err
	}

	created, err := s.questions.GetByID(ctx, question.ID)
	if err != nil {
		return dto.QuestionResponse{}, nil, err
	}

	s.logger.Info().Uint("question_id", question.ID).Int("queue_size", len(queue)).Msg("question created")
	return dto.NewQuestionResponse(created), queue, nil
}

func (s *questionService) Get(ctx context.Context, id uint) (dto.QuestionResponse, error) {
	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Queue(ctx context.Context, id uint) ([]dto.QueueEntryResponse, error) {
	if _, err := s.questions.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	entries, err := s.entries.ListByQuestion(ctx, id)
	if err != nil {
		return nil, err
	}

	return dto.NewQueueEntryResponseSlice(entries), nil
}
