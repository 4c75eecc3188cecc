package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/veriq-app/veriq-go-api/internal/dto"
	"github.com/veriq-app/veriq-go-api/internal/service"
	"github.com/veriq-app/veriq-go-api/internal/utils"
)

// QuestionHandler wires question and assignment HTTP routes.
type QuestionHandler struct {
	questions service.QuestionService
	queue     service.QueueService
	logger    zerolog.Logger
}

// NewQuestionHandler constructs the handler.
func NewQuestionHandler(questions service.QuestionService, queue service.QueueService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questions: questions,
		queue:     queue,
		logger:    logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register attaches question endpoints to the router group.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Get("/:id/queue", h.listQueue)
	router.Post("/:id/accept", h.accept)
	router.Post("/:id/decline", h.decline)
}

func (h *QuestionHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateQuestionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	question, queue, err := h.questions.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question created", fiber.Map{
		"question": question,
		"queue":    queue,
	})
}

func (h *QuestionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	question, err := h.questions.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "question retrieved", question)
}

func (h *QuestionHandler) listQueue(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.questions.Queue(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "queue retrieved", entries)
}

func (h *QuestionHandler) accept(c *fiber.Ctx) error {
	id, action, err := h.assignmentAction(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.queue.Accept(c.Context(), id, action.ExpertID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment accepted", nil)
}

func (h *QuestionHandler) decline(c *fiber.Ctx) error {
	id, action, err := h.assignmentAction(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.queue.Decline(c.Context(), id, action.ExpertID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment declined", nil)
}

func (h *QuestionHandler) assignmentAction(c *fiber.Ctx) (uint, dto.AssignmentActionRequest, error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return 0, dto.AssignmentActionRequest{}, err
	}

	var action dto.AssignmentActionRequest
	if err := c.BodyParser(&action); err != nil {
		return 0, dto.AssignmentActionRequest{}, errors.New("invalid request body")
	}
	if action.ExpertID == 0 {
		return 0, dto.AssignmentActionRequest{}, errors.New("expert_id required")
	}

	return id, action, nil
}

func (h *QuestionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrQuestionNotOpen):
		return utils.SendError(c, fiber.StatusConflict, "question is not open")
	case errors.Is(err, service.ErrNotAssignedExpert):
		return utils.SendError(c, fiber.StatusForbidden, "not your assignment")
	case errors.Is(err, service.ErrAlreadyResolved):
		return utils.SendError(c, fiber.StatusConflict, "question already resolved")
	case errors.Is(err, service.ErrAssignmentExpired):
		return utils.SendError(c, fiber.StatusConflict, "assignment expired")
	case errors.Is(err, service.ErrAssignmentNotActive):
		return utils.SendError(c, fiber.StatusConflict, "assignment not active")
	}

	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	h.logger.Error().Err(err).Msg("question request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}
