package handler

import (
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/veriq-app/veriq-go-api/internal/dto"
	"github.com/veriq-app/veriq-go-api/internal/service"
	"github.com/veriq-app/veriq-go-api/internal/utils"
)

// AnswerHandler wires answer submission, review and settlement HTTP routes.
type AnswerHandler struct {
	settlement service.SettlementService
	documents  service.DocumentService
	logger     zerolog.Logger
}

// NewAnswerHandler constructs the handler.
func NewAnswerHandler(settlement service.SettlementService, documents service.DocumentService, logger zerolog.Logger) *AnswerHandler {
	return &AnswerHandler{
		settlement: settlement,
		documents:  documents,
		logger:     logger.With().Str("component", "answer_handler").Logger(),
	}
}

// Register attaches answer endpoints to the router group.
func (h *AnswerHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Post("/documents", h.uploadDocument)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Post("/transactions/:id/process", h.process)
}

func (h *AnswerHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, verdict, err := h.settlement.OnSubmission(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer submitted", fiber.Map{
		"answer":   answer,
		"veracity": verdict,
	})
}

func (h *AnswerHandler) uploadDocument(c *fiber.Ctx) error {
	if h.documents == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "document storage not configured")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	url, err := h.documents.UploadSupportingDocument(c.Context(), fileHeader.Filename, data)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document stored", fiber.Map{"url": url})
}

func (h *AnswerHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var action struct {
		ReviewerID uint `json:"reviewer_id"`
	}
	if err := c.BodyParser(&action); err != nil || action.ReviewerID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "reviewer_id required")
	}

	txn, err := h.settlement.Approve(c.Context(), id, action.ReviewerID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer approved", txn)
}

func (h *AnswerHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RejectAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.settlement.Reject(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer rejected", answer)
}

func (h *AnswerHandler) process(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	txn, err := h.settlement.Process(c.Context(), id)
	if err != nil && txn.ID == 0 {
		return h.handleError(c, err)
	}

	// A failed settlement attempt still returns the transaction record.
	return utils.SendSuccess(c, "settlement processed", txn)
}

func (h *AnswerHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAnswerNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer not found")
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrTransactionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "transaction not found")
	case errors.Is(err, service.ErrNotAssignedExpert):
		return utils.SendError(c, fiber.StatusForbidden, "not your assignment")
	case errors.Is(err, service.ErrAssignmentNotActive):
		return utils.SendError(c, fiber.StatusConflict, "assignment not active")
	case errors.Is(err, service.ErrAlreadyReviewed):
		return utils.SendError(c, fiber.StatusConflict, "answer already reviewed")
	case errors.Is(err, service.ErrAlreadyApproved):
		return utils.SendError(c, fiber.StatusConflict, "answer already approved")
	case errors.Is(err, service.ErrBelowThreshold):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "veracity score below payment threshold")
	case errors.Is(err, service.ErrDocumentTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "document exceeds size limit")
	case errors.Is(err, service.ErrDocumentTypeNotAllowed):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, "document type not allowed")
	}

	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	h.logger.Error().Err(err).Msg("answer request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
