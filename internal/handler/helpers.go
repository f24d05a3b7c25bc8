package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/service"
	"github.com/noah-isme/ora-go-api/internal/utils"
)

// handleError maps service-layer errors to HTTP status codes.
func handleError(c *fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, models.ErrInvalidRubric),
		errors.Is(err, models.ErrInvalidOptionSelection),
		errors.Is(err, service.ErrUnknownStep),
		errors.Is(err, service.ErrNotSubmissionOwner),
		errors.Is(err, service.ErrNoClaimedSubmission):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrWorkflowNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrWorkflowExists),
		errors.Is(err, service.ErrWorkflowTerminal),
		errors.Is(err, service.ErrSelfAssessmentExists):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPeerAssessmentWorkflow),
		errors.Is(err, service.ErrWorkflowConflict):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrAIGradingUnavailable):
		return utils.SendError(c, fiber.StatusNotImplemented, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
