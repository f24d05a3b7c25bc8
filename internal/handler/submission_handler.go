package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/service"
	"github.com/noah-isme/ora-go-api/internal/utils"
)

type SubmissionHandler struct {
	submissions service.SubmissionService
}

func NewSubmissionHandler(submissions service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Create records a student response and starts its assessment workflow.
func (h *SubmissionHandler) Create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

// Get returns a single submission by its UUID.
func (h *SubmissionHandler) Get(c *fiber.Ctx) error {
	submissionUUID := c.Params("uuid")

	submission, err := h.submissions.Get(c.UserContext(), submissionUUID)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}
