package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/service"
	"github.com/noah-isme/ora-go-api/internal/utils"
)

type AssessmentHandler struct {
	assessments service.AssessmentService
	aiGrading   service.AIGradingService
}

func NewAssessmentHandler(assessments service.AssessmentService, aiGrading service.AIGradingService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, aiGrading: aiGrading}
}

// Create records a self, staff or AI assessment for a submission.
func (h *AssessmentHandler) Create(c *fiber.Ctx) error {
	var payload dto.AssessmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assessment, err := h.assessments.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment created", assessment)
}

// List returns the assessments recorded for a submission, optionally filtered
// by score type.
func (h *AssessmentHandler) List(c *fiber.Ctx) error {
	submissionUUID := c.Query("submission_uuid")
	if submissionUUID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "submission_uuid query parameter is required")
	}

	assessments, err := h.assessments.List(c.UserContext(), submissionUUID, c.Query("score_type"))
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccess(c, "assessments retrieved", assessments)
}

// GradeWithAI asks the configured model to grade a submission against the
// provided rubric and records the result as an assessment.
func (h *AssessmentHandler) GradeWithAI(c *fiber.Ctx) error {
	var payload dto.AIGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assessment, err := h.aiGrading.Grade(c.UserContext(), payload)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "ai assessment created", assessment)
}
