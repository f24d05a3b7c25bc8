package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/service"
	"github.com/noah-isme/ora-go-api/internal/utils"
)

type WorkflowHandler struct {
	workflows service.WorkflowService
}

func NewWorkflowHandler(workflows service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

// GetInfo refreshes and returns the workflow for a submission. Peer step
// requirements travel as query parameters because the content provider owns
// them, not the workflow store.
func (h *WorkflowHandler) GetInfo(c *fiber.Ctx) error {
	submissionUUID := c.Params("uuid")
	requirements := requirementsFromQuery(c)

	info, err := h.workflows.GetInfo(c.UserContext(), submissionUUID, requirements)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccess(c, "workflow retrieved", info)
}

// Update recomputes the workflow status from stored assessments.
func (h *WorkflowHandler) Update(c *fiber.Ctx) error {
	submissionUUID := c.Params("uuid")

	var requirements dto.WorkflowRequirements
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&requirements); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	workflow, err := h.workflows.Update(c.UserContext(), submissionUUID, requirements)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccess(c, "workflow updated", workflow)
}

// Cancel permanently cancels the workflow for a submission.
func (h *WorkflowHandler) Cancel(c *fiber.Ctx) error {
	submissionUUID := c.Params("uuid")

	var payload dto.WorkflowCancelRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.workflows.Cancel(c.UserContext(), submissionUUID, payload); err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccess(c, "workflow cancelled", nil)
}

func requirementsFromQuery(c *fiber.Ctx) dto.WorkflowRequirements {
	return dto.WorkflowRequirements{
		Peer: dto.PeerRequirements{
			MustGrade:      c.QueryInt("must_grade"),
			MustBeGradedBy: c.QueryInt("must_be_graded_by"),
		},
	}
}
