package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/service"
	"github.com/noah-isme/ora-go-api/internal/utils"
)

type PeerHandler struct {
	peers service.PeerService
}

func NewPeerHandler(peers service.PeerService) *PeerHandler {
	return &PeerHandler{peers: peers}
}

// GetTarget assigns and returns the next submission the requesting student
// should peer grade. A 200 with null data means nothing is gradable right now.
func (h *PeerHandler) GetTarget(c *fiber.Ctx) error {
	payload := dto.PeerTargetRequest{
		SubmissionUUID: c.Query("submission_uuid"),
		MustBeGradedBy: c.QueryInt("must_be_graded_by"),
	}

	target, err := h.peers.GetSubmissionToAssess(c.UserContext(), payload)
	if err != nil {
		return handleError(c, err)
	}

	if target == nil {
		return utils.SendSuccess(c, "no submission available for peer assessment", nil)
	}

	return utils.SendSuccess(c, "peer submission assigned", target)
}

// CreateAssessment scores the requesting student's currently claimed
// submission.
func (h *PeerHandler) CreateAssessment(c *fiber.Ctx) error {
	var payload dto.PeerAssessmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assessment, err := h.peers.CreateAssessment(c.UserContext(), payload)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "peer assessment created", assessment)
}
