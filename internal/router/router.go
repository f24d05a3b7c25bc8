package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/config"
	"github.com/noah-isme/ora-go-api/internal/handler"
	"github.com/noah-isme/ora-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	AssessmentHandler *handler.AssessmentHandler
	PeerHandler       *handler.PeerHandler
	WorkflowHandler   *handler.WorkflowHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions")
		submissions.Post("", deps.SubmissionHandler.Create)
		submissions.Get("/:uuid", deps.SubmissionHandler.Get)
	}

	if deps.AssessmentHandler != nil {
		assessments := api.Group("/assessments")
		assessments.Post("", deps.AssessmentHandler.Create)
		assessments.Get("", deps.AssessmentHandler.List)
		assessments.Post("/ai", deps.AssessmentHandler.GradeWithAI)
	}

	if deps.PeerHandler != nil {
		peer := api.Group("/peer")
		peer.Get("/target", deps.PeerHandler.GetTarget)
		peer.Post("/assessments", deps.PeerHandler.CreateAssessment)
	}

	if deps.WorkflowHandler != nil {
		workflows := api.Group("/workflows")
		workflows.Get("/:uuid", deps.WorkflowHandler.GetInfo)
		workflows.Post("/:uuid/update", deps.WorkflowHandler.Update)
		workflows.Post("/:uuid/cancel", deps.WorkflowHandler.Cancel)
	}
}
