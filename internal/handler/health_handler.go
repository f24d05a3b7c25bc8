package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ora-go-api/internal/config"
	"github.com/noah-isme/ora-go-api/internal/utils"
)

// HealthResponse is the liveness payload. Redis and NATS are optional
// dependencies here, so their absence is degraded operation, not an outage,
// and the endpoint does not probe them.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck reports process liveness for the assessment engine.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "assessment engine healthy", payload)
	}
}
