package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veriq-app/veriq-go-api/internal/config"
	"github.com/veriq-app/veriq-go-api/internal/handler"
	"github.com/veriq-app/veriq-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QuestionHandler    *handler.QuestionHandler
	AnswerHandler      *handler.AnswerHandler
	LeaderboardHandler *handler.LeaderboardHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "app": cfg.AppName})
	})
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(api.Group("/questions"))
	}

	if deps.AnswerHandler != nil {
		deps.AnswerHandler.Register(api.Group("/answers"))
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/leaderboard"))
	}
}
