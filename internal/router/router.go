package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openvbs/arbiter/internal/config"
	"github.com/openvbs/arbiter/internal/handler"
	"github.com/openvbs/arbiter/internal/middleware"
	"github.com/openvbs/arbiter/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RunHandler        *handler.RunHandler
	SubmissionHandler *handler.SubmissionHandler
	ScoreHandler      *handler.ScoreHandler
	AuditHandler      *handler.AuditHandler
	ViewerHandler     *handler.ViewerHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.RunHandler != nil {
		runs := app.Group("/api/v1/runs", jwtMiddleware)
		deps.RunHandler.Register(runs)

		if deps.SubmissionHandler != nil {
			submissions := runs.Group("/:id/submissions")
			submissions.Use(middleware.RateLimit("submissions", 10, time.Second))
			deps.SubmissionHandler.Register(submissions)
		}

		if deps.ScoreHandler != nil {
			scores := runs.Group("/:id/scores")
			deps.ScoreHandler.Register(scores)
		}
	}

	if deps.AuditHandler != nil {
		audit := app.Group("/api/v1/audit", jwtMiddleware,
			middleware.RequireRole(middleware.AuthRoleAdmin))
		deps.AuditHandler.Register(audit)
	}

	// viewer websockets carry their identity in the query string, not a JWT
	if deps.ViewerHandler != nil {
		app.Get("/api/v1/runs/:id/ws", deps.ViewerHandler.Upgrade, deps.ViewerHandler.Serve())
	}
}
