package app

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdf-generator/internal/handlers"
	u "pdf-generator/internal/utils"
)

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, cred u.Credential, svc *handlers.PDFService) *fiber.App {
	bodyLimit := cfg.Limits.MaxBodyBytes
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				msg = e.Message
			}

			if code >= fiber.StatusInternalServerError {
				u.Error("Request failed", "path", c.Path(), "status", code, "message", msg)
			}

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	ready := func() bool {
		info, err := os.Stat(svc.Resolver.Root())
		return err == nil && info.IsDir()
	}
	RegisterMiddleware(app, cfg, cred, ready)
	RegisterRoutes(app, svc)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, svc *handlers.PDFService) {
	api := app.Group("/api")

	api.Get("/health", handlers.HandleHealth)
	api.Post("/generate-pdf", svc.HandleGeneratePDF)
	api.Get("/render-template", svc.HandleRenderTemplate)

	api.Get("/chrome/stats", svc.HandleChromeStats)
	api.Get("/generations", svc.HandleGenerations)
	api.Get("/monitor", monitor.New(monitor.Config{Title: "pdf-generator"}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
