package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/audit"
	"pdf-generator/internal/pdf"
	u "pdf-generator/internal/utils"
)

const maxGenerationsLimit = 200

// HandleHealth reports liveness. It is served without authentication.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "pdf-generator",
	})
}

// HandleChromeStats exposes basic observability for the Chrome pool (capacity / idle / in_use).
func (svc *PDFService) HandleChromeStats(c *fiber.Ctx) error {
	conv, ok := svc.Exporter.Converter().(*pdf.ChromeConverter)
	if !ok {
		return c.JSON(fiber.Map{
			"enabled": false,
			"engine":  svc.Config.PDF.Engine,
		})
	}

	s, err := conv.Stats()
	if err != nil {
		u.Error("Chrome pool init failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Chrome pool init failed")
	}
	return c.JSON(s)
}

// HandleGenerations lists the most recent audit records, newest first.
func (svc *PDFService) HandleGenerations(c *fiber.Ctx) error {
	lister, ok := svc.Audit.(audit.Lister)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Audit log is not enabled")
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxGenerationsLimit {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid limit: must be between 1 and 200")
	}

	recs, err := lister.Recent(c.UserContext(), int64(limit))
	if err != nil {
		u.Error("Listing audit records failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Listing audit records failed")
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	return c.JSON(fiber.Map{"generations": recs})
}
