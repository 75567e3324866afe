package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/metrics"
	u "pdf-generator/internal/utils"
)

// httpError maps a domain error to a fiber error carrying a stable message.
// Conversion errors are logged in full but only summarized to the client,
// since browser errors can mention temporary file paths.
func httpError(err error) *fiber.Error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}

	switch {
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, clientMessage(err, domain.ErrUnsupportedMediaType))
	case errors.Is(err, domain.ErrBadInput):
		return fiber.NewError(fiber.StatusBadRequest, clientMessage(err, domain.ErrBadInput))
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, clientMessage(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrRenderFailure):
		return fiber.NewError(fiber.StatusInternalServerError, "Template rendering failed: "+clientMessage(err, domain.ErrRenderFailure))
	case errors.Is(err, domain.ErrConversionFailure):
		return fiber.NewError(fiber.StatusInternalServerError, "PDF conversion failed")
	case errors.Is(err, domain.ErrWriteFailure):
		return fiber.NewError(fiber.StatusInternalServerError, "Writing PDF failed: "+clientMessage(err, domain.ErrWriteFailure))
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
	}
}

// clientMessage strips the sentinel prefix so bodies read "template \"x\""
// rather than "not found: template \"x\"".
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return msg[len(prefix):]
	}
	return msg
}

func outcome(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return metrics.OutcomeNotFound
	case status >= 400 && status < 500:
		return metrics.OutcomeBadInput
	case status >= 500:
		return metrics.OutcomeServerError
	default:
		return metrics.OutcomeOK
	}
}

// fail logs err, counts it and returns the mapped fiber error.
func fail(c *fiber.Ctx, endpoint string, err error) error {
	fe := httpError(err)
	kv := []interface{}{"endpoint", endpoint, "status", fe.Code, "request_id", requestID(c), "error", err}
	if fe.Code >= fiber.StatusInternalServerError {
		u.Error("Request failed", kv...)
	} else {
		u.Warn("Request rejected", kv...)
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, outcome(fe.Code)).Inc()
	return fe
}

func requestID(c *fiber.Ctx) string {
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
