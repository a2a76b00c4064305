package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"volumeapi/internal/apperror"
	"volumeapi/internal/http/middleware"
)

// errorPayload is the body of every failed response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// wireError is how one failure class looks on the wire. Backend detail never leaves the
// process, so hideDetails drops whatever the service attached.
type wireError struct {
	status      int
	code        string
	hideDetails bool
}

var kindToWire = map[apperror.Kind]wireError{
	apperror.KindValidation:      {fiber.StatusBadRequest, "VALIDATION_ERROR", false},
	apperror.KindNotFound:        {fiber.StatusNotFound, "NOT_FOUND", false},
	apperror.KindConflict:        {fiber.StatusConflict, "CONFLICT", false},
	apperror.KindRequestTooLarge: {fiber.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", false},
	apperror.KindBackend:         {fiber.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", true},
	apperror.KindPartial:         {fiber.StatusServiceUnavailable, "PARTIAL_FAILURE", true},
}

// statusToWire covers errors raised by fiber itself, before any handler ran.
var statusToWire = map[int]struct{ code, message string }{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusNotFound:              {"NOT_FOUND", "invalid URI"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {"REQUEST_TOO_LARGE", "request body too large"},
}

func writeError(c *fiber.Ctx, status int, code, message, details string) error {
	rid, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return c.Status(status).JSON(errorPayload{
		RequestID: rid,
		Error:     errorEnvelope{Code: code, Message: message, Details: details},
	})
}

func writeInternal(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", "")
}

// writeServiceError renders a service failure. Unclassified errors and the Internal kind
// become a bare 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return writeInternal(c)
	}
	w, ok := kindToWire[appErr.Kind]
	if !ok {
		return writeInternal(c)
	}
	details := appErr.Details
	if w.hideDetails {
		details = ""
	}
	return writeError(c, w.status, w.code, appErr.Message, details)
}

// ErrorHandler renders errors returned past the handlers (routing misses, body limit,
// panics recovered by fiber) in the same envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			return writeInternal(c)
		}
		if w, ok := statusToWire[fe.Code]; ok {
			return writeError(c, fe.Code, w.code, w.message, "")
		}
		return writeError(c, fe.Code, "INTERNAL_ERROR", "internal server error", "")
	}
}
