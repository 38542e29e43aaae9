package serverutils

import (
	"errors"
	"time"

	"ai-saleschat-be/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps the error taxonomy to structured JSON.
// Every failure carries a human-readable reason; nothing surfaces as
// an opaque 500 unless it really is unexplained.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var denied *apperror.AdmissionDenied
		if errors.As(err, &denied) {
			ctx.Set("Retry-After", denied.RetryAfter.Round(time.Second).String())
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message":     "Too many requests",
				"reason":      denied.Error(),
				"retry_after": denied.RetryAfter.Seconds(),
			})
		}

		var invalid *apperror.InvalidTransition
		if errors.As(err, &invalid) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "Invalid stage transition",
				"reason":  invalid.Reason,
				"from":    invalid.From,
				"to":      invalid.To,
			})
		}

		if errors.Is(err, apperror.ErrSessionClosed) {
			return ctx.Status(fiber.StatusGone).JSON(fiber.Map{
				"message": "Session is closed",
				"reason":  "start a new conversation to continue",
			})
		}

		if errors.Is(err, apperror.ErrCacheBackendUnavailable) {
			return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "Cache backend unavailable",
				"reason":  err.Error(),
			})
		}

		var upstream *apperror.UpstreamUnavailable
		if errors.As(err, &upstream) {
			return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "Upstream unavailable",
				"reason":  upstream.Error(),
			})
		}

		var aborted *apperror.PlanAborted
		if errors.As(err, &aborted) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "Plan aborted",
				"reason":  aborted.Explanation,
				"partial": aborted.Partial,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{
				"message": fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
			"reason":  err.Error(),
		})
	}
}
