package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-categorizer/internal/logger"
)

const headerRequestID = "X-Request-ID"

// requestLogger tags each request with an id, stores a request-scoped
// logger in the user context and logs the outcome.
func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := c.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)

		l := log.With().Str("request_id", id).Logger()
		c.SetUserContext(logger.WithContext(c.UserContext(), l))

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status, _, _ = classify(err)
		}
		ev := l.Info()
		if status >= fiber.StatusInternalServerError {
			ev = l.Error().Err(err)
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
