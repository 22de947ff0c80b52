package middleware

import (
	"bytes"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/perkhub/loyalty-gateway/internal/idempotency"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
)

const idempotencyHeader = "Idempotency-Key"

// bodyRecorder tees the response body so a successful mutation can be cached
// verbatim for replay.
type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// IdempotencyMiddleware makes mutating requests carrying an Idempotency-Key
// safe to retry. The key is claimed before the handler runs; a completed
// claim replays the cached response, a live claim answers 409, and a handler
// failure releases the claim so the client can retry. Requests without the
// header pass through untouched.
func IdempotencyMiddleware(store *idempotency.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
			if key == "" || len(key) > 128 {
				return next(c)
			}
			bizID, ok := BusinessIDFromCtx(c)
			if !ok || bizID <= 0 {
				return next(c)
			}

			ctx := c.Request().Context()
			t := store.Begin(ctx, bizID, key)

			switch t.Outcome {
			case idempotency.OutcomeReplay:
				metrics.IdempotencyHitsTotal.Inc()
				return c.Blob(t.Status, echo.MIMEApplicationJSON, t.Body)

			case idempotency.OutcomeInProgress:
				return c.JSON(http.StatusConflict, map[string]string{
					"error":       "in_progress",
					"description": "a request with this idempotency key is still being processed",
				})

			case idempotency.OutcomeBypass:
				return next(c)
			}

			// Owned: run the handler and record the outcome.
			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec

			err := next(c)
			status := c.Response().Status

			if err == nil && status >= 200 && status < 300 {
				store.Complete(ctx, bizID, key, status, rec.buf.Bytes())
			} else {
				store.Abort(ctx, bizID, key)
			}
			return err
		}
	}
}
