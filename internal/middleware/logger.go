package middleware

import (
	"net/http"
	"time"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ZLogMiddleware logs every request and turns the last handler error into
// an {"error": ...} response with the status its kind maps to.
func ZLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		if len(c.Errors) != 0 {
			err := c.Errors.Last().Err
			status := errs.Status(err)

			event := log.Debug()
			if status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")

			if !c.Writer.Written() {
				c.AbortWithStatusJSON(status, types.ErrorResponse{Error: errs.Message(err)})
			}
		}

		var event *zerolog.Event
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Warn()
		} else {
			event = log.Info()
		}

		event.
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(startTime)).
			Str("ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("")
	}
}
