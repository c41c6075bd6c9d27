package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
	"github.com/jwalitptl/healthoffice-api/pkg/httputil"
)

// ErrorHandler logs errors attached to the request and answers for handlers
// that recorded an error without writing a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			code := apperrors.CodeOf(e.Err)
			event := log.Warn()
			if httputil.HTTPStatus(code) >= 500 {
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("code", code.String()).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if !c.Writer.Written() {
			httputil.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}
