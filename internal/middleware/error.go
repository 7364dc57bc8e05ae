package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/logger"
)

// ErrorHandler returns a Gin middleware that converts errors set on the Gin
// context into consistent JSON error responses. AppErrors are returned with
// their code and message; unexpected errors are logged and return a generic
// internal error to avoid leaking details.
//
// Handlers that stream a body (CSV export, the websocket upgrade) may fail
// after the status line is out. Those errors are logged only, since a JSON
// envelope would be appended to whatever was already sent.
func ErrorHandler() gin.HandlerFunc {
	return errorHandler(logger.Named("http"))
}

func errorHandler(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Process the last error (most relevant in a middleware chain)
		err := c.Errors.Last().Err
		fields := []interface{}{
			"request_id", c.GetString(requestIDKey),
			"user_id", c.GetString(UserIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
		}

		if c.Writer.Written() {
			log.Errorw("error after response started", append(fields, "error", err.Error(), "status", c.Writer.Status())...)
			return
		}

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.Internal != nil {
				log.Errorw("app error", append(fields,
					"code", appErr.Code,
					"message", appErr.Message,
					"internal", appErr.Internal.Error(),
				)...)
			}
			c.JSON(appErr.StatusCode, gin.H{
				"error": gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				},
			})
			return
		}

		// Unexpected error: log full details, return generic message
		log.Errorw("unexpected error", append(fields, "error", err.Error())...)
		c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
			"error": gin.H{
				"code":    apperrors.ErrInternalServer.Code,
				"message": apperrors.ErrInternalServer.Message,
			},
		})
	}
}
