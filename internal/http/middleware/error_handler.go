package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
)

// ErrorHandler turns errors attached to the gin context into JSON
// responses. AppError carries its own status and public message;
// anything else is masked as an internal error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		statusCode := http.StatusInternalServerError
		code := apperror.ErrCodeInternal
		message := "internal server error"

		var appErr *apperror.AppError
		if errors.As(err.Err, &appErr) {
			statusCode = appErr.HTTPStatus
			code = appErr.Code
			message = appErr.Message
		}

		if logger.Log != nil && statusCode >= http.StatusInternalServerError {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		c.JSON(statusCode, gin.H{"error": message, "code": code})
	}
}
