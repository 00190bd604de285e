package middleware

import (
	"context"
	"errors"
	"net/http"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error as a JSON body. Errors that are not
// errutil.BaseError become a generic 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		switch {
		case errors.As(last.Err, &be):
			if be.Code.HTTPStatus() >= http.StatusInternalServerError {
				logger.FromContext(c.Request.Context()).Error("request failed",
					zap.String("path", c.FullPath()), zap.Error(last.Err))
			}
			c.JSON(be.Code.HTTPStatus(), be.JSON())
		case errors.Is(last.Err, context.Canceled):
			c.AbortWithStatus(errutil.StatusClientClosedRequest.HTTPStatus())
		default:
			logger.FromContext(c.Request.Context()).Error("unhandled error",
				zap.String("path", c.FullPath()), zap.Error(last.Err))
			c.JSON(http.StatusInternalServerError, errutil.BaseError{
				Code:    errutil.StatusInternal,
				Message: "internal server error",
			}.JSON())
		}
	}
}
