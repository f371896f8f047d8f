package rpc

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dmitry-Gorlach/baraka/pkg/errors"
	"github.com/Dmitry-Gorlach/baraka/pkg/logger"
	"github.com/Dmitry-Gorlach/baraka/pkg/util"
)

const headerRequestID = "X-Request-ID"

// RequestID propagates the caller's request id, generating one when the
// header is absent, and stores it on the request context for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := util.WithRequestID(c.Request.Context(), c.GetHeader(headerRequestID))
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, util.GetRequestID(ctx))
		c.Next()
	}
}

// Recovery turns any panic below into a logged 500 with a generic body, so an
// unanticipated fault never leaks internals to the caller.
func Recovery(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", r)
				}
				log.ErrorContext(c.Request.Context(), errors.TracerFromError(err),
					logger.Field{Key: "path", Value: c.Request.URL.Path},
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}
