package apiutil

import (
	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const problemContentType = "application/problem+json"

// RFC7807ErrorMiddleware renders the last error attached with c.Error as an
// RFC 7807 problem document, unless the handler already wrote a response.
func RFC7807ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ginErr := c.Errors.Last()
		err := ginErr.Err
		if ginErr.IsType(gin.ErrorTypeBind) {
			err = BindingError(err)
		}

		problem := errors.ToProblemDetails(err, c.Request.URL.Path)
		if problem.Status >= 500 {
			logger.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err))
		}
		RFC7807ErrorResponse(c, problem)
		c.Abort()
	}
}

// GetTraceID returns the id used to correlate a problem document with logs.
func GetTraceID(c *gin.Context) string {
	if id := GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader("X-Trace-ID")
}

// RFC7807ErrorResponse writes problemDetails with the problem content type.
func RFC7807ErrorResponse(c *gin.Context, problemDetails *errors.ProblemDetails) {
	if traceID := GetTraceID(c); traceID != "" {
		problemDetails.WithTraceID(traceID)
	}

	c.Header("Content-Type", problemContentType)
	c.JSON(problemDetails.Status, problemDetails)
}
