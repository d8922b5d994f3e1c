package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// Error sends a JSON error response.
// Domain errors carrying structured details are rendered with them. AppErrors
// use their own status code. Anything else is logged and reported as 500.
func Error(c *gin.Context, err error) {
	var detailed apperror.Detailed
	if errors.As(err, &detailed) {
		c.JSON(detailed.StatusCode(), ErrorResponse{Error: detailed.Error(), Details: detailed.Details()})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, ErrorResponse{Error: appErr.Message})
		return
	}

	zap.L().Error("unhandled request error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// BadRequest reports a binding or validation failure.
func BadRequest(c *gin.Context, message string, err error) {
	body := ErrorResponse{Error: message}
	if err != nil {
		body.Details = map[string]any{"reason": err.Error()}
	}
	c.JSON(http.StatusBadRequest, body)
}
