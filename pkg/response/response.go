package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tradegate/signal-gateway/internal/types"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind types.ErrorKind) int {
	switch kind {
	case types.KindUnknownKey, types.KindBadSignature, types.KindStaleTimestamp,
		types.KindFutureTimestamp, types.KindReplayedNonce:
		return http.StatusUnauthorized
	case types.KindRevoked:
		return http.StatusForbidden
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindValidation, types.KindInvalidRisk:
		return http.StatusBadRequest
	case types.KindTerminalUnavailable, types.KindExecutionTimeout:
		return http.StatusBadGateway
	case types.KindRejectedOrder, types.KindInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Handle processes the error and returns the appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}
	FromError(c, err)
}

// FromError writes the error response matching the error's kind. Rate-limit
// failures additionally carry a Retry-After header.
func FromError(c *gin.Context, err error) {
	var ge *types.GatewayError
	if errors.As(err, &ge) {
		if ge.Kind == types.KindRateLimited && ge.RetryAfter > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", int(ge.RetryAfter.Seconds())+1))
		}
		c.JSON(statusFor(ge.Kind), Response{
			Success: false,
			Error:   &Error{Code: string(ge.Kind), Message: ge.Message},
		})
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   &Error{Code: "DUPLICATE_RESOURCE", Message: "Resource already exists"},
		})
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// OK sends a successful response with a fixed 200 status regardless of method.
// Signal replies use it: a replayed signal is not a newly created resource.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error:   &Error{Code: "NOT_FOUND", Message: message},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &Error{Code: string(types.KindValidation), Message: message},
	})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   &Error{Code: "UNAUTHORIZED", Message: message},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   &Error{Code: string(types.KindInternal), Message: message},
	})
}
