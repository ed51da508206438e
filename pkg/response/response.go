package response

import (
	"net/http"

	appErrors "github.com/charlesng35/vibefs/pkg/errors"
	"github.com/gin-gonic/gin"
)

// ErrorCodeHeader carries the AppError code alongside plain-text error bodies.
const ErrorCodeHeader = "X-Error-Code"

// Response defines the JSON payload of the operational endpoints.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Error writes a plain-text error body derived from an AppError and aborts the
// handler chain. Resource links are opened in browsers, so no JSON here.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.Header(ErrorCodeHeader, appErr.Code)
	c.String(status, appErr.Message)
	c.Abort()
}
