package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithMessage sends a success response carrying only a message.
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Status:  StatusSuccess,
		Message: message,
	})
}

// RespondWithError maps err onto a status code and aborts the chain.
// Internal details never reach the client.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status = appErr.StatusCode()
		if appErr.Code != errors.ErrInternal {
			message = appErr.Message
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Status:  StatusError,
		Message: message,
	})
}

// RespondWithBindError reports a request that failed binding or validation.
func RespondWithBindError(c *gin.Context, err error) {
	RespondWithError(c, errors.Validation(validator.Describe(err), err))
}
