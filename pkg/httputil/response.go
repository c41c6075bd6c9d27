package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all successful API responses
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  string                 `json:"status"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrNotFound:               http.StatusNotFound,
	apperrors.ErrBadRequest:             http.StatusBadRequest,
	apperrors.ErrUnauthorized:           http.StatusUnauthorized,
	apperrors.ErrForbidden:              http.StatusForbidden,
	apperrors.ErrPolicyDenied:           http.StatusForbidden,
	apperrors.ErrInvalidTransition:      http.StatusConflict,
	apperrors.ErrConcurrentModification: http.StatusConflict,
	apperrors.ErrPersistence:            http.StatusInternalServerError,
	apperrors.ErrInternal:               http.StatusInternalServerError,
}

// HTTPStatus maps an error code to the status it is served with.
func HTTPStatus(code apperrors.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithError sends an error response. Errors that are not AppErrors
// are reported as internal without leaking their text.
func RespondWithError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(HTTPStatus(appErr.Code), ErrorResponse{
		Status:  StatusError,
		Code:    appErr.Code.String(),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// AsAppError normalises err. Binding failures become BadRequest with the
// offending fields listed.
func AsAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]interface{}, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		bad := apperrors.BadRequest("request validation failed", err)
		bad.Details = map[string]interface{}{"fields": fields}
		return bad
	}

	return apperrors.Internal(err)
}
