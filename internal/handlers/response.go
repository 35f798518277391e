package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/pkg/apierr"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondAppError maps the service-layer sentinels onto HTTP statuses,
// with fallbackCode naming the operation that failed.
func RespondAppError(c *gin.Context, fallbackCode string, err error) {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		RespondError(c, ae.Status, ae.Code, ae.Err)
	case errors.Is(err, apperr.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperr.ErrAlreadyExists):
		RespondError(c, http.StatusConflict, "already_exists", err)
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "remote_unavailable", err)
	case errors.Is(err, apperr.ErrGenerationUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "generation_unavailable", err)
	default:
		RespondError(c, http.StatusInternalServerError, fallbackCode, err)
	}
}
