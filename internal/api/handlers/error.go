// Package handlers implements the gateway's REST endpoints.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apicontext "github.com/xzzpig/graph-gateway/internal/api/context"
	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/i18n"
)

// AppError represents a structured error response
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewError creates a new AppError
func NewError(code int, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// HandleError maps err to a status code and writes a localized AppError.
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, appErr)
		return
	}

	localizer := apicontext.GetLocalizer(c)
	write := func(code int, msgID string) {
		c.JSON(code, &AppError{
			Code:    code,
			Message: i18n.T(localizer, msgID),
			Details: err.Error(),
		})
	}

	if i18nErr, ok := i18n.IsI18nError(err); ok {
		c.JSON(i18nErr.StatusCode, &AppError{
			Code:    i18nErr.StatusCode,
			Message: i18nErr.Translate(localizer),
			Details: errorDetails(i18nErr),
		})
		return
	}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		write(http.StatusNotFound, i18n.ErrNotFound)
	case errors.Is(err, errs.ErrInvalidInput):
		write(http.StatusBadRequest, i18n.ErrInvalidInput)
	case errors.Is(err, errs.ErrUnavailable):
		write(http.StatusServiceUnavailable, i18n.ErrUnavailable)
	default:
		write(http.StatusInternalServerError, i18n.ErrGeneric)
	}
}

func errorDetails(e *i18n.Error) string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, &AppError{
		Code:    http.StatusNotFound,
		Message: i18n.T(apicontext.GetLocalizer(c), i18n.ErrNotFound),
	})
}
