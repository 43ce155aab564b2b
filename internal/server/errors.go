package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/skill-gap-wizard/internal/requirements"
	"github.com/jonathan/skill-gap-wizard/internal/roles"
	"github.com/jonathan/skill-gap-wizard/internal/upload"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

// ErrSessionNotFound indicates no mounted wizard session has the given ID.
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrServiceUnavailable indicates the collaborator behind a route is not configured.
type ErrServiceUnavailable struct {
	Service string
}

func (e *ErrServiceUnavailable) Error() string {
	return fmt.Sprintf("%s service is not configured", e.Service)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound  *ErrSessionNotFound
		invalid   *ErrValidation
		fieldErrs validator.ValidationErrors
		fetchErr  *roles.FetchError
		genErr    *requirements.GenerationError
		missing   *ErrServiceUnavailable
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &fieldErrs), errors.Is(err, wizard.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrBranchLocked):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrClosed):
		return http.StatusGone
	case errors.As(err, &fetchErr), errors.As(err, &genErr):
		return http.StatusBadGateway
	case errors.As(err, &missing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
