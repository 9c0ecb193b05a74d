package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrPermission         = errors.New("permission denied")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal server error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUpload             = errors.New("upload failed")
	ErrFetch              = errors.New("fetch failed")
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrChain              = errors.New("chain error")
	ErrCooldown           = errors.New("cooldown active")
	ErrInvalidState       = errors.New("invalid state")
	ErrWalletDisconnected = errors.New("wallet disconnected")
)

type AppError struct {
	BaseError error
	Message   string
	Details   string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (Details: %s, Cause: %v)", e.BaseError.Error(), e.Message, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s (Details: %s)", e.BaseError.Error(), e.Message, e.Details)
}

func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.BaseError, e.Err}
	}
	return []error{e.BaseError}
}

func NewAppError(base error, msg, details string, err error) *AppError {
	return &AppError{BaseError: base, Message: msg, Details: details, Err: err}
}

func NewNotFound(resource, identifier string) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	details := fmt.Sprintf("%s with identifier '%s' was not found", resource, identifier)
	return NewAppError(ErrNotFound, msg, details, nil)
}

func NewInvalidInput(details string, err error) *AppError {
	return NewAppError(ErrInvalidInput, "Invalid input provided", details, err)
}

func NewConflict(resource, field, value string) *AppError {
	msg := fmt.Sprintf("%s conflict", resource)
	details := fmt.Sprintf("%s with %s '%s' already exists", resource, field, value)
	return NewAppError(ErrConflict, msg, details, nil)
}

func NewInternal(details string, err error) *AppError {
	return NewAppError(ErrInternal, "An internal server error occurred", details, err)
}

func NewUnauthorized(details string, err error) *AppError {
	return NewAppError(ErrUnauthorized, "Invalid credentials", details, err)
}

func NewPermissionDenied(details string) *AppError {
	return NewAppError(ErrPermission, "Permission denied", details, nil)
}

func NewWalletDisconnected(details string) *AppError {
	return NewAppError(ErrWalletDisconnected, "Wallet is not connected", details, nil)
}

func ToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrWalletDisconnected):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpload), errors.Is(err, ErrFetch), errors.Is(err, ErrChain):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Base returns the sentinel the error chain resolves to, ErrInternal if none.
func Base(err error) error {
	for _, base := range []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrPermission, ErrConflict,
		ErrInvalidState, ErrCooldown, ErrWalletDisconnected, ErrSchemaMismatch,
		ErrUpload, ErrFetch, ErrChain,
	} {
		if errors.Is(err, base) {
			return base
		}
	}
	return ErrInternal
}

func (e *AppError) ToJSON() gin.H {
	return gin.H{
		"error":   e.BaseError.Error(),
		"message": e.Message,
	}
}
