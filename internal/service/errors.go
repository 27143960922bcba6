package service

import (
	"errors"
	"fmt"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
)

// Error codes returned by service operations.
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeTokenInvalid  = "TOKEN_INVALID"
	ErrCodeProviderError = "PROVIDER_ERROR"
	ErrCodeInternal      = "INTERNAL"
)

// Causes carried by TOKEN_INVALID errors.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInstanceMismatch = errors.New("token not valid for this instance")
)

// ServiceError represents a business logic error with a code for HTTP mapping.
type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: message}
}

func NewBadRequestError(message string) *ServiceError {
	return &ServiceError{Code: ErrCodeBadRequest, Message: message}
}

func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{Code: ErrCodeUnauthorized, Message: message}
}

func NewTokenInvalidError(cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeTokenInvalid, Message: cause.Error(), Err: cause}
}

func NewProviderError(message string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeProviderError, Message: message, Err: cause}
}

func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeInternal, Message: message, Err: cause}
}

// Code returns the ServiceError code carried by err, or ErrCodeInternal.
func Code(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ErrCodeInternal
}

// remoteFailure translates a gateway error. A remote 404 becomes NOT_FOUND
// with notFoundMessage; anything else is a PROVIDER_ERROR.
func remoteFailure(err error, notFoundMessage string) error {
	if cloud.IsNotFound(err) {
		return &ServiceError{Code: ErrCodeNotFound, Message: notFoundMessage, Err: err}
	}
	return NewProviderError(fmt.Sprintf("cloud provider unavailable: %v", err), err)
}

func internalFailure(what string, err error) error {
	return NewInternalError(fmt.Sprintf("failed to %s", what), err)
}
