package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidAmount     ErrorCode = "INVALID_AMOUNT"
	ErrCodeSelfReference     ErrorCode = "SELF_REFERENCE"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError is the error type every service operation surfaces, so handlers
// can map failures to precise HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInvalidAmount, ErrCodeSelfReference:
		return http.StatusBadRequest
	case ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidState, ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code extracts the error code, defaulting to INTERNAL_ERROR.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool     { return Is(err, ErrCodeNotFound) }
func IsInvalidState(err error) bool { return Is(err, ErrCodeInvalidState) }
func IsConflict(err error) bool     { return Is(err, ErrCodeConflict) }

var (
	ErrUnauthenticated    = New(ErrCodeUnauthenticated, "authentication required")
	ErrForbidden          = New(ErrCodeForbidden, "insufficient permissions")
	ErrInvalidAmount      = New(ErrCodeInvalidAmount, "amount must be positive")
	ErrSelfReference      = New(ErrCodeSelfReference, "sender and receiver must differ")
	ErrInsufficientFunds  = New(ErrCodeInsufficientFunds, "insufficient available balance")
	ErrUserNotFound       = New(ErrCodeNotFound, "user not found")
	ErrEscrowNotFound     = New(ErrCodeNotFound, "escrow not found")
	ErrTransferNotFound   = New(ErrCodeNotFound, "transfer not found")
	ErrInvalidCredentials = New(ErrCodeUnauthenticated, "invalid credentials")
)
