// Package apperror defines the error taxonomy surfaced by the API. Every
// error carries a stable machine-readable code and the HTTP status it maps to.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeMissingParameters         Code = "MISSING_PARAMETERS"
	CodeValidation                Code = "VALIDATION_ERROR"
	CodeInvalidTier               Code = "INVALID_TIER"
	CodeInvalidOrderID            Code = "INVALID_ORDER_ID"
	CodePaymentExpired            Code = "PAYMENT_EXPIRED"
	CodeAmountMismatch            Code = "AMOUNT_MISMATCH"
	CodePaymentConfirmationFailed Code = "PAYMENT_CONFIRMATION_FAILED"
	CodeInvalidPaymentStatus      Code = "INVALID_PAYMENT_STATUS"
	CodeDuplicatePayment          Code = "DUPLICATE_PAYMENT"
	CodeDuplicateTransaction      Code = "DUPLICATE_TRANSACTION"
	CodeInvalidTxHash             Code = "INVALID_TX_HASH"
	CodeInvalidAmount             Code = "INVALID_AMOUNT"
	CodeAmountTooLow              Code = "AMOUNT_TOO_LOW"
	CodeUserNotFound              Code = "USER_NOT_FOUND"
	CodeUnauthorized              Code = "UNAUTHORIZED"
	CodeForbidden                 Code = "FORBIDDEN"
	CodeRateLimited               Code = "RATE_LIMITED"
	CodeExternalService           Code = "EXTERNAL_SERVICE_ERROR"
	CodeInternal                  Code = "INTERNAL_SERVER_ERROR"
)

// InternalMessage is the only message clients ever see for unexpected failures.
const InternalMessage = "An unexpected error occurred"

type Error struct {
	Code    Code
	Message string
	Status  int
	Details map[string]interface{}
	// Err is the underlying cause. It is logged but never serialized.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of e carrying an extra detail entry.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(status int, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func Validation(code Code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

func State(code Code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

func Conflict(code Code, message string) *Error {
	return New(http.StatusConflict, code, message)
}

func NotFound(code Code, message string) *Error {
	return New(http.StatusNotFound, code, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

func External(err error) *Error {
	return &Error{
		Code:    CodeExternalService,
		Message: "Payment service is unavailable",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Internal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: InternalMessage,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// From converts any error into an *Error. Errors outside the taxonomy
// become INTERNAL_SERVER_ERROR so their text never leaks to clients.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
