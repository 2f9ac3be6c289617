// Package apperr carries the coded, recoverable errors surfaced by the
// storefront packages. Callers branch on Code, never on message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

type Code string

const (
	CodeInvalidArgument       Code = "invalid_argument"
	CodeInvalidQuantity       Code = "invalid_quantity"
	CodeInvalidItem           Code = "invalid_item"
	CodeInvalidStatus         Code = "invalid_status"
	CodeInvalidTransition     Code = "invalid_transition"
	CodeNotFound              Code = "not_found"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeSelfDemotionForbidden Code = "self_demotion_forbidden"
	CodeConflict              Code = "conflict"
	CodeExternalService       Code = "external_service"
	CodeInternal              Code = "internal"
)

// Error is a coded error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. A nil err yields nil.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

func NewInvalidArgument(message string) *Error { return New(CodeInvalidArgument, message) }

func NewNotFound(format string, args ...interface{}) *Error {
	return Newf(CodeNotFound, format, args...)
}

// External marks a failure of a collaborator (DynamoDB, S3, SQS). The caller
// may retry; no state was changed by this module.
func External(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	msg := op
	var api smithy.APIError
	if errors.As(err, &api) {
		msg = fmt.Sprintf("%s (%s)", op, api.ErrorCode())
	}
	return &Error{Code: CodeExternalService, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code onto a response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeInvalidQuantity, CodeInvalidItem, CodeInvalidStatus:
		return http.StatusBadRequest
	case CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeSelfDemotionForbidden:
		return http.StatusForbidden
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
