// Package errors is the failure taxonomy shared by the export pipeline, the
// image proxy and the CLI.
//
// Every failure that crosses a package boundary carries a [Code]. Codes are
// grouped by prefix: TARGET_* for export target preconditions, INVALID_* for
// rejected input, *_FAILED for exhausted fallback cascades. The remaining
// codes describe image and upstream faults.
//
//	err := errors.New(errors.ErrCodeTargetNotFound, "Element with ID %q not found", id)
//	if errors.IsPrecondition(err) {
//	    return err // caller error, no fallback applies
//	}
//
// [Classify] and [Friendly] turn any error into the user-facing categories.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a machine-readable failure class.
type Code string

const (
	ErrCodeTargetNotFound Code = "TARGET_NOT_FOUND"
	ErrCodeTargetZeroSize Code = "TARGET_ZERO_SIZE"
	ErrCodeTargetHidden   Code = "TARGET_HIDDEN"

	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"
	ErrCodeInvalidURL      Code = "INVALID_URL"
	ErrCodeInvalidPlatform Code = "INVALID_PLATFORM"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	ErrCodeImageLoad Code = "IMAGE_LOAD"
	ErrCodeCORS      Code = "CORS"
	ErrCodeSecurity  Code = "SECURITY"
	ErrCodeNetwork   Code = "NETWORK_ERROR"
	ErrCodeTimeout   Code = "TIMEOUT"
	ErrCodeUpstream  Code = "UPSTREAM_ERROR"

	ErrCodeRasterFailed Code = "RASTER_FAILED"
	ErrCodeSinkFailed   Code = "SINK_FAILED"

	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a coded failure. Message is written for users; Cause keeps the
// lower-level error for logs and errors.Is.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns a coded error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return Wrap(code, nil, format, args...)
}

// Wrap returns a coded error around cause. A nil cause is allowed.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Is reports whether any coded error in err's chain carries code.
func Is(err error, code Code) bool {
	found := false
	walk(err, func(e *Error) bool {
		found = e.Code == code
		return found
	})
	return found
}

// GetCode returns the code of the outermost coded error, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsPrecondition reports whether err is a missing, zero-size or hidden
// export target.
func IsPrecondition(err error) bool {
	switch GetCode(err) {
	case ErrCodeTargetNotFound, ErrCodeTargetZeroSize, ErrCodeTargetHidden:
		return true
	}
	return false
}

// UserMessage joins the messages of the chain without code prefixes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + UserMessage(e.Cause)
}

// HTTPStatus maps the outermost code to a response status.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case "":
		return http.StatusInternalServerError
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidURL,
		ErrCodeInvalidPlatform, ErrCodeInvalidPath:
		return http.StatusBadRequest
	case ErrCodeSecurity:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeFileNotFound, ErrCodeTargetNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNetwork, ErrCodeUpstream:
		return http.StatusBadGateway
	case ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
