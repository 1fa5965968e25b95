package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and transports.
type Code string

const (
	// CodeValidation marks a rejected upload or request (disallowed type, too large, bad field).
	CodeValidation Code = "validation"
	// CodeDecode marks bytes that claim to be an image but cannot be decoded.
	CodeDecode Code = "decode"
	// CodePartialDerivative marks a derivation where the derivative pair could not be completed.
	CodePartialDerivative Code = "partial_derivative"
	// CodeNotFound marks a missing item or image.
	CodeNotFound Code = "not_found"
	// CodeInvariantViolation marks a store mutation that was aborted because it
	// would have left an item without exactly one primary image.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal is the fallback for unclassified failures.
	CodeInternal Code = "internal"
)

// Metadata describes how a code is surfaced across a transport boundary.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// ExposeMessage allows the error's own message to be returned to callers.
	ExposeMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "invalid request",
		ExposeMessage: true,
	},
	CodeDecode: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		PublicMessage: "image could not be decoded",
		ExposeMessage: true,
	},
	CodePartialDerivative: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "failed to generate image sizes",
		ExposeMessage: false,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "not found",
		ExposeMessage: true,
	},
	CodeInvariantViolation: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "internal error",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "internal error",
	},
}

// MetadataFor returns the transport metadata for a code, defaulting to CodeInternal.
func MetadataFor(code Code) Metadata {
	if md, ok := metadataByCode[code]; ok {
		return md
	}
	return metadataByCode[CodeInternal]
}

// Error is a classified error.
type Error struct {
	code    Code
	message string
	details map[string]string
	cause   error
}

// New creates a classified error.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under code.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// WithDetails attaches per-field details, returned to callers for validation errors.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the error's classification.
func (e *Error) Code() Code { return e.code }

// Message returns the message without the wrapped cause.
func (e *Error) Message() string { return e.message }

// Details returns per-field details, if any.
func (e *Error) Details() map[string]string { return e.details }

// PublicMessage returns the message safe to show across the boundary.
func (e *Error) PublicMessage() string {
	md := MetadataFor(e.code)
	if md.ExposeMessage && e.message != "" {
		return e.message
	}
	return md.PublicMessage
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, CodeInternal for unclassified errors, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.code
	}
	return CodeInternal
}

// IsCode reports whether err is classified as code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// NotFound is shorthand for a formatted CodeNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Validation is shorthand for a formatted CodeValidation error.
func Validation(format string, args ...interface{}) *Error {
	return Newf(CodeValidation, format, args...)
}
