// Package errors carries the domain error codes shared by repository clients,
// the monitor and the config layer.
package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// CodeNotFound means the path or config is absent. Callers treat it as "no data".
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeTransport means the repository could not be reached or a command failed.
	CodeTransport ErrorCode = "TRANSPORT"
	// CodeContract means the caller misused the API, such as starting a monitor twice.
	CodeContract        ErrorCode = "CONTRACT"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// Context keys attached with AddContext.
const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxChange    = "change"
	CtxCycle     = "cycle_id"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithContext sets key on e in place.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a key/value to the DomainError inside err. A plain error
// is promoted to INTERNAL_ERROR.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode reports whether the first DomainError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
