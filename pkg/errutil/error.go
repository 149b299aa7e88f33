package errutil

import (
	"errors"
	"fmt"
)

// CoreStatus identifies the class of a task-engine error. Skip outcomes
// (lock contention, throttling, duplicate keys) are ordinary statuses, not
// failures; callers branch on the code, not the message.
type CoreStatus string

const (
	StatusConfiguration CoreStatus = "CONFIGURATION_ERROR"
	StatusValidation    CoreStatus = "VALIDATION_ERROR"
	StatusSecurity      CoreStatus = "SECURITY_REJECTION"
	StatusLocked        CoreStatus = "LOCK_CONTENTION"
	StatusThrottled     CoreStatus = "THROTTLED"
	StatusDuplicate     CoreStatus = "DUPLICATE_KEY"
	StatusExecution     CoreStatus = "EXECUTION_ERROR"
	StatusClarification CoreStatus = "CLARIFICATION_NEEDED"
	StatusDelivery      CoreStatus = "DELIVERY_ERROR"
	StatusUnknown       CoreStatus = "UNKNOWN"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func Configuration(msg string, options ...Option) error {
	return New(StatusConfiguration, msg, options...)
}

func Validation(msg string, options ...Option) error {
	return New(StatusValidation, msg, options...)
}

func Security(msg string, options ...Option) error {
	return New(StatusSecurity, msg, options...)
}

func Locked(msg string, options ...Option) error {
	return New(StatusLocked, msg, options...)
}

func Throttled(msg string, options ...Option) error {
	return New(StatusThrottled, msg, options...)
}

func Duplicate(msg string, options ...Option) error {
	return New(StatusDuplicate, msg, options...)
}

func Execution(msg string, options ...Option) error {
	return New(StatusExecution, msg, options...)
}

func Clarification(msg string, options ...Option) error {
	return New(StatusClarification, msg, options...)
}

func Delivery(msg string, options ...Option) error {
	return New(StatusDelivery, msg, options...)
}

// CodeOf extracts the CoreStatus from an error chain, StatusUnknown when the
// chain carries no BaseError.
func CodeOf(err error) CoreStatus {
	var be BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return StatusUnknown
}

// HasCode reports whether err carries the given status anywhere in its chain.
func HasCode(err error, code CoreStatus) bool {
	return CodeOf(err) == code
}
