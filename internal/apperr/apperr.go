// Package apperr defines the coded domain errors returned by the booking core.
//
// Every error that a caller can act on carries a Code and optional metadata
// (for example the id of a conflicting slot). Anything that is not an *Error
// is treated as an infrastructure failure and reported as an opaque 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeValidation            Code = "VALIDATION"
	CodeConflict              Code = "CONFLICT"
	CodeCapacityExceeded      Code = "CAPACITY_EXCEEDED"
	CodeDuplicate             Code = "DUPLICATE"
	CodeDuplicateEmail        Code = "DUPLICATE_EMAIL"
	CodeNotFound              Code = "NOT_FOUND"
	CodeAuthorization         Code = "AUTHORIZATION"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
	CodeCapacityTooLow        Code = "CAPACITY_TOO_LOW"
	CodeNotApproved           Code = "NOT_APPROVED"
	CodeTransientNotification Code = "TRANSIENT_NOTIFICATION"
)

// Error is a domain error with a code and identifying metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if len(e.Metadata) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Metadata[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so errors.Is(err, &Error{Code: c}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// With returns a copy of e with key set in its metadata.
func (e *Error) With(key, value string) *Error {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	out := *e
	out.Metadata = md
	return &out
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Conflict reports an overlapping booking and names the slot it collides with.
func Conflict(conflictingSlotID string) *Error {
	return New(CodeConflict, "venue is already booked for an overlapping time").
		With("conflicting_slot_id", conflictingSlotID)
}

func CapacityExceeded(capacity int) *Error {
	return New(CodeCapacityExceeded, "capacity reached").
		With("capacity", fmt.Sprint(capacity))
}

func Duplicate(message string) *Error {
	return New(CodeDuplicate, message)
}

func DuplicateEmail(email string) *Error {
	return New(CodeDuplicateEmail, "email is already registered").With("email", email)
}

func NotFound(kind, id string) *Error {
	return Newf(CodeNotFound, "%s not found", kind).With("id", id)
}

func Authorization(message string) *Error {
	return New(CodeAuthorization, message)
}

func InvalidTransition(from, to string) *Error {
	return Newf(CodeInvalidTransition, "cannot move from %s to %s", from, to).
		With("status", from)
}

func CapacityTooLow(requested, current int) *Error {
	return New(CodeCapacityTooLow, "capacity cannot be below current registrations").
		With("requested_capacity", fmt.Sprint(requested)).
		With("current_count", fmt.Sprint(current))
}

func NotApproved(status string) *Error {
	return New(CodeNotApproved, "event is not open for registration").With("status", status)
}

func TransientNotification(cause error) *Error {
	return &Error{Code: CodeTransientNotification, Message: "notification delivery failed", Cause: cause}
}

// CodeOf extracts the code from any error. Non-domain errors yield CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MetadataOf returns the metadata of a domain error, or nil.
func MetadataOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}

// HTTPStatus maps a code onto the status a client should see.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeConflict,
		CodeCapacityExceeded,
		CodeDuplicate,
		CodeDuplicateEmail,
		CodeInvalidTransition,
		CodeCapacityTooLow,
		CodeNotApproved:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
