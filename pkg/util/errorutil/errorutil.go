package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to callers.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeNoEligibleAssignee    = "NO_ELIGIBLE_ASSIGNEE"
	CodeNoEligibleCoordinator = "NO_ELIGIBLE_COORDINATOR"
	CodeNotEscalatable        = "NOT_ESCALATABLE"
	CodeAlreadyEscalated      = "ALREADY_ESCALATED"
	CodeNoOpTransfer          = "NOOP_TRANSFER"
	CodeInternal              = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. They match any DomainError carrying the same code.
var (
	ErrValidation            = &DomainError{Code: CodeValidation}
	ErrNotFound              = &DomainError{Code: CodeNotFound}
	ErrUnauthorized          = &DomainError{Code: CodeUnauthorized}
	ErrForbidden             = &DomainError{Code: CodeForbidden}
	ErrConflict              = &DomainError{Code: CodeConflict}
	ErrNoEligibleAssignee    = &DomainError{Code: CodeNoEligibleAssignee}
	ErrNoEligibleCoordinator = &DomainError{Code: CodeNoEligibleCoordinator}
	ErrNotEscalatable        = &DomainError{Code: CodeNotEscalatable}
	ErrAlreadyEscalated      = &DomainError{Code: CodeAlreadyEscalated}
	ErrNoOpTransfer          = &DomainError{Code: CodeNoOpTransfer}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches DomainErrors by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewNoEligibleAssignee(message string, details map[string]any) error {
	return NewDomainError(CodeNoEligibleAssignee, message, http.StatusUnprocessableEntity, details)
}

func NewNoEligibleCoordinator(message string, details map[string]any) error {
	return NewDomainError(CodeNoEligibleCoordinator, message, http.StatusUnprocessableEntity, details)
}

func NewNotEscalatable(message string, details map[string]any) error {
	return NewDomainError(CodeNotEscalatable, message, http.StatusUnprocessableEntity, details)
}

func NewAlreadyEscalated(message string, details map[string]any) error {
	return NewDomainError(CodeAlreadyEscalated, message, http.StatusConflict, details)
}

func NewNoOpTransfer(message string, details map[string]any) error {
	return NewDomainError(CodeNoOpTransfer, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError leaves DomainErrors untouched and wraps anything else as internal.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
