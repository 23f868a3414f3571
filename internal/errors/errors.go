// internal/errors/errors.go
package appErrors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeForbidden               Code = "FORBIDDEN"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeDuplicateName           Code = "DUPLICATE_NAME"
	CodeInvalidSchedule         Code = "INVALID_SCHEDULE"
	CodeScheduledDateNotAllowed Code = "SCHEDULED_DATE_NOT_ALLOWED"
	CodePracticeNotFound        Code = "PRACTICE_NOT_FOUND"
	CodeNoPracticeAssignment    Code = "NO_PRACTICE_ASSIGNMENT"
	CodeNotDraft                Code = "NOT_DRAFT"
	CodeWrongDeliveryType       Code = "WRONG_DELIVERY_TYPE"
	CodeEmptyAudience           Code = "EMPTY_AUDIENCE"
	CodePendingRequestExists    Code = "PENDING_REQUEST_EXISTS"
	CodeRequestAlreadyReviewed  Code = "REQUEST_ALREADY_REVIEWED"
	CodePersistence             Code = "PERSISTENCE_FAILURE"
)

var statusByCode = map[Code]int{
	CodeNotFound:                http.StatusNotFound,
	CodePracticeNotFound:        http.StatusNotFound,
	CodeForbidden:               http.StatusForbidden,
	CodeUnauthorized:            http.StatusUnauthorized,
	CodeValidation:              http.StatusBadRequest,
	CodeInvalidSchedule:         http.StatusBadRequest,
	CodeScheduledDateNotAllowed: http.StatusBadRequest,
	CodeNoPracticeAssignment:    http.StatusBadRequest,
	CodeDuplicateName:           http.StatusConflict,
	CodePendingRequestExists:    http.StatusConflict,
	CodeNotDraft:                http.StatusConflict,
	CodeWrongDeliveryType:       http.StatusConflict,
	CodeRequestAlreadyReviewed:  http.StatusConflict,
	CodeEmptyAudience:           http.StatusUnprocessableEntity,
	CodePersistence:             http.StatusInternalServerError,
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the tagged error every service returns to its callers.
type Error struct {
	Code    Code
	Message string
	Details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code == code
}

// Persistence wraps a storage error, leaving already-tagged errors untouched.
func Persistence(err error, op string) error {
	if err == nil {
		return nil
	}
	if As(err) != nil {
		return err
	}
	return Wrap(CodePersistence, err, op)
}

// Helper constructors

func NewCampaignNotFound(id int64) *Error {
	return Newf(CodeNotFound, "campaign with ID %d not found", id)
}

func NewScheduleNotFound(id int64) *Error {
	return Newf(CodeNotFound, "schedule with ID %d not found", id)
}

func NewMessageNotFound(id int64) *Error {
	return Newf(CodeNotFound, "message with ID %d not found", id)
}

func NewUserNotFound(id int64) *Error {
	return Newf(CodeNotFound, "user with ID %d not found", id)
}

func NewRequestNotFound(id int64) *Error {
	return Newf(CodeNotFound, "request with ID %d not found", id)
}

func NewPracticeNotFound(id int64) *Error {
	return Newf(CodePracticeNotFound, "practice with ID %d does not exist", id)
}

func NewForbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func NewValidation(message string) *Error {
	return New(CodeValidation, message)
}
