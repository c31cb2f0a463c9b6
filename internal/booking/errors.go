package booking

import (
	"errors"
	"fmt"

	"driveshare/internal/models"
)

type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeNotVerified          Code = "NOT_VERIFIED"
	CodeAvailabilityConflict Code = "AVAILABILITY_CONFLICT"
	CodeNotFound             Code = "NOT_FOUND"
	CodeAuthorization        Code = "AUTHORIZATION_ERROR"
	CodeInvalidTransition    Code = "INVALID_STATE_TRANSITION"
	CodeConcurrencyConflict  Code = "CONCURRENCY_CONFLICT"
)

// Error is the typed failure returned by every Service operation.
type Error struct {
	Code    Code
	Message string

	// Set for CodeInvalidTransition.
	Action  Action
	Current models.BookingStatus

	// Set for CodeAvailabilityConflict when the blocking booking is known.
	Conflict *models.Booking

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the Code from err, or "" when err is not a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func validationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(what, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

func authorizationError(format string, args ...any) *Error {
	return &Error{Code: CodeAuthorization, Message: fmt.Sprintf(format, args...)}
}

func invalidTransitionError(action Action, current models.BookingStatus) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s a booking that is %s", action, current),
		Action:  action,
		Current: current,
	}
}

func availabilityError(conflict *models.Booking, cause error) *Error {
	return &Error{
		Code:     CodeAvailabilityConflict,
		Message:  "car is not available for the selected dates",
		Conflict: conflict,
		Err:      cause,
	}
}

func concurrencyError(id string, cause error) *Error {
	return &Error{
		Code:    CodeConcurrencyConflict,
		Message: fmt.Sprintf("booking %s was modified concurrently", id),
		Err:     cause,
	}
}

// Storage-level sentinels. Store implementations return these (possibly
// wrapped) so the service can classify failures without knowing the driver.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrStatusMismatch = errors.New("stored status does not match expected")
	ErrRangeTaken     = errors.New("date range already taken")
	ErrTransient      = errors.New("transient storage failure")
)
