package booking

import (
	"errors"
	"fmt"
)

// Error codes shared by the booking, group and ledger operations.
const (
	CodeInvalidPeriod         = "invalid_period"
	CodeInvalidDate           = "invalid_date"
	CodeInvalidSlot           = "invalid_slot"
	CodeInvalidInput          = "invalid_input"
	CodeInvalidGroupRequest   = "invalid_group_request"
	CodeSlotFull              = "slot_full"
	CodeUnavailable           = "unavailable"
	CodeOutOfHorizon          = "out_of_horizon"
	CodeRequiresGroupWorkflow = "requires_group_workflow"
	CodeNotFound              = "not_found"
	CodeInvalidTransition     = "invalid_transition"
	CodeDuplicateRequest      = "duplicate_request"
	CodeInvariantViolation    = "invariant_violation"
)

// BookingError carries a stable code, the offending field when there is one,
// and a human readable message.
type BookingError struct {
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// Is matches any BookingError with the same code, so callers can compare
// against the sentinels below with errors.Is.
func (e *BookingError) Is(target error) bool {
	var t *BookingError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidPeriod         = &BookingError{Code: CodeInvalidPeriod, Message: "period must be lunch or dinner"}
	ErrInvalidDate           = &BookingError{Code: CodeInvalidDate, Message: "invalid date"}
	ErrInvalidSlot           = &BookingError{Code: CodeInvalidSlot, Message: "no such slot"}
	ErrInvalidInput          = &BookingError{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidGroupRequest   = &BookingError{Code: CodeInvalidGroupRequest, Message: "invalid group request"}
	ErrSlotFull              = &BookingError{Code: CodeSlotFull, Message: "not enough seats left"}
	ErrUnavailable           = &BookingError{Code: CodeUnavailable, Message: "the requested slot is unavailable"}
	ErrOutOfHorizon          = &BookingError{Code: CodeOutOfHorizon, Message: "date is beyond the booking horizon"}
	ErrRequiresGroupWorkflow = &BookingError{Code: CodeRequiresGroupWorkflow, Message: "party too large for online booking, submit a group request"}
	ErrBookingNotFound       = &BookingError{Code: CodeNotFound, Message: "booking not found"}
	ErrGroupRequestNotFound  = &BookingError{Code: CodeNotFound, Message: "group request not found"}
	ErrInvalidTransition     = &BookingError{Code: CodeInvalidTransition, Message: "transition not allowed from the current state"}
	ErrDuplicateRequest      = &BookingError{Code: CodeDuplicateRequest, Message: "a request with this key is already being processed"}
	ErrInvariantViolation    = &BookingError{Code: CodeInvariantViolation, Message: "capacity ledger invariant violated"}
)

// invalid builds a field-scoped copy of a validation sentinel.
func invalid(base *BookingError, field, format string, args ...interface{}) error {
	return &BookingError{Code: base.Code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Category groups errors by how callers should treat them.
type Category int

const (
	CategoryInternal Category = iota
	CategoryInvalidInput
	CategoryUnavailable
	CategoryPolicy
	CategoryNotFound
	CategoryConflict
)

// CategoryOf classifies err. Anything not produced by this package is internal.
func CategoryOf(err error) Category {
	var be *BookingError
	if !errors.As(err, &be) {
		return CategoryInternal
	}
	switch be.Code {
	case CodeInvalidPeriod, CodeInvalidDate, CodeInvalidSlot, CodeInvalidInput, CodeInvalidGroupRequest:
		return CategoryInvalidInput
	case CodeSlotFull, CodeUnavailable:
		return CategoryUnavailable
	case CodeOutOfHorizon, CodeRequiresGroupWorkflow:
		return CategoryPolicy
	case CodeNotFound:
		return CategoryNotFound
	case CodeInvalidTransition, CodeDuplicateRequest:
		return CategoryConflict
	}
	return CategoryInternal
}
