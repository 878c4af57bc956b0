package service

import "fmt"

// ConflictCode is the machine-readable reason a business operation was
// refused.  Conflicts are expected outcomes, never infrastructure errors;
// handlers map them to 409 responses and callers do not retry blindly.
type ConflictCode string

const (
	CodeTableUnavailable  ConflictCode = "TABLE_UNAVAILABLE"
	CodeDuplicateBooking  ConflictCode = "DUPLICATE_BOOKING"
	CodeCutoffPassed      ConflictCode = "CUTOFF_PASSED"
	CodePartyTooLarge     ConflictCode = "PARTY_TOO_LARGE"
	CodeHoldNotFound      ConflictCode = "HOLD_NOT_FOUND"
	CodeHoldExpired       ConflictCode = "HOLD_EXPIRED"
	CodeHoldCompleted     ConflictCode = "HOLD_COMPLETED"
	CodeVersionConflict   ConflictCode = "VERSION_CONFLICT"
	CodeInvalidTransition ConflictCode = "INVALID_TRANSITION"

	CodeRefundExceedsPayment ConflictCode = "REFUND_EXCEEDS_PAYMENT"
)

// ConflictError reports a refused operation with the code machines branch
// on and the reason humans read.  Admin-facing reasons carry the SOLD /
// ON HOLD detail the staff UI surfaces verbatim.
type ConflictError struct {
	Code   ConflictCode
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func conflict(code ConflictCode, format string, args ...any) *ConflictError {
	return &ConflictError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
