package utils

import (
	"errors"
	"fmt"
	"time"
)

var ErrorRecordNotFound = errors.New("record not found")

// ConnectivityError wraps a failed remote read/write. It is absorbed at the
// outbound channel boundary (queue + retry); callers never see a failed
// user action because of one.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity: %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ValidationError marks a malformed record rejected before it enters the
// sync pipeline. Validation failures are never queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GuardViolation is an out-of-order reset-workflow call. Missing names the
// unmet precondition so the UI can point at the blocked step.
type GuardViolation struct {
	Missing string
}

func (e *GuardViolation) Error() string {
	return fmt.Sprintf("reset workflow step refused: %s required first", e.Missing)
}

func IsGuardViolation(err error) bool {
	var gv *GuardViolation
	return errors.As(err, &gv)
}

// DateGateViolation is an end-of-session reset attempted before the session
// end date. EligibleAt is surfaced to the caller.
type DateGateViolation struct {
	EligibleAt time.Time
}

func (e *DateGateViolation) Error() string {
	return fmt.Sprintf("end-of-session reset not eligible before %s", e.EligibleAt.Format("2006-01-02"))
}

func IsDateGateViolation(err error) bool {
	var dv *DateGateViolation
	return errors.As(err, &dv)
}
