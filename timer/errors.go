package timer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the Timer Service's own operations.
var (
	ErrTimerNotFound error = errors.New("timer: entry not found")
)

// TimerNotFoundError reports that Get was called with an unknown timerId.
// Cancel reports an unknown timerId as ok=false with no error instead.
type TimerNotFoundError struct {
	TimerID string
}

func (e *TimerNotFoundError) Error() string {
	return fmt.Sprintf("timer %s: not found", e.TimerID)
}

// Unwrap allows errors.Is(err, ErrTimerNotFound) to succeed.
func (e *TimerNotFoundError) Unwrap() error { return ErrTimerNotFound }

// PayloadDecodeError reports that a scheduled message's stored JSON
// could not be decoded into the target's expected Cast type at delivery
// time (spec §4.4: delivery failures are logged, not retried, and never
// crash the Timer Service).
type PayloadDecodeError struct {
	TargetID string
	Cause    error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("timer: payload decode failed delivering to %s: %v", e.TargetID, e.Cause)
}

// Unwrap exposes Cause.
func (e *PayloadDecodeError) Unwrap() error { return e.Cause }
