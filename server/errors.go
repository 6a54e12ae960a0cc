package server

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors, matching spec §6's kind taxonomy. Callers should prefer
// errors.Is against these over type assertions when they only care about
// the kind, and the typed *Error structs below when they need the
// structured fields.
var (
	ErrCallTimeout          error = errors.New("server: call timed out")
	ErrServerNotRunning     error = errors.New("server: not running")
	ErrInitializationFailed error = errors.New("server: initialization failed")
	ErrPersistenceDisabled  error = errors.New("server: persistence not configured")
)

// CallTimeoutError reports that a Call's reply did not arrive within its
// deadline. The envelope may still be processed by the server; the reply
// is simply discarded.
type CallTimeoutError struct {
	ServerID  string
	TimeoutMs int64
}

func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("server %s: call timed out after %dms", e.ServerID, e.TimeoutMs)
}

// Unwrap allows errors.Is(err, ErrCallTimeout) to succeed.
func (e *CallTimeoutError) Unwrap() error { return ErrCallTimeout }

// ServerNotRunningError reports that an operation targeted a server that
// has already stopped (or had not yet finished starting).
type ServerNotRunningError struct {
	ServerID string
}

func (e *ServerNotRunningError) Error() string {
	return fmt.Sprintf("server %s: not running", e.ServerID)
}

// Unwrap allows errors.Is(err, ErrServerNotRunning) to succeed.
func (e *ServerNotRunningError) Unwrap() error { return ErrServerNotRunning }

// InitializationError reports that Behavior.Init failed or did not
// complete within InitTimeout.
type InitializationError struct {
	ServerID string
	Cause    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("server %s: initialization failed: %v", e.ServerID, e.Cause)
}

// Unwrap allows errors.Is(err, ErrInitializationFailed) and exposes Cause.
func (e *InitializationError) Unwrap() error { return errors.Join(ErrInitializationFailed, e.Cause) }

// errInitTimeout is the Cause wrapped into InitializationError when Init
// exceeds InitTimeout rather than returning an error itself.
func errInitTimeout(d time.Duration) error {
	return fmt.Errorf("init did not complete within %s", d)
}
