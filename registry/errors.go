// Package registry provides process-wide name-to-handle lookup for servers
// started by the server package. A registry never owns the servers it
// tracks; it purges an entry the moment the referenced server terminates,
// for any reason.
package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry operations.
var (
	// ErrAlreadyRegistered indicates the requested name is already bound to
	// a running handle.
	ErrAlreadyRegistered error = errors.New("registry: name already registered")
	// ErrNotRegistered indicates no handle is currently bound to the name.
	ErrNotRegistered error = errors.New("registry: name not registered")
)

// AlreadyRegisteredError carries the offending name alongside the sentinel
// so callers can do both errors.Is(err, ErrAlreadyRegistered) and inspect
// the Name field.
type AlreadyRegisteredError struct {
	Name string
}

// Error implements the error interface.
func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: name %q already registered", e.Name)
}

// Unwrap allows errors.Is(err, ErrAlreadyRegistered) to succeed.
func (e *AlreadyRegisteredError) Unwrap() error {
	return ErrAlreadyRegistered
}

// NotRegisteredError carries the offending name alongside the sentinel.
type NotRegisteredError struct {
	Name string
}

// Error implements the error interface.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("registry: name %q not registered", e.Name)
}

// Unwrap allows errors.Is(err, ErrNotRegistered) to succeed.
func (e *NotRegisteredError) Unwrap() error {
	return ErrNotRegistered
}
