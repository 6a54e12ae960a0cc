package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/kodflow/actorcore/server"
)

// StopReason aliases server.StopReason: a supervisor is itself a server,
// and its children's exit reasons and its own stop reason share the same
// vocabulary (spec §4.1/§4.2).
type StopReason = server.StopReason

// Normal, Shutdown, and Error mirror the server package's constructors, so
// callers of this package never need to import server directly just to
// build a StopReason.
var (
	Normal   = server.Normal
	Shutdown = server.Shutdown
	Error    = server.Error
)

// Sentinel errors for supervisor operations, matching spec §6.
var (
	ErrMaxRestartsExceeded       error = errors.New("supervisor: max restarts exceeded")
	ErrDuplicateChild            error = errors.New("supervisor: duplicate child id")
	ErrChildNotFound             error = errors.New("supervisor: child not found")
	ErrMissingChildTemplate      error = errors.New("supervisor: missing child template")
	ErrInvalidSimpleOneForOne    error = errors.New("supervisor: invalid simple_one_for_one configuration")
)

// MaxRestartsExceededError reports that the restart log exceeded
// RestartIntensity.MaxRestarts within RestartIntensity.Within; the
// supervisor terminates itself and this becomes its exit reason.
type MaxRestartsExceededError struct {
	SupervisorID string
	MaxRestarts  int
	Within       time.Duration
}

func (e *MaxRestartsExceededError) Error() string {
	return fmt.Sprintf("supervisor %s: exceeded %d restarts within %s", e.SupervisorID, e.MaxRestarts, e.Within)
}

func (e *MaxRestartsExceededError) Unwrap() error { return ErrMaxRestartsExceeded }

// DuplicateChildError reports that StartChild was called with an id
// already present in the child table.
type DuplicateChildError struct {
	SupervisorID string
	ChildID      string
}

func (e *DuplicateChildError) Error() string {
	return fmt.Sprintf("supervisor %s: child %q already exists", e.SupervisorID, e.ChildID)
}

func (e *DuplicateChildError) Unwrap() error { return ErrDuplicateChild }

// ChildNotFoundError reports that a child operation referenced an unknown
// id.
type ChildNotFoundError struct {
	SupervisorID string
	ChildID      string
}

func (e *ChildNotFoundError) Error() string {
	return fmt.Sprintf("supervisor %s: child %q not found", e.SupervisorID, e.ChildID)
}

func (e *ChildNotFoundError) Unwrap() error { return ErrChildNotFound }

// MissingChildTemplateError reports that Options.Strategy was
// SimpleOneForOne but Options.ChildTemplate was nil.
type MissingChildTemplateError struct {
	SupervisorID string
}

func (e *MissingChildTemplateError) Error() string {
	return fmt.Sprintf("supervisor %s: simple_one_for_one requires a child template", e.SupervisorID)
}

func (e *MissingChildTemplateError) Unwrap() error { return ErrMissingChildTemplate }

// InvalidSimpleOneForOneConfigError reports a configuration mismatch: a
// non-Simple strategy was given a ChildTemplate, or Simple was given a
// static Children list.
type InvalidSimpleOneForOneConfigError struct {
	SupervisorID string
	Reason       string
}

func (e *InvalidSimpleOneForOneConfigError) Error() string {
	return fmt.Sprintf("supervisor %s: invalid simple_one_for_one configuration: %s", e.SupervisorID, e.Reason)
}

func (e *InvalidSimpleOneForOneConfigError) Unwrap() error { return ErrInvalidSimpleOneForOne }
