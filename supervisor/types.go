// Package supervisor implements the Supervisor Engine: child lifecycle
// management under four restart strategies, restart-intensity throttling,
// significant-child auto-shutdown, and ordered start/stop. A Supervisor is
// itself built on top of the server package's engine (external API calls
// are Calls against the supervisor's own ServerHandle), so it inherits the
// same serialized, single-worker execution guarantees as any other server.
package supervisor

import (
	"time"

	"github.com/kodflow/actorcore/server"
)

// RestartPolicy controls whether a child is restarted after it exits.
type RestartPolicy int

const (
	// Permanent children are always restarted.
	Permanent RestartPolicy = iota
	// Transient children are restarted only if they exited with an error.
	Transient
	// Temporary children are never restarted.
	Temporary
)

func (p RestartPolicy) String() string {
	switch p {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Temporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// Strategy selects how siblings are affected when one child exits.
type Strategy int

const (
	// OneForOne restarts only the failed child.
	OneForOne Strategy = iota
	// OneForAll stops and restarts every child, in start order, whenever
	// a child exits and its restart policy calls for a restart. A sibling
	// whose own policy does not allow that restart is stopped and left
	// down.
	OneForAll
	// RestForOne stops and restarts the failed child and every child
	// started after it, in start order, when the failed child's restart
	// policy calls for a restart. A later sibling whose own policy does
	// not allow that restart is stopped and left down.
	RestForOne
	// SimpleOneForOne manages a homogeneous, dynamically sized pool of
	// children all built from the same ChildTemplate.
	SimpleOneForOne
)

func (s Strategy) String() string {
	switch s {
	case OneForOne:
		return "one_for_one"
	case OneForAll:
		return "one_for_all"
	case RestForOne:
		return "rest_for_one"
	case SimpleOneForOne:
		return "simple_one_for_one"
	default:
		return "unknown"
	}
}

// AutoShutdown selects when a supervisor terminates itself in response to
// its significant children exiting.
type AutoShutdown int

const (
	// Never keeps the supervisor running regardless of child population.
	Never AutoShutdown = iota
	// AnySignificant terminates the supervisor normally the moment any
	// significant child exits without being restarted.
	AnySignificant
	// AllSignificant terminates the supervisor normally once the last
	// significant child has exited without being restarted.
	AllSignificant
)

// RestartIntensity bounds how often children may restart before the
// supervisor gives up and terminates itself with MaxRestartsExceededError.
type RestartIntensity struct {
	MaxRestarts int
	Within      time.Duration
}

// DefaultRestartIntensity matches the spec's default of 3 restarts per 5
// seconds.
var DefaultRestartIntensity = RestartIntensity{MaxRestarts: 3, Within: 5 * time.Second}

// ChildHandle is the minimal surface the supervisor needs from a child.
// *server.ServerHandle[S, C, A, R] satisfies this structurally for any
// instantiation of its four type parameters, which is what lets a single
// non-generic Supervisor manage heterogeneously typed children.
type ChildHandle interface {
	ID() string
	Done() <-chan struct{}
	Stop(reason StopReason) error
	SetExitListener(fn func(reason StopReason))
}

// ChildTemplate builds a child for a SimpleOneForOne supervisor. args is
// whatever startChild was called with; it is opaque to the supervisor.
type ChildTemplate func(args any) (ChildHandle, error)

// ChildSpec declares a child for any strategy other than SimpleOneForOne.
type ChildSpec struct {
	// ID must be unique within the supervisor.
	ID string
	// Start builds the child. It is called by the supervisor's own
	// worker, sequentially with every other child operation.
	Start func() (ChildHandle, error)
	// Restart is this child's restart policy.
	Restart RestartPolicy
	// ShutdownTimeout bounds how long the supervisor waits for this
	// child's Done channel to close during an ordered shutdown or
	// restart. Defaults to server.DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
	// Significant marks this child as participating in AutoShutdown.
	Significant bool
}

// ChildInfo is a read-only snapshot of one child's current bookkeeping,
// returned by GetChildren/GetChild.
type ChildInfo struct {
	ID           string
	Running      bool
	RestartCount int
	StartOrder   int
	Significant  bool
	Restart      RestartPolicy
}

// Options configures Start.
type Options struct {
	// Name, if non-empty, registers the supervisor under this name (see
	// the registry package).
	Name string

	// Strategy selects the restart strategy. Defaults to OneForOne.
	Strategy Strategy
	// Children is the ordered child list started by Start for any
	// strategy other than SimpleOneForOne. It may be empty (children can
	// be added later with StartChild); it is forbidden for
	// SimpleOneForOne.
	Children []ChildSpec
	// ChildTemplate is required iff Strategy is SimpleOneForOne, and
	// forbidden otherwise.
	ChildTemplate ChildTemplate
	// TemplateRestart is the restart policy shared by every child built
	// from ChildTemplate.
	TemplateRestart RestartPolicy
	// TemplateSignificant marks every child built from ChildTemplate as
	// significant for AutoShutdown purposes.
	TemplateSignificant bool

	// RestartIntensity bounds restart frequency. Zero-value (both fields
	// 0) is replaced with DefaultRestartIntensity.
	RestartIntensity RestartIntensity
	// AutoShutdown selects the significant-child shutdown rule. Defaults
	// to Never.
	AutoShutdown AutoShutdown

	// ShutdownTimeout bounds the supervisor's own Terminate hook, i.e.
	// the time budget for stopping every remaining child. Defaults to
	// server.DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

func (o Options) restartIntensity() RestartIntensity {
	if o.RestartIntensity.MaxRestarts == 0 && o.RestartIntensity.Within == 0 {
		return DefaultRestartIntensity
	}
	return o.RestartIntensity
}

func (o Options) shutdownTimeoutOrDefault() time.Duration {
	if o.ShutdownTimeout <= 0 {
		return server.DefaultShutdownTimeout
	}
	return o.ShutdownTimeout
}
