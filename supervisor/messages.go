package supervisor

// callKind discriminates the supervisor's own Call vocabulary: external
// API methods enter the supervisor as Calls against its own ServerHandle,
// which is what keeps child-table mutation confined to one worker
// goroutine (spec §9: "the supervisor is effectively a server").
type callKind int

const (
	callStartChild callKind = iota
	callTerminateChild
	callRestartChild
	callGetChildren
	callGetChild
	callCountChildren
)

type call struct {
	kind    callKind
	spec    ChildSpec
	args    any
	childID string
}

type reply struct {
	child    ChildInfo
	children []ChildInfo
	count    int
}

// castKind enumerates the supervisor's one-way vocabulary: currently just
// the exit notification a child's ChildHandle.SetExitListener delivers.
type castKind int

const (
	castChildExited castKind = iota
)

type cast struct {
	kind    castKind
	childID string
	reason  StopReason
}
