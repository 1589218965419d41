package scheduler

import "time"

// CommandResult is the outcome of advancing a Command by one step.
type CommandResult int

const (
	// CommandDone indicates the command completed and should be dropped.
	CommandDone CommandResult = iota
	// CommandYielded indicates the command voluntarily gave up the
	// thread and should be reconsidered on a future pass.
	CommandYielded
	// CommandError indicates the command failed; sendError has already
	// been (or will be) invoked and the command is dropped.
	CommandError
)

// Command is a single SQL statement's execution modeled as an explicit
// step function, not a stackful coroutine: Advance runs one bounded
// slice of work and reports whether it finished, yielded, or failed.
//
// Priority is higher-is-more-urgent and may be read on every dispatch
// pass; PacketID identifies the originating client request for error
// routing. SetPriority lets the yield protocol bump a command that lost
// a head-of-line race, so it competes more favorably the next time it is
// considered. SessionID identifies the owning session, so the dispatcher
// can exclude it from a yield-time scan and attribute a failure to the
// right connection.
type Command interface {
	Advance() (CommandResult, error)
	Priority() int
	SetPriority(int)
	PacketID() uint64
	SessionID() uint64
}

// SessionTask is a one-shot unit of work queued against a specific
// session (e.g. a prepared-statement close, a savepoint release)
// drained by runSessionTasks between dispatcher passes.
type SessionTask interface {
	Run()
}

// TransactionEngine is the external collaborator that owns distributed
// transaction bookkeeping. fullGc partitions its own sweep by scheduler
// index, so distinct indices may be invoked concurrently without
// coordination.
type TransactionEngine interface {
	FullGC(totalSchedulers, schedulerIndex int)
	RunPendingTransactions()
}

// MemoryManager reports whether the engine-wide memory budget requires a
// full GC pass before more work is admitted.
type MemoryManager interface {
	NeedFullGC() bool
}

// PageOpQueue drains pending storage page operations. Implemented
// outside this package; the scheduler only invokes the drain hook in
// its prescribed housekeeping order.
type PageOpQueue interface {
	RunPendingPageOperations()
}

// PendingTaskQueue drains externally-submitted pending tasks (e.g.
// deferred index maintenance) as part of deep housekeeping.
type PendingTaskQueue interface {
	RunPendingTasks()
}

// AcceptorManager is the fleet-level registry a Scheduler consults to
// find and claim ownership of pending socket accepts. See acceptor.go.
type AcceptorManager interface {
	// TryClaim attempts to win ownership of a pending accept on
	// listenerID for the given scheduler. On a win it performs the
	// non-blocking accept itself and returns the connection's fd; the
	// caller then owns that fd and is responsible for building a
	// SessionInitTask around it. ok is false when there was nothing to
	// claim or another scheduler won the race.
	TryClaim(listenerID int, schedulerID uint64) (fd int, ok bool)
}

// now is a package-level indirection to support deterministic tests.
var now = time.Now
