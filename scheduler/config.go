package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haiyanghan/lealone-go/eventloop"
)

// Config holds everything needed to construct one Scheduler. It is a
// plain struct rather than functional options: unlike eventloop.Loop
// (a leaf primitive with a handful of independent knobs), a Scheduler
// wires together several collaborators that are easiest to see and
// validate as one block at construction time.
type Config struct {
	// ID uniquely identifies this scheduler within its fleet; used as
	// the label on every metric it exports and, when SchedulerIndex is
	// left zero, as its partition index for FullGC (see SchedulerIndex).
	ID uint64

	// SchedulerCount is the total size of the fleet this scheduler is
	// part of, passed through to TransactionEngine.FullGC.
	SchedulerCount int

	// SchedulerIndex is this scheduler's partition index for FullGC.
	// Defaults to ID if left zero and ID is within [0, SchedulerCount).
	SchedulerIndex int

	// SessionIdleTimeout evicts a session that has made no progress for
	// this long. Zero disables idle eviction.
	SessionIdleTimeout time.Duration

	// MaxDispatchStepsPerIteration bounds how many commands RunPass
	// advances in a single scheduler iteration. Zero means no bound.
	MaxDispatchStepsPerIteration int

	// ValidatorRates configures the SessionValidator's sliding admission
	// window, e.g. map[time.Duration]int{time.Second: 20, time.Minute: 200}.
	ValidatorRates map[time.Duration]int

	EventLoopOptions []eventloop.LoopOption

	TransactionEngine TransactionEngine
	MemoryManager     MemoryManager
	PageOpQueue       PageOpQueue
	PendingTaskQueue  PendingTaskQueue
	AcceptorManager   AcceptorManager

	// SessionInitFactory builds the SessionInitTask that drives a freshly
	// accepted connection's handshake, given the fd the AcceptorManager
	// handed back from a won TryClaim. Required for a Scheduler to ever
	// admit a new session from an accepted socket; left nil, a claimed
	// accept is logged and dropped.
	SessionInitFactory func(fd int) *SessionInitTask

	Logger   Logger
	Registry prometheus.Registerer
}
