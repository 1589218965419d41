package eventloop

import "sync/atomic"

// LoopState is the lifecycle state of a Loop.
type LoopState uint32

const (
	// StateOpen indicates the loop accepts registrations and polls.
	StateOpen LoopState = 0
	// StateClosing indicates Close has been requested; in-flight Poll
	// calls should return promptly and no further Poll calls are valid.
	StateClosing LoopState = 1
	// StateClosed indicates the loop's poller and wake descriptors have
	// been released.
	StateClosed LoopState = 2
)

func (s LoopState) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free, cache-line-padded atomic state holder.
type FastState struct {
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

// NewFastState creates a state machine starting in StateOpen.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint32(StateOpen))
	return s
}

func (s *FastState) Load() LoopState { return LoopState(s.v.Load()) }

func (s *FastState) Store(state LoopState) { s.v.Store(uint32(state)) }

// TryTransition attempts an atomic from->to transition.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *FastState) IsClosed() bool { return s.Load() == StateClosed }
