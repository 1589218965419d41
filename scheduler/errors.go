package scheduler

import "errors"

// Standard errors returned by Scheduler methods.
var (
	// ErrSchedulerStopped is returned by operations attempted after
	// Stop has been called.
	ErrSchedulerStopped = errors.New("scheduler: stopped")

	// ErrSessionTimeout marks a session closed due to inactivity; it is
	// sent through Session.SendError for the command at the front of the
	// timed-out session, if any.
	ErrSessionTimeout = errors.New("scheduler: session timed out")

	// ErrValidatorSaturated is returned by ValidateSession when the
	// admission window's configured rate is exceeded, independent of the
	// permit budget.
	ErrValidatorSaturated = errors.New("scheduler: session validator saturated, try again later")

	// ErrQueueFull is returned when a bounded task queue rejects a
	// submission because it is already at capacity.
	ErrQueueFull = errors.New("scheduler: queue full")

	// ErrSessionNotFound is returned when an operation names a session
	// id no longer present in the registry.
	ErrSessionNotFound = errors.New("scheduler: session not found")
)
