package scheduler

import "time"

// defaultYieldBudget bounds how long a single Command.Advance call may
// run before it is expected to check in with YieldIfNeeded and hand the
// thread back, keeping one statement from starving the rest of the
// commands sharing this scheduler.
const defaultYieldBudget = 2 * time.Millisecond

// YieldChecker is handed to a Command so it can cooperatively check
// whether it has run long enough this step that it should call the
// owning Scheduler's YieldIfNeeded rather than continuing. It only
// tracks elapsed time; the actual yield protocol (deciding whether a
// higher-priority command is waiting, and what to do if so) lives on
// Scheduler.
type YieldChecker struct {
	startedAt time.Time
	budget    time.Duration
}

// NewYieldChecker starts a checker with the scheduler's default budget.
func NewYieldChecker() *YieldChecker {
	return &YieldChecker{startedAt: now(), budget: defaultYieldBudget}
}

// NewYieldCheckerWithBudget starts a checker with an explicit budget,
// for commands known to need a shorter or longer slice (e.g. a bulk
// import statement given extra rope so it makes real progress per
// pass).
func NewYieldCheckerWithBudget(budget time.Duration) *YieldChecker {
	return &YieldChecker{startedAt: now(), budget: budget}
}

// Due reports whether the calling command has run long enough this step
// that it should check in at a safe point. Cheap enough to call on every
// iteration inside a command's Advance implementation (e.g. once per
// batch of rows scanned).
func (y *YieldChecker) Due() bool {
	return now().Sub(y.startedAt) >= y.budget
}

// Reset restarts the budget window, called by a command at the start of
// each fresh Advance invocation so the clock only measures this step's
// work, not cumulative time across many yields.
func (y *YieldChecker) Reset() {
	y.startedAt = now()
}

// YieldIfNeeded is the yield protocol itself: a running Command calls
// this from within its own Advance at a safe point (typically once
// y.Due() reports true), offering to step aside for a strictly
// higher-priority command in another session. It first runs a minimal
// housekeeping pass (claim pending accepts, a non-blocking selector
// check, one session-init attempt, and a session-tasks drain) so that
// yielding a thread for a moment also makes forward progress on
// everything else the scheduler is responsible for.
//
// With fewer than two live sessions there is nothing to yield to, so it
// returns false immediately without scanning. Otherwise it searches for
// a command with priority strictly greater than current's, excluding
// current's own session. If one is found, it is stashed on the
// dispatcher so the very next executeNextStatement call runs it without
// a second scan, current's priority is raised by one (so it competes
// more favorably the next time it is considered), and YieldIfNeeded
// returns true — the caller is expected to return control up to the
// dispatcher immediately.
func (s *Scheduler) YieldIfNeeded(current Command) bool {
	s.runYieldHousekeeping()

	if s.registry.Len() < 2 {
		return false
	}

	currentSession, _ := s.registry.Get(current.SessionID())
	nextSession, nextCmd := s.dispatcher.getNextBestCommand(currentSession, current.Priority(), false)
	if nextCmd == nil {
		return false
	}

	s.dispatcher.stashNextBest(nextSession, nextCmd)
	current.SetPriority(current.Priority() + 1)
	return true
}

// runYieldHousekeeping is the minimal pass performed at every yield
// point: cheap enough to run on every statement's safe points, unlike
// the dispatcher's deep housekeeping fallback.
func (s *Scheduler) runYieldHousekeeping() {
	s.acceptor.TryAcceptAll()
	_ = s.loop.SelectNow()
	_ = s.loop.HandleSelectedKeys()
	_ = s.loop.Flush()
	s.inits.RunOne(s.onSessionInitComplete, s.onSessionInitFailed)
	s.registry.ForEach(func(sess *Session) {
		if !sess.IsClosed() {
			sess.runSessionTasks()
		}
	})
	_ = s.loop.Flush()
}
