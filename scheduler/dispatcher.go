package scheduler

import "time"

// minPriority is the sentinel floor getNextBestCommand compares against
// when no minimum has been supplied by the caller; it compares lower
// than any real Command.Priority(), which callers are expected to keep
// non-negative.
const minPriority = -1 << 31

// outboundQueue is the slice of eventloop.Loop the dispatcher needs for
// write backpressure, kept as a narrow interface so this package does
// not need a concrete *eventloop.Loop to be testable.
type outboundQueue interface {
	IsQueueLarge() bool
	Flush() error
}

// housekeeping bundles the deep-housekeeping hooks the dispatcher falls
// back to when no command is immediately eligible: admitting pending
// accepts, evicting timed-out sessions, running periodic callbacks,
// draining page operations, session tasks, pending transactions and misc
// tasks. Each field is optional; a nil hook is simply skipped. Bundling
// these as function fields (rather than the dispatcher holding
// references to acceptorBridge, periodicTasks and so on directly) keeps
// Dispatcher decoupled from Scheduler's concrete collaborator types.
type housekeeping struct {
	acceptor      func()
	checkTimeouts func()
	periodic      func()
	pageOps       func()
	sessionTasks  func()
	pendingTx     func()
	misc          func()
}

// Dispatcher picks, each pass, the single highest-priority eligible
// command across every live session and advances it by exactly one
// step. Ties are broken by session registry order (append-only, so the
// earliest still-registered session wins), making the choice
// deterministic for a fixed sequence of registrations.
//
// A single-slot cache (nextBestCommand/nextBestSession) lets the yield
// protocol precompute the next winner while a command is still running
// and hand it straight to the next executeNextStatement call, skipping a
// second full scan.
type Dispatcher struct {
	registry *SessionRegistry
	onError  func(packetID uint64, err error)
	onResult func(CommandResult)

	loop outboundQueue
	gc   *gcCoordinator
	hk   *housekeeping

	sessionIdleTimeout time.Duration

	nextBestSession *Session
	nextBestCommand Command

	previousCommand Command
}

// NewDispatcher builds a dispatcher over the given registry. Whenever
// Advance reports CommandError, the error is sent to the owning session
// through Session.SendError, and onError (if non-nil) is then invoked
// with the failing command's PacketID as an additional sink, such as
// logging.
func NewDispatcher(registry *SessionRegistry, onError func(packetID uint64, err error)) *Dispatcher {
	return &Dispatcher{registry: registry, onError: onError}
}

// OnResult installs a callback invoked with every command's outcome,
// typically wired to metrics collection.
func (d *Dispatcher) OnResult(fn func(CommandResult)) {
	d.onResult = fn
}

// SetOutboundQueue wires the event loop's write-backpressure signal into
// the dispatcher's first housekeeping step.
func (d *Dispatcher) SetOutboundQueue(loop outboundQueue) {
	d.loop = loop
}

// SetGC wires the GC coordinator the dispatcher triggers at the top of
// every executeNextStatement pass.
func (d *Dispatcher) SetGC(gc *gcCoordinator) {
	d.gc = gc
}

// SetHousekeeping installs the deep-housekeeping hooks run when no
// command is immediately eligible.
func (d *Dispatcher) SetHousekeeping(hk *housekeeping) {
	d.hk = hk
}

// SetSessionIdleTimeout configures how long a session may sit idle
// before getNextBestCommand treats its front command as timed out when
// checkTimeout is requested.
func (d *Dispatcher) SetSessionIdleTimeout(maxIdle time.Duration) {
	d.sessionIdleTimeout = maxIdle
}

// stashNextBest installs a precomputed winner to be consumed by the next
// executeNextStatement call instead of a fresh scan. Used by the yield
// protocol, which has already found the next-best command as part of its
// own housekeeping pass and should not force a second one.
func (d *Dispatcher) stashNextBest(session *Session, cmd Command) {
	d.nextBestSession, d.nextBestCommand = session, cmd
}

// getNextBestCommand scans every live session except excl for its
// current eligible command and returns the one with strictly greater
// priority than minPriority, along with the session that owns it. Ties
// go to the first session encountered in registry order. checkTimeout is
// forwarded to each session as a side effect: a session idle past its
// budget self-aborts during this scan rather than being returned.
func (d *Dispatcher) getNextBestCommand(excl *Session, minPriority int, checkTimeout bool) (*Session, Command) {
	var bestSession *Session
	var bestCommand Command
	bestPriority := minPriority
	d.registry.ForEach(func(s *Session) {
		if s == excl || s.IsClosed() {
			return
		}
		cmd, ok := s.GetYieldableCommand(checkTimeout, d.sessionIdleTimeout)
		if !ok {
			return
		}
		if cmd.Priority() > bestPriority {
			bestSession = s
			bestCommand = cmd
			bestPriority = cmd.Priority()
		}
	})
	return bestSession, bestCommand
}

// executeNextStatement runs one dispatch pass per spec: drain backed-up
// writes, trigger GC, find the best eligible command (retrying after
// session tasks and then full deep housekeeping if none is immediately
// found), advance it by one step, and route its outcome. It reports
// whether any command was actually run, so callers can treat a
// completely idle pass differently (e.g. block longer on the next poll).
func (d *Dispatcher) executeNextStatement() bool {
	if d.loop != nil && d.loop.IsQueueLarge() {
		_ = d.loop.Flush()
	}
	if d.gc != nil {
		d.gc.RunIfNeeded(d.registry)
	}

	session, cmd := d.nextBestSession, d.nextBestCommand
	d.nextBestSession, d.nextBestCommand = nil, nil
	if cmd == nil {
		session, cmd = d.getNextBestCommand(nil, minPriority, true)
	}

	if cmd == nil {
		if d.hk != nil {
			d.runHook(d.hk.sessionTasks)
		}
		session, cmd = d.getNextBestCommand(nil, minPriority, true)
	}

	if cmd == nil {
		d.runDeepHousekeeping()
		session, cmd = d.getNextBestCommand(nil, minPriority, true)
	}

	if cmd == nil {
		d.previousCommand = nil
		return false
	}

	result, err := cmd.Advance()
	session.Touch()
	if d.onResult != nil {
		d.onResult(result)
	}

	sameAsPrevious := d.previousCommand != nil && d.previousCommand == cmd
	d.previousCommand = cmd

	switch result {
	case CommandYielded:
		// Left at the front of session.commands; reconsidered next pass
		// alongside every other session's front command, so a long
		// command cannot starve the rest of the fleet.
	case CommandError:
		session.popFrontCommand()
		session.SendError(cmd.PacketID(), err)
		if d.onError != nil {
			d.onError(cmd.PacketID(), err)
		}
	default: // CommandDone
		session.popFrontCommand()
	}

	if result != CommandError && sameAsPrevious && d.hk != nil {
		// Anti-starvation: when the very same command is selected on
		// consecutive passes (a long command that keeps yielding and
		// winning the scan again), run the cheap housekeeping hooks so it
		// cannot crowd out work that only runs between dispatch passes.
		d.runHook(d.hk.pageOps)
		d.runHook(d.hk.sessionTasks)
		d.runHook(d.hk.misc)
	}

	return true
}

func (d *Dispatcher) runHook(fn func()) {
	if fn != nil {
		fn()
	}
}

// runDeepHousekeeping executes the full fallback sequence in the
// prescribed order: acceptor, timeouts, periodic, page-ops,
// session-tasks, pending-tx, misc.
func (d *Dispatcher) runDeepHousekeeping() {
	if d.hk == nil {
		return
	}
	d.runHook(d.hk.acceptor)
	d.runHook(d.hk.checkTimeouts)
	d.runHook(d.hk.periodic)
	d.runHook(d.hk.pageOps)
	d.runHook(d.hk.sessionTasks)
	d.runHook(d.hk.pendingTx)
	d.runHook(d.hk.misc)
}

// RunPass advances commands until a single pass finds nothing eligible
// to run, or until it has executed maxSteps commands, whichever comes
// first. maxSteps bounds how long one dispatcher call can hold the
// scheduler thread when many sessions have short, rapidly-completing
// commands queued; pass 0 for no bound.
func (d *Dispatcher) RunPass(maxSteps int) (ran int) {
	for maxSteps <= 0 || ran < maxSteps {
		if !d.executeNextStatement() {
			return ran
		}
		ran++
	}
	return ran
}
