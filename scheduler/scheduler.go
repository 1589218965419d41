package scheduler

import (
	"fmt"
	"time"

	"github.com/haiyanghan/lealone-go/eventloop"
)

// Scheduler is the per-thread loop binding together an event loop,
// session registry, admission controller, command dispatcher and
// housekeeping hooks. Every exported method except ValidateSession and
// RegisterAccepter is expected to be called only from the goroutine
// running Iterate; those two are the deliberate exceptions, documented
// per-method below, that other goroutines (typically an acceptor or a
// health-check handler) may call directly.
type Scheduler struct {
	id uint64

	loop       *eventloop.Loop
	registry   *SessionRegistry
	validator  *SessionValidator
	inits      *pendingSessionInits
	misc       *miscTaskQueue
	periodic   *periodicTasks
	dispatcher *Dispatcher
	gc         *gcCoordinator
	acceptor   *acceptorBridge
	metrics    *metrics
	logger     Logger

	engine TransactionEngine

	sessionIdleTimeout time.Duration
	maxDispatchSteps   int

	pageOps            PageOpQueue
	pendingTasks       PendingTaskQueue
	sessionInitFactory func(fd int) *SessionInitTask

	stopped bool
}

// New constructs a Scheduler from cfg. The returned Scheduler owns an
// eventloop.Loop built from cfg.EventLoopOptions; callers should not
// construct their own Loop for the same OS thread.
func New(cfg Config) (*Scheduler, error) {
	loop, err := eventloop.New(cfg.EventLoopOptions...)
	if err != nil {
		return nil, fmt.Errorf("scheduler: building event loop: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = DefaultLogger()
	}

	schedulerIndex := cfg.SchedulerIndex
	if schedulerIndex == 0 && cfg.ID != 0 && cfg.ID < uint64(cfg.SchedulerCount) {
		schedulerIndex = int(cfg.ID)
	}

	s := &Scheduler{
		id:                 cfg.ID,
		loop:               loop,
		registry:           NewSessionRegistry(),
		validator:          NewSessionValidator(cfg.ID, cfg.ValidatorRates),
		misc:               newMiscTaskQueue(logger),
		periodic:           newPeriodicTasks(logger),
		gc:                 newGCCoordinator(cfg.MemoryManager, cfg.TransactionEngine, cfg.SchedulerCount, schedulerIndex),
		metrics:            newMetrics(cfg.Registry, cfg.ID),
		logger:             logger,
		engine:             cfg.TransactionEngine,
		sessionIdleTimeout: cfg.SessionIdleTimeout,
		maxDispatchSteps:   cfg.MaxDispatchStepsPerIteration,
		pageOps:            cfg.PageOpQueue,
		pendingTasks:       cfg.PendingTaskQueue,
		sessionInitFactory: cfg.SessionInitFactory,
	}
	s.inits = newPendingSessionInits(s.validator)
	s.dispatcher = NewDispatcher(s.registry, s.sendError)
	s.dispatcher.OnResult(s.metrics.observeDispatch)
	s.dispatcher.SetOutboundQueue(loop)
	s.dispatcher.SetGC(s.gc)
	s.dispatcher.SetSessionIdleTimeout(s.sessionIdleTimeout)
	s.dispatcher.SetHousekeeping(&housekeeping{
		acceptor:      s.runAcceptorPass,
		checkTimeouts: s.checkSessionTimeouts,
		periodic:      s.runPeriodicIfNotStopped,
		pageOps:       s.runPageOps,
		sessionTasks:  s.runSessionTasks,
		pendingTx:     s.runPendingTransactions,
		misc:          s.misc.RunPendingTasks,
	})
	s.acceptor = newAcceptorBridge(cfg.AcceptorManager, cfg.ID, s.onListenerClaimed)
	loop.SetAccepter(s.acceptor.TryAcceptAll)
	return s, nil
}

// ID reports this scheduler's fleet id.
func (s *Scheduler) ID() uint64 { return s.id }

// Register exposes the underlying event loop's fd registration, so
// connection-handling code can multiplex sockets through this
// scheduler without reaching past it into eventloop directly.
func (s *Scheduler) Register(fd int, events eventloop.IOEvents, cb func(eventloop.IOEvents)) error {
	return s.loop.Register(fd, events, cb)
}

// Unregister removes fd from the event loop.
func (s *Scheduler) Unregister(fd int) error {
	return s.loop.Unregister(fd)
}

// QueueWrite buffers b for fd, to be flushed on a future Iterate pass.
func (s *Scheduler) QueueWrite(fd int, b []byte) (int, error) {
	return s.loop.QueueWrite(fd, b)
}

// RegisterAccepter adds listenerID to the set this scheduler competes
// for accepts on, and may be called from any goroutine before the
// scheduler starts iterating (typically at fleet startup, before the
// listeners are handed out).
func (s *Scheduler) RegisterAccepter(listenerID int) {
	s.acceptor.Watch(listenerID)
}

// onListenerClaimed is the acceptor bridge's win callback: this
// scheduler has just performed the non-blocking accept itself and owns
// fd. Per the acceptor protocol it must now build a session-init task
// scoped to this scheduler, enqueue it locally, and wake its own loop
// (a no-op if the loop is already running). sessionInitFactory is the
// transport-specific collaborator that knows how to turn a raw fd into
// the handshake steps (TLS negotiation, auth exchange) a SessionInitTask
// drives; without one configured, the claimed fd is simply logged and
// dropped; there is no wire protocol for this package to default to.
func (s *Scheduler) onListenerClaimed(listenerID, fd int) {
	if b := s.debugLog(); b {
		s.logger.Log(LogEntry{Level: LevelDebug, Message: "claimed pending accept", Fields: map[string]any{"listener": listenerID, "fd": fd}})
	}
	if s.sessionInitFactory == nil {
		if s.logger != nil {
			s.logger.Log(LogEntry{Level: LevelWarn, Message: "no session init factory configured, dropping accepted connection", Fields: map[string]any{"fd": fd}})
		}
		return
	}
	task := s.sessionInitFactory(fd)
	if task == nil {
		return
	}
	s.inits.Submit(task)
	_ = s.loop.WakeUp()
}

func (s *Scheduler) debugLog() bool { return s.logger != nil && s.logger.IsEnabled(LevelDebug) }

// AddSession registers an already-initialized session with this
// scheduler, making it eligible for command dispatch and idle eviction.
func (s *Scheduler) AddSession(sess *Session) {
	s.registry.AddSession(sess)
}

// RemoveSession drops a session from the registry; callers are expected
// to have already unregistered its fd and closed the socket. It reports
// ErrSessionNotFound if id is not currently registered.
func (s *Scheduler) RemoveSession(id uint64) error {
	return s.registry.RemoveSession(id)
}

// Session looks up a registered session by id.
func (s *Scheduler) Session(id uint64) (*Session, bool) {
	return s.registry.Get(id)
}

// AddSessionInitTask submits a new connection for handshake processing,
// gated by the admission controller. May be called from the acceptor
// callback running on this scheduler's own goroutine, which is the only
// supported caller today.
func (s *Scheduler) AddSessionInitTask(task *SessionInitTask) {
	s.inits.Submit(task)
}

// ValidateSession runs one admission check outside the normal
// session-init flow (e.g. a pre-flight check before accepting a socket
// at all). Safe to call from any goroutine: it only touches the
// validator's own atomics and its embedded admission window under its
// own mutex.
func (s *Scheduler) ValidateSession(succeeded bool) error {
	return s.validator.Validate(succeeded)
}

// AddPeriodicTask registers fn to run on every iteration (and again on
// each deep-housekeeping fallback inside dispatch) and returns a handle
// for RemovePeriodicTask.
func (s *Scheduler) AddPeriodicTask(fn func()) int64 {
	return s.periodic.Add(fn)
}

// RemovePeriodicTask unregisters a previously added periodic task.
func (s *Scheduler) RemovePeriodicTask(id int64) {
	s.periodic.Remove(id)
}

// SubmitMiscTask queues fn to run on a future housekeeping pass,
// isolated from other misc tasks by panic recovery.
func (s *Scheduler) SubmitMiscTask(fn func()) {
	s.misc.Submit(fn)
}

// sendError is the dispatcher's error sink, logging a failed command's
// outcome; wired in at construction via NewDispatcher.
func (s *Scheduler) sendError(packetID uint64, err error) {
	if s.logger != nil {
		s.logger.Log(LogEntry{
			Level:   LevelWarn,
			Message: "command failed",
			Err:     err,
			Fields:  map[string]any{"packetID": packetID},
		})
	}
}

// GetLoad reports a coarse load signal for this scheduler: live session
// count plus outstanding queue depth across the misc and session-init
// queues. Exported for use by a fleet-level load balancer deciding which
// scheduler a new connection should be handed to.
func (s *Scheduler) GetLoad() int {
	return s.registry.Len() + s.misc.Len() + s.inits.Len()
}

// Stop marks the scheduler stopped; Iterate observes this at the start
// of its next pass and returns ErrSchedulerStopped from then on. It does
// not itself close the event loop or any registered sockets.
func (s *Scheduler) Stop() {
	s.stopped = true
}

// Iterate runs exactly one pass of the scheduler loop, in the
// prescribed order: admit pending accepts, admit queued session-init
// tasks up to the validator's throttle, drain misc one-shots, run due
// page operations, run per-session queued tasks, advance pending
// transactions, run pending generic tasks, dispatch queued SQL commands,
// and finally poll the event loop — the loop's only blocking call, so it
// runs last and everything ahead of it is bounded by queue size rather
// than by I/O readiness.
func (s *Scheduler) Iterate(pollTimeout time.Duration) error {
	if s.stopped {
		return ErrSchedulerStopped
	}

	s.runAcceptorPass()

	for n := s.inits.Len(); n > 0 && s.inits.RunOne(s.onSessionInitComplete, s.onSessionInitFailed); n-- {
	}

	s.misc.RunPendingTasks()
	s.runPageOps()
	s.runSessionTasks()
	s.runPendingTransactions()
	if s.pendingTasks != nil {
		s.pendingTasks.RunPendingTasks()
	}

	if !s.stopped {
		s.runPeriodicIfNotStopped()
	}

	s.dispatcher.RunPass(s.maxDispatchSteps)

	s.checkSessionTimeouts()

	s.metrics.sessionCount.Set(float64(s.registry.Len()))
	s.metrics.miscQueueDepth.Set(float64(s.misc.Len()))
	s.metrics.pendingInits.Set(float64(s.inits.Len()))
	s.metrics.validatorBudget.Set(float64(s.validator.Permits()))

	if err := s.loop.Flush(); err != nil {
		return fmt.Errorf("scheduler: flush: %w", err)
	}
	if err := s.loop.Poll(pollTimeout); err != nil {
		return fmt.Errorf("scheduler: poll: %w", err)
	}

	return nil
}

func (s *Scheduler) runAcceptorPass() {
	s.acceptor.TryAcceptAll()
}

func (s *Scheduler) runPageOps() {
	if s.pageOps != nil {
		s.pageOps.RunPendingPageOperations()
	}
}

func (s *Scheduler) runSessionTasks() {
	s.registry.ForEach(func(sess *Session) {
		if !sess.IsClosed() {
			sess.runSessionTasks()
		}
	})
}

func (s *Scheduler) runPendingTransactions() {
	if s.engine != nil {
		s.engine.RunPendingTransactions()
	}
}

func (s *Scheduler) runPeriodicIfNotStopped() {
	if s.stopped {
		return
	}
	s.periodic.RunAll()
}

func (s *Scheduler) checkSessionTimeouts() {
	s.registry.checkSessionTimeout(s.sessionIdleTimeout, s.onSessionTimeout)
}

// onSessionInitComplete registers the Session a completed handshake
// produced, making it eligible for dispatch on the very next pass.
func (s *Scheduler) onSessionInitComplete(task *SessionInitTask, sess *Session) {
	if s.debugLog() {
		s.logger.Log(LogEntry{Level: LevelDebug, Message: "session init complete", Fields: map[string]any{"fd": task.FD}})
	}
	if sess != nil {
		s.AddSession(sess)
	}
}

func (s *Scheduler) onSessionInitFailed(task *SessionInitTask, err error) {
	if s.logger != nil {
		s.logger.Log(LogEntry{Level: LevelWarn, Message: "session init failed", Err: err, Fields: map[string]any{"fd": task.FD}})
	}
}

func (s *Scheduler) onSessionTimeout(sess *Session) {
	_ = s.loop.CloseFD(sess.FD)
	if s.logger != nil {
		s.logger.Log(LogEntry{Level: LevelInfo, Message: "session timed out", Fields: map[string]any{"session": sess.ID}})
	}
}
