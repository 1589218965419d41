package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/haiyanghan/lealone-go/eventloop"
)

// Session tracks one client connection's scheduler-owned state: its
// socket fd, its pending session-scoped tasks, and the bookkeeping
// needed to detect and evict an idle connection.
type Session struct {
	ID         uint64
	FD         int
	tasks      *eventloop.ChunkedIngress
	commands   []Command
	lastActive atomic.Int64 // unix nanos, updated on every touch
	closed     atomic.Bool

	// sendError delivers a response to the client out of band (e.g. a
	// timeout surfaced while this session's command was passed over
	// during selection, rather than while it was running). Nil in
	// tests that don't exercise the wire, where it is simply skipped.
	sendError func(packetID uint64, err error)
	// clearQueryCache is invoked by GC housekeeping before a full GC
	// pass; nil sessions (e.g. in unit tests) simply have nothing to
	// clear.
	clearQueryCache func()
}

// NewSession constructs a Session ready to be registered.
func NewSession(id uint64, fd int) *Session {
	s := &Session{
		ID:    id,
		FD:    fd,
		tasks: eventloop.NewChunkedIngress(),
	}
	s.touch()
	return s
}

// OnSendError installs the callback used to deliver an out-of-band error
// to this session's client, e.g. a timeout discovered during command
// selection rather than while a command was running.
func (s *Session) OnSendError(fn func(packetID uint64, err error)) {
	s.sendError = fn
}

// SendError delivers packetID's error to the client if a sink has been
// installed; otherwise it is a no-op, matching the tolerant style of
// every other optional collaborator hook on Session.
func (s *Session) SendError(packetID uint64, err error) {
	if s.sendError != nil {
		s.sendError(packetID, err)
	}
}

// OnClearQueryCache installs the callback used to evict this session's
// prepared-statement and plan cache ahead of a full GC pass.
func (s *Session) OnClearQueryCache(fn func()) {
	s.clearQueryCache = fn
}

// ClearQueryCache evicts this session's query cache if a callback has
// been installed. Assumed idempotent: the GC coordinator only calls it
// between dispatcher iterations, never concurrently with itself.
func (s *Session) ClearQueryCache() {
	if s.clearQueryCache != nil {
		s.clearQueryCache()
	}
}

// Touch records activity, resetting the idle-timeout clock.
func (s *Session) touch() {
	s.lastActive.Store(now().UnixNano())
}

// Touch is the exported form used by I/O callbacks and the dispatcher
// whenever a session makes forward progress.
func (s *Session) Touch() { s.touch() }

// MarkClosed flags the session so dispatch and housekeeping skip it from
// here on; the registry still holds it until RemoveSession is called,
// since in-flight callbacks may still reference the pointer.
func (s *Session) MarkClosed() { s.closed.Store(true) }

// IsClosed reports whether MarkClosed has been called.
func (s *Session) IsClosed() bool { return s.closed.Load() }

// QueueTask appends a session-scoped unit of work, run the next time
// runSessionTasks drains this session.
func (s *Session) QueueTask(fn func()) { s.tasks.Push(fn) }

// runSessionTasks drains every task queued against this session at the
// point of the call; tasks queued by a running task are picked up on a
// later pass rather than this one, bounding the work per call.
func (s *Session) runSessionTasks() {
	pending := s.tasks.Length()
	for i := 0; i < pending; i++ {
		fn, ok := s.tasks.Pop()
		if !ok {
			return
		}
		fn()
	}
}

// maxQueuedCommands bounds how many commands a single session may have
// outstanding before EnqueueCommand starts rejecting more; a client that
// pipelines far ahead of what the dispatcher can run is a backpressure
// signal, not something to buffer without limit.
const maxQueuedCommands = 256

// EnqueueCommand appends a command to this session's pending queue; it
// will become eligible for dispatch once it reaches the front. It
// returns ErrQueueFull if the session is already holding maxQueuedCommands
// worth of backlog.
func (s *Session) EnqueueCommand(c Command) error {
	if len(s.commands) >= maxQueuedCommands {
		return ErrQueueFull
	}
	s.commands = append(s.commands, c)
	return nil
}

// frontCommand returns the session's next eligible command without
// removing it, for priority comparison across sessions.
func (s *Session) frontCommand() (Command, bool) {
	if len(s.commands) == 0 {
		return nil, false
	}
	return s.commands[0], true
}

// GetYieldableCommand returns this session's front command, honoring
// checkTimeout as a side effect: when true and this session has been
// idle for at least maxIdle, it self-aborts rather than being returned
// as eligible — it surfaces a timeout error to the client for whatever
// command was at the front (if any) and marks the session closed, so a
// later call never sees it again. This lets the dispatcher discover and
// react to a timed-out session during ordinary command selection, rather
// than needing a separate sweep.
func (s *Session) GetYieldableCommand(checkTimeout bool, maxIdle time.Duration) (Command, bool) {
	if s.IsClosed() {
		return nil, false
	}
	if checkTimeout && maxIdle > 0 && s.idleFor(now()) >= maxIdle {
		if cmd, ok := s.frontCommand(); ok {
			s.SendError(cmd.PacketID(), ErrSessionTimeout)
		}
		s.MarkClosed()
		return nil, false
	}
	return s.frontCommand()
}

// popFrontCommand removes the session's front command, if any.
func (s *Session) popFrontCommand() {
	if len(s.commands) == 0 {
		return
	}
	s.commands = s.commands[1:]
}

func (s *Session) idleFor(at time.Time) time.Duration {
	last := time.Unix(0, s.lastActive.Load())
	return at.Sub(last)
}

// SessionRegistry holds every Session owned by one scheduler. Iteration
// order is insertion order, append-only: ids are never reinserted into
// the order slice, only tombstoned out of the map, so registry order can
// double as a stable tie-break for otherwise-equal command priorities.
type SessionRegistry struct {
	sessions map[uint64]*Session
	order    []uint64
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uint64]*Session)}
}

// AddSession registers a new session under its id.
func (r *SessionRegistry) AddSession(s *Session) {
	if _, exists := r.sessions[s.ID]; exists {
		return
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
}

// RemoveSession drops a session from the registry. Its slot in order is
// left as a tombstone, skipped by ForEach, rather than compacted; a
// long-running scheduler that churns through many short sessions should
// periodically call CompactOrder during deep housekeeping. It returns
// ErrSessionNotFound if id is not currently registered.
func (r *SessionRegistry) RemoveSession(id uint64) error {
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Get looks up a session by id.
func (r *SessionRegistry) Get(id uint64) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int { return len(r.sessions) }

// ForEach visits every live session in stable insertion order.
func (r *SessionRegistry) ForEach(fn func(*Session)) {
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			fn(s)
		}
	}
}

// CompactOrder drops tombstoned ids from the order slice. Call this
// occasionally from deep housekeeping on a long-lived scheduler; it is
// never required for correctness, only to bound memory.
func (r *SessionRegistry) CompactOrder() {
	live := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.sessions[id]; ok {
			live = append(live, id)
		}
	}
	r.order = live
}

// checkSessionTimeout evicts every session idle for longer than maxIdle,
// invoking onTimeout (typically closing the socket and unregistering it
// from the event loop) before removing it from the registry.
func (r *SessionRegistry) checkSessionTimeout(maxIdle time.Duration, onTimeout func(*Session)) {
	if maxIdle <= 0 {
		return
	}
	at := now()
	var timedOut []uint64
	r.ForEach(func(s *Session) {
		if s.IsClosed() {
			return
		}
		if s.idleFor(at) >= maxIdle {
			timedOut = append(timedOut, s.ID)
		}
	})
	for _, id := range timedOut {
		s := r.sessions[id]
		s.MarkClosed()
		onTimeout(s)
		r.RemoveSession(id)
	}
}
