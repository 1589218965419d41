package scheduler

// SessionInitResult is the outcome of one attempt to advance a pending
// session handshake (TLS negotiation, auth exchange, catalog warm-up).
type SessionInitResult int

const (
	// SessionInitComplete indicates the session is ready to be added to
	// the registry and scheduled normally.
	SessionInitComplete SessionInitResult = iota
	// SessionInitRetry indicates the task made no terminal progress this
	// attempt and should be requeued at the tail for a later pass.
	SessionInitRetry
	// SessionInitFailed indicates the task failed permanently (auth
	// rejected, protocol violation) and must not be retried.
	SessionInitFailed
)

// SessionInitTask is one restartable step of bringing up a new session.
// Iterate calls Attempt at most once per pass; a SessionInitRetry
// result requeues a fresh copy of the task at the tail of the pending
// list so other pending inits are not starved behind a slow one.
//
// Attempt's *Session return is only meaningful when the result is
// SessionInitComplete: that is the fully-initialized Session the caller
// should register with the scheduler. A retrying or failing attempt
// returns nil.
type SessionInitTask struct {
	next *SessionInitTask

	FD       int
	Attempt  func() (SessionInitResult, *Session, error)
	attempts int
}

func (t *SessionInitTask) linkNext() **SessionInitTask { return &t.next }

// requeueCopy returns a fresh *SessionInitTask carrying the same
// in-progress state but with its link pointer cleared, so it can be
// pushed back onto a pendingList without the original node referencing
// itself.
func (t *SessionInitTask) requeueCopy() *SessionInitTask {
	return &SessionInitTask{
		FD:       t.FD,
		Attempt:  t.Attempt,
		attempts: t.attempts,
	}
}

// pendingSessionInits is the ordered queue of in-progress session
// handshakes, admission-gated by a SessionValidator.
type pendingSessionInits struct {
	list     pendingList[*SessionInitTask]
	validator *SessionValidator
}

func newPendingSessionInits(validator *SessionValidator) *pendingSessionInits {
	return &pendingSessionInits{validator: validator}
}

// Submit enqueues a new session-init task.
func (p *pendingSessionInits) Submit(task *SessionInitTask) {
	p.list.PushBack(task)
}

// Len reports how many session-init tasks are outstanding.
func (p *pendingSessionInits) Len() int { return p.list.Len() }

// RunOne advances at most one pending session-init task, respecting the
// validator's admission budget. It reports whether a task was actually
// attempted, so callers can decide whether to keep calling in a loop or
// move on to other housekeeping for this pass. onComplete receives the
// Session the task produced.
func (p *pendingSessionInits) RunOne(onComplete func(*SessionInitTask, *Session), onFailed func(*SessionInitTask, error)) bool {
	if p.list.Empty() {
		return false
	}
	if p.validator != nil && !p.validator.canHandleNextSessionInitTask() {
		return false
	}
	task, ok := p.list.PopFront()
	if !ok {
		return false
	}
	task.attempts++
	result, sess, err := task.Attempt()
	switch result {
	case SessionInitComplete:
		if p.validator != nil {
			_ = p.validator.Validate(true)
		}
		onComplete(task, sess)
	case SessionInitFailed:
		if p.validator != nil {
			_ = p.validator.Validate(false)
		}
		onFailed(task, err)
	default: // SessionInitRetry
		p.list.PushBack(task.requeueCopy())
	}
	return true
}
