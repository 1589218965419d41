package eventloop

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Standard errors returned by Loop methods.
var (
	// ErrLoopClosed is returned when an operation is attempted on a
	// closed loop.
	ErrLoopClosed = errors.New("eventloop: loop is closed")
)

var loopIDCounter atomic.Uint64

// Loop is a single-thread-owned, non-blocking socket I/O multiplexer.
//
// A Loop is driven from the outside: callers register connections, then
// repeatedly call Poll from the owning goroutine. Unlike a general
// purpose reactor, Loop does not own a run-loop of its own — the caller
// (a scheduler's iteration) decides when and for how long to block.
type Loop struct {
	id uint64

	state *FastState

	logger                  Logger
	writeQueueHighWatermark int

	poller FastPoller

	// Wake-up mechanism: safe to call from any goroutine, interrupts a
	// blocked Poll. Backed by eventfd (Linux), a self-pipe (Darwin), or
	// PostQueuedCompletionStatus (Windows, via submitGenericWakeup).
	wakeFd            int
	wakeWriteFd        int
	wakeBuf           [8]byte
	wakeSignalPending atomic.Bool

	accepterMu sync.Mutex
	accepter   func()

	outboundMu  sync.Mutex
	outbound    map[int]*outboundBuffer
	queuedBytes atomic.Int64

	closeOnce sync.Once

	ownerGoroutineID atomic.Uint64
}

// outboundBuffer is the per-connection queue of unflushed write bytes.
type outboundBuffer struct {
	data []byte
}

// New creates a Loop and initializes its platform poller and wake-up
// descriptor.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeFd, wakeWriteFd, err := createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventloop: create wake fd: %w", err)
	}

	l := &Loop{
		id:                      loopIDCounter.Add(1),
		state:                   NewFastState(),
		logger:                  cfg.logger,
		writeQueueHighWatermark: cfg.writeQueueHighWatermark,
		wakeFd:                  wakeFd,
		wakeWriteFd:             wakeWriteFd,
		outbound:                make(map[int]*outboundBuffer),
	}

	if err := l.poller.Init(); err != nil {
		_ = closeWakeFd(wakeFd, wakeWriteFd)
		return nil, fmt.Errorf("eventloop: init poller: %w", err)
	}

	if isWakeFdSupported() {
		if err := l.poller.RegisterFD(wakeFd, EventRead, func(IOEvents) {
			l.drainWake()
		}); err != nil {
			_ = l.poller.Close()
			_ = closeWakeFd(wakeFd, wakeWriteFd)
			return nil, fmt.Errorf("eventloop: register wake fd: %w", err)
		}
	}

	return l, nil
}

// Register binds events on fd to cb, invoked inline from Poll whenever
// fd becomes ready.
func (l *Loop) Register(fd int, events IOEvents, cb func(IOEvents)) error {
	if l.state.Load() != StateOpen {
		return ErrLoopClosed
	}
	return l.poller.RegisterFD(fd, events, cb)
}

// Unregister removes fd from readiness monitoring.
func (l *Loop) Unregister(fd int) error {
	return l.poller.UnregisterFD(fd)
}

// CloseFD unregisters fd from readiness monitoring and closes the
// underlying descriptor, so a caller evicting a connection (an idle
// timeout, a failed handshake) does not leak the socket once the
// poller stops watching it. Unregister errors are swallowed since fd
// may already be gone from the poller (e.g. the peer closed first);
// the close is attempted regardless.
func (l *Loop) CloseFD(fd int) error {
	_ = l.poller.UnregisterFD(fd)
	return closeFD(fd)
}

// ModifyFD updates the set of events monitored for fd.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.ModifyFD(fd, events)
}

// SetAccepter installs the callback invoked after every wake-triggered
// Poll return, giving the acceptor bridge a chance to check whether this
// scheduler now owns a pending accept.
func (l *Loop) SetAccepter(cb func()) {
	l.accepterMu.Lock()
	l.accepter = cb
	l.accepterMu.Unlock()
}

// GetSelector returns the readiness-selection handle. Realized here as
// the Loop itself: unlike a two-phase select()-then-iterate-keys API,
// this poller dispatches callbacks inline during Poll/SelectNow, so a
// separate selected-key set never needs to exist.
func (l *Loop) GetSelector() *Loop { return l }

// SelectNow performs one non-blocking readiness check, dispatching any
// ready callbacks inline.
func (l *Loop) SelectNow() error {
	return l.Poll(0)
}

// HandleSelectedKeys is a no-op: callback dispatch already happened
// inline during Poll/SelectNow.
func (l *Loop) HandleSelectedKeys() error { return nil }

// Poll blocks until an I/O event fires, a wake-up arrives, or deadline
// elapses, whichever comes first. A zero deadline polls without
// blocking; a negative deadline blocks indefinitely.
func (l *Loop) Poll(deadline time.Duration) error {
	if l.state.Load() != StateOpen {
		return ErrLoopClosed
	}

	l.ownerGoroutineID.Store(getGoroutineID())

	timeoutMs := -1
	if deadline == 0 {
		timeoutMs = 0
	} else if deadline > 0 {
		timeoutMs = int(deadline.Milliseconds())
		if timeoutMs == 0 && deadline > 0 {
			timeoutMs = 1 // ceiling-round sub-millisecond deadlines up
		}
	}

	_, err := l.poller.PollIO(timeoutMs)
	if err != nil {
		l.logWarn("poll failed", err)
		return err
	}
	return nil
}

// WakeUp causes a blocked Poll to return promptly. Safe to call from any
// goroutine.
func (l *Loop) WakeUp() error {
	if l.state.Load() == StateClosed {
		return nil
	}
	if !l.wakeSignalPending.CompareAndSwap(false, true) {
		return nil // already a wake-up in flight
	}
	if !isWakeFdSupported() {
		return submitGenericWakeup(uintptr(l.wakeFd))
	}
	var one uint64 = 1
	buf := [8]byte{byte(one)}
	_, err := writeFD(l.wakeWriteFd, buf[:])
	return err
}

func (l *Loop) drainWake() {
	for {
		n, err := readFD(l.wakeFd, l.wakeBuf[:])
		if err != nil || n <= 0 {
			break
		}
	}
	l.wakeSignalPending.Store(false)

	l.accepterMu.Lock()
	accepter := l.accepter
	l.accepterMu.Unlock()
	if accepter != nil {
		accepter()
	}
}

// QueueWrite appends b to fd's outbound queue. When fd had no queued data
// before, QueueWrite adds EventWrite interest for it, so the caller does
// not need to.
func (l *Loop) QueueWrite(fd int, b []byte) (int, error) {
	if l.state.Load() != StateOpen {
		return 0, ErrLoopClosed
	}
	if len(b) == 0 {
		return 0, nil
	}

	l.outboundMu.Lock()
	buf, existed := l.outbound[fd]
	if !existed {
		buf = &outboundBuffer{}
		l.outbound[fd] = buf
	}
	buf.data = append(buf.data, b...)
	l.outboundMu.Unlock()

	if !existed {
		_ = l.poller.ModifyFD(fd, EventRead|EventWrite)
	}

	l.queuedBytes.Add(int64(len(b)))
	return len(b), nil
}

// IsQueueLarge reports whether total buffered-but-unflushed outbound
// bytes are at or above the configured high watermark. The dispatcher treats this
// as a backpressure signal to drain writes before selecting new work.
func (l *Loop) IsQueueLarge() bool {
	return l.queuedBytes.Load() >= int64(l.writeQueueHighWatermark)
}

// Flush attempts to write as much queued outbound data as possible
// without blocking. Connections that fully drain have their write
// interest cleared; connections that hit EAGAIN keep their remainder
// buffered for the next Flush. Errors from individual connections are
// joined and returned, but do not stop draining the rest.
func (l *Loop) Flush() error {
	l.outboundMu.Lock()
	pending := make(map[int]*outboundBuffer, len(l.outbound))
	for fd, buf := range l.outbound {
		if len(buf.data) > 0 {
			pending[fd] = buf
		}
	}
	l.outboundMu.Unlock()

	var errs []error
	for fd, buf := range pending {
		n, err := writeFD(fd, buf.data)
		if n > 0 {
			l.queuedBytes.Add(-int64(n))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("eventloop: flush fd %d: %w", fd, err))
			l.logWarn("flush failed", err)
			continue
		}

		l.outboundMu.Lock()
		if n >= len(buf.data) {
			delete(l.outbound, fd)
			_ = l.poller.ModifyFD(fd, EventRead)
		} else {
			buf.data = buf.data[n:]
		}
		l.outboundMu.Unlock()
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Close releases the poller and wake descriptors. Safe to call more than
// once.
func (l *Loop) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.state.Store(StateClosed)
		err = l.poller.Close()
		_ = closeWakeFd(l.wakeFd, l.wakeWriteFd)
	})
	return err
}

// IsOwnerThread reports whether the calling goroutine is the one that
// last called Poll on this loop.
func (l *Loop) IsOwnerThread() bool {
	id := l.ownerGoroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

// getGoroutineID extracts the current goroutine's numeric ID by parsing
// the leading "goroutine N" line of a stack trace. Called by Poll on every
// call to record the owning goroutine, and by IsOwnerThread.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
