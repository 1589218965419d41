package scheduler

import (
	"fmt"

	"github.com/haiyanghan/lealone-go/eventloop"
)

// miscTaskQueue holds one-shot, scheduler-wide work items (not scoped to
// any single session) such as deferred close callbacks or cross-session
// notifications. Built directly on eventloop.ChunkedIngress, the same
// chunked FIFO each Session uses for its own task queue, since both
// queues share the same usage shape: single-owner push/pop, bursty
// fill, drained to empty once per pass.
type miscTaskQueue struct {
	q      *eventloop.ChunkedIngress
	logger Logger
}

func newMiscTaskQueue(logger Logger) *miscTaskQueue {
	return &miscTaskQueue{q: eventloop.NewChunkedIngress(), logger: logger}
}

// Submit enqueues fn to run on a future drain.
func (m *miscTaskQueue) Submit(fn func()) { m.q.Push(fn) }

// Len reports the number of queued misc tasks.
func (m *miscTaskQueue) Len() int { return m.q.Length() }

// RunPendingTasks drains every task queued as of the start of this call.
// Tasks queued by a running task are left for the next pass. A panicking
// task is isolated: it is recovered, logged, and does not prevent the
// remaining tasks in this pass from running.
func (m *miscTaskQueue) RunPendingTasks() {
	pending := m.q.Length()
	for i := 0; i < pending; i++ {
		fn, ok := m.q.Pop()
		if !ok {
			return
		}
		m.runOne(fn)
	}
}

func (m *miscTaskQueue) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Log(LogEntry{
					Level:   LevelError,
					Message: "misc task panicked",
					Err:     fmt.Errorf("%v", r),
				})
			}
		}
	}()
	fn()
}

// PeriodicTask is a recurring callback, invoked on every scheduler
// iteration and again on each deep-housekeeping fallback inside dispatch,
// for as long as it remains registered.
type PeriodicTask struct {
	id int64
	fn func()
}

// periodicTasks is a small full-scan registry: periodic tasks are
// expected to be few (housekeeping callbacks, not per-request work), so
// a slice scanned in full every iteration is simpler and cheaper than an
// indexed structure, and removal-during-iteration never needs to worry
// about invalidating a cursor held elsewhere.
type periodicTasks struct {
	tasks  []*PeriodicTask
	nextID int64
	logger Logger
}

func newPeriodicTasks(logger Logger) *periodicTasks { return &periodicTasks{logger: logger} }

// Add registers fn to run on every future iteration and returns a handle
// usable with Remove.
func (p *periodicTasks) Add(fn func()) int64 {
	p.nextID++
	id := p.nextID
	p.tasks = append(p.tasks, &PeriodicTask{id: id, fn: fn})
	return id
}

// Remove unregisters a previously-added periodic task by handle.
func (p *periodicTasks) Remove(id int64) {
	for i, t := range p.tasks {
		if t.id == id {
			p.tasks = append(p.tasks[:i], p.tasks[i+1:]...)
			return
		}
	}
}

// RunAll invokes every registered periodic task once, in registration
// order. Callers bypass this entirely once the owning scheduler has
// observed its own stopped flag, rather than checking it per task. A
// panicking task is recovered and logged at warn, never dropped: unlike
// a misc task, a periodic task is expected to keep running on every
// future iteration, so one bad pass must not deregister it.
func (p *periodicTasks) RunAll() {
	for _, t := range p.tasks {
		p.runOne(t)
	}
}

func (p *periodicTasks) runOne(t *PeriodicTask) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Log(LogEntry{
					Level:   LevelWarn,
					Message: "periodic task panicked",
					Err:     fmt.Errorf("%v", r),
					Fields:  map[string]any{"periodicTaskID": t.id},
				})
			}
		}
	}()
	t.fn()
}

// Len reports how many periodic tasks are registered.
func (p *periodicTasks) Len() int { return len(p.tasks) }
