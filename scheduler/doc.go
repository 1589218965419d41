// Package scheduler implements a per-thread cooperative scheduler: the
// loop a single OS thread runs to admit sessions, multiplex their
// sockets, and step yieldable SQL commands without ever blocking that
// thread on a statement's own I/O or CPU work.
//
// A fleet runs one Scheduler per OS thread. Each Scheduler owns its own
// eventloop.Loop, session registry, task queues, and admission
// controller; the only cross-scheduler interaction is acceptor handoff
// (see acceptor.go) and partitioned transaction-engine GC (see gc.go).
package scheduler
