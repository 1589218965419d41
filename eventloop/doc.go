// Package eventloop provides a per-thread, non-blocking socket I/O
// multiplexer: the lowest layer a cooperative scheduler polls at the end
// of every iteration.
//
// # Architecture
//
// A [Loop] owns exactly one OS thread's view of socket readiness. It
// wraps the platform-native readiness primitive (epoll on Linux, kqueue
// on Darwin, IOCP on Windows) behind a single contract:
//
//   - [Loop.Register] binds a file descriptor's readiness callback.
//   - [Loop.Poll] blocks (up to a deadline) until readiness, a wake-up,
//     or the deadline elapses, then dispatches callbacks inline.
//   - [Loop.WakeUp] is safe from any goroutine and causes a blocked Poll
//     to return promptly — this is how foreign goroutines (e.g. a misc
//     task producer) interrupt an idle scheduler.
//   - [Loop.QueueWrite] / [Loop.Flush] queue and flush outbound bytes per
//     connection; [Loop.IsQueueLarge] reports backpressure.
//
// # Platform support
//
// I/O polling is implemented using platform-native mechanisms:
//   - Linux: epoll (poller_linux.go)
//   - Darwin: kqueue (poller_darwin.go)
//   - Windows: IOCP (poller_windows.go)
//
// # Thread affinity
//
// A Loop is owned by a single goroutine: the one that calls [Loop.Poll].
// [Loop.WakeUp] and [Loop.QueueWrite] are the only operations safe to
// call from other goroutines; everything else (Register, Poll, Flush)
// is expected to run on the owning goroutine only, matching the
// single-threaded-per-scheduler design this package serves.
package eventloop
