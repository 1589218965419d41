//go:build linux || darwin

package eventloop

import (
	"golang.org/x/sys/unix"
)

// closeFD closes fd directly, bypassing the Go runtime's own fd
// wrapper types. Used both for the wake self-pipe and for sockets
// CloseFD evicts on behalf of a caller (e.g. a timed-out session).
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD drains the wake pipe or a connection fd into buf.
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD is shared by the wake-pipe nudge and the outbound write
// queue's flush path; both just need a raw non-blocking write.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}
