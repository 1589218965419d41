//go:build windows

package eventloop

import (
	"golang.org/x/sys/windows"
)

// closeFD closes a real Windows handle (typically a connection socket
// CloseFD is evicting). The wake mechanism itself never has a
// descriptor to close here, since createWakeFd reports -1 for both
// ends on Windows and closeWakeFd in wakeup_windows.go is a no-op; fd
// reaching this function is always a caller's own socket handle.
func closeFD(fd int) error {
	if fd < 0 {
		return nil
	}
	return windows.CloseHandle(windows.Handle(fd))
}

// readFD is unused on Windows: IOCP delivers data via WSARecv
// completions the poller dispatches directly, not a blocking read
// syscall on the registered fd.
func readFD(fd int, buf []byte) (int, error) {
	return 0, nil
}

// writeFD is unused on Windows for the same reason as readFD; outbound
// writes go through WSASend, not a raw fd write.
func writeFD(fd int, buf []byte) (int, error) {
	return 0, nil
}
