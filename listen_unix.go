//go:build unix

package milter

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddr is the net.ListenConfig.Control callback that sets
// SO_REUSEADDR on the listening socket, as §6 requires ("a configurable
// port on all interfaces, with SO_REUSEADDR set"). net.Listen itself has no
// option for this; x/sys/unix is the grounded way the retrieved pack sets
// socket options on a raw file descriptor.
func controlReuseAddr(_, _ string, rc syscall.RawConn) error {
	var sockErr error
	err := rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
