//go:build !unix

package milter

import "syscall"

// controlReuseAddr is a no-op on non-unix platforms: SO_REUSEADDR via a raw
// socket option is a POSIX concept, and WithReuseAddr has no effect there.
func controlReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
