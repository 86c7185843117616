//go:build darwin

package transport

import "golang.org/x/sys/unix"

func setNoSigPipeFd(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
