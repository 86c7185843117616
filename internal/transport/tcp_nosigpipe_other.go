//go:build unix && !darwin

package transport

// SO_NOSIGPIPE is not set on any unix other than Darwin: Linux has no such
// option, and on the BSDs in this build tag it is left unset. A write on a
// broken net.TCPConn returns EPIPE rather than raising SIGPIPE.
func setNoSigPipeFd(fd int) error {
	return nil
}
