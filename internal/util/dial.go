package util

import (
	"net"
	"time"
)

// DialProbe attempts a short TCP connection to addr purely to test
// reachability, closing immediately on success.
func DialProbe(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return err
	}
	return conn.Close()
}

// DialTimeout is a thin wrapper so callers outside net don't need to
// import it just to dial with a deadline.
func DialTimeout(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
