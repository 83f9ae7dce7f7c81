package util

import (
	"fmt"
	"net"
)

// GetFreeTCPPort asks the kernel for a free ephemeral port on the
// given bind address by listening on address:0 and immediately
// closing the listener. There is a small race window between the
// close and another process binding the same port.
func GetFreeTCPPort(bindAddr string) (int, error) {
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:0", bindAddr))
	if err != nil {
		return 0, err
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	if addr.Port == 0 {
		return 0, fmt.Errorf("failed to acquire free port")
	}
	return addr.Port, nil
}

// FreePortAbove probes for a free port starting at offset and walking
// upward, giving callers a deterministic default range (the tunnel
// supervisor starts at 29875) instead of always taking whatever the
// kernel hands back first.
func FreePortAbove(bindAddr string, offset int, attempts int) (int, error) {
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	for i := 0; i < attempts; i++ {
		port := offset + i
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port found in range [%d, %d)", offset, offset+attempts)
}
