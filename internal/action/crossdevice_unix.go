//go:build !windows

package action

import "syscall"

func isCrossDeviceErrno(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && errno == syscall.EXDEV
}
