//go:build windows

package action

// Windows renames across volumes fail with a different errno surface
// than EXDEV; treat any rename failure on Windows as cross-device and
// let the copy-then-delete fallback handle it.
func isCrossDeviceErrno(err error) bool {
	return true
}
