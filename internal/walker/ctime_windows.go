//go:build windows

package walker

import (
	"io/fs"
	"time"
)

// changeTime has no portable equivalent on Windows; ModTime is used
// as the best available proxy.
func changeTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
