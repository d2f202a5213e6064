//go:build !linux

package asset

import (
	"os"
	"time"
)

// CreatedTime returns the modification time; birth time is only read on Linux.
func CreatedTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
