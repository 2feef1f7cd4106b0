//go:build !windows

package progress

import "os"

// enableANSIOnWindows does nothing outside Windows
func enableANSIOnWindows(*os.File) {}
