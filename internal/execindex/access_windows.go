//go:build windows

package execindex

import (
	"path/filepath"
	"strings"
)

// canExecute approximates the executable check on Windows, where execute
// permission is conveyed by file extension.
func canExecute(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".bat", ".cmd", ".com":
		return true
	}
	return false
}
