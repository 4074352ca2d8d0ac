//go:build !windows

package execindex

import "golang.org/x/sys/unix"

// canExecute checks execute permission for the current process.
func canExecute(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}
