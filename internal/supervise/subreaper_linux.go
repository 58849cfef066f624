//go:build linux

package supervise

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// EnableSubreaper marks the calling process as a child subreaper so that
// orphaned descendants are reparented to it instead of to init.
func EnableSubreaper() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set child subreaper: %w", err)
	}
	return nil
}

// SubreaperSupported reports whether EnableSubreaper can succeed.
func SubreaperSupported() bool {
	return true
}
