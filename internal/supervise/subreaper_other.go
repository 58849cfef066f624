//go:build !linux

package supervise

import "errors"

// ErrSubreaperUnsupported is returned where the platform has no subreaper
// facility. Orphans are then reaped by init and recorded as unknown.
var ErrSubreaperUnsupported = errors.New("child subreaper not supported on this platform")

func EnableSubreaper() error {
	return ErrSubreaperUnsupported
}

func SubreaperSupported() bool {
	return false
}
