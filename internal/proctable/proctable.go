// Package proctable reads the host process table.
//
// A Table returns a point-in-time Snapshot keyed by PID. Snapshots are never
// cached; each call re-reads the kernel state.
package proctable

import "errors"

// ErrUnsupported reports that no process table backend exists for the
// current platform.
var ErrUnsupported = errors.New("process table not supported on this platform")

// Proc is one entry of a process table snapshot.
type Proc struct {
	PID  int
	PPID int
	PGID int
	// StartTime identifies the process generation. Zero when the backend
	// cannot provide it.
	StartTime uint64
	// Zombie is set for a process that exited and awaits reaping by its
	// parent. Backends that cannot tell leave it false.
	Zombie bool
}

// Gap describes a process whose details could not be read because it exited
// while the table was being scanned.
type Gap struct {
	PID int
	Err error
}

// Snapshot is a point-in-time view of the process table.
type Snapshot struct {
	Procs map[int]Proc
	Gaps  []Gap
}

// Table reads process table snapshots.
type Table interface {
	Snapshot() (Snapshot, error)
}
