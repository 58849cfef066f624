package supervise

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// WaitStatus is one state change collected from the kernel.
type WaitStatus struct {
	PID       int
	Outcome   Outcome
	Stopped   bool
	Continued bool
	// StopSignal is set when Stopped is true.
	StopSignal syscall.Signal
}

// Terminal reports whether the status ends the process.
func (w WaitStatus) Terminal() bool {
	return !w.Stopped && !w.Continued
}

// Waiter collects pending wait statuses without blocking. A zero PID in the
// result means nothing is ready. pid follows wait4 conventions: a negative
// value selects a process group.
type Waiter interface {
	Wait(pid int) (WaitStatus, error)
}

// Signaler delivers signals. A negative pid addresses a process group.
type Signaler interface {
	Kill(pid int, sig syscall.Signal) error
}

// ErrNoChild reports that there is nothing left to wait for.
var ErrNoChild = unix.ECHILD

type sysWaiter struct{}

func (sysWaiter) Wait(pid int) (WaitStatus, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return WaitStatus{}, err
		}
		if wpid <= 0 {
			return WaitStatus{}, nil
		}
		return convertStatus(wpid, ws), nil
	}
}

func convertStatus(pid int, ws unix.WaitStatus) WaitStatus {
	st := WaitStatus{PID: pid}
	switch {
	case ws.Exited():
		st.Outcome = Exited(ws.ExitStatus())
	case ws.Signaled():
		st.Outcome = Signaled(ws.Signal(), ws.CoreDump())
	case ws.Stopped():
		st.Stopped = true
		st.StopSignal = ws.StopSignal()
	case ws.Continued():
		st.Continued = true
	default:
		st.Outcome = Unknown()
	}
	return st
}

type sysSignaler struct{}

func (sysSignaler) Kill(pid int, sig syscall.Signal) error {
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
