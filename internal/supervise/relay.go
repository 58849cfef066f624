package supervise

import (
	"sync/atomic"
	"syscall"

	"github.com/Paintersrp/procwarden/internal/logging"
	"github.com/Paintersrp/procwarden/internal/metrics"
)

// Relay forwards termination requests to a supervised group. Request may be
// called from any goroutine and never blocks.
type Relay struct {
	pgid     int
	signaler Signaler

	first    atomic.Int32
	last     atomic.Int32
	received atomic.Int32
	notify   chan struct{}
}

func newRelay(pgid int, signaler Signaler) *Relay {
	return &Relay{
		pgid:     pgid,
		signaler: signaler,
		notify:   make(chan struct{}, 1),
	}
}

// Request sends sig to the process group and asks the supervisor to follow
// up with stragglers outside the group and, after the grace period, SIGKILL.
func (r *Relay) Request(sig syscall.Signal) {
	r.first.CompareAndSwap(0, int32(sig))
	r.last.Store(int32(sig))
	if err := r.signaler.Kill(-r.pgid, sig); err != nil {
		logging.L().Warn().Err(err).Int(logging.FieldPGID, r.pgid).
			Str(logging.FieldSignal, SignalName(sig)).Msg("signal process group")
	} else {
		metrics.IncSignal(SignalName(sig))
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Forward records sig as received by the runner itself and relays it.
func (r *Relay) Forward(sig syscall.Signal) {
	r.received.CompareAndSwap(0, int32(sig))
	r.Request(sig)
}

// Requested returns the first relayed signal.
func (r *Relay) Requested() (syscall.Signal, bool) {
	sig := r.first.Load()
	return syscall.Signal(sig), sig != 0
}

// Received returns the first signal the runner itself received.
func (r *Relay) Received() (syscall.Signal, bool) {
	sig := r.received.Load()
	return syscall.Signal(sig), sig != 0
}

func (r *Relay) lastSignal() syscall.Signal {
	return syscall.Signal(r.last.Load())
}
