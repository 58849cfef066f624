package supervise

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Paintersrp/procwarden/internal/logging"
	"github.com/Paintersrp/procwarden/internal/metrics"
	"github.com/Paintersrp/procwarden/internal/proctable"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultGracePeriod  = 5 * time.Second
)

// Options tune a Supervisor.
type Options struct {
	// PollInterval bounds how long a reparenting can go unnoticed.
	PollInterval time.Duration
	// GracePeriod is how long to wait after a relayed signal before
	// escalating to SIGKILL.
	GracePeriod time.Duration
	// KillAfter terminates the tree once it elapses. Zero disables it.
	KillAfter time.Duration
	// Table defaults to the platform process table.
	Table proctable.Table
	// Events receives lifecycle notifications. The channel must be drained
	// until Run returns.
	Events chan<- Event
}

// Supervisor reaps a launched tree until it is drained.
type Supervisor struct {
	tree     *Tree
	tracker  *Tracker
	registry *Registry
	relay    *Relay
	waiter   Waiter
	signaler Signaler
	events   chan<- Event
	log      zerolog.Logger

	self      int
	poll      time.Duration
	grace     time.Duration
	killAfter time.Duration
	limiter   *rate.Limiter
	wake      <-chan os.Signal

	started   time.Time
	timedOut  bool
	escalated bool
	running   atomic.Bool
}

// New returns a supervisor for tree.
func New(tree *Tree, opts Options) (*Supervisor, error) {
	table := opts.Table
	if table == nil {
		t, err := proctable.New()
		if err != nil {
			return nil, err
		}
		table = t
	}
	return newSupervisor(tree, opts, table, sysWaiter{}, sysSignaler{}), nil
}

func newSupervisor(tree *Tree, opts Options, table proctable.Table, waiter Waiter, signaler Signaler) *Supervisor {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	grace := opts.GracePeriod
	if grace < 0 {
		grace = 0
	}
	log := logging.WithComponent("supervise").With().
		Str(logging.FieldRunID, tree.RunID).
		Int(logging.FieldPGID, tree.GroupID).
		Logger()
	return &Supervisor{
		tree:      tree,
		tracker:   NewTracker(tree, table),
		registry:  NewRegistry(),
		relay:     newRelay(tree.GroupID, signaler),
		waiter:    waiter,
		signaler:  signaler,
		events:    opts.Events,
		log:       log,
		self:      os.Getpid(),
		poll:      poll,
		grace:     grace,
		killAfter: opts.KillAfter,
		// SIGCHLD storms only trigger a table scan a few times per poll
		// interval; wait statuses are drained on every wake regardless.
		limiter: rate.NewLimiter(rate.Every(poll/4), 2),
	}
}

// Tree returns the supervised tree. It must not be read while Run is active.
func (s *Supervisor) Tree() *Tree {
	return s.tree
}

// Registry returns the exit registry. It is safe to read at any time.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Relay returns the relay used to terminate the tree.
func (s *Supervisor) Relay() *Relay {
	return s.relay
}

// Run reaps until the root and every discovered descendant have terminated.
// Cancelling ctx relays SIGTERM; Run still waits for the tree to drain.
func (s *Supervisor) Run(ctx context.Context) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, errors.New("supervisor can only run once")
	}

	wake := s.wake
	if wake == nil {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, syscall.SIGCHLD)
		defer signal.Stop(sigch)
		wake = sigch
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.started = time.Now()
	s.log.Info().Int(logging.FieldPID, s.tree.RootPID).Msg("supervising")
	s.emit(Event{Type: EventLaunched, PID: s.tree.RootPID, Parent: s.self})
	metrics.AddDiscovered(1)

	var deadline <-chan time.Time
	if s.killAfter > 0 {
		timer := time.NewTimer(s.killAfter)
		defer timer.Stop()
		deadline = timer.C
	}
	var escalate <-chan time.Time
	var graceTimer *time.Timer
	defer func() {
		if graceTimer != nil {
			graceTimer.Stop()
		}
	}()
	done := ctx.Done()
	relayed := false

	scan := true
	for {
		s.collect()
		if scan {
			s.refresh()
		}
		metrics.SetTracked(s.tree.Live())
		if s.drained() {
			break
		}

		scan = false
		select {
		case <-wake:
			scan = s.limiter.Allow()
		case <-ticker.C:
			scan = true
		case <-s.relay.notify:
			s.signalStragglers(s.relay.lastSignal())
			if !relayed {
				relayed = true
				graceTimer = time.NewTimer(s.grace)
				escalate = graceTimer.C
			}
			scan = true
		case <-deadline:
			deadline = nil
			s.timedOut = true
			s.log.Warn().Dur("kill_after", s.killAfter).Msg("run timed out")
			s.relay.Request(syscall.SIGTERM)
		case <-escalate:
			escalate = nil
			s.escalate()
			scan = true
		case <-done:
			done = nil
			s.log.Info().Msg("context cancelled, terminating tree")
			s.relay.Request(syscall.SIGTERM)
		}
	}

	metrics.SetTracked(0)
	s.emit(Event{Type: EventDrained, Message: "all processes reaped"})
	s.log.Info().Int("processes", s.tree.Len()).Msg("drained")
	return s.summary(time.Now()), nil
}

// collect drains every pending wait status for the group and for tracked
// processes that left it while remaining children of the runner.
func (s *Supervisor) collect() {
	for {
		st, err := s.waiter.Wait(-s.tree.GroupID)
		if err != nil {
			if !errors.Is(err, ErrNoChild) {
				s.log.Warn().Err(err).Msg("wait for process group")
			}
			break
		}
		if st.PID == 0 {
			break
		}
		s.handle(st)
	}

	for _, pid := range s.tree.livePIDs() {
		rec := s.tree.records[pid]
		if rec.GroupID == s.tree.GroupID || (rec.Parent != s.self && pid != s.tree.RootPID) {
			continue
		}
		for {
			st, err := s.waiter.Wait(pid)
			if err != nil || st.PID == 0 {
				break
			}
			s.handle(st)
			if st.Terminal() {
				break
			}
		}
	}
}

func (s *Supervisor) handle(st WaitStatus) {
	switch {
	case st.Stopped:
		s.log.Debug().Int(logging.FieldPID, st.PID).Str(logging.FieldSignal, SignalName(st.StopSignal)).Msg("stopped")
		s.emit(Event{Type: EventStopped, PID: st.PID, Signal: SignalName(st.StopSignal)})
	case st.Continued:
		s.log.Debug().Int(logging.FieldPID, st.PID).Msg("continued")
		s.emit(Event{Type: EventContinued, PID: st.PID})
	default:
		s.terminate(st.PID, st.Outcome, true)
	}
}

// terminate records the outcome of pid once. reaped is true when the status
// was collected by the runner, which means the runner was its parent when it
// died.
func (s *Supervisor) terminate(pid int, outcome Outcome, reaped bool) {
	if _, ok := s.registry.Query(pid); ok {
		return
	}
	if !s.tree.Has(pid) {
		// Forked and died between two scans.
		s.tree.add(pid, 0, s.tree.GroupID, 0)
		metrics.AddDiscovered(1)
		s.emit(Event{Type: EventDiscovered, PID: pid})
	}
	rec := s.tree.records[pid]
	if reaped && pid != s.tree.RootPID && rec.ParentAtDiscovery != s.self && s.tree.markOrphaned(pid) {
		s.orphaned(pid)
	}

	s.registry.Record(pid, outcome)
	s.tree.markTerminated(pid)
	metrics.IncReaped(outcome.Kind.String())

	typ := EventTerminated
	if outcome.Kind == OutcomeUnknown {
		typ = EventUnknown
	}
	s.log.Debug().Int(logging.FieldPID, pid).Str(logging.FieldOutcome, outcome.String()).Msg("terminated")
	s.emit(Event{Type: typ, PID: pid, Outcome: outcome.String()})

	if pid == s.tree.RootPID {
		s.tree.releaseRoot()
	}
}

func (s *Supervisor) orphaned(pid int) {
	metrics.IncOrphaned()
	rec := s.tree.records[pid]
	s.log.Debug().Int(logging.FieldPID, pid).Int(logging.FieldParent, rec.ParentAtDiscovery).
		Int(logging.FieldPPID, rec.Parent).Msg("orphaned")
	s.emit(Event{Type: EventOrphaned, PID: pid, Parent: rec.Parent})
}

func (s *Supervisor) refresh() {
	start := time.Now()
	delta, err := s.tracker.Refresh()
	metrics.ObserveScan(time.Since(start))
	if err != nil {
		s.log.Warn().Err(err).Msg("refresh process table")
		return
	}
	s.apply(delta)
}

func (s *Supervisor) apply(delta Delta) {
	metrics.AddDiscovered(len(delta.Discovered))
	for _, pid := range delta.Discovered {
		rec := s.tree.records[pid]
		s.log.Debug().Int(logging.FieldPID, pid).Int(logging.FieldParent, rec.ParentAtDiscovery).Msg("discovered")
		s.emit(Event{Type: EventDiscovered, PID: pid, Parent: rec.ParentAtDiscovery})
	}
	for _, pid := range delta.Orphaned {
		s.orphaned(pid)
	}
	for _, pid := range delta.Zombies {
		s.log.Debug().Int(logging.FieldPID, pid).Int(logging.FieldParent, s.tree.records[pid].Parent).Msg("exited, waiting for parent to reap")
	}
	for _, gap := range delta.Gaps {
		metrics.IncDetectionGap()
		s.log.Debug().Err(gap.Err).Int(logging.FieldPID, gap.PID).Msg("detection gap")
		s.emit(Event{Type: EventGap, PID: gap.PID, Message: gap.Err.Error()})
	}
	for _, pid := range delta.Vanished {
		// The status may have become available since the last drain.
		if st, err := s.waiter.Wait(pid); err == nil && st.PID == pid && st.Terminal() {
			s.terminate(pid, st.Outcome, true)
			continue
		}
		s.log.Debug().Int(logging.FieldPID, pid).Msg("vanished without status")
		s.terminate(pid, Unknown(), false)
	}
}

// drained reports whether nothing is left to reap. A final scan must find no
// new processes.
func (s *Supervisor) drained() bool {
	if !s.tree.RootTerminated() || s.tree.Live() > 0 {
		return false
	}
	s.refresh()
	return s.tree.Live() == 0
}

func (s *Supervisor) signalStragglers(sig syscall.Signal) {
	if sig == 0 {
		return
	}
	for _, pid := range s.tree.livePIDs() {
		if s.tree.records[pid].GroupID == s.tree.GroupID {
			continue
		}
		if err := s.signaler.Kill(pid, sig); err != nil {
			s.log.Warn().Err(err).Int(logging.FieldPID, pid).Msg("signal straggler")
			continue
		}
		metrics.IncSignal(SignalName(sig))
	}
	s.emit(Event{Type: EventSignaled, PID: s.tree.RootPID, Signal: SignalName(sig)})
}

func (s *Supervisor) escalate() {
	if s.escalated || s.tree.Live() == 0 {
		return
	}
	s.escalated = true
	s.log.Warn().Int("live", s.tree.Live()).Dur("grace_period", s.grace).Msg("grace period elapsed, killing tree")
	if err := s.signaler.Kill(-s.tree.GroupID, syscall.SIGKILL); err != nil {
		s.log.Warn().Err(err).Msg("kill process group")
	} else {
		metrics.IncSignal(SignalName(syscall.SIGKILL))
	}
	for _, pid := range s.tree.livePIDs() {
		if s.tree.records[pid].GroupID == s.tree.GroupID {
			continue
		}
		if err := s.signaler.Kill(pid, syscall.SIGKILL); err == nil {
			metrics.IncSignal(SignalName(syscall.SIGKILL))
		}
	}
	s.emit(Event{Type: EventEscalated, Signal: SignalName(syscall.SIGKILL)})
}
