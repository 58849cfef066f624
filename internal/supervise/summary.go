package supervise

import (
	"fmt"
	"io"
	"syscall"
	"text/tabwriter"
	"time"
)

// ProcessExit is the final state of one supervised process.
type ProcessExit struct {
	PID               int          `json:"pid" yaml:"pid"`
	ParentAtDiscovery int          `json:"parent_at_discovery" yaml:"parent_at_discovery"`
	Outcome           Outcome      `json:"outcome" yaml:"outcome"`
	Orphaned          bool         `json:"orphaned" yaml:"orphaned"`
	History           []Transition `json:"history,omitempty" yaml:"history,omitempty"`
}

// Summary is the result of a drained run.
type Summary struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	RootPID   int           `json:"root_pid" yaml:"root_pid"`
	GroupID   int           `json:"pgid" yaml:"pgid"`
	SessionID int           `json:"sid,omitempty" yaml:"sid,omitempty"`
	Root      ExitStatus    `json:"root" yaml:"root"`
	Processes []ProcessExit `json:"processes" yaml:"processes"`
	TimedOut  bool          `json:"timed_out" yaml:"timed_out"`
	// Signal is the signal the runner itself received, if any.
	Signal   string    `json:"signal,omitempty" yaml:"signal,omitempty"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`

	Received syscall.Signal `json:"-" yaml:"-"`
}

// Process returns the entry for pid.
func (s *Summary) Process(pid int) (ProcessExit, bool) {
	for _, p := range s.Processes {
		if p.PID == pid {
			return p, true
		}
	}
	return ProcessExit{}, false
}

// Duration reports how long the run lasted.
func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

func (s *Supervisor) summary(finished time.Time) *Summary {
	out := &Summary{
		RunID:     s.tree.RunID,
		RootPID:   s.tree.RootPID,
		GroupID:   s.tree.GroupID,
		SessionID: s.tree.SessionID,
		TimedOut:  s.timedOut,
		Started:   s.started,
		Finished:  finished,
	}
	if sig, ok := s.relay.Received(); ok {
		out.Signal = SignalName(sig)
		out.Received = sig
	}
	for _, rec := range s.tree.Records() {
		outcome, ok := s.registry.Query(rec.PID)
		if !ok {
			outcome = Unknown()
		}
		out.Processes = append(out.Processes, ProcessExit{
			PID:               rec.PID,
			ParentAtDiscovery: rec.ParentAtDiscovery,
			Outcome:           outcome,
			Orphaned:          rec.Orphaned(),
			History:           rec.History,
		})
		if rec.PID == s.tree.RootPID {
			out.Root = ExitStatus{PID: rec.PID, Outcome: outcome}
		}
	}
	return out
}

// WriteText renders the summary as an aligned table.
func (s *Summary) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "run %s: root %d %s in %s\n", s.RunID, s.RootPID, s.Root.Outcome, s.Duration().Round(time.Millisecond)); err != nil {
		return err
	}
	if s.TimedOut {
		if _, err := fmt.Fprintln(w, "timed out"); err != nil {
			return err
		}
	}
	if s.Signal != "" {
		if _, err := fmt.Fprintf(w, "received %s\n", s.Signal); err != nil {
			return err
		}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tPARENT\tORPHANED\tOUTCOME")
	for _, p := range s.Processes {
		orphaned := "no"
		if p.Orphaned {
			orphaned = "yes"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", p.PID, p.ParentAtDiscovery, orphaned, p.Outcome)
	}
	return tw.Flush()
}

const (
	ExitTimeout = 124
	// ExitUnknown is used when the root's status could not be collected.
	ExitUnknown    = 125
	exitSignalBase = 128
)

// ExitCode derives the runner's exit status from the run. A root that exited
// 0 always yields 0. Otherwise a timed out run exits with ExitTimeout, or 0
// when timeoutOK is set, and a signal received by the runner takes precedence
// over the root's own outcome.
func (s *Summary) ExitCode(timeoutOK bool) int {
	if s.Root.Outcome.Kind == OutcomeExited && s.Root.Outcome.Code == 0 {
		return 0
	}
	if s.TimedOut {
		if timeoutOK {
			return 0
		}
		return ExitTimeout
	}
	if s.Received != 0 {
		return exitSignalBase + int(s.Received)
	}
	switch s.Root.Outcome.Kind {
	case OutcomeExited:
		return s.Root.Outcome.Code
	case OutcomeSignaled:
		return exitSignalBase + int(s.Root.Outcome.Signal)
	default:
		return ExitUnknown
	}
}
