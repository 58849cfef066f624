package supervise

import (
	"encoding/json"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// OutcomeKind classifies how a process terminated.
type OutcomeKind int

const (
	// OutcomeUnknown means the process disappeared without a status being
	// collected by the runner.
	OutcomeUnknown OutcomeKind = iota
	OutcomeExited
	OutcomeSignaled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeExited:
		return "exited"
	case OutcomeSignaled:
		return "signaled"
	default:
		return "unknown"
	}
}

// Outcome is the terminal status of one process.
type Outcome struct {
	Kind       OutcomeKind
	Code       int
	Signal     syscall.Signal
	CoreDumped bool
}

// Exited returns the outcome of a process that exited with code.
func Exited(code int) Outcome {
	return Outcome{Kind: OutcomeExited, Code: code}
}

// Signaled returns the outcome of a process killed by sig.
func Signaled(sig syscall.Signal, core bool) Outcome {
	return Outcome{Kind: OutcomeSignaled, Signal: sig, CoreDumped: core}
}

// Unknown returns the outcome recorded when no status could be collected.
func Unknown() Outcome {
	return Outcome{Kind: OutcomeUnknown}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeExited:
		return fmt.Sprintf("exited %d", o.Code)
	case OutcomeSignaled:
		s := "signaled " + SignalName(o.Signal)
		if o.CoreDumped {
			s += " (core dumped)"
		}
		return s
	default:
		return "unknown"
	}
}

type outcomeView struct {
	Kind       string `json:"kind" yaml:"kind"`
	Code       *int   `json:"code,omitempty" yaml:"code,omitempty"`
	Signal     string `json:"signal,omitempty" yaml:"signal,omitempty"`
	CoreDumped bool   `json:"core_dumped,omitempty" yaml:"core_dumped,omitempty"`
}

func (o Outcome) view() outcomeView {
	v := outcomeView{Kind: o.Kind.String()}
	switch o.Kind {
	case OutcomeExited:
		code := o.Code
		v.Code = &code
	case OutcomeSignaled:
		v.Signal = SignalName(o.Signal)
		v.CoreDumped = o.CoreDumped
	}
	return v
}

// MarshalJSON renders the outcome as an object with a kind discriminator.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.view())
}

// MarshalYAML renders the outcome as a mapping.
func (o Outcome) MarshalYAML() (interface{}, error) {
	return o.view(), nil
}

// SignalName returns the conventional name of sig, such as SIGTERM.
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("SIG%d", int(sig))
}
