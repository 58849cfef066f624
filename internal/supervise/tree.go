package supervise

import (
	"os"
	"time"
)

// State is the lifecycle state of a supervised process.
type State int

const (
	StateAttached State = iota
	StateOrphaned
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAttached:
		return "attached"
	case StateOrphaned:
		return "orphaned"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is one entry in a record's state history.
type Transition struct {
	State State     `json:"state" yaml:"state"`
	At    time.Time `json:"at" yaml:"at"`
}

// Record describes one process of a supervised tree.
type Record struct {
	PID               int
	ParentAtDiscovery int
	// Parent is the parent observed by the most recent scan.
	Parent  int
	GroupID int
	// StartTime is the kernel start time used to tell PID generations apart.
	// Zero when unavailable.
	StartTime uint64
	State     State
	History   []Transition
}

// Orphaned reports whether the record ever passed through StateOrphaned.
func (r Record) Orphaned() bool {
	for _, tr := range r.History {
		if tr.State == StateOrphaned {
			return true
		}
	}
	return false
}

func (r *Record) transition(to State, at time.Time) bool {
	switch {
	case r.State == StateAttached && (to == StateOrphaned || to == StateTerminated):
	case r.State == StateOrphaned && to == StateTerminated:
	default:
		return false
	}
	r.State = to
	r.History = append(r.History, Transition{State: to, At: at})
	return true
}

// Tree is the set of processes supervised for one launched command. Records
// stay in the tree after termination and a PID is never added twice.
//
// A Tree is owned by a single goroutine; it is not safe for concurrent use.
type Tree struct {
	RunID     string
	RootPID   int
	GroupID   int
	SessionID int

	records map[int]*Record
	order   []int
	live    int
	now     func() time.Time

	proc *os.Process
}

// NewTree returns an empty tree for a root already started in group pgid.
func NewTree(runID string, rootPID, pgid, sid int) *Tree {
	return &Tree{
		RunID:     runID,
		RootPID:   rootPID,
		GroupID:   pgid,
		SessionID: sid,
		records:   make(map[int]*Record),
		now:       time.Now,
	}
}

// Len reports the number of processes ever discovered.
func (t *Tree) Len() int {
	return len(t.order)
}

// Live reports the number of processes that have not terminated.
func (t *Tree) Live() int {
	return t.live
}

// Has reports whether pid was ever discovered.
func (t *Tree) Has(pid int) bool {
	_, ok := t.records[pid]
	return ok
}

// Get returns a copy of the record for pid.
func (t *Tree) Get(pid int) (Record, bool) {
	rec, ok := t.records[pid]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Records returns copies of every record in discovery order.
func (t *Tree) Records() []Record {
	out := make([]Record, 0, len(t.order))
	for _, pid := range t.order {
		out = append(out, t.records[pid].clone())
	}
	return out
}

// RootTerminated reports whether the root process has been reaped.
func (t *Tree) RootTerminated() bool {
	rec, ok := t.records[t.RootPID]
	return ok && rec.State == StateTerminated
}

// isLive reports whether pid is tracked and not terminated.
func (t *Tree) isLive(pid int) bool {
	rec, ok := t.records[pid]
	return ok && rec.State != StateTerminated
}

func (t *Tree) livePIDs() []int {
	out := make([]int, 0, t.live)
	for _, pid := range t.order {
		if t.records[pid].State != StateTerminated {
			out = append(out, pid)
		}
	}
	return out
}

func (t *Tree) add(pid, parent, pgid int, start uint64) (*Record, bool) {
	if rec, ok := t.records[pid]; ok {
		return rec, false
	}
	rec := &Record{
		PID:               pid,
		ParentAtDiscovery: parent,
		Parent:            parent,
		GroupID:           pgid,
		StartTime:         start,
		State:             StateAttached,
		History:           []Transition{{State: StateAttached, At: t.now()}},
	}
	t.records[pid] = rec
	t.order = append(t.order, pid)
	t.live++
	return rec, true
}

func (t *Tree) markOrphaned(pid int) bool {
	rec, ok := t.records[pid]
	if !ok {
		return false
	}
	return rec.transition(StateOrphaned, t.now())
}

func (t *Tree) markTerminated(pid int) bool {
	rec, ok := t.records[pid]
	if !ok {
		return false
	}
	if !rec.transition(StateTerminated, t.now()) {
		return false
	}
	t.live--
	return true
}

func (t *Tree) releaseRoot() {
	if t.proc == nil {
		return
	}
	_ = t.proc.Release()
	t.proc = nil
}

func (r *Record) clone() Record {
	out := *r
	out.History = append([]Transition(nil), r.History...)
	return out
}
