package proctable

import "sync"

// Fake is an in-memory Table for tests. Snapshots copy the current state.
type Fake struct {
	mu    sync.Mutex
	procs map[int]Proc
	gaps  []Gap
	err   error
	calls int
}

// NewFake returns a Fake seeded with procs.
func NewFake(procs ...Proc) *Fake {
	f := &Fake{procs: make(map[int]Proc)}
	for _, p := range procs {
		f.procs[p.PID] = p
	}
	return f
}

// Set adds or replaces p.
func (f *Fake) Set(p Proc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[p.PID] = p
}

// Remove drops pid from the table.
func (f *Fake) Remove(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, pid)
}

// AddGap reports pid as unreadable on the next snapshot only.
func (f *Fake) AddGap(pid int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gaps = append(f.gaps, Gap{PID: pid, Err: err})
}

// FailWith makes subsequent snapshots fail with err. A nil err clears it.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls reports the number of Snapshot invocations.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Snapshot() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Snapshot{}, f.err
	}
	snap := Snapshot{Procs: make(map[int]Proc, len(f.procs)), Gaps: f.gaps}
	for pid, p := range f.procs {
		snap.Procs[pid] = p
	}
	f.gaps = nil
	return snap, nil
}
