package supervise

import (
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/procwarden/internal/proctable"
)

type queuedStatus struct {
	pgid int
	st   WaitStatus
}

type sentSignal struct {
	pid int
	sig syscall.Signal
}

// fakeWorld models a process table plus the wait queue of the runner. A
// process whose parent is the runner queues its status on exit; others are
// reaped by their parent and just disappear.
type fakeWorld struct {
	mu      sync.Mutex
	self    int
	table   *proctable.Fake
	procs   map[int]proctable.Proc
	pending []queuedStatus
	sent    []sentSignal
	onKill  func(w *fakeWorld, pid int, sig syscall.Signal)
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		self:  os.Getpid(),
		table: proctable.NewFake(),
		procs: make(map[int]proctable.Proc),
	}
}

func (w *fakeWorld) spawn(pid, ppid, pgid int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := proctable.Proc{PID: pid, PPID: ppid, PGID: pgid, StartTime: uint64(pid)}
	w.procs[pid] = p
	w.table.Set(p)
}

// exit removes pid, reparents its children to the runner and queues its
// status when the runner is its parent.
func (w *fakeWorld) exit(pid int, outcome Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exitLocked(pid, outcome)
}

func (w *fakeWorld) exitLocked(pid int, outcome Outcome) {
	p, ok := w.procs[pid]
	if !ok {
		return
	}
	delete(w.procs, pid)
	w.table.Remove(pid)
	for cpid, c := range w.procs {
		if c.PPID == pid {
			c.PPID = w.self
			w.procs[cpid] = c
			w.table.Set(c)
		}
	}
	if p.PPID == w.self {
		w.pending = append(w.pending, queuedStatus{pgid: p.PGID, st: WaitStatus{PID: pid, Outcome: outcome}})
	}
}

// queue injects a raw wait status.
func (w *fakeWorld) queue(pgid int, st WaitStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, queuedStatus{pgid: pgid, st: st})
}

// killGroup terminates every process of pgid with sig, parents first.
func (w *fakeWorld) killGroupLocked(pgid int, sig syscall.Signal) {
	for {
		victim := 0
		for pid, p := range w.procs {
			if p.PGID == pgid && (victim == 0 || pid < victim) {
				victim = pid
			}
		}
		if victim == 0 {
			return
		}
		w.exitLocked(victim, Signaled(sig, false))
	}
}

func (w *fakeWorld) Wait(sel int) (WaitStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, q := range w.pending {
		if (sel < 0 && q.pgid == -sel) || q.st.PID == sel {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return q.st, nil
		}
	}
	return WaitStatus{}, ErrNoChild
}

func (w *fakeWorld) Kill(pid int, sig syscall.Signal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, sentSignal{pid: pid, sig: sig})
	if w.onKill != nil {
		w.onKill(w, pid, sig)
	}
	return nil
}

func (w *fakeWorld) signals() []sentSignal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sentSignal(nil), w.sent...)
}

type harness struct {
	t      *testing.T
	world  *fakeWorld
	sup    *Supervisor
	events chan Event
}

// newHarness launches a fake root with pid 100 in group 100.
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	world := newFakeWorld()
	world.spawn(100, world.self, 100)

	tree := NewTree("test-run", 100, 100, 0)
	tree.add(100, world.self, 100, 0)

	events := make(chan Event, 1024)
	opts.Events = events
	if opts.PollInterval == 0 {
		opts.PollInterval = 2 * time.Millisecond
	}
	sup := newSupervisor(tree, opts, world.table, world, world)
	sup.wake = make(chan os.Signal)
	return &harness{t: t, world: world, sup: sup, events: events}
}

// await consumes events until one of typ for pid arrives.
func (h *harness) await(typ EventType, pid int) Event {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ && (pid == 0 || ev.PID == pid) {
				return ev
			}
		case <-timeout:
			require.FailNow(h.t, "timed out waiting for event", "%s pid=%d", typ, pid)
		}
	}
}
