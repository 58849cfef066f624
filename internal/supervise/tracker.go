package supervise

import (
	"fmt"
	"sort"

	"github.com/Paintersrp/procwarden/internal/proctable"
)

// Delta is what one Refresh learned about the tree.
type Delta struct {
	Discovered []int
	Orphaned   []int
	// Vanished holds tracked processes that left the process table without
	// a collected status, or whose PID now belongs to a different process.
	Vanished []int
	// Zombies holds tracked processes that exited and wait to be reaped by
	// a parent that is itself tracked. Each is reported once.
	Zombies []int
	Gaps    []proctable.Gap
}

// Tracker discovers descendants of a tree and classifies reparenting by
// rescanning the process table. It mutates the tree and must run on the
// goroutine that owns it.
type Tracker struct {
	tree    *Tree
	table   proctable.Table
	zombies map[int]bool
}

// NewTracker returns a tracker for tree reading from table.
func NewTracker(tree *Tree, table proctable.Table) *Tracker {
	return &Tracker{tree: tree, table: table, zombies: make(map[int]bool)}
}

// Refresh scans the process table once.
func (t *Tracker) Refresh() (Delta, error) {
	snap, err := t.table.Snapshot()
	if err != nil {
		return Delta{}, fmt.Errorf("scan process table: %w", err)
	}

	var delta Delta
	gapped := make(map[int]bool, len(snap.Gaps))
	for _, gap := range snap.Gaps {
		if t.tree.isLive(gap.PID) {
			gapped[gap.PID] = true
			delta.Gaps = append(delta.Gaps, gap)
		}
	}

	// Vanished first so that a reused PID is not mistaken for a live record.
	for _, pid := range t.tree.livePIDs() {
		if gapped[pid] {
			continue
		}
		rec := t.tree.records[pid]
		p, ok := snap.Procs[pid]
		if !ok || (rec.StartTime != 0 && p.StartTime != 0 && rec.StartTime != p.StartTime) {
			delta.Vanished = append(delta.Vanished, pid)
		}
	}
	vanished := make(map[int]bool, len(delta.Vanished))
	for _, pid := range delta.Vanished {
		vanished[pid] = true
		delete(t.zombies, pid)
	}

	delta.Discovered = t.discover(snap)

	// The root carries no start time when it is registered at launch.
	if rec, ok := t.tree.records[t.tree.RootPID]; ok && rec.StartTime == 0 && !vanished[rec.PID] {
		if p, ok := snap.Procs[rec.PID]; ok {
			rec.StartTime = p.StartTime
		}
	}

	discovered := make(map[int]bool, len(delta.Discovered))
	for _, pid := range delta.Discovered {
		discovered[pid] = true
	}

	for _, pid := range t.tree.livePIDs() {
		if vanished[pid] || gapped[pid] {
			continue
		}
		rec := t.tree.records[pid]
		p := snap.Procs[pid]
		rec.Parent = p.PPID
		rec.GroupID = p.PGID
		if p.Zombie && !t.zombies[pid] && t.tree.isLive(p.PPID) {
			t.zombies[pid] = true
			delta.Zombies = append(delta.Zombies, pid)
		}
		if pid == t.tree.RootPID || rec.State != StateAttached {
			continue
		}
		outside := !t.tree.isLive(p.PPID)
		if discovered[pid] {
			// Already reparented before the first scan saw it.
			if outside && t.tree.markOrphaned(pid) {
				delta.Orphaned = append(delta.Orphaned, pid)
			}
			continue
		}
		if p.PPID != rec.ParentAtDiscovery && outside && t.tree.markOrphaned(pid) {
			delta.Orphaned = append(delta.Orphaned, pid)
		}
	}

	return delta, nil
}

// discover adds every process in the tree's group, then every process whose
// parent is a live tracked process, until no more are found.
func (t *Tracker) discover(snap proctable.Snapshot) []int {
	var added []int
	candidates := make([]proctable.Proc, 0)
	for pid, p := range snap.Procs {
		if !t.tree.Has(pid) {
			candidates = append(candidates, p)
		}
	}
	// Older processes first so that parents precede their children.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].StartTime != candidates[j].StartTime {
			return candidates[i].StartTime < candidates[j].StartTime
		}
		return candidates[i].PID < candidates[j].PID
	})

	for {
		progress := false
		rest := candidates[:0]
		for _, p := range candidates {
			if p.PGID == t.tree.GroupID || t.tree.isLive(p.PPID) {
				t.tree.add(p.PID, p.PPID, p.PGID, p.StartTime)
				added = append(added, p.PID)
				progress = true
				continue
			}
			rest = append(rest, p)
		}
		candidates = rest
		if !progress || len(candidates) == 0 {
			return added
		}
	}
}
