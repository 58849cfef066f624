//go:build unix && !linux

package proctable

import (
	"fmt"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

type psTable struct{}

// New returns a table backed by the platform process listing. Start times
// are not available, so StartTime is always zero.
func New() (Table, error) {
	return psTable{}, nil
}

func (psTable) Snapshot() (Snapshot, error) {
	procs, err := ps.Processes()
	if err != nil {
		return Snapshot{}, fmt.Errorf("list processes: %w", err)
	}
	snap := Snapshot{Procs: make(map[int]Proc, len(procs))}
	for _, p := range procs {
		pgid, err := unix.Getpgid(p.Pid())
		if err != nil {
			snap.Gaps = append(snap.Gaps, Gap{PID: p.Pid(), Err: err})
			continue
		}
		snap.Procs[p.Pid()] = Proc{
			PID:  p.Pid(),
			PPID: p.PPid(),
			PGID: pgid,
		}
	}
	return snap, nil
}
