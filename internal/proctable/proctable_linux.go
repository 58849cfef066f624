//go:build linux

package proctable

import (
	"fmt"

	"github.com/prometheus/procfs"
)

type procfsTable struct {
	fs procfs.FS
}

// New returns the /proc backed table.
func New() (Table, error) {
	return NewAt(procfs.DefaultMountPoint)
}

// NewAt returns a table reading a procfs mounted at mountPoint.
func NewAt(mountPoint string) (Table, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mountPoint, err)
	}
	return &procfsTable{fs: fs}, nil
}

func (t *procfsTable) Snapshot() (Snapshot, error) {
	procs, err := t.fs.AllProcs()
	if err != nil {
		return Snapshot{}, fmt.Errorf("list processes: %w", err)
	}
	snap := Snapshot{Procs: make(map[int]Proc, len(procs))}
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			snap.Gaps = append(snap.Gaps, Gap{PID: p.PID, Err: err})
			continue
		}
		snap.Procs[stat.PID] = Proc{
			PID:       stat.PID,
			PPID:      stat.PPID,
			PGID:      stat.PGRP,
			StartTime: stat.Starttime,
			Zombie:    stat.State == "Z",
		}
	}
	return snap, nil
}
