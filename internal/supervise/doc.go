// Package supervise launches a command in its own process group and follows
// every process it forks until the whole tree has been reaped.
//
// Launch starts the root. A Supervisor then owns the tree: it drains wait
// statuses for the group, rescans the process table to discover descendants
// and notice reparenting, and records exactly one Outcome per process in a
// Registry. Run returns once the root and every discovered descendant have
// terminated.
//
// The package targets unix systems. Descendants that are reparented away
// from the tree can only be reaped on Linux, where the runner registers as
// a child subreaper; elsewhere their outcome is recorded as unknown.
package supervise
