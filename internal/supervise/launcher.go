package supervise

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// RunIDEnv is set in the environment of every launched command.
const RunIDEnv = "PROCWARDEN_RUN_ID"

// Spec describes the command to launch.
type Spec struct {
	Command string
	Args    []string
	// Env is merged over the runner's own environment.
	Env     map[string]string
	Workdir string
	// NewSession starts the root in a new session instead of only a new
	// process group.
	NewSession bool
	// RunID identifies the run. A random one is generated when empty.
	RunID string

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// LaunchError reports that the root command could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the executable could not be found.
func (e *LaunchError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}

// Launch starts spec as the sole member of a new process group and returns
// the tree rooted at it. The root is never waited on here; a Supervisor
// must own the returned tree.
func Launch(ctx context.Context, spec Spec) (*Tree, error) {
	if spec.Command == "" {
		return nil, &LaunchError{Command: spec.Command, Err: errors.New("empty command")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	runID := spec.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Workdir
	cmd.Env = mergeEnv(os.Environ(), spec.Env, runID)
	// Only *os.File streams: any other io.Reader or io.Writer would need
	// copying goroutines that are released by cmd.Wait, which is never called.
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	}
	configureSysProcAttr(cmd, spec.NewSession)

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	pid := cmd.Process.Pid
	sid := 0
	if spec.NewSession {
		sid = pid
	}
	tree := NewTree(runID, pid, pid, sid)
	tree.proc = cmd.Process
	tree.add(pid, os.Getpid(), pid, 0)
	return tree, nil
}

func mergeEnv(base []string, overrides map[string]string, runID string) []string {
	env := make(map[string]string, len(base)+len(overrides)+1)
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	for key, value := range overrides {
		env[key] = value
	}
	env[RunIDEnv] = runID

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}
