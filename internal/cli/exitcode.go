package cli

import (
	"errors"

	"github.com/Paintersrp/procwarden/internal/supervise"
)

const (
	// ExitRunnerError reports a failure of the runner itself: invalid
	// configuration, a failed hook or an unreadable outcome.
	ExitRunnerError = supervise.ExitUnknown
	// ExitCannotExecute reports that the command exists but could not be
	// started.
	ExitCannotExecute = 126
	// ExitNotFound reports that the command could not be found.
	ExitNotFound = 127

	exitSignalBase = 128
)

func launchExitCode(err error) int {
	var launchErr *supervise.LaunchError
	if !errors.As(err, &launchErr) {
		return ExitRunnerError
	}
	if launchErr.NotFound() {
		return ExitNotFound
	}
	return ExitCannotExecute
}
