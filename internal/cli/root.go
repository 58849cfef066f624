package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procwarden/internal/logging"
)

// NewRootCmd returns the procwarden command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *runFlags) {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "procwarden [flags] [--] COMMAND [ARGS...]",
		Short: "Run a command and reap every process it forks",
		Long: `procwarden launches COMMAND in its own process group, follows every
descendant it forks (including orphans that are reparented away from their
parent), reaps each of them exactly once and exits with a status derived
from COMMAND.`,
		Args: cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Configure(logging.Config{Level: flags.logLevel, Output: cmd.ErrOrStderr()})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && flags.configPath == "" {
				return cmd.Help()
			}
			cfg, err := resolveConfig(cmd.Flags(), flags, args, defaultGetenv)
			if err != nil {
				return &exitError{code: ExitRunnerError, err: err}
			}
			return exitStatus(run(cmd.Context(), cfg, cmd.ErrOrStderr()))
		},
	}

	root.Flags().SetInterspersed(false)
	bindGlobalFlags(root.PersistentFlags(), flags)
	bindRunFlags(root.PersistentFlags(), flags)

	root.AddCommand(newProcfileCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, flags
}

// Execute runs the CLI entrypoint and returns the process exit status.
func Execute() int {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(os.Stderr, "procwarden: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintf(os.Stderr, "procwarden: %v\n", err)
	return ExitRunnerError
}

// exitError carries the status the runner should exit with. err is nil when
// the status comes from the supervised command and nothing needs printing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitStatus(code int, err error) error {
	if err != nil {
		return &exitError{code: code, err: err}
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}
