package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Paintersrp/procwarden/internal/procfile"
)

func newProcfileCmd(global *runFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "procfile [-f Procfile] NAME",
		Short: "Run a named entry of a Procfile",
		Long: `Run the Procfile entry NAME as if its words had been given on the
procwarden command line. Entries may start with run flags, for example:

  test: --kill-after 10m --timeout-is-ok -- go test ./...

Run flags given on the command line override those of the entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := procfile.Load(path, os.Getenv)
			if err != nil {
				return &exitError{code: ExitRunnerError, err: err}
			}
			entry, ok := pf.Lookup(args[0])
			if !ok {
				return &exitError{code: ExitRunnerError, err: fmt.Errorf("%s: no entry named %q (have %v)", pf.Path, args[0], pf.Names())}
			}

			fs := pflag.NewFlagSet("procfile "+entry.Name, pflag.ContinueOnError)
			fs.SetInterspersed(false)
			fs.SetOutput(cmd.ErrOrStderr())
			flags := &runFlags{configPath: global.configPath, logLevel: global.logLevel}
			bindRunFlags(fs, flags)
			if err := fs.Parse(entry.Args); err != nil {
				return &exitError{code: ExitRunnerError, err: fmt.Errorf("%s:%d: %w", pf.Path, entry.Line, err)}
			}
			if err := inheritChangedFlags(fs, cmd.Flags()); err != nil {
				return &exitError{code: ExitRunnerError, err: err}
			}
			if fs.NArg() == 0 && flags.configPath == "" {
				return &exitError{code: ExitRunnerError, err: fmt.Errorf("%s:%d: entry %q has no command", pf.Path, entry.Line, entry.Name)}
			}

			cfg, err := resolveConfig(fs, flags, fs.Args(), defaultGetenv)
			if err != nil {
				return &exitError{code: ExitRunnerError, err: err}
			}
			return exitStatus(run(cmd.Context(), cfg, cmd.ErrOrStderr()))
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "Procfile", "Path to the Procfile")
	return cmd
}

// inheritChangedFlags applies the run flags set on the command line to the
// entry's flag set, after the entry's own flags were parsed.
func inheritChangedFlags(dst, src *pflag.FlagSet) error {
	var err error
	src.VisitAll(func(f *pflag.Flag) {
		if err != nil || !f.Changed {
			return
		}
		target := dst.Lookup(f.Name)
		if target == nil {
			return
		}
		values := []string{f.Value.String()}
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			values = slice.GetSlice()
		}
		for _, v := range values {
			if setErr := dst.Set(f.Name, v); setErr != nil {
				err = fmt.Errorf("--%s: %w", f.Name, setErr)
				return
			}
		}
		target.Changed = true
	})
	return err
}
