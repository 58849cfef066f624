package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(flags *runFlags) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration a run would use after applying the --config file
and PROCWARDEN_* environment variables. Values of environment variables
whose names look like credentials are masked unless --show-secrets is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), flags, nil, defaultGetenv)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return &exitError{code: ExitRunnerError}
			}
			if !showSecrets {
				cfg = redactConfig(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print credential values instead of masking them")
	cmd.AddCommand(newConfigLintCmd(flags))
	return cmd
}

func newConfigLintCmd(flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the --config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath == "" {
				return &exitError{code: ExitRunnerError, err: fmt.Errorf("lint requires --config")}
			}
			if _, err := resolveConfig(cmd.Flags(), flags, nil, defaultGetenv); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return &exitError{code: ExitRunnerError}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", flags.configPath)
			return nil
		},
	}
}
