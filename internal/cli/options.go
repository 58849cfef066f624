package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/Paintersrp/procwarden/internal/config"
)

// runFlags holds the values of the flags accepted by a run. Whether a flag
// was given is looked up on the flag set so that file and environment
// values are only overridden by explicit flags.
type runFlags struct {
	configPath   string
	env          []string
	envFile      string
	workdir      string
	session      bool
	pollInterval time.Duration
	gracePeriod  time.Duration
	killAfter    time.Duration
	timeoutIsOK  bool
	wait         []string
	onExit       string
	summary      string
	summaryFile  string
	events       bool
	metricsAddr  string
	logLevel     string
	noSubreaper  bool
}

func bindRunFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringArrayVar(&f.env, "env", nil, "Set an environment variable for the command (KEY=VALUE, repeatable)")
	fs.StringVar(&f.envFile, "env-file", "", "Read environment variables for the command from a dotenv file")
	fs.StringVar(&f.workdir, "workdir", "", "Working directory of the command")
	fs.BoolVar(&f.session, "session", false, "Start the command in a new session instead of only a new process group")
	fs.DurationVar(&f.pollInterval, "poll-interval", config.DefaultPollInterval, "Interval between process table scans")
	fs.DurationVar(&f.gracePeriod, "grace-period", config.DefaultGracePeriod, "Time between a relayed signal and SIGKILL")
	fs.DurationVar(&f.killAfter, "kill-after", 0, "Terminate the process tree after this duration")
	fs.BoolVar(&f.timeoutIsOK, "timeout-is-ok", false, "Exit with status 0 when --kill-after elapses")
	fs.StringArrayVar(&f.wait, "wait", nil, "Wait for PATH to exist before launching; fail if its .err marker appears (repeatable)")
	fs.StringVar(&f.onExit, "on-exit", "", "Create PATH after the tree drained, or its .err marker on failure")
	fs.StringVar(&f.summary, "summary", "", "Print a termination summary to stderr: text, json, yaml or none")
	fs.StringVar(&f.summaryFile, "summary-file", "", "Write the termination summary to PATH")
	fs.BoolVar(&f.events, "events", false, "Stream lifecycle events to stderr as JSON lines")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on ADDR while running")
	fs.BoolVar(&f.noSubreaper, "no-subreaper", false, "Do not adopt orphaned descendants")
}

func bindGlobalFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to a procwarden.yaml configuration file")
	fs.StringVar(&f.logLevel, "log-level", "", "Runner log level (trace, debug, info, warn, error); defaults to $"+"PROCWARDEN_LOG")
}

// resolveConfig layers defaults, the config file, PROCWARDEN_* variables and
// explicit flags, in that order. args, when present, replace the command.
func resolveConfig(fs *pflag.FlagSet, f *runFlags, args []string, getenv func(string) string) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(getenv)

	changed := func(name string) bool {
		flag := fs.Lookup(name)
		return flag != nil && flag.Changed
	}

	if changed("env-file") {
		fileEnv, err := config.LoadEnvFile(f.envFile)
		if err != nil {
			return nil, err
		}
		cfg.Env = mergeEnv(cfg.Env, fileEnv)
	}
	if len(f.env) > 0 {
		flagEnv := make(map[string]string, len(f.env))
		for _, kv := range f.env {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", kv)
			}
			flagEnv[key] = value
		}
		cfg.Env = mergeEnv(cfg.Env, flagEnv)
	}
	if changed("workdir") {
		cfg.Workdir = f.workdir
	}
	if changed("session") {
		cfg.Session = f.session
	}
	if changed("poll-interval") {
		cfg.Supervision.PollInterval.Set(f.pollInterval)
	}
	if changed("grace-period") {
		cfg.Supervision.GracePeriod.Set(f.gracePeriod)
	}
	if changed("kill-after") {
		cfg.Supervision.KillAfter.Set(f.killAfter)
	}
	if changed("timeout-is-ok") {
		cfg.Supervision.TimeoutIsOK = f.timeoutIsOK
	}
	if len(f.wait) > 0 {
		cfg.Hooks.Wait = append(cfg.Hooks.Wait, f.wait...)
	}
	if changed("on-exit") {
		cfg.Hooks.OnExit = f.onExit
	}
	if changed("summary") {
		cfg.Output.Summary = f.summary
	}
	if changed("summary-file") {
		cfg.Output.SummaryFile = f.summaryFile
	}
	if changed("events") {
		cfg.Output.Events = f.events
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.noSubreaper {
		disabled := false
		cfg.Supervision.Subreaper = &disabled
	}
	if len(args) > 0 {
		cfg.Command = append([]string(nil), args...)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeEnv(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func defaultGetenv(key string) string {
	return os.Getenv(key)
}
