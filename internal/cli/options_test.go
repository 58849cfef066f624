package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/Paintersrp/procwarden/internal/config"
	"github.com/Paintersrp/procwarden/internal/supervise"
)

func parseRunFlags(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	root, flags := newRootCommand()
	if err := root.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	env := map[string]string{
		config.EnvPollInterval: "2s",
		config.EnvGracePeriod:  "3s",
	}
	getenv := func(k string) string { return env[k] }
	return resolveConfig(root.Flags(), flags, root.Flags().Args(), getenv)
}

func TestResolveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procwarden.yaml")
	doc := strings.Join([]string{
		"command: [echo, hello]",
		"env:",
		"  A: file",
		"  B: file",
		"supervision:",
		"  pollInterval: 1s",
		"  gracePeriod: 1s",
		"  killAfter: 1m",
		"output:",
		"  summary: yaml",
	}, "\n")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := parseRunFlags(t, "--config", path, "--grace-period", "4s", "--env", "A=flag", "--summary", "json", "cat", "-n")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got := cfg.Supervision.PollInterval.Duration; got != 2*time.Second {
		t.Fatalf("expected env poll interval 2s, got %s", got)
	}
	if got := cfg.Supervision.GracePeriod.Duration; got != 4*time.Second {
		t.Fatalf("expected flag grace period 4s, got %s", got)
	}
	if got := cfg.Supervision.KillAfter.Duration; got != time.Minute {
		t.Fatalf("expected file kill-after 1m, got %s", got)
	}
	if cfg.Env["A"] != "flag" || cfg.Env["B"] != "file" {
		t.Fatalf("unexpected env: %v", cfg.Env)
	}
	if cfg.Output.Summary != config.SummaryJSON {
		t.Fatalf("expected summary json, got %q", cfg.Output.Summary)
	}
	if strings.Join(cfg.Command, " ") != "cat -n" {
		t.Fatalf("expected arguments to replace command, got %v", cfg.Command)
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	root, flags := newRootCommand()
	if err := root.ParseFlags([]string{"--no-subreaper", "true"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(root.Flags(), flags, root.Flags().Args(), func(string) string { return "" })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Supervision.PollInterval.Duration != config.DefaultPollInterval {
		t.Fatalf("unexpected poll interval %s", cfg.Supervision.PollInterval.Duration)
	}
	if cfg.Supervision.GracePeriod.Duration != config.DefaultGracePeriod {
		t.Fatalf("unexpected grace period %s", cfg.Supervision.GracePeriod.Duration)
	}
	if cfg.SubreaperEnabled() {
		t.Fatalf("expected subreaper disabled")
	}
	if cfg.Output.Summary != config.SummaryNone {
		t.Fatalf("unexpected summary %q", cfg.Output.Summary)
	}
	if len(cfg.Command) != 1 || cfg.Command[0] != "true" {
		t.Fatalf("unexpected command %v", cfg.Command)
	}
}

func TestResolveConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "env without value", args: []string{"--env", "NOPE", "true"}, want: "expected KEY=VALUE"},
		{name: "bad summary", args: []string{"--summary", "xml", "true"}, want: "output.summary"},
		{name: "zero poll interval", args: []string{"--poll-interval", "0s", "true"}, want: "supervision.pollInterval"},
		{name: "missing env file", args: []string{"--env-file", "/does/not/exist.env", "true"}, want: "load env file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRunFlags(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestFlagsAfterCommandBelongToCommand(t *testing.T) {
	cfg, err := parseRunFlags(t, "sh", "-c", "echo --summary json")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Output.Summary != config.SummaryNone {
		t.Fatalf("flag after the command leaked into runner config: %q", cfg.Output.Summary)
	}
	if len(cfg.Command) != 3 {
		t.Fatalf("unexpected command %v", cfg.Command)
	}
}

func TestLaunchExitCode(t *testing.T) {
	if got := launchExitCode(&supervise.LaunchError{Command: "x", Err: exec.ErrNotFound}); got != ExitNotFound {
		t.Fatalf("expected %d for missing executable, got %d", ExitNotFound, got)
	}
	if got := launchExitCode(&supervise.LaunchError{Command: "x", Err: syscall.EACCES}); got != ExitCannotExecute {
		t.Fatalf("expected %d for permission error, got %d", ExitCannotExecute, got)
	}
	if got := launchExitCode(errors.New("other")); got != ExitRunnerError {
		t.Fatalf("expected %d for unrelated error, got %d", ExitRunnerError, got)
	}
}

func TestEncodeEvent(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	encodeEvent(enc, &buf, supervise.Event{
		RunID:   "run-1",
		Type:    supervise.EventTerminated,
		PID:     42,
		Outcome: "exited 0",
	})

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if record["type"] != "terminated" || record["run_id"] != "run-1" || record["pid"] != float64(42) {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected timestamp to be filled in: %v", record)
	}
	if _, ok := record["signal"]; ok {
		t.Fatalf("expected empty signal to be omitted: %v", record)
	}
}

func TestRenderSummaryFormats(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	summary := &supervise.Summary{
		RunID:   "run-1",
		RootPID: 10,
		GroupID: 10,
		Root:    supervise.ExitStatus{PID: 10, Outcome: supervise.Exited(0)},
		Processes: []supervise.ProcessExit{
			{PID: 10, ParentAtDiscovery: 1, Outcome: supervise.Exited(0)},
			{PID: 11, ParentAtDiscovery: 10, Outcome: supervise.Signaled(syscall.SIGTERM, false), Orphaned: true},
		},
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
	}

	var text bytes.Buffer
	if err := renderSummary(&text, config.SummaryText, summary); err != nil {
		t.Fatalf("text: %v", err)
	}
	if !strings.HasPrefix(text.String(), "run run-1: root 10 exited 0 in 1.5s\n") {
		t.Fatalf("unexpected text header:\n%s", text.String())
	}
	if !regexp.MustCompile(`(?m)^11\s+10\s+yes\s+signaled SIGTERM$`).MatchString(text.String()) {
		t.Fatalf("text summary missing orphan row:\n%s", text.String())
	}

	var js bytes.Buffer
	if err := renderSummary(&js, config.SummaryJSON, summary); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded struct {
		RunID     string `json:"run_id"`
		Processes []struct {
			PID      int  `json:"pid"`
			Orphaned bool `json:"orphaned"`
			Outcome  struct {
				Kind   string `json:"kind"`
				Signal string `json:"signal"`
			} `json:"outcome"`
		} `json:"processes"`
	}
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json summary: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Processes) != 2 || !decoded.Processes[1].Orphaned {
		t.Fatalf("unexpected json summary: %+v", decoded)
	}
	if decoded.Processes[1].Outcome.Kind != "signaled" || decoded.Processes[1].Outcome.Signal != "SIGTERM" {
		t.Fatalf("unexpected outcome: %+v", decoded.Processes[1].Outcome)
	}

	var yml bytes.Buffer
	if err := renderSummary(&yml, config.SummaryYAML, summary); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	for _, want := range []string{"run_id: run-1", "kind: signaled", "signal: SIGTERM", "orphaned: true"} {
		if !strings.Contains(yml.String(), want) {
			t.Fatalf("yaml summary missing %q:\n%s", want, yml.String())
		}
	}

	if err := renderSummary(&yml, "xml", summary); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestInheritChangedFlags(t *testing.T) {
	src := pflag.NewFlagSet("cli", pflag.ContinueOnError)
	bindRunFlags(src, &runFlags{})
	if err := src.Parse([]string{"--grace-period", "5s", "--env", "A=cli", "--wait", "/tmp/a"}); err != nil {
		t.Fatalf("parse cli flags: %v", err)
	}

	entry := &runFlags{}
	dst := pflag.NewFlagSet("entry", pflag.ContinueOnError)
	bindRunFlags(dst, entry)
	if err := dst.Parse([]string{"--grace-period", "1s", "--kill-after", "1m", "--env", "A=entry", "--env", "B=entry", "true"}); err != nil {
		t.Fatalf("parse entry flags: %v", err)
	}

	if err := inheritChangedFlags(dst, src); err != nil {
		t.Fatalf("inherit: %v", err)
	}
	cfg, err := resolveConfig(dst, entry, dst.Args(), func(string) string { return "" })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := cfg.Supervision.GracePeriod.Duration; got != 5*time.Second {
		t.Fatalf("expected command line grace period 5s, got %s", got)
	}
	if got := cfg.Supervision.KillAfter.Duration; got != time.Minute {
		t.Fatalf("expected entry kill-after 1m, got %s", got)
	}
	if cfg.Env["A"] != "cli" || cfg.Env["B"] != "entry" {
		t.Fatalf("unexpected env: %v", cfg.Env)
	}
	if len(cfg.Hooks.Wait) != 1 || cfg.Hooks.Wait[0] != "/tmp/a" {
		t.Fatalf("unexpected wait hooks: %v", cfg.Hooks.Wait)
	}
}
