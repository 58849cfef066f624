package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "vars.env")
	if err := os.WriteFile(envFile, []byte("TOKEN=${FILE_SECRET}\nPASSWORD=from-file\nexport MODE='quoted'"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("FILE_SECRET", "alpha")
	t.Setenv("API_PASSWORD", "s3cr3t")

	path := filepath.Join(dir, "procwarden.yaml")
	doc := []byte(`command: ["sleep", "1"]
workdir: ./work
env:
  PASSWORD: ${API_PASSWORD}
envFromFile: vars.env
supervision:
  pollInterval: 20ms
  gracePeriod: 1s
  killAfter: 10s
hooks:
  wait: [ready]
  onExit: out/done
output:
  summary: json
`)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got, want := cfg.Workdir, filepath.Join(dir, "work"); got != want {
		t.Fatalf("unexpected workdir: got %q want %q", got, want)
	}
	if got := cfg.Env["PASSWORD"]; got != "s3cr3t" {
		t.Fatalf("inline env should win over env file, got %q", got)
	}
	if got := cfg.Env["TOKEN"]; got != "alpha" {
		t.Fatalf("expected env file expansion, got %q", got)
	}
	if got := cfg.Env["MODE"]; got != "quoted" {
		t.Fatalf("expected export/quote handling, got %q", got)
	}
	if got := cfg.Supervision.PollInterval.Duration; got != 20*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", got)
	}
	if got := cfg.Supervision.KillAfter.Duration; got != 10*time.Second {
		t.Fatalf("unexpected kill after %v", got)
	}
	if got, want := cfg.Hooks.Wait[0], filepath.Join(dir, "ready"); got != want {
		t.Fatalf("unexpected wait path: got %q want %q", got, want)
	}
	if got, want := cfg.Hooks.OnExit, filepath.Join(dir, "out", "done"); got != want {
		t.Fatalf("unexpected on-exit path: got %q want %q", got, want)
	}
	if !cfg.SubreaperEnabled() {
		t.Fatalf("subreaper should default to enabled")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procwarden.yaml")
	if err := os.WriteFile(path, []byte("supervision:\n  pollEvery: 1s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "pollEvery") {
		t.Fatalf("error should name the unknown field: %v", err)
	}
}

func TestLoadEnvFileErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "missing separator", content: "JUSTAKEY", want: "invalid line 1"},
		{name: "empty key", content: "=value", want: "invalid line 1"},
		{name: "unmatched double", content: "A=\"open", want: "unmatched quote on line 1"},
		{name: "unmatched single", content: "\nA='open", want: "unmatched quote on line 2"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.env")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write env file: %v", err)
			}
			_, err := LoadEnvFile(path)
			if err == nil {
				t.Fatalf("expected error for %q", tc.content)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: got %q want substring %q", err, tc.want)
			}
		})
	}
}

func TestLoadEnvFileStripsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.env")
	if err := os.WriteFile(path, []byte("# header\nA=1 # trailing\nB=\"x # y\"\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	values, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if values["A"] != "1" || values["B"] != "x # y" {
		t.Fatalf("unexpected values: %#v", values)
	}
}
