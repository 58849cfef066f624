package procfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseEntries(t *testing.T) {
	const input = `
# comment
  # indented comment
web: gunicorn -b :$PORT main:app
worker: --kill-after 10s --env APPLE=banana \
  -- foo a b c   # trailing comment
quoted: sh -c 'echo "$HOME" # not a comment' "${PORT}x"

slow: a \
# skipped inside continuation
  b \
  c
empty:
`
	env := map[string]string{"PORT": "8080", "HOME": "/root"}
	entries, err := Parse(strings.NewReader(input), func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []Entry{
		{Name: "web", Line: 4, Args: []string{"gunicorn", "-b", ":8080", "main:app"}},
		{Name: "worker", Line: 5, Args: []string{"--kill-after", "10s", "--env", "APPLE=banana", "--", "foo", "a", "b", "c"}},
		{Name: "quoted", Line: 7, Args: []string{"sh", "-c", `echo "$HOME" # not a comment`, "8080x"}},
		{Name: "slow", Line: 9, Args: []string{"a", "b", "c"}},
		{Name: "empty", Line: 13},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, input := range []string{"", "\n", "\n\n   \n", "# only a comment\n"} {
		entries, err := Parse(strings.NewReader(input), nil)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no entries for %q, got %v", input, entries)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
		line  int
	}{
		{name: "missing separator", input: "web gunicorn\n", want: ErrMissingSeparator, line: 1},
		{name: "empty name", input: "\n: foo\n", want: ErrEmptyName, line: 2},
		{name: "duplicate", input: "a: x\nb: y\na: z\n", want: ErrDuplicateName, line: 3},
		{name: "unterminated", input: "a: echo 'oops\n", want: ErrUnterminated, line: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) || perr.Line != tt.line {
				t.Fatalf("expected parse error on line %d, got %v", tt.line, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	env := func(k string) string {
		if k == "NAME" {
			return "world"
		}
		return ""
	}
	tests := []struct {
		in   string
		want []string
	}{
		{in: `a  b	c`, want: []string{"a", "b", "c"}},
		{in: `'single $NAME' "double $NAME"`, want: []string{"single $NAME", "double world"}},
		{in: `escaped\ space "q\"uote" 'back\slash'`, want: []string{"escaped space", `q"uote`, `back\slash`}},
		{in: `$NAME-${NAME}_$MISSING.`, want: []string{"world-world_."}},
		{in: `'' ""`, want: []string{"", ""}},
		{in: `cost $ 5 ${unclosed`, want: []string{"cost", "$", "5", "${unclosed"}},
		{in: `"keep \n"`, want: []string{`keep \n`}},
	}
	for _, tt := range tests {
		got, err := Split(tt.in, env)
		if err != nil {
			t.Fatalf("split %q: %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("split %q mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestSplitWithoutEnvKeepsReferences(t *testing.T) {
	got, err := Split(`echo $HOME ${USER}`, nil)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if diff := cmp.Diff([]string{"echo", "$HOME", "${USER}"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Procfile")
	if err := os.WriteFile(path, []byte("web: serve --port $PORT\nbroken\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path, nil)
	if err == nil || !strings.Contains(err.Error(), path+":2") {
		t.Fatalf("expected error with location, got %v", err)
	}

	if err := os.WriteFile(path, []byte("web: serve --port $PORT\njob: run\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pf, err := Load(path, func(string) string { return "9000" })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entry, ok := pf.Lookup("web")
	if !ok {
		t.Fatalf("expected web entry")
	}
	if diff := cmp.Diff([]string{"serve", "--port", "9000"}, entry.Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if _, ok := pf.Lookup("missing"); ok {
		t.Fatalf("unexpected entry")
	}
	if diff := cmp.Diff([]string{"web", "job"}, pf.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}
