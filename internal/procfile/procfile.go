// Package procfile parses Procfile entries of the form "name: command".
//
// Lines starting a word with '#' begin a comment. A line ending in a
// backslash continues on the next non-blank, non-comment line. Command
// bodies are split into words with single quotes, double quotes and
// backslash escapes, and $VAR or ${VAR} references outside single quotes
// are expanded through a caller supplied lookup.
package procfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Entry is one named command of a Procfile.
type Entry struct {
	Name string
	// Line is the 1-based line on which the entry starts.
	Line int
	Args []string
}

// Procfile is a parsed file.
type Procfile struct {
	Path    string
	Entries []Entry
}

// ParseError reports a malformed entry.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	ErrMissingSeparator = errors.New("missing ':' after entry name")
	ErrEmptyName        = errors.New("entry name is empty")
	ErrDuplicateName    = errors.New("duplicate entry name")
	ErrUnterminated     = errors.New("unterminated quote")
)

// Load reads and parses the Procfile at path.
func Load(path string, getenv func(string) string) (*Procfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open procfile: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f, getenv)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return &Procfile{Path: path, Entries: entries}, nil
}

// Lookup returns the entry called name.
func (p *Procfile) Lookup(name string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names lists entry names in file order.
func (p *Procfile) Names() []string {
	names := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		names = append(names, e.Name)
	}
	return names
}

// Parse reads entries from r. A nil getenv leaves variable references
// untouched.
func Parse(r io.Reader, getenv func(string) string) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries []Entry
		seen    = make(map[string]bool)
		pending strings.Builder
		start   int
		lineNo  int
	)

	flush := func() error {
		if start == 0 {
			return nil
		}
		entry, err := parseEntry(pending.String(), getenv)
		if err != nil {
			return &ParseError{Line: start, Err: err}
		}
		if seen[entry.Name] {
			return &ParseError{Line: start, Err: fmt.Errorf("%w: %s", ErrDuplicateName, entry.Name)}
		}
		seen[entry.Name] = true
		entry.Line = start
		entries = append(entries, entry)
		pending.Reset()
		start = 0
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRightFunc(stripComment(scanner.Text()), unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			continue
		}
		if start == 0 {
			start = lineNo
		} else {
			pending.WriteByte(' ')
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(cont)
			continue
		}
		pending.WriteString(line)
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read procfile: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseEntry(logical string, getenv func(string) string) (Entry, error) {
	name, body, ok := strings.Cut(logical, ":")
	if !ok {
		return Entry{}, ErrMissingSeparator
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, ErrEmptyName
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return Entry{}, fmt.Errorf("entry name %q contains whitespace", name)
	}
	args, err := Split(body, getenv)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: name, Args: args}, nil
}

// stripComment drops an unquoted '#' that starts a word and everything after.
func stripComment(line string) string {
	var quote rune
	escaped := false
	prev := ' '
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#' && unicode.IsSpace(prev):
			return line[:i]
		}
		prev = r
	}
	return line
}
