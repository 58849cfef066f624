package procfile

import (
	"strings"
	"unicode"
)

// Split breaks s into words the way a POSIX shell would for simple
// commands, without globbing or command substitution.
func Split(s string, getenv func(string) string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\\':
			inWord = true
			if i+1 >= len(runes) {
				current.WriteRune(r)
				continue
			}
			next := runes[i+1]
			// Inside double quotes only a few characters are escapable.
			if quote == '"' && !strings.ContainsRune(`"\$`, next) {
				current.WriteRune(r)
				continue
			}
			current.WriteRune(next)
			i++
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '$':
				i = expand(runes, i, getenv, &current)
			default:
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '$':
			inWord = true
			i = expand(runes, i, getenv, &current)
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			inWord = true
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, ErrUnterminated
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

// expand writes the value of the variable starting at runes[i] ('$') and
// returns the index of its last rune.
func expand(runes []rune, i int, getenv func(string) string, out *strings.Builder) int {
	if i+1 >= len(runes) {
		out.WriteRune('$')
		return i
	}
	var name string
	end := i
	if runes[i+1] == '{' {
		closing := -1
		for j := i + 2; j < len(runes); j++ {
			if runes[j] == '}' {
				closing = j
				break
			}
		}
		if closing < 0 {
			out.WriteRune('$')
			return i
		}
		name = string(runes[i+2 : closing])
		end = closing
	} else {
		j := i + 1
		for j < len(runes) && isNameRune(runes[j], j == i+1) {
			j++
		}
		if j == i+1 {
			out.WriteRune('$')
			return i
		}
		name = string(runes[i+1 : j])
		end = j - 1
	}
	if getenv == nil {
		out.WriteString(string(runes[i : end+1]))
		return end
	}
	out.WriteString(getenv(name))
	return end
}

func isNameRune(r rune, first bool) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return !first && r >= '0' && r <= '9'
}
