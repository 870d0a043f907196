// Package argv splits shell-like command strings into argument vectors without invoking a shell.
package argv

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse splits input into words, honoring single/double quotes and backslash escapes.
//
// A leading `#` marks the whole string as a comment and yields no words.
func Parse(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		words   []string
		current strings.Builder
		quote   rune
		escape  bool
		quoted  bool
	)

	flush := func() {
		if current.Len() == 0 && !quoted {
			return
		}
		words = append(words, current.String())
		current.Reset()
		quoted = false
	}

	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			quoted = true
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}

	if escape {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}

	flush()
	return words, nil
}

// MustParse is Parse for compile-time constants; it panics on malformed input.
func MustParse(input string) []string {
	words, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return words
}

// Render substitutes `{name}` placeholders in every word of a template argv.
func Render(template []string, vars map[string]string) []string {
	out := make([]string, len(template))
	for i, word := range template {
		for name, value := range vars {
			word = strings.ReplaceAll(word, "{"+name+"}", value)
		}
		out[i] = word
	}
	return out
}

// Join renders words as a single command line that Parse reads back to the same words.
func Join(words []string) string {
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = quote(word)
	}
	return strings.Join(quoted, " ")
}

func quote(word string) string {
	if word == "" {
		return "''"
	}
	if !strings.ContainsFunc(word, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(`'"\#`, r)
	}) {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'"'"'`) + "'"
}
