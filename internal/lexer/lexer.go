// Package lexer splits the interactive input line into shell-like words for
// the completion engine. Splitting is quote and escape aware; on any parse
// failure it degrades to naive whitespace splitting and never reports an
// error to the caller.
package lexer

import (
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// emptyEnviron keeps word expansion from reading the process environment.
// Tokens before the cursor only need quote removal, not real expansion.
var emptyEnviron = expand.ListEnviron()

// Split breaks text into shell words. Quotes are removed, backslash escapes
// are honored, and an unterminated quote or any other parse error falls back
// to whitespace splitting.
func Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	cfg := &expand.Config{Env: emptyEnviron}
	parser := syntax.NewParser()

	var tokens []string
	failed := false
	err := parser.Words(strings.NewReader(text), func(w *syntax.Word) bool {
		lit, err := expand.Literal(cfg, w)
		if err != nil {
			failed = true
			return false
		}
		tokens = append(tokens, lit)
		return true
	})
	if err != nil || failed {
		return strings.Fields(text)
	}
	return tokens
}

// SplitAt returns the fully typed tokens before the cursor and the fragment
// under it. The fragment keeps its raw spelling (quotes and escapes intact)
// so the path completer can reproduce it in emitted candidates.
func SplitAt(line string, pos int) (before []string, fragment string) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	start := wordStart(line, pos)
	return Split(line[:start]), line[start:pos]
}

// wordStart scans back from pos to the start of the current word. A space
// preceded by a backslash belongs to the word.
func wordStart(line string, pos int) int {
	start := pos
	for start > 0 {
		c := line[start-1]
		if c == ' ' || c == '\t' {
			if start >= 2 && line[start-2] == '\\' {
				start -= 2
				continue
			}
			break
		}
		start--
	}
	return start
}
