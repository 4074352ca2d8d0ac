// Package pathcomp completes partial filesystem path fragments. Fragments
// may be quoted or backslash-escaped; candidates are emitted in the same
// style the user typed. Directory candidates sort before files and carry a
// trailing separator. All I/O failures yield an empty candidate list.
package pathcomp

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// escapeChars are the shell metacharacters that get backslash-escaped in
// unquoted candidates.
const escapeChars = " \t\n\\'\"$`&|;<>*?()[]{}!"

// Completer resolves path fragments against a working directory.
type Completer struct {
	logger *zap.Logger
}

// New creates a path fragment Completer.
func New(logger *zap.Logger) *Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{logger: logger}
}

// LooksLikePath reports whether fragment should be treated as a filesystem
// path rather than a command or subcommand word.
func LooksLikePath(fragment string) bool {
	if fragment == "" {
		return false
	}
	stripped := strings.TrimLeft(fragment, "'\"")
	if stripped == "" {
		return false
	}
	if strings.HasPrefix(stripped, "./") ||
		strings.HasPrefix(stripped, "../") ||
		strings.HasPrefix(stripped, "~/") ||
		strings.HasPrefix(stripped, "/") {
		return true
	}
	return strings.Contains(stripped, "/") || strings.HasPrefix(stripped, ".")
}

// Complete returns candidates for fragment resolved against workingDir.
func (c *Completer) Complete(fragment, workingDir string) []string {
	quoteChar := ""
	if fragment != "" && (fragment[0] == '\'' || fragment[0] == '"') {
		quoteChar = fragment[:1]
		fragment = fragment[1:]
	}

	body := Unescape(fragment)
	prefix, partial := splitPrefix(body)
	lookupDir := resolveLookupDir(prefix, workingDir)
	includeHidden := shouldIncludeHidden(prefix, partial)

	entries, err := os.ReadDir(lookupDir)
	if err != nil {
		c.logger.Debug("path completion readdir failed",
			zap.String("dir", lookupDir), zap.Error(err))
		return []string{}
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if !includeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, partial) {
			continue
		}
		candidate := prefix + name
		if isDir(lookupDir, entry) {
			candidate += "/"
		}
		candidates = append(candidates, formatCandidate(candidate, quoteChar))
	}

	ordered := lo.Uniq(candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		di := strings.HasSuffix(ordered[i], "/")
		dj := strings.HasSuffix(ordered[j], "/")
		if di != dj {
			return di
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

// isDir resolves symlinks so a link to a directory completes like one.
func isDir(dir string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.IsDir()
}

// splitPrefix divides a fragment at its last separator into the directory
// part (kept verbatim in candidates) and the partial entry name.
func splitPrefix(fragment string) (prefix, partial string) {
	if fragment == "" {
		return "", ""
	}
	idx := strings.LastIndex(fragment, "/")
	if idx == -1 {
		return "", fragment
	}
	return fragment[:idx+1], fragment[idx+1:]
}

// resolveLookupDir expands ~ and environment variables in the directory
// prefix only, then resolves it against workingDir.
func resolveLookupDir(prefix, workingDir string) string {
	if prefix == "" {
		return workingDir
	}
	expanded := ExpandUser(os.ExpandEnv(prefix))
	if expanded == "" {
		return workingDir
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}
	return filepath.Clean(filepath.Join(workingDir, expanded))
}

// ExpandUser replaces a leading ~ or ~/ with the current user's home
// directory. Unresolvable homes leave the value untouched.
func ExpandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// shouldIncludeHidden applies the dotfile rule: hidden entries appear only
// when the segment being typed itself starts with a dot.
func shouldIncludeHidden(prefix, partial string) bool {
	segment := partial
	if segment == "" {
		trimmed := strings.TrimRight(prefix, "/")
		if trimmed == "" {
			return false
		}
		parts := strings.Split(trimmed, "/")
		segment = parts[len(parts)-1]
	}
	return strings.HasPrefix(segment, ".")
}

// Unescape removes backslash escapes from a fragment. A trailing lone
// backslash is kept literal.
func Unescape(value string) string {
	if !strings.ContainsRune(value, '\\') {
		return value
	}
	var b strings.Builder
	escaping := false
	for _, ch := range value {
		if escaping {
			b.WriteRune(ch)
			escaping = false
			continue
		}
		if ch == '\\' {
			escaping = true
			continue
		}
		b.WriteRune(ch)
	}
	if escaping {
		b.WriteByte('\\')
	}
	return b.String()
}

// escapeFragment backslash-escapes shell metacharacters in value.
func escapeFragment(value string) string {
	var b strings.Builder
	for _, ch := range value {
		if strings.ContainsRune(escapeChars, ch) {
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// formatCandidate renders a candidate the way the fragment was typed: under
// the user's open quote when there was one, otherwise escaped.
func formatCandidate(unescaped, quoteChar string) string {
	if quoteChar != "" {
		return quoteChar + unescaped
	}
	return escapeFragment(unescaped)
}
