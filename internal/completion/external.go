package completion

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/harborshell/hush/internal/metadata"
	"github.com/harborshell/hush/internal/pathcomp"
	"github.com/harborshell/hush/internal/probe"
)

// completeExternal handles completion for commands outside the builtin
// registry. The command name is resolved to an executable on disk; its
// help text is probed and parsed on first contact and cached for the rest
// of the process lifetime. Everything falls back to path completion.
func (p *Provider) completeExternal(command, fragment string, before []string) []string {
	workingDir := p.pwd()

	resolved := p.resolveExecutable(command, workingDir)
	if resolved == "" {
		return p.paths.Complete(fragment, workingDir)
	}

	// After an end-of-options marker only paths make sense.
	for _, tok := range before[1:] {
		if tok == "--" {
			return p.paths.Complete(fragment, workingDir)
		}
	}

	if strings.HasPrefix(fragment, "-") {
		meta := p.ensureMetadata(resolved, workingDir)
		var out []string
		for _, flag := range meta.Flags {
			if strings.HasPrefix(flag, fragment) {
				out = append(out, flag)
			}
		}
		return out
	}

	if pathcomp.LooksLikePath(fragment) {
		return p.paths.Complete(fragment, workingDir)
	}

	prefix := nonFlagTokens(before[1:])

	// Curated overlays answer first-level subcommands without a probe.
	if len(prefix) == 0 {
		if words := p.static.Values(filepath.Base(resolved), fragment); len(words) > 0 {
			return words
		}
	}

	meta := p.ensureMetadata(resolved, workingDir)

	candidates, ok := meta.Tree.Get(prefix)
	if !ok {
		candidates = p.ensurePrefix(resolved, prefix, workingDir)
	}

	// Walk ancestor prefixes from longest to shortest, probing each on
	// demand, before giving up on the tree entirely.
	if len(candidates) == 0 && len(prefix) > 0 {
		for i := len(prefix) - 1; i >= 0; i-- {
			parent := prefix[:i]
			parentCandidates, ok := meta.Tree.Get(parent)
			if !ok {
				parentCandidates = p.ensurePrefix(resolved, parent, workingDir)
			}
			if len(parentCandidates) > 0 {
				candidates = parentCandidates
				break
			}
		}
	}

	if len(candidates) == 0 {
		candidates = meta.Positionals
	}

	if len(candidates) > 0 {
		var filtered []string
		for _, candidate := range candidates {
			if strings.HasPrefix(candidate, fragment) {
				filtered = append(filtered, candidate)
			}
		}
		if len(filtered) > 0 {
			return filtered
		}
	}

	return p.paths.Complete(fragment, workingDir)
}

// resolveExecutable maps a typed command name to an absolute executable
// path. Names containing a separator resolve against the working directory
// and must exist; bare names go through a search-path lookup. "" means the
// name does not resolve.
func (p *Provider) resolveExecutable(command, workingDir string) string {
	expanded := pathcomp.ExpandUser(os.ExpandEnv(command))
	if strings.Contains(command, "/") {
		candidate := expanded
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(workingDir, candidate)
		}
		candidate = filepath.Clean(candidate)
		if _, err := os.Stat(candidate); err != nil {
			return ""
		}
		return candidate
	}

	resolved, err := exec.LookPath(expanded)
	if err != nil {
		return ""
	}
	return resolved
}

// ensureMetadata probes the executable's top-level help at most once per
// process lifetime and caches flags, root positionals and the usage tree.
func (p *Provider) ensureMetadata(resolved, workingDir string) metadata.Metadata {
	return p.cache.EnsureTopLevel(resolved, func() (metadata.Metadata, bool) {
		output := p.runner.HelpOutput(resolved, workingDir)
		if strings.TrimSpace(output) == "" {
			p.logger.Debug("help probe produced no output", zap.String("path", resolved))
			return metadata.Metadata{Tree: metadata.NewPositionalTree()}, false
		}

		command := filepath.Base(resolved)
		flags := p.parser.Flags(output)
		positionals := p.parser.Positionals(output, command)

		tree := metadata.NewPositionalTree()
		for key, words := range p.parser.RootTree(output, command) {
			tree.SetKey(key, words)
		}
		if roots, ok := tree.Get(nil); ok {
			positionals = mergeSorted(positionals, roots)
		}

		p.logger.Debug("help probe parsed",
			zap.String("path", resolved),
			zap.Int("flags", len(flags)),
			zap.Int("positionals", len(positionals)))
		return metadata.Metadata{Flags: flags, Positionals: positionals, Tree: tree}, true
	})
}

// ensurePrefix probes the executable with the typed prefix plus each
// context-revealing suffix, parsing with the broader heuristic. The result
// is cached against the exact prefix, empty or not.
func (p *Provider) ensurePrefix(resolved string, prefix []string, workingDir string) []string {
	return p.cache.EnsurePrefix(resolved, prefix, func() []string {
		command := filepath.Base(resolved)
		for _, suffix := range probe.ContextSwitches {
			args := append(append([]string{}, prefix...), suffix...)
			output := p.runner.Capture(resolved, args, workingDir)
			if strings.TrimSpace(output) == "" {
				continue
			}
			if tokens := p.parser.ContextCandidates(output, command, prefix); len(tokens) > 0 {
				return tokens
			}
		}
		return nil
	})
}

// nonFlagTokens drops flag-shaped tokens, leaving the positional prefix
// that keys the tree.
func nonFlagTokens(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "-") {
			out = append(out, tok)
		}
	}
	return out
}

// mergeSorted unions two sorted unique slices into one.
func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
