// Package completion is the engine's single entry point: given the input
// buffer and cursor it routes to the right completer (builtin flags, paths,
// executables, probed external metadata) and returns an ordered candidate
// list. Completion never fails; any internal error yields no candidates.
package completion

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborshell/hush/internal/execindex"
	"github.com/harborshell/hush/internal/helptext"
	"github.com/harborshell/hush/internal/lexer"
	"github.com/harborshell/hush/internal/metadata"
	"github.com/harborshell/hush/internal/pathcomp"
	"github.com/harborshell/hush/internal/probe"
	"github.com/harborshell/hush/internal/registry"
)

// fuzzyFallbackCap bounds how many fuzzy-ranked command names are offered
// when a first-token prefix matches nothing.
const fuzzyFallbackCap = 16

// Provider wires the completion components together. It owns the metadata
// cache and the probe runner; the host supplies the builtin registry, the
// executable index and a working-directory getter.
type Provider struct {
	registry *registry.Registry
	index    *execindex.Index
	cache    *metadata.Cache
	paths    *pathcomp.Completer
	runner   *probe.Runner
	parser   *helptext.Parser
	static   *StaticCompleter
	pwd      func() string
	logger   *zap.Logger
}

// NewProvider creates a Provider. pwd must return the shell's current
// working directory; the shell refreshes it on directory changes.
func NewProvider(
	reg *registry.Registry,
	index *execindex.Index,
	cache *metadata.Cache,
	pwd func() string,
	logger *zap.Logger,
) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		registry: reg,
		index:    index,
		cache:    cache,
		paths:    pathcomp.New(logger),
		runner:   probe.NewRunner(logger),
		parser:   helptext.NewParser(),
		static:   NewStaticCompleter(logger),
		pwd:      pwd,
		logger:   logger,
	}
}

// Runner exposes the probe runner so hosts can adjust its timeout.
func (p *Provider) Runner() *probe.Runner {
	return p.runner
}

// Static exposes the overlay completer so hosts can register or reload
// curated completions at runtime.
func (p *Provider) Static() *StaticCompleter {
	return p.static
}

// GetCompletions returns completion candidates for the buffer at cursor
// position pos. It never panics and never returns an error; the line
// editor must stay alive no matter what the heuristics do.
func (p *Provider) GetCompletions(line string, pos int) (candidates []string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("completion panic recovered", zap.Any("panic", r))
			candidates = nil
		}
	}()

	before, fragment := lexer.SplitAt(line, pos)
	if len(before) == 0 {
		return p.completeFirstToken(fragment)
	}
	return p.completeAfterCommand(fragment, before)
}

// completeFirstToken completes the command position: builtin aliases and
// indexed executables by prefix, or path completion when the fragment is
// spelled like a path.
func (p *Provider) completeFirstToken(fragment string) []string {
	if pathcomp.LooksLikePath(fragment) {
		return p.paths.Complete(fragment, p.pwd())
	}

	var candidates []string
	for _, alias := range p.registry.Aliases() {
		if strings.HasPrefix(alias, fragment) {
			candidates = append(candidates, alias)
		}
	}
	if fragment != "" {
		candidates = append(candidates, p.index.Match(fragment)...)
	}
	candidates = lo.Uniq(candidates)

	if len(candidates) == 0 && fragment != "" {
		return p.fuzzyCommands(fragment)
	}
	return candidates
}

// fuzzyCommands ranks all known command names against the fragment when a
// plain prefix match comes up empty.
func (p *Provider) fuzzyCommands(fragment string) []string {
	pool := lo.Uniq(append(append([]string{}, p.registry.Aliases()...), p.index.Names()...))
	matches := fuzzy.Find(fragment, pool)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) >= fuzzyFallbackCap {
			break
		}
	}
	return out
}

// completeAfterCommand completes any position after the first token,
// resolving the command against the builtin registry first.
func (p *Provider) completeAfterCommand(fragment string, before []string) []string {
	command := before[0]
	spec, ok := p.registry.Lookup(command)
	if !ok {
		return p.completeExternal(command, fragment, before)
	}

	if isFlagContext(fragment, before, spec) {
		used := usedFlags(before[1:], spec)
		var out []string
		for _, flag := range spec.Flags {
			if !strings.HasPrefix(flag, fragment) {
				continue
			}
			if _, done := used[flag]; done {
				continue
			}
			out = append(out, flag)
		}
		return out
	}

	if spec.TakesPath {
		return p.paths.Complete(fragment, p.pwd())
	}
	return nil
}

// isFlagContext reports whether the fragment sits in a flag position: the
// command declares flags, the fragment starts with a hyphen, and no "--"
// end-of-options marker has appeared.
func isFlagContext(fragment string, before []string, spec *registry.CommandSpec) bool {
	if len(spec.Flags) == 0 {
		return false
	}
	for _, tok := range before[1:] {
		if tok == "--" {
			return false
		}
	}
	return strings.HasPrefix(fragment, "-")
}

// usedFlags collects flags already typed before the cursor. Flags are not
// repeatable; collection stops at an end-of-options marker.
func usedFlags(tokens []string, spec *registry.CommandSpec) map[string]struct{} {
	used := make(map[string]struct{})
	for _, tok := range tokens {
		if tok == "--" {
			break
		}
		if spec.HasFlag(tok) {
			used[tok] = struct{}{}
		}
	}
	return used
}
