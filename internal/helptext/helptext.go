// Package helptext turns the unstructured help or usage text captured from
// an external program into candidate completion tokens. The heuristics are
// approximate by design: they aim for usable flag and subcommand sets on
// typical CLI output, bounded in cost on pathological output.
package helptext

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Limits holds the empirically tuned knobs of the heuristics. They are
// plain data so a host can adjust them; none of the values is meaningful
// beyond "works well on the tools we have seen".
type Limits struct {
	// StopWords are lowercase words that never become candidates.
	StopWords map[string]struct{}
	// TrimSet is the surrounding punctuation stripped from raw tokens.
	TrimSet string
	// RootTokenCap bounds how many positional tokens one top-level help
	// text may contribute.
	RootTokenCap int
	// ContextTokenCap bounds the broader contextual parse.
	ContextTokenCap int
}

// DefaultLimits returns the stock tuning.
func DefaultLimits() Limits {
	stop := map[string]struct{}{}
	for _, w := range []string{
		"usage", "options", "option", "argument", "arguments",
		"command", "commands", "object", "objects", "help",
		"examples", "example", "description", "available",
		"list", "show", "when", "where",
	} {
		stop[w] = struct{}{}
	}
	return Limits{
		StopWords:       stop,
		TrimSet:         ".,;:()[]{}<>|\"'",
		RootTokenCap:    128,
		ContextTokenCap: 256,
	}
}

var (
	// flagPattern matches one or two leading hyphens followed by a word
	// start. The leading group stands in for a lookbehind: a flag must not
	// be preceded by a word or hyphen character, which keeps us out of
	// hyphenated prose and version strings.
	flagPattern = regexp.MustCompile(`(^|[^\w-])(--?[\w?][\w-]*)`)

	identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]*$`)

	bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)
	anglePattern   = regexp.MustCompile(`<([^>]+)>`)
	bracePattern   = regexp.MustCompile(`\{([^}]+)\}`)
	altSplit       = regexp.MustCompile(`[|,]`)
	dashDescLine   = regexp.MustCompile(`^([A-Za-z0-9._-]+)\s+-\s+`)
)

// Parser applies the heuristics under a given set of limits.
type Parser struct {
	limits Limits
}

// NewParser returns a Parser with the default limits.
func NewParser() *Parser {
	return &Parser{limits: DefaultLimits()}
}

// NewParserWithLimits returns a Parser with custom tuning.
func NewParserWithLimits(limits Limits) *Parser {
	return &Parser{limits: limits}
}

// Flags extracts flag-shaped tokens from output, sorted and deduplicated.
func (p *Parser) Flags(output string) []string {
	if output == "" {
		return nil
	}
	seen := make(map[string]struct{})
	for _, m := range flagPattern.FindAllStringSubmatch(output, -1) {
		cleaned := strings.TrimRight(m[2], ".,;:)")
		if cleaned != "" {
			seen[cleaned] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Positionals scans output line by line for plausible positional argument
// tokens, skipping usage banners, flag lines and section headers. The
// result is bounded by RootTokenCap and sorted.
func (p *Parser) Positionals(output, command string) []string {
	if output == "" {
		return nil
	}
	commandLower := strings.ToLower(command)
	tokens := make(map[string]struct{})

	for _, line := range strings.Split(output, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		lower := strings.ToLower(stripped)
		if strings.HasPrefix(lower, "usage") || strings.HasPrefix(lower, "synopsis") {
			continue
		}
		if strings.HasPrefix(stripped, "-") {
			continue
		}
		// Bare "Label:" section headers carry no candidates.
		if strings.HasSuffix(stripped, ":") && !strings.Contains(stripped, " ") {
			continue
		}

		parts := strings.Fields(stripped)
		if len(parts) > 0 && strings.ToLower(parts[0]) == commandLower {
			parts = parts[1:]
		}
		for _, part := range parts {
			if normalized, ok := p.Normalize(part, commandLower); ok {
				tokens[normalized] = struct{}{}
			}
		}

		if len(tokens) >= p.limits.RootTokenCap {
			break
		}
	}
	return sortedKeys(tokens)
}

// Normalize reduces a raw help-text word to a candidate token, or rejects
// it. Rejection covers punctuation-only words, flags, the command's own
// name, stop words, single characters, all-caps metavariable placeholders,
// and anything that does not look like an identifier.
func (p *Parser) Normalize(token, commandLower string) (string, bool) {
	stripped := strings.Trim(token, p.limits.TrimSet)
	if stripped == "" {
		return "", false
	}

	stripped = strings.ReplaceAll(stripped, "[", "")
	stripped = strings.ReplaceAll(stripped, "]", "")
	if stripped == "" || strings.HasPrefix(stripped, "-") {
		return "", false
	}

	lower := strings.ToLower(stripped)
	if lower == commandLower {
		return "", false
	}
	if _, stop := p.limits.StopWords[lower]; stop {
		return "", false
	}
	if len([]rune(lower)) <= 1 {
		return "", false
	}

	hasAlpha := false
	hasUpper := false
	hasLower := false
	for _, r := range stripped {
		if unicode.IsLetter(r) {
			hasAlpha = true
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if !hasAlpha {
		return "", false
	}
	// All-caps words are metavariable placeholders like FILE or PATH.
	if hasUpper && !hasLower {
		return "", false
	}
	if !identPattern.MatchString(stripped) {
		return "", false
	}
	return stripped, true
}

// RootTree builds the prefix tree contributions of one top-level help
// text. Keys are space-joined prefixes ("" is the root); normalized tokens
// never contain spaces, so the join is unambiguous. Lines repeating the
// command's own name contribute nested entries: "cmd sub1 sub2" registers
// sub1 at the root and sub2 under (sub1).
func (p *Parser) RootTree(output, command string) map[string][]string {
	sets := make(map[string]map[string]struct{})
	add := func(key, word string) {
		node, ok := sets[key]
		if !ok {
			node = make(map[string]struct{})
			sets[key] = node
		}
		node[word] = struct{}{}
	}

	commandLower := strings.ToLower(command)
	for _, rawLine := range strings.Split(output, "\n") {
		stripped := strings.TrimSpace(rawLine)
		if stripped == "" {
			continue
		}

		head := strings.Fields(stripped)[0]
		if normalized, ok := p.Normalize(head, commandLower); ok {
			add("", normalized)
		}

		lowered := strings.ToLower(rawLine)
		idx := strings.Index(lowered, commandLower)
		if idx == -1 {
			continue
		}

		tail := rawLine[idx+len(command):]
		var prefix []string
		for _, part := range strings.Fields(strings.ReplaceAll(tail, "/", " ")) {
			normalized, ok := p.Normalize(part, commandLower)
			if !ok {
				continue
			}
			add(strings.Join(prefix, " "), normalized)
			prefix = append(prefix, normalized)
		}
	}

	tree := make(map[string][]string, len(sets))
	for key, words := range sets {
		tree[key] = sortedKeys(words)
	}
	return tree
}

// ContextCandidates applies the broader heuristic used for contextual
// probes: bracket, angle and brace groups (alternatives split on | and ,),
// "word - description" lines, and "key := value" lines. ignore lists
// tokens (the command name and the typed prefix) that must not reappear as
// candidates.
func (p *Parser) ContextCandidates(output, command string, ignore []string) []string {
	if output == "" {
		return nil
	}
	commandLower := strings.ToLower(command)
	ignoreSet := map[string]struct{}{commandLower: {}}
	for _, tok := range ignore {
		ignoreSet[strings.ToLower(tok)] = struct{}{}
	}

	tokens := make(map[string]struct{})
	addCandidate := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		normalized, ok := p.Normalize(raw, commandLower)
		if !ok {
			return
		}
		if _, skip := ignoreSet[strings.ToLower(normalized)]; skip {
			return
		}
		tokens[normalized] = struct{}{}
	}

	for _, rawLine := range strings.Split(output, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		for _, group := range [](*regexp.Regexp){bracketPattern, anglePattern, bracePattern} {
			for _, m := range group.FindAllStringSubmatch(line, -1) {
				for _, part := range altSplit.Split(m[1], -1) {
					addCandidate(part)
				}
			}
		}

		if m := dashDescLine.FindStringSubmatch(line); m != nil {
			addCandidate(m[1])
		}

		if idx := strings.Index(line, ":="); idx != -1 {
			for _, part := range strings.Fields(line[idx+2:]) {
				addCandidate(part)
			}
		}

		if len(tokens) >= p.limits.ContextTokenCap {
			break
		}
	}
	return sortedKeys(tokens)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
