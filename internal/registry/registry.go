// Package registry holds the static descriptors for the shell's built-in
// commands. The registry is built once at startup and never mutated; the
// completion engine only reads it.
package registry

import "sort"

// CommandSpec describes one built-in command as the completion engine sees
// it: the names it answers to, the flags it accepts, and whether its
// positional arguments are filesystem paths.
type CommandSpec struct {
	Name      string
	Aliases   []string
	Flags     []string
	TakesPath bool
}

// HasFlag reports whether f is one of the command's declared flags.
func (s *CommandSpec) HasFlag(f string) bool {
	for _, flag := range s.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

// Registry resolves command aliases to their specs.
type Registry struct {
	byAlias map[string]*CommandSpec
	aliases []string
}

// New builds a Registry from specs. Later specs win on alias collisions.
func New(specs []CommandSpec) *Registry {
	r := &Registry{byAlias: make(map[string]*CommandSpec)}
	for i := range specs {
		spec := &specs[i]
		for _, alias := range spec.Aliases {
			r.byAlias[alias] = spec
		}
	}
	for alias := range r.byAlias {
		r.aliases = append(r.aliases, alias)
	}
	sort.Strings(r.aliases)
	return r
}

// Lookup resolves name to a command spec.
func (r *Registry) Lookup(name string) (*CommandSpec, bool) {
	spec, ok := r.byAlias[name]
	return spec, ok
}

// Aliases returns every registered alias in sorted order.
func (r *Registry) Aliases() []string {
	return r.aliases
}

// Default returns the registry for the shell's built-in commands.
func Default() *Registry {
	return New([]CommandSpec{
		{Name: "help", Aliases: []string{"help"}},
		{Name: "exit", Aliases: []string{"exit"}},
		{Name: "reload", Aliases: []string{"reload"}, Flags: []string{"--full", "--hard", "--all", "-f", "-a"}},
		{Name: "clear", Aliases: []string{"clear"}},
		{Name: "cd", Aliases: []string{"cd", "goto"}, TakesPath: true},
		{Name: "ls", Aliases: []string{"ls", "dir"}, Flags: []string{"-a", "-A", "--all", "--"}, TakesPath: true},
		{Name: "mkdir", Aliases: []string{"mkdir"}, TakesPath: true},
		{Name: "touch", Aliases: []string{"touch"}, TakesPath: true},
		{Name: "rm", Aliases: []string{"rm"}, Flags: []string{"-f", "-r", "-R", "-rf", "-fr", "--"}, TakesPath: true},
		{Name: "micro", Aliases: []string{"micro"}, TakesPath: true},
		{Name: "hush", Aliases: []string{"hush"}, Flags: []string{"upgrade"}},
	})
}
