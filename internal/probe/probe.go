// Package probe runs short, bounded subprocess invocations that coax help
// or usage text out of external programs. Every failure mode (missing
// binary, permission denied, timeout, crash) is swallowed and reported as
// empty output.
package probe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HelpSwitches are tried in order when probing a program's top-level help.
// The bare "help" argument comes last because some tools interpret an
// unknown argument destructively less often than an unknown flag.
var HelpSwitches = []string{"--help", "-h", "-?", "help"}

// ContextSwitches are the suffixes appended after already-typed subcommand
// tokens when probing deeper contexts.
var ContextSwitches = [][]string{{"--help"}, {"help"}, {"-h"}}

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 1500 * time.Millisecond

// Runner issues probes with a stable environment and a per-attempt timeout.
type Runner struct {
	Timeout time.Duration
	logger  *zap.Logger
	environ func() []string
}

// NewRunner creates a Runner with the default timeout.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Timeout: DefaultTimeout,
		logger:  logger,
		environ: os.Environ,
	}
}

// SetEnviron overrides the base environment. Used by tests.
func (r *Runner) SetEnviron(environ func() []string) {
	r.environ = environ
}

// Capture runs path with args in workingDir and returns standard output and
// standard error concatenated. Any spawn failure or timeout yields "".
// A non-zero exit status is not a failure; many tools print usage text and
// exit 1 or 2.
func (r *Runner) Capture(path string, args []string, workingDir string) string {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = workingDir
	cmd.Env = r.helpEnviron()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Debug("probe timed out",
			zap.String("path", path), zap.Strings("args", args))
		return ""
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			r.logger.Debug("probe failed to run",
				zap.String("path", path), zap.Error(err))
			return ""
		}
	}

	return stdout.String() + "\n" + stderr.String()
}

// HelpOutput probes path with each help switch in turn and returns the
// first non-blank combined output, or "" when every attempt fails.
func (r *Runner) HelpOutput(path, workingDir string) string {
	for _, switchArg := range HelpSwitches {
		output := r.Capture(path, []string{switchArg}, workingDir)
		if strings.TrimSpace(output) != "" {
			return output
		}
	}
	return ""
}

// helpEnviron copies the base environment and forces a non-interactive
// pager and a stable locale, without clobbering values the user already
// set.
func (r *Runner) helpEnviron() []string {
	env := r.environ()
	present := make(map[string]struct{}, len(env))
	for _, kv := range env {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			present[kv[:idx]] = struct{}{}
		}
	}
	for _, def := range []string{"PAGER=cat", "MANPAGER=cat", "GIT_PAGER=cat", "LC_ALL=C"} {
		key := def[:strings.IndexByte(def, '=')]
		if _, ok := present[key]; !ok {
			env = append(env, def)
		}
	}
	return env
}
