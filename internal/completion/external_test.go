package completion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faketoolScript prints a usage page for --help, a contextual page for
// "build --help", and logs every invocation to $PROBE_LOG.
const faketoolScript = `echo "$@" >> "$PROBE_LOG"
case "$1" in
--help)
printf '%s\n' \
  'Usage: faketool <command> [--verbose]' \
  '' \
  '  build     USAGE' \
  '  deploy    USAGE' \
  '' \
  '  --verbose, -v   verbose output' \
  '  --quiet         quiet output'
exit 0
;;
build)
if [ "$2" = "--help" ]; then
  echo "choose [unit|integration]"
  exit 0
fi
exit 1
;;
esac
exit 1
`

// externalFixture wires a provider whose search path holds faketool and
// whose working directory holds fruit.txt. It returns the provider and the
// probe log path.
func externalFixture(t *testing.T) (*Provider, string) {
	t.Helper()

	bin := t.TempDir()
	writeTool(t, bin, "faketool", faketoolScript)
	t.Setenv("PATH", bin)

	probeLog := filepath.Join(t.TempDir(), "probes.log")
	t.Setenv("PROBE_LOG", probeLog)

	cwd := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "fruit.txt"), nil, 0o644))

	return newTestProvider(t, []string{bin}, cwd), probeLog
}

func probeCount(t *testing.T, probeLog string) int {
	t.Helper()
	data, err := os.ReadFile(probeLog)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(strings.Split(strings.TrimRight(string(data), "\n"), "\n"))
}

func TestProvider_External_RootSubcommands(t *testing.T) {
	p, _ := externalFixture(t)

	got := p.GetCompletions("faketool ", 9)
	assert.Equal(t, []string{"build", "deploy"}, got)
}

func TestProvider_External_SubcommandPrefixFilter(t *testing.T) {
	p, _ := externalFixture(t)

	got := p.GetCompletions("faketool de", 11)
	assert.Equal(t, []string{"deploy"}, got)
}

func TestProvider_External_ProbesAtMostOnce(t *testing.T) {
	p, probeLog := externalFixture(t)

	p.GetCompletions("faketool ", 9)
	first := probeCount(t, probeLog)
	require.Greater(t, first, 0)

	p.GetCompletions("faketool ", 9)
	p.GetCompletions("faketool b", 10)
	assert.Equal(t, first, probeCount(t, probeLog))
}

func TestProvider_External_FlagCompletion(t *testing.T) {
	p, _ := externalFixture(t)

	assert.Equal(t, []string{"--verbose"}, p.GetCompletions("faketool --v", 12))
	assert.Equal(t, []string{"--quiet"}, p.GetCompletions("faketool --q", 12))
	assert.Equal(t,
		[]string{"--quiet", "--verbose", "-v"},
		p.GetCompletions("faketool -", 10))
}

func TestProvider_External_ContextualProbe(t *testing.T) {
	p, probeLog := externalFixture(t)

	got := p.GetCompletions("faketool build ", 15)
	assert.Equal(t, []string{"integration", "unit"}, got)

	// The second request is answered from the prefix tree.
	count := probeCount(t, probeLog)
	got = p.GetCompletions("faketool build ", 15)
	assert.Equal(t, []string{"integration", "unit"}, got)
	assert.Equal(t, count, probeCount(t, probeLog))
}

func TestProvider_External_AncestorAnswersDeeperPrefix(t *testing.T) {
	p, _ := externalFixture(t)

	// "build group" itself answers no probe; the "build" ancestor does.
	got := p.GetCompletions("faketool build group ", 21)
	assert.Equal(t, []string{"integration", "unit"}, got)
}

func TestProvider_External_AncestorFallback(t *testing.T) {
	p, _ := externalFixture(t)

	// "deploy sub" answers no contextual probe; its nearest informed
	// ancestor is the root usage page.
	got := p.GetCompletions("faketool deploy sub ", 20)
	assert.Equal(t, []string{"build", "deploy"}, got)
}

func TestProvider_External_PathFragmentSkipsProbe(t *testing.T) {
	p, probeLog := externalFixture(t)

	got := p.GetCompletions("faketool ./fr", 13)
	assert.Equal(t, []string{"./fruit.txt"}, got)
	assert.Equal(t, 0, probeCount(t, probeLog))
}

func TestProvider_External_EndOfOptionsCompletesPaths(t *testing.T) {
	p, _ := externalFixture(t)

	got := p.GetCompletions("faketool -- fr", 14)
	assert.Equal(t, []string{"fruit.txt"}, got)
}

func TestProvider_External_UnresolvedCommandCompletesPaths(t *testing.T) {
	p, _ := externalFixture(t)

	got := p.GetCompletions("nosuchtool fr", 13)
	assert.Equal(t, []string{"fruit.txt"}, got)
}

func TestProvider_External_RelativeCommandPath(t *testing.T) {
	p, _ := externalFixture(t)
	cwd := p.pwd()
	writeTool(t, cwd, "local-tool", faketoolScript)

	got := p.GetCompletions("./local-tool de", 15)
	assert.Equal(t, []string{"deploy"}, got)
}

func TestProvider_External_OverlaySkipsProbe(t *testing.T) {
	p, probeLog := externalFixture(t)
	p.Static().Register("faketool", []Candidate{
		{Value: "alpha"}, {Value: "beta"},
	})

	got := p.GetCompletions("faketool a", 10)
	assert.Equal(t, []string{"alpha"}, got)
	assert.Equal(t, 0, probeCount(t, probeLog))
}

func TestProvider_External_NoMatchFallsBackToPaths(t *testing.T) {
	p, _ := externalFixture(t)

	got := p.GetCompletions("faketool fr", 11)
	assert.Equal(t, []string{"fruit.txt"}, got)
}
