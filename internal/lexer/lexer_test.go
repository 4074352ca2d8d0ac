package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_PlainWords(t *testing.T) {
	assert.Equal(t, []string{"git", "status"}, Split("git status"))
}

func TestSplit_RemovesQuotes(t *testing.T) {
	tokens := Split(`git commit -m "hello world"`)
	assert.Equal(t, []string{"git", "commit", "-m", "hello world"}, tokens)
}

func TestSplit_SingleQuotes(t *testing.T) {
	tokens := Split(`echo 'a b' c`)
	assert.Equal(t, []string{"echo", "a b", "c"}, tokens)
}

func TestSplit_BackslashEscape(t *testing.T) {
	tokens := Split(`touch my\ file`)
	assert.Equal(t, []string{"touch", "my file"}, tokens)
}

func TestSplit_BlankInput(t *testing.T) {
	assert.Nil(t, Split(""))
	assert.Nil(t, Split("   \t  "))
}

func TestSplit_UnterminatedQuoteFallsBack(t *testing.T) {
	// A parse failure degrades to whitespace splitting instead of erroring.
	text := `echo "unterminated`
	assert.Equal(t, strings.Fields(text), Split(text))
}

func TestSplit_UnexpandableWordFallsBack(t *testing.T) {
	text := "echo $(ls)"
	assert.Equal(t, strings.Fields(text), Split(text))
}

func TestSplitAt_FragmentUnderCursor(t *testing.T) {
	before, fragment := SplitAt("git add fi", 10)
	assert.Equal(t, []string{"git", "add"}, before)
	assert.Equal(t, "fi", fragment)
}

func TestSplitAt_CursorAfterSpace(t *testing.T) {
	before, fragment := SplitAt("git add ", 8)
	assert.Equal(t, []string{"git", "add"}, before)
	assert.Equal(t, "", fragment)
}

func TestSplitAt_CursorMidLine(t *testing.T) {
	// Text after the cursor is ignored entirely.
	before, fragment := SplitAt("git add file.txt", 6)
	assert.Equal(t, []string{"git"}, before)
	assert.Equal(t, "ad", fragment)
}

func TestSplitAt_EscapedSpaceStaysInFragment(t *testing.T) {
	line := `touch my\ fi`
	before, fragment := SplitAt(line, len(line))
	assert.Equal(t, []string{"touch"}, before)
	assert.Equal(t, `my\ fi`, fragment)
}

func TestSplitAt_FragmentKeepsRawSpelling(t *testing.T) {
	line := `ls "Ban`
	before, fragment := SplitAt(line, len(line))
	assert.Equal(t, []string{"ls"}, before)
	assert.Equal(t, `"Ban`, fragment)
}

func TestSplitAt_PositionClamped(t *testing.T) {
	before, fragment := SplitAt("ls", 99)
	assert.Empty(t, before)
	assert.Equal(t, "ls", fragment)

	before, fragment = SplitAt("ls", -3)
	assert.Empty(t, before)
	assert.Equal(t, "", fragment)
}

func TestSplitAt_EmptyLine(t *testing.T) {
	before, fragment := SplitAt("", 0)
	assert.Empty(t, before)
	assert.Equal(t, "", fragment)
}
