package styles

import (
	"os"

	"github.com/muesli/termenv"
)

var (
	stdout = termenv.NewOutput(os.Stdout)

	ERROR = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("9")).
			String()
	}
	HEADER = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("11")).
			Bold().
			String()
	}
	// CANDIDATE_DIR styles directory candidates in listings
	CANDIDATE_DIR = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("12")).
			String()
	}
	// HINT styles secondary text like cache ages with dimmed appearance
	HINT = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("244")).
			String()
	}
)
