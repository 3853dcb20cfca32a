package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout should get ANSI colors.
func ShouldUseColor() bool {
	return colorFor(os.Stdout, os.Getenv)
}

// colorFor decides color for f from the NO_COLOR, CLICOLOR_FORCE, CLICOLOR
// and TERM variables, falling back to TTY detection. NO_COLOR wins over
// everything (https://no-color.org).
func colorFor(f *os.File, getenv func(string) string) bool {
	switch {
	case getenv("NO_COLOR") != "":
		return false
	case flag(getenv("CLICOLOR_FORCE")) == "1":
		return true
	case flag(getenv("CLICOLOR")) == "0", getenv("TERM") == "dumb":
		return false
	case f == nil:
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func flag(v string) string { return strings.TrimSpace(v) }
