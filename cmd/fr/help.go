package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/fleetreplay/internal/ui"
)

// helpRule recolors every match of re in cobra's help text.
type helpRule struct {
	re     *regexp.Regexp
	render func(groups []string) string
}

var helpRules = []helpRule{
	// Group and section headers ("Playback:", "Flags:").
	{
		re:     regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		render: func(g []string) string { return ui.RenderAccent(g[1]) },
	},
	// Command names in the listing.
	{
		re:     regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		render: func(g []string) string { return g[1] + ui.RenderCommand(g[2]) + g[3] },
	},
	// Flag value types ("--limit int", "--interval duration").
	{
		re:     regexp.MustCompile(`(--?\S+\s+)(string|int|float64|duration|stringSlice)\b`),
		render: func(g []string) string { return g[1] + ui.RenderMuted(g[2]) },
	},
	// Defaults, quoted or not.
	{
		re:     regexp.MustCompile(`\(default [^)]*\)`),
		render: func(g []string) string { return ui.RenderMuted(g[0]) },
	},
}

// colorizedHelpFunc renders cobra's usage text and colors it when stdout
// supports ANSI output.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() || noColor {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return r.render(r.re.FindStringSubmatch(match))
		})
	}
	return s
}
