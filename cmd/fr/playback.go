package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/fleetreplay/internal/client"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
)

// controlCommand builds a command that runs one playback control and prints
// the resulting state.
func controlCommand(use, short string, op func(client.PlaybackClient, context.Context) (*session.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		GroupID: "playback",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := op(frClient, cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			return reportPlayback(cmd, st)
		},
	}
}

var (
	playCmd   = controlCommand("play", "Start playback", client.PlaybackClient.Play)
	pauseCmd  = controlCommand("pause", "Pause playback", client.PlaybackClient.Pause)
	toggleCmd = controlCommand("toggle", "Toggle between playing and paused", client.PlaybackClient.Toggle)
	resetCmd  = controlCommand("reset", "Discard the session and start over from the data source", client.PlaybackClient.Reset)
)

var speedCmd = &cobra.Command{
	Use:     "speed <factor>",
	Short:   "Set the playback speed multiplier",
	GroupID: "playback",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid speed %q: %w", args[0], err)
		}
		st, err := frClient.SetSpeed(cmd.Context(), factor)
		if err != nil {
			return fmt.Errorf("setting speed: %w", err)
		}
		return reportPlayback(cmd, st)
	},
}

func reportPlayback(cmd *cobra.Command, st *session.State) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}
	printState(cmd.OutOrStdout(), st)
	return nil
}
