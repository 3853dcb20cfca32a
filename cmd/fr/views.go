package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the playback state and fleet summary",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := frClient.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting state: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printState(cmd.OutOrStdout(), st)
		return nil
	},
}

var tripsCmd = &cobra.Command{
	Use:     "trips",
	Short:   "List trips",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		trips, err := frClient.ListTrips(cmd.Context(), status)
		if err != nil {
			return fmt.Errorf("listing trips: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), trips)
		}
		printTripTable(cmd.OutOrStdout(), trips)
		return nil
	},
}

var tripCmd = &cobra.Command{
	Use:     "trip <id>",
	Short:   "Show one trip",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trip, err := frClient.GetTrip(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting trip %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), trip)
		}
		printTrip(cmd.OutOrStdout(), trip)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "Show the most recently applied events",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		evts, err := frClient.ListEvents(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evts)
		}
		printEvents(cmd.OutOrStdout(), evts)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:     "metrics",
	Short:   "Show fleet metrics",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := frClient.Metrics(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting metrics: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), m)
		}
		printMetrics(cmd.OutOrStdout(), *m)
		return nil
	},
}

func init() {
	tripsCmd.Flags().String("status", "", "filter by status (scheduled, in_progress, completed, cancelled)")
	eventsCmd.Flags().Int("limit", 50, "number of events to show (0 = all)")
}
