package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/fleetreplay/internal/client"
	"github.com/alfredjeanlab/fleetreplay/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	authToken  string
	jsonOutput bool
	noColor    bool

	frClient client.PlaybackClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("FLEETREPLAY_URL"); s != "" {
		return s
	}
	if u := currentRemote().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("FLEETREPLAY_SERVER"); s != "" {
		return s
	}
	if a := currentRemote().GRPCAddr; a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("FLEETREPLAY_TOKEN"); s != "" {
		return s
	}
	return currentRemote().Token
}

var rootCmd = &cobra.Command{
	Use:          "fr <command>",
	Short:        "Replay and control a fleet telemetry session",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		c, err := newClient(transport)
		if err != nil {
			return err
		}
		frClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if frClient != nil {
			frClient.Close()
		}
	},
}

// newClient builds the client for the selected transport.
func newClient(kind string) (client.PlaybackClient, error) {
	switch kind {
	case "http":
		return client.NewHTTPClient(httpURL, authToken), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", kind)
	}
}

// skipClient overrides the root PersistentPreRunE for commands that never
// talk to a running server.
func skipClient(cmd *cobra.Command, args []string) error {
	if noColor || !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "playback", Title: "Playback:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Playback
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(speedCmd)
	rootCmd.AddCommand(resetCmd)

	// Views
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(tripCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
