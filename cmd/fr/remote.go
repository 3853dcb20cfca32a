package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named replay servers",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

// editRemotes opens the remotes file, applies edit and saves the result.
func editRemotes(edit func(*remoteBook) error) error {
	b, err := openRemoteBook()
	if err != nil {
		return err
	}
	if err := edit(b); err != nil {
		return err
	}
	return b.save()
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		r := Remote{URL: args[1]}
		r.GRPCAddr, _ = flags.GetString("grpc")
		r.Token, _ = flags.GetString("auth-token")
		r.NATSURL, _ = flags.GetString("nats")
		r.Description, _ = flags.GetString("description")

		err := editRemotes(func(b *remoteBook) error {
			b.put(args[0], r)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q added (%s)\n", args[0], r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(b *remoteBook) error { return b.remove(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Set the active remote (no args clears it)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		if err := editRemotes(func(b *remoteBook) error { return b.use(name) }); err != nil {
			return err
		}
		if name == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "active remote cleared")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", name)
		}
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openRemoteBook()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, map[string]any{"active": b.Active, "remotes": b.Remotes})
		}
		if len(b.Remotes) == 0 {
			fmt.Fprintln(out, "no remotes configured")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tGRPC\tDESCRIPTION")
		for _, name := range b.names() {
			r := b.Remotes[name]
			marker := "  "
			if name == b.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, r.GRPCAddr, r.Description)
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show details for a remote (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openRemoteBook()
		if err != nil {
			return err
		}
		var want string
		if len(args) == 1 {
			want = args[0]
		}
		name, r, err := b.lookup(want)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, r)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		if name == b.Active {
			name += " (active)"
		}
		rows := [][2]string{
			{"name", name},
			{"description", r.Description},
			{"url", r.URL},
			{"grpc_addr", r.GRPCAddr},
			{"token", maskToken(r.Token)},
			{"nats_url", r.NATSURL},
		}
		for _, row := range rows {
			if row[1] != "" {
				fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
			}
		}
		return w.Flush()
	},
}

func init() {
	f := remoteAddCmd.Flags()
	f.String("grpc", "", "gRPC address of the remote")
	f.String("auth-token", "", "bearer token for authentication")
	f.String("nats", "", "NATS URL for event streaming")
	f.String("description", "", "human-readable description of the remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}
