package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/feedsync/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "feedsync: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:           "feedsync",
		Short:         "Terminal client for the social backend, kept in sync by a local query cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "override config path (optional)")
	flags.StringVar(&opts.PrefsPath, "prefs", "", "override preferences path (optional)")
	flags.StringVar(&opts.ActorURL, "actor", "", `backend address, or "memory" for the built-in demo backend`)

	root.AddCommand(newWatchCommand(&opts, stdout))
	return root
}

func newWatchCommand(opts *app.Options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Print messages of one conversation as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Watch(cmd.Context(), *opts, args[0], stdout)
		},
	}
}
