package main

import (
	"github.com/spf13/cobra"
)

// options are the global flags shared by every subcommand.
type options struct {
	configPath  string
	server      string
	metricsAddr string
	verbose     bool
}

// New returns the root command. With no subcommand it opens the dashboard.
func New() *cobra.Command {
	opts := &options{}

	var cmd = &cobra.Command{
		Use:          "moodlog",
		Short:        "Terminal client for an AI-assisted mood journal.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.moodlog/config.json)")
	pf.StringVar(&opts.server, "server", "", "backend base URL, overrides the config file")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr at debug level")

	AddCommands(cmd, opts)
	return cmd
}

// AddCommands registers every subcommand on topLevel.
func AddCommands(topLevel *cobra.Command, opts *options) {
	addDashboard(topLevel, opts)
	addLogin(topLevel, opts)
	addLogout(topLevel, opts)
	addWhoami(topLevel, opts)
	addTiles(topLevel, opts)
	addTrends(topLevel, opts)
	addWatch(topLevel, opts)
	addEvents(topLevel, opts)
	addStats(topLevel, opts)
}
