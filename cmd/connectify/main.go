// Package main implements the connectify CLI: account, feed, posting, and
// location commands against a Connectify backend, an interactive feed viewer,
// and an in-memory development server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	root := newRootCmd()
	// cobra's Print helpers default to stderr; results belong on stdout.
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds global flag values and the per-invocation app.
type rootOptions struct {
	configPath  string
	server      string
	logLevel    string
	metricsFile string
	envFile     string

	app *app
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "connectify",
		Short: "Command-line client for the Connectify social network",
		Long: `connectify is a command-line client for a Connectify backend.

It signs in, browses the feed, creates posts with media, likes posts, and tags
locations. Settings come from ~/.config/connectify/config.yaml and CONNECTIFY_*
environment variables.

Examples:
  # Start a local backend with sample data
  connectify dev-server --seed 42

  # Sign in and read the feed
  connectify login --email demo@connectify.dev
  connectify feed --pages 2

  # Browse interactively
  connectify tui`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			o.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if o.app == nil {
				return nil
			}
			return o.app.close(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default ~/.config/connectify/config.yaml)")
	flags.StringVar(&o.server, "server", "", "backend base URL (overrides api.base_url)")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write client request metrics to this Prometheus textfile on exit")
	flags.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before configuration, if present")

	root.AddCommand(
		newLoginCmd(o),
		newSignupCmd(o),
		newLogoutCmd(o),
		newWhoamiCmd(o),
		newProfileCmd(o),
		newFeedCmd(o),
		newPostCmd(o),
		newLocationCmd(o),
		newTUICmd(o),
		newDevServerCmd(o),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root
}
