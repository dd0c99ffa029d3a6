// Command litclock is the terminal literary clock plus dataset tooling.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// cli carries flag values and the loaded config between cobra hooks.
type cli struct {
	configPath string
	verbose    bool
	cfg        appConfig
	out        io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}

	root := &cobra.Command{
		Use:           "litclock",
		Short:         "A clock that tells the time with quotes from books",
		Long:          "litclock shows, every minute, a passage from literature that mentions the current time.",
		Version:       fmt.Sprintf("%s (commit %s, built %s, %s)", version, commit, buildTime, goVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.out = cmd.OutOrStdout()
			cfg, err := loadConfig(c.configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), c.cfg, c.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default is $HOME/.config/litclock/config.yml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	pf.String("source", "", "partition source: http(s) URL, dir:<path> or duckdb:<path>")
	pf.String("db-path", "", "DuckDB quote store path")

	root.AddCommand(
		newNowCmd(c),
		newSplitCmd(c),
		newValidateCmd(c),
		newStatsCmd(c),
		newImportCmd(c),
		newPublishCmd(c),
		newQueryCmd(c),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
