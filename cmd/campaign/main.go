package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/logging"
)

// app carries the global flags and the state PersistentPreRunE builds.
type app struct {
	configPath string
	verbose    bool
	timeout    time.Duration

	cfg   *config.Config
	creds *config.Credentials
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "campaign",
		Short: "Campaign creative-asset pipeline",
		Long: `campaign turns a declarative campaign file into localized marketing images.

It validates the campaign and its assets, plans the output folder tree,
generates one base image per product and aspect ratio, localizes each one
per market, checks logo presence and writes a campaign report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "Path to config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "Wall-clock budget per run (default: watcher.run_timeout)")

	root.AddCommand(
		newValidateCmd(a),
		newAssetsCmd(a),
		newFoldersCmd(a),
		newRunCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// init loads configuration, credentials and the root logger.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetRoot(logger)

	creds, err := config.LoadCredentials(cfg.Paths.EnvFile, cfg.Paths.CredentialsFile)
	if err != nil {
		return err
	}
	logging.Get(logging.CategoryConfig).Debug("Loaded %s", creds)

	a.cfg, a.creds = cfg, creds
	return nil
}

func (a *app) runTimeout() time.Duration {
	if a.timeout > 0 {
		return a.timeout
	}
	return a.cfg.GetRunTimeout()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var mc *config.MissingCredentialError
		if errors.As(err, &mc) {
			fmt.Fprintf(os.Stderr, "Error: %v\nSet it in the environment, .env or credentials.yaml.\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
