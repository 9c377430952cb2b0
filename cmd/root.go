package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dispatchmap/app"
	"github.com/kilianp07/dispatchmap/config"
	"github.com/kilianp07/dispatchmap/infra/logger"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	cfgPath     string
	sessionPath string
	noInput     bool
)

var rootCmd = &cobra.Command{
	Use:          "dispatchmap",
	Short:        "Live dispatch map client",
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVarP(&sessionPath, "session", "s", "", "session snapshot file (overrides session.file)")
	rootCmd.Flags().BoolVar(&noInput, "no-input", false, "do not read commands from stdin")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if sessionPath != "" {
		cfg.Session.File = sessionPath
	}
	return cfg, nil
}

// loadConfigOrDefaults is loadConfig for commands that can run from flags
// alone: a missing file yields the defaults.
func loadConfigOrDefaults() (*config.Config, error) {
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		cfg := &config.Config{}
		cfg.SetDefaults()
		if sessionPath != "" {
			cfg.Session.File = sessionPath
		}
		return cfg, nil
	}
	return loadConfig()
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	opts := app.Options{Version: version, Output: cmd.OutOrStdout()}
	if !noInput {
		opts.Input = cmd.InOrStdin()
	}
	svc, err := app.New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
