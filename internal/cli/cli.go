// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cli builds the cobra root command shared by every binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/geopose_telemetry/internal/config"
)

// RunFunc is the body of a binary. ctx is cancelled on SIGINT/SIGTERM.
type RunFunc func(ctx context.Context, cfg *config.Config) error

// ConfigureLogging sets the logrus level. Can be: debug, info, warning, error.
func ConfigureLogging(level string) error {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unrecognized log level: %q", level)
	}
	return nil
}

// NewCommand returns a root command that loads the config, sets up logging and calls run.
func NewCommand(use, short string, run RunFunc) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			if err := ConfigureLogging(logLevel); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".env", "path to dotenv configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "loglevel", "", "log level: debug, info, warning, error (default from LOG_LEVEL)")
	return cmd
}

// Execute runs cmd until it returns or the process is interrupted.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := exitCode(ctx, cmd)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// exitCode executes cmd and maps the outcome to a process exit code. An interrupt
// is a clean exit even when it cuts a blocking step short.
func exitCode(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		log.Infof("interrupted: %v", err)
		return 0
	default:
		log.Errorf("fatal: %v", err)
		return 1
	}
}
