// Package main provides the interviewd entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ddokterview/ddokterview/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configFlag string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "interviewd",
	Short: "Mock interview service",
	Long: `interviewd analyzes an uploaded resume with the question agent,
runs a spoken mock interview through the session agent and folds the
resulting feedback into one report per session.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "YAML settings file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads settings and configures the global logger from them.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.ConfigPath(configFlag))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	if cfg.Path != "" {
		log.Debug().Str("path", cfg.Path).Msg("Config file loaded")
	}
	return cfg, nil
}

// setupLogging writes to stderr so stdout stays clean for command output.
func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debugFlag {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
}
