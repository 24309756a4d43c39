package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/notedesk/internal/client"
	"github.com/devilmonastery/notedesk/internal/pkg/logger"
	"github.com/devilmonastery/notedesk/internal/pkg/metrics"
	"github.com/devilmonastery/notedesk/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds shared CLI context
type CliContext struct {
	Config  *Config
	Client  *client.Client
	Session *session.Manager
	API     *client.API
	Logger  *slog.Logger
}

// Global flags
var (
	logLevel      string
	logFile       string
	logToStderr   bool
	alsoLogStderr bool
	logFormat     string
	staticToken   string
	metricsFile   string
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:           "notedesk",
		Short:         "CLI for the notes service",
		Long:          `A command line interface for managing notes, categories and tags via the notes REST API.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx.Logger = logger.WithComponent(slog.Default(), "cli")
			logger.WithCommand(ctx.Logger, cmd.CommandPath()).Debug("CLI started")

			// A .env file in the working directory may set NOTEDESK_* variables
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				ctx.Logger.Warn("failed to load .env file", slog.String("error", err.Error()))
			}

			config, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx.Config = config

			// Config commands must work even when the current context is broken
			if isConfigCommand(cmd) {
				cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
				return nil
			}

			ctx.Client, err = newAPIClient(config, ctx.Logger)
			if err != nil {
				return err
			}
			ctx.Session, err = newSessionManager(config, ctx.Client, ctx.Logger)
			if err != nil {
				return err
			}
			ctx.API = newResourceAPI(ctx.Client, ctx.Session, staticToken)

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if metricsFile == "" {
				return nil
			}
			if err := metrics.WriteTextfile(metricsFile); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newNotesCommand())
	rootCmd.AddCommand(newCategoriesCommand())
	rootCmd.AddCommand(newTagsCommand())

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (if specified, logs to file instead of stderr)")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr (default behavior unless --log-file specified)")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&staticToken, "token", "",
		"Use this access token instead of the stored session (never refreshed)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "",
		"Write Prometheus metrics for this run to a textfile collector file")

	return rootCmd
}

// setupLogging configures the global logger based on CLI flags
func setupLogging() error {
	// Default to stderr logging unless file is specified
	toStderr := logToStderr || logFile == ""

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   toStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// isConfigCommand reports whether cmd is "config" or one of its subcommands
func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
