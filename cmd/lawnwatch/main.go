// Command lawnwatch runs the treatment weather monitoring service and a set
// of one-shot tools for scoring, rescheduling and effectiveness prediction.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lawnwatch/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lawnwatch",
		Short:         "Weather monitoring for scheduled lawn treatments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newScoreCmd(),
		newRescheduleCmd(),
		newPredictCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(secretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION")))
}

// secretProvider resolves *_SSM_PARAM indirections from SSM, or from other
// environment variables when running locally.
func secretProvider(appEnv, region string) config.SecretProvider {
	if appEnv == "local" {
		return config.NewEnvVarProvider()
	}
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region)
}

// newLogger builds the process logger. serve logs JSON for aggregation,
// the one-shot tools log text to stderr so stdout stays parseable.
func newLogger(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := config.NewBuildInfo()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lawnwatch %s (commit %s, built %s)\n", b.Version, b.Commit, b.BuildTime)
			return err
		},
	}
}
