package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/siherrmann/handbot"
	"github.com/siherrmann/handbot/helper"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "handbot",
	Short: "Employee support chatbot answering from a document corpus",
	Long: `handbot answers employee questions. Unverified senders are asked for
their id number and employee code, verified senders get keyword answers or an
answer generated from the retrieved manual chunks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: level,
		},
	}
	return slog.New(helper.NewPrettyHandler(os.Stderr, opts))
}

// loadHandbot loads the configuration and creates all components
func loadHandbot(ctx context.Context, logger *slog.Logger) (*handbot.Handbot, error) {
	config, err := helper.LoadConfiguration(configPath)
	if err != nil {
		return nil, err
	}
	return handbot.New(ctx, config, handbot.WithLogger(logger))
}

// ensureCorpus ingests the documents unless a persistent store already holds chunks
func ensureCorpus(ctx context.Context, h *handbot.Handbot) error {
	count, err := h.Retriever.Store().Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = h.Ingest(ctx)
	return err
}
