// Package cmd defines the CLI commands for the keywordcrawler executable.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigFile = "config.yaml"

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywordcrawler",
		Short: "Keyword-driven search crawler",
		Long: `keywordcrawler drains a frontier of search keywords, queries a search
engine for each one across the configured result categories, and records
every new matching link exactly once. Progress is checkpointed so an
interrupted run resumes where it stopped.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./"+defaultConfigFile+" when present)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCheckpointCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger, lerr := zap.NewProduction()
		if lerr != nil {
			os.Exit(1)
		}
		logger.Fatal("command execution failed", zap.Error(err))
	}
}

// loadDotEnv reads .env into the process environment. A missing file is fine.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}
