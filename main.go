package main

import (
	"fmt"
	"os"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "plagiarism-checker",
	Short: "Submission intake with exact-duplicate detection",
	Long: `Stores submitted work, records it in the submission ledger and reports
whether an identical file was already handed in for the same assignment
by a different student.`,
	SilenceUsage: true,
	RunE:         runServe,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the logger it describes.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, logger.New(), fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Pretty:  cfg.Logging.Pretty,
		NoColor: cfg.Logging.NoColor,
	})

	return cfg, log, nil
}
