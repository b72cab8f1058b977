package main

import (
	"context"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/internal/app"
	"github.com/spf13/cobra"
)

var reconcileLimit int

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Write missing detection reports for recorded submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		application, err := app.New(cmd.Context(), cfg, version, log)
		if err != nil {
			return err
		}
		defer application.Shutdown(context.Background())

		completed, err := application.Reconcile(cmd.Context(), reconcileLimit)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "completed %d report(s)\n", completed)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 100, "maximum number of submissions to complete")
}
