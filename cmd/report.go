package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportOrg string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the ROI markdown report for an org",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		markdown, err := env.Gateway.OptimizeReport(ctx, reportOrg)
		if err != nil {
			return err
		}

		fmt.Println(markdown)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOrg, "org", "", "organization id (required)")
	_ = reportCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(reportCmd)
}
