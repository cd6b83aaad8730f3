package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var recommendOrg string

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Weekly rule recommendations for an org",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Gateway.WeeklyRecommendations(ctx, recommendOrg)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recommendOrg, "org", "", "organization id (required)")
	_ = recommendCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(recommendCmd)
}
