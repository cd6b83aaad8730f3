package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

var (
	budgetOrg    string
	budgetMonths int
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show current-period budget status for an org",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		status, err := env.Gateway.GetBudgetStatus(ctx, budgetOrg)
		if err != nil {
			return err
		}

		out := struct {
			model.BudgetStatus
			History []model.LedgerEntry `json:"history,omitempty"`
		}{BudgetStatus: status}

		if budgetMonths > 0 {
			history, err := env.Gateway.GetBudgetHistory(ctx, budgetOrg, budgetMonths)
			if err != nil {
				return err
			}
			out.History = history
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	budgetCmd.Flags().StringVar(&budgetOrg, "org", "", "organization id (required)")
	budgetCmd.Flags().IntVar(&budgetMonths, "history", 0, "include this many past periods")
	_ = budgetCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(budgetCmd)
}
