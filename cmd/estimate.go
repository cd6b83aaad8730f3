package main

import (
	"encoding/json"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/cost"
)

var (
	estimatePrompt string
	estimateModels []string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate prompt cost across candidate models",
	Long:  "Projects token counts, cost, and latency for a prompt against candidate models. Works offline; the prompt is measured and discarded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		models := estimateModels
		if len(models) == 0 {
			models = cost.DefaultCandidates()
		}

		calc := cost.NewCalculator(cfg.Rates())
		estimates := calc.ForPrompt(utf8.RuneCountInString(estimatePrompt), models)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(estimates)
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimatePrompt, "prompt", "", "prompt text to size (required)")
	estimateCmd.Flags().StringSliceVar(&estimateModels, "models", nil, "candidate models (default: the stock table)")
	_ = estimateCmd.MarkFlagRequired("prompt")
	rootCmd.AddCommand(estimateCmd)
}
