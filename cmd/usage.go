package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/analytics"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

var (
	usageOrg  string
	usageBy   string
	usageDays int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize usage and costs for an org",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !analytics.ValidDimension(usageBy) {
			return eris.Errorf("unknown dimension %q (want user, feature, model, or channel)", usageBy)
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		until := time.Now().UTC()
		since := until.AddDate(0, 0, -usageDays)
		items, err := env.Gateway.GetUsageSummary(ctx, usageOrg, since, until, usageBy)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No usage recorded.")
			return nil
		}

		formatUsage(os.Stdout, usageBy, items)
		return nil
	},
}

func formatUsage(out io.Writer, by string, items []model.UsageSummaryItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tREQUESTS\tTOKENS_IN\tTOKENS_OUT\tCOST_USD\tP95_MS\n", strings.ToUpper(by))
	_, _ = fmt.Fprintln(w, "----\t--------\t---------\t----------\t--------\t------")

	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\t%d\n",
			item.Key, item.Requests, item.TokensIn, item.TokensOut, item.CostUSD, item.LatencyMSP95)
	}
	_ = w.Flush()
}

func init() {
	usageCmd.Flags().StringVar(&usageOrg, "org", "", "organization id (required)")
	usageCmd.Flags().StringVar(&usageBy, "by", "user", "group by: user, feature, model, or channel")
	usageCmd.Flags().IntVar(&usageDays, "days", 30, "trailing window in days")
	_ = usageCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(usageCmd)
}
