package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/gateway"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/routing"
)

var (
	routeOrg       string
	routeUser      string
	routePrompt    string
	routeModel     string
	routeFeature   string
	routeSourceApp string
	routeCode      bool
	routeRecent    bool
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Suggest a route for a prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Gateway.SuggestRoute(ctx, gateway.SuggestRequest{
			Org:    routeOrg,
			User:   routeUser,
			Prompt: routePrompt,
			Context: routing.ContextFlags{
				HasCodeSelection: routeCode,
				RecentSession:    routeRecent,
			},
			Feature:        routeFeature,
			SourceApp:      routeSourceApp,
			RequestedModel: routeModel,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeOrg, "org", "", "organization id (required)")
	routeCmd.Flags().StringVar(&routeUser, "user", "", "user id")
	routeCmd.Flags().StringVar(&routePrompt, "prompt", "", "prompt text, measured and discarded (required)")
	routeCmd.Flags().StringVar(&routeModel, "model", "", "requested model (default from config)")
	routeCmd.Flags().StringVar(&routeFeature, "feature", "", "feature tag for usage attribution")
	routeCmd.Flags().StringVar(&routeSourceApp, "source-app", "cli", "source application")
	routeCmd.Flags().BoolVar(&routeCode, "code-selection", false, "a code selection accompanies the prompt")
	routeCmd.Flags().BoolVar(&routeRecent, "recent-session", false, "a recent session exists")
	_ = routeCmd.MarkFlagRequired("org")
	_ = routeCmd.MarkFlagRequired("prompt")
	rootCmd.AddCommand(routeCmd)
}
