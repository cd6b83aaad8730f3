package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/config"
)

// version is stamped by the release build.
var version = "0.1.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "promptgo",
	Short:   "Prompt routing and budget enforcement for dev teams",
	Long:    "Routes prompts to web, agent, ask, or direct, enforces monthly org budgets, and learns channel weights from usage feedback. Raw prompt text never leaves the process.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
