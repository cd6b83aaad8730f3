package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP stdio server",
	Long:  "Serves the routing tools over stdio for MCP clients. Logs go to stderr; stdout carries the protocol.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "mcp")
		if err != nil {
			return err
		}
		defer env.Close()

		return mcpserver.New(env.Gateway, version).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
