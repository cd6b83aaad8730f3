package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/policy"
)

var (
	policyOrg  string
	policyInit bool
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the effective budget policy for an org as YAML",
	Long:  "Resolves the org's policy from the policy directory, falling back to the built-in defaults. Output is a valid policy file. With --init, writes the default policy file into the policy directory instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		if policyInit {
			if cfg.Policy.Dir == "" {
				return eris.New("policy.dir is not configured")
			}
			path, err := policy.WriteDefault(cfg.Policy.Dir, policyOrg)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		}

		pol := policy.Default(policyOrg)
		source := "defaults"
		if cfg.Policy.Dir != "" {
			provider, err := policy.NewDirProvider(cfg.Policy.Dir)
			if err != nil {
				return eris.Wrapf(err, "load policies from %s", cfg.Policy.Dir)
			}
			if p, ok := provider.Get(policyOrg); ok {
				pol = p
				source = policy.FileName(policyOrg)
			}
		}
		zap.L().Debug("policy resolved",
			zap.String("org", policyOrg),
			zap.String("source", source),
		)

		out, err := yaml.Marshal(map[string]model.BudgetPolicy{"budget": pol})
		if err != nil {
			return eris.Wrap(err, "encode policy")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	policyCmd.Flags().StringVar(&policyOrg, "org", "", "organization id (required)")
	policyCmd.Flags().BoolVar(&policyInit, "init", false, "write the default policy file into the policy directory")
	_ = policyCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(policyCmd)
}
