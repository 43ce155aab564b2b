package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-gap-wizard/internal/observability"
	"github.com/jonathan/skill-gap-wizard/internal/requirements"
)

func newRequirementsCmd(opts *rootOptions) *cobra.Command {
	var (
		req    requirements.Request
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Generate role requirements",
		Long: `Generate categorized requirements for a role using the requirements
service (REQUIREMENTS_URL) or, when that is unset, Gemini (GEMINI_API_KEY).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			gen, closeGen, err := newGenerator(cmd.Context(), cfg, opts.logger)
			if err != nil {
				return err
			}
			defer closeGen()
			if gen == nil {
				return fmt.Errorf("no requirements generator configured (set REQUIREMENTS_URL or GEMINI_API_KEY)")
			}

			reqs, err := gen.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reqs)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintRequirements(req.RoleName, reqs)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.RoleName, "role", "", "Role name (required)")
	cmd.Flags().StringVar(&req.Industry, "industry", "", "Industry")
	cmd.Flags().StringVar(&req.ExperienceLevel, "level", "", "Experience level: entry, mid, senior or lead")
	cmd.Flags().StringVar(&req.Objective, "objective", "", "Analysis objective tag")
	cmd.Flags().StringVar(&req.Scenario, "scenario", "", "Benchmark scenario tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print requirements as JSON")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
