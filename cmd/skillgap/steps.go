package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-gap-wizard/internal/observability"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

func newStepsCmd(opts *rootOptions) *cobra.Command {
	var (
		flowName string
		choice   string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Print the step table of a wizard flow",
		Long:  `Print every step of a flow with the screen it renders. --choice resolves the requirements branch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("flow") {
				flowName = cfg.Flow
			}
			flow, err := wizard.FlowByName(flowName)
			if err != nil {
				return err
			}

			sel := wizard.Selections{RequirementChoice: wizard.RequirementChoice(choice)}
			if choice != "" && !sel.RequirementChoice.Valid() {
				return fmt.Errorf("invalid --choice %q: %w", choice, wizard.ErrInvalidChoice)
			}

			if asJSON {
				screens := make([]wizard.Screen, 0, flow.Len())
				for i := 1; i <= flow.Len(); i++ {
					screens = append(screens, wizard.Render(flow, wizard.View{Index: i, Total: flow.Len(), Selections: sel}))
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(screens)
			}

			observability.NewPrinter(cmd.OutOrStdout()).PrintFlow(flow, sel)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowName, "flow", "", "Flow to print (default from config)")
	cmd.Flags().StringVar(&choice, "choice", "", "Requirement choice: have or define")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print screens as JSON")
	return cmd
}
