package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-gap-wizard/internal/observability"
	"github.com/jonathan/skill-gap-wizard/internal/roles"
)

func newRolesCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "roles [query]",
		Short: "Search the role catalog",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.RolesURL == "" {
				return fmt.Errorf("roles_url is not configured (set ROLES_URL)")
			}

			client, err := roles.NewClient(cfg.RolesURL, roles.Options{CacheSize: cfg.RoleCacheSize, Logger: opts.logger})
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			found, err := client.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(found)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintRoles(query, found)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print roles as JSON")
	return cmd
}
