package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/services"
)

type searchLine struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Distance int    `json:"distance"`
}

func newSearchCmd(a *app) *cobra.Command {
	var xlsx string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search members, families, assemblies, units and cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ajax.NewClient(ajax.OptionsFromConfiguration(a.conf))
			if err != nil {
				return withCode(exitUsage, err)
			}
			hits, err := services.NewSearchService(client).Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if limit > 0 && len(hits) > limit {
				hits = hits[:limit]
			}

			if xlsx != "" {
				f, err := os.Create(xlsx)
				if err != nil {
					return withCode(exitFailure, fmt.Errorf("create %s: %w", xlsx, err))
				}
				if err := services.ExportSearchXLSX(f, hits); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			}
			for _, h := range hits {
				if err := writeJSONLine(cmd.OutOrStdout(), searchLine{
					Kind:     h.Kind.String(),
					ID:       h.ID.String(),
					Name:     h.Name,
					Email:    h.Email,
					Distance: h.Distance,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the hits to this .xlsx file")
	cmd.Flags().IntVar(&limit, "limit", 0, "Keep only the best N hits")
	return cmd
}
