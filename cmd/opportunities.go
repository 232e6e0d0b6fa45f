package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/report"
)

func newOpportunitiesCmd() *cobra.Command {
	var (
		query crawler.OpportunityQuery
		csv   bool
	)
	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps"},
		Short:   "Lists stored opportunities",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			page, err := app.Opportunities().List(cmd.Context(), query.Normalize())
			if err != nil {
				return fmt.Errorf("list opportunities: %w", err)
			}
			if csv {
				return report.OpportunitiesCSV(cmd.OutOrStdout(), page.Items)
			}
			report.Opportunities(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().IntVar(&query.Page, "page", 1, "1-based page")
	cmd.Flags().IntVar(&query.PerPage, "per-page", crawler.DefaultPerPage, "rows per page (max 500)")
	cmd.Flags().StringVar(&query.SortBy, "sort-by", "id", "sort column")
	cmd.Flags().StringVar(&query.SortDir, "sort-dir", "desc", "asc or desc")
	cmd.Flags().StringVar(&query.Department, "department", "", "department substring filter")
	cmd.Flags().BoolVar(&csv, "csv", false, "write CSV instead of a table")
	return cmd
}
