package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/report"
)

type crawlOptions struct {
	searchType string
	page       int
	size       int
	query      string
}

// newCrawlCmd runs one search page in-process and prints its counters.
func newCrawlCmd() *cobra.Command {
	opts := crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl task in-process",
		Long: `Fetches one page of sam.gov search results, runs every record through
the filter chain, stores the survivors, and prints the outcome counters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.searchType, "type", string(crawler.SearchType8A), "search type: 8A, RP, O, WOSB")
	cmd.Flags().IntVar(&opts.page, "page", 1, "1-based result page")
	cmd.Flags().IntVar(&opts.size, "size", 200, "results per page")
	cmd.Flags().StringVar(&opts.query, "query", "", "free-text query")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	params := crawler.TaskParameters{
		SearchType: crawler.ParseSearchType(opts.searchType),
		Page:       opts.page,
		PageSize:   opts.size,
		Query:      opts.query,
	}
	task, err := app.RunTask(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	report.Counters(cmd.OutOrStdout(), task.ID, task.Status, task.Counters)
	if task.Status != crawler.TaskStatusCompleted {
		app.Logger().Warn("crawl did not complete",
			zap.String("task_id", task.ID),
			zap.String("status", string(task.Status)),
			zap.String("error", task.ErrorText),
		)
		return fmt.Errorf("crawl %s: %s", task.Status, task.ErrorText)
	}
	return nil
}
