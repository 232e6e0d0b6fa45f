// Package cmd defines the samcrawler CLI commands.
//
// Architecture overview:
//   - serve runs the HTTP API and the worker pool. Submitted crawls are stored as pending tasks,
//     queued on a bounded in-memory queue, and run by a fixed set of workers.
//   - A task runs the search, detail and organization fetches through a rate-limited, retrying
//     Colly fetcher, filters each record (defense, deadline, relevance), and upserts survivors
//     keyed by notice id into Postgres or the in-memory store.
//   - crawl runs one task in-process and prints its counters. opportunities lists stored records
//     as a table or CSV. hash-password produces bcrypt hashes for the auth.users config.
//   - Configuration comes from .env, SAMCRAWLER_* environment variables, and an optional YAML
//     file passed with --config.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/config"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/server"
)

// App is what commands need from the built application. Tests inject a fake.
type App interface {
	Run(ctx context.Context) error
	RunTask(ctx context.Context, params crawler.TaskParameters) (crawler.CrawlTask, error)
	Opportunities() crawler.OpportunityStore
	Logger() *zap.Logger
	Close(ctx context.Context)
}

type appKeyType struct{}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

// loadConfig is swapped in tests to avoid reading the environment.
var loadConfig = config.Load

// newRootCmd builds the command tree. The returned func closes whatever
// application a subcommand built; cobra skips PostRun hooks on error.
func newRootCmd() (*cobra.Command, func(context.Context)) {
	var (
		cfgFile string
		built   App
	)

	root := &cobra.Command{
		Use:   "samcrawler",
		Short: "Crawls sam.gov contract opportunities into a filtered store.",
		Long: `samcrawler searches sam.gov for contract opportunities, drops defense,
near-deadline and irrelevant notices, and keeps the rest keyed by notice id.
It runs as an authenticated HTTP service or as one-off CLI commands.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ./config.yaml, /etc/samcrawler, $HOME/.samcrawler)")

	withApp := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		app, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application services: %w", err)
		}
		built = app
		cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, app))
		return nil
	}

	for _, sub := range []*cobra.Command{newServeCmd(), newCrawlCmd(), newOpportunitiesCmd()} {
		sub.PreRunE = withApp
		root.AddCommand(sub)
	}
	root.AddCommand(newHashPasswordCmd())

	closeApp := func(ctx context.Context) {
		if built != nil {
			built.Close(ctx)
			built = nil
		}
	}
	return root, closeApp
}

func resolveApp(ctx context.Context) (App, error) {
	app, ok := ctx.Value(appKeyType{}).(App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return app, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, closeApp := newRootCmd()
	defer closeApp(context.WithoutCancel(ctx))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return err
	}
	return nil
}
