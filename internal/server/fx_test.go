package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/config"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/filter"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/samgov"
	memoryStorage "github.com/JakeFAU/sam-opportunity-crawler/internal/storage/memory"
)

func testConfig(upstream string) config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Crawler: config.CrawlerConfig{Concurrency: 2, Workers: 1, QueueDepth: 4, DefaultPageSize: 10},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 5, ConnectTimeoutSeconds: 1},
		SamGov: samgov.Endpoints{
			SearchBase:       upstream + "/search/",
			DetailBase:       upstream + "/opps",
			OrganizationBase: upstream + "/orgs",
			LinkBase:         "https://sam.gov/opp",
		},
		Filter:  filter.Config{DeadlineThresholdDays: 3},
		Storage: config.StorageConfig{Backend: config.StorageMemory, Prefix: "dumps"},
		Logging: config.LoggingConfig{Level: "error"},
	}
}

func fakeSamGov(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/search/"):
			_, _ = w.Write([]byte(`{"_embedded":{"results":[{"_id":"X1"},{"_id":"X2"}]}}`))
		case r.URL.Path == "/opps/X1":
			_, _ = w.Write([]byte(`{"data2":{"title":"Cloud Migration Services","solicitationNumber":"N-1",
				"organizationId":"42","solicitation":{"deadlines":{"response":"2099-04-08T16:00:00-04:00"}}}}`))
		case r.URL.Path == "/opps/X2":
			_, _ = w.Write([]byte(`{"data2":{"title":"Janitorial Services","solicitationNumber":"N-2",
				"solicitation":{"deadlines":{"response":"2099-04-08T16:00:00-04:00"}}}}`))
		case r.URL.Path == "/orgs/42":
			_, _ = w.Write([]byte(`{"_embedded":[{"org":{"l1Name":"STATE, DEPARTMENT OF"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuild_InMemoryDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	app, err := Build(ctx, testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	require.IsType(t, &memoryStorage.TaskStore{}, app.Tasks())
	require.IsType(t, &memoryStorage.OpportunityStore{}, app.Opportunities())
	require.Len(t, app.workers, 1)
	require.NoError(t, app.ready(ctx))
}

func TestBuild_RejectsUnknownClassifier(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Classifier.Mode = "oracle"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuild_LocalStorage(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Storage.Backend = config.StorageLocal
	cfg.Storage.Local.BaseDir = t.TempDir()
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	app.Close(context.Background())
}

func TestApp_RunTaskEndToEnd(t *testing.T) {
	t.Parallel()

	upstream := fakeSamGov(t)
	ctx := context.Background()
	app, err := Build(ctx, testConfig(upstream.URL))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	task, err := app.RunTask(ctx, crawler.TaskParameters{SearchType: crawler.SearchType8A, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusCompleted, task.Status)
	require.Equal(t, 2, task.Counters.Found)
	require.Equal(t, 1, task.Counters.Inserted)
	require.Equal(t, 1, task.Counters.DroppedRelevance)

	stored, err := app.Opportunities().Get(ctx, "N-1")
	require.NoError(t, err)
	require.Equal(t, "STATE, DEPARTMENT OF", stored.Department)
	require.Equal(t, "https://sam.gov/opp/X1/view", stored.Link)
}

func TestApp_RunTaskRejectsInvalidParameters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	app, err := Build(ctx, testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	_, err = app.RunTask(ctx, crawler.TaskParameters{Page: 0, PageSize: 10})
	require.ErrorIs(t, err, crawler.ErrInvalidParameters)
}
