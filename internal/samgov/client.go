// Package samgov talks to the sam.gov search, detail, and organization APIs
// and turns their loosely shaped JSON into opportunity records.
package samgov

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/metrics"
)

// Fetch kinds, used for metrics and logging.
const (
	KindSearch       = "search"
	KindDetail       = "detail"
	KindOrganization = "organization"
)

// SearchResult carries the parsed page plus the raw body for diagnostics.
type SearchResult struct {
	URL       string
	Body      []byte
	Page      ResultPage
	DecodeErr error
}

// Client issues the three upstream requests through a crawler.Fetcher.
type Client struct {
	fetcher   crawler.Fetcher
	endpoints Endpoints
	clock     crawler.Clock
	random    func() int64
}

// Option customizes a Client.
type Option func(*Client)

// WithRandom overrides the cache-buster source.
func WithRandom(fn func() int64) Option {
	return func(c *Client) {
		c.random = fn
	}
}

// NewClient builds a Client. Empty endpoint fields fall back to production URLs.
func NewClient(fetcher crawler.Fetcher, endpoints Endpoints, clock crawler.Clock, opts ...Option) *Client {
	c := &Client{
		fetcher:   fetcher,
		endpoints: endpoints.withDefaults(),
		clock:     clock,
		random:    RandomCacheBuster,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints returns the resolved base URLs.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Search fetches and parses one page of results. Only transport failures are
// returned as errors; a body that is not JSON comes back as an unrecognized page.
func (c *Client) Search(ctx context.Context, taskID string, params crawler.TaskParameters) (SearchResult, error) {
	searchURL := c.endpoints.SearchURL(params, c.clock.Now(), c.random())
	resp, err := c.get(ctx, taskID, KindSearch, searchURL)
	if err != nil {
		return SearchResult{URL: searchURL}, err
	}
	result := SearchResult{URL: searchURL, Body: resp.Body}
	tree, err := Decode(resp.Body)
	if err != nil {
		result.DecodeErr = err
		result.Page = ResultPage{Outcome: OutcomeUnrecognized, Total: -1}
		return result, nil
	}
	result.Page = ParseResults(tree)
	return result, nil
}

// Detail fetches a stub's detail payload and extracts a record from it.
func (c *Client) Detail(
	ctx context.Context,
	taskID string,
	stubID string,
	searchType crawler.SearchType,
) (crawler.Opportunity, error) {
	resp, err := c.get(ctx, taskID, KindDetail, c.endpoints.DetailURL(stubID, c.random()))
	if err != nil {
		return crawler.Opportunity{}, err
	}
	tree, err := Decode(resp.Body)
	if err != nil {
		return crawler.Opportunity{}, fmt.Errorf("detail %s: %w", stubID, err)
	}
	return ExtractOpportunity(tree, c.endpoints.OpportunityLink(stubID), searchType), nil
}

// Department resolves an organization id to its top-level department name.
// An unresolvable name comes back as the sentinel without error.
func (c *Client) Department(ctx context.Context, taskID string, orgID string) (string, error) {
	resp, err := c.get(ctx, taskID, KindOrganization, c.endpoints.OrganizationURL(orgID, c.random()))
	if err != nil {
		return crawler.Sentinel, err
	}
	tree, err := Decode(resp.Body)
	if err != nil {
		return crawler.Sentinel, fmt.Errorf("organization %s: %w", orgID, err)
	}
	return DepartmentFromOrganization(tree), nil
}

// Enrich fills Department through the organization hop when the record has an
// organization id. Records without one are left untouched.
func (c *Client) Enrich(ctx context.Context, taskID string, opp *crawler.Opportunity) error {
	if !opp.HasOrganization() {
		opp.Department = crawler.Sentinel
		return nil
	}
	dept, err := c.Department(ctx, taskID, opp.OrganizationID)
	opp.Department = dept
	if err != nil {
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, taskID, kind, url string) (crawler.FetchResponse, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{
		TaskID:  taskID,
		URL:     url,
		Kind:    kind,
		Headers: headers,
	})
	if err != nil {
		metrics.ObserveFetch(kind, "error")
		return crawler.FetchResponse{}, fmt.Errorf("%s fetch: %w", kind, err)
	}
	metrics.ObserveFetch(kind, "ok")
	return resp, nil
}
