package samgov

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// Default public endpoints.
const (
	DefaultSearchURL       = "https://sam.gov/api/prod/sgs/v1/search/"
	DefaultDetailURL       = "https://sam.gov/api/prod/opps/v2/opportunities"
	DefaultOrganizationURL = "https://sam.gov/api/prod/federalorganizations/v1/organizations"
	DefaultLinkURL         = "https://sam.gov/opp"

	// UserAgent is sent on every upstream request.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/70.0.3538.77 Safari/537.36"
)

// searchFilters maps search types to their extra query parameter.
var searchFilters = map[crawler.SearchType]string{
	crawler.SearchType8A:   "set_aside=8A,8AN",
	crawler.SearchTypeRP:   "notice_type=r,p",
	crawler.SearchTypeO:    "notice_type=o",
	crawler.SearchTypeWOSB: "set_aside=WOSB,EDWOSB",
}

// Endpoints holds the base URLs of the upstream APIs.
type Endpoints struct {
	SearchBase       string `mapstructure:"search_url"`
	DetailBase       string `mapstructure:"detail_url"`
	OrganizationBase string `mapstructure:"organization_url"`
	LinkBase         string `mapstructure:"link_url"`
}

// DefaultEndpoints returns the production sam.gov endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SearchBase:       DefaultSearchURL,
		DetailBase:       DefaultDetailURL,
		OrganizationBase: DefaultOrganizationURL,
		LinkBase:         DefaultLinkURL,
	}
}

func (e Endpoints) withDefaults() Endpoints {
	def := DefaultEndpoints()
	if e.SearchBase == "" {
		e.SearchBase = def.SearchBase
	}
	if e.DetailBase == "" {
		e.DetailBase = def.DetailBase
	}
	if e.OrganizationBase == "" {
		e.OrganizationBase = def.OrganizationBase
	}
	if e.LinkBase == "" {
		e.LinkBase = def.LinkBase
	}
	return e
}

// SearchFilter returns the filter parameter for a search type, or "".
func SearchFilter(searchType crawler.SearchType) string {
	return searchFilters[searchType]
}

// SearchURL builds the search request. The response window runs from today
// to a year out.
func (e Endpoints) SearchURL(params crawler.TaskParameters, now time.Time, random int64) string {
	var b strings.Builder
	b.WriteString(e.SearchBase)
	b.WriteString("?random=")
	b.WriteString(strconv.FormatInt(random, 10))
	b.WriteString("&index=opp")
	fmt.Fprintf(&b, "&page=%d", params.ZeroBasedPage())
	b.WriteString("&sort=-modifiedDate")
	fmt.Fprintf(&b, "&size=%d", params.PageSize)
	b.WriteString("&mode=search&responseType=json&is_active=true")
	b.WriteString("&q=")
	b.WriteString(url.QueryEscape(params.Query))
	b.WriteString("&qMode=EXACT")
	if filter := SearchFilter(params.SearchType); filter != "" {
		b.WriteString("&")
		b.WriteString(filter)
	}
	b.WriteString("&response_date.to=")
	b.WriteString(now.AddDate(0, 0, 365).Format("2006-01-02"))
	b.WriteString("+08:00")
	b.WriteString("&response_date.from=")
	b.WriteString(now.Format("2006-01-02"))
	b.WriteString("+08:00")
	return b.String()
}

// DetailURL builds the detail request for a stub id.
func (e Endpoints) DetailURL(stubID string, random int64) string {
	return fmt.Sprintf("%s/%s?random=%d", strings.TrimRight(e.DetailBase, "/"), url.PathEscape(stubID), random)
}

// OrganizationURL builds the organization request.
func (e Endpoints) OrganizationURL(orgID string, random int64) string {
	return fmt.Sprintf("%s/%s?random=%d&sort=name",
		strings.TrimRight(e.OrganizationBase, "/"), url.PathEscape(orgID), random)
}

// OpportunityLink is the public page for a stub id.
func (e Endpoints) OpportunityLink(stubID string) string {
	return fmt.Sprintf("%s/%s/view", strings.TrimRight(e.LinkBase, "/"), stubID)
}

// RandomCacheBuster mirrors the upstream UI's random query parameter.
func RandomCacheBuster() int64 {
	const low = int64(1e13)
	return low + rand.Int64N(low+1)
}
