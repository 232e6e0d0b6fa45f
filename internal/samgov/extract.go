package samgov

import (
	"strings"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// fieldRule binds one record field to its source path and an optional decoder.
type fieldRule struct {
	target func(*crawler.Opportunity) *string
	path   []any
	decode func(string) string
}

var detailRules = []fieldRule{
	{target: func(o *crawler.Opportunity) *string { return &o.Title }, path: []any{"data2", "title"}},
	{target: func(o *crawler.Opportunity) *string { return &o.NoticeID }, path: []any{"data2", "solicitationNumber"}},
	{target: func(o *crawler.Opportunity) *string { return &o.NAICSCode }, path: []any{"data2", "naics", 0, "code", 0}},
	{
		target: func(o *crawler.Opportunity) *string { return &o.ContractOpportunityType },
		path:   []any{"data2", "type"},
		decode: DecodeNoticeType,
	},
	{target: func(o *crawler.Opportunity) *string { return &o.State }, path: []any{"data2", "placeOfPerformance", "state", "code"}},
	{target: func(o *crawler.Opportunity) *string { return &o.City }, path: []any{"data2", "placeOfPerformance", "city", "name"}},
	{
		target: func(o *crawler.Opportunity) *string { return &o.OriginalSetAside },
		path:   []any{"data2", "solicitation", "setAside"},
		decode: DecodeSetAside,
	},
	{
		target: func(o *crawler.Opportunity) *string { return &o.ResponseDate },
		path:   []any{"data2", "solicitation", "deadlines", "response"},
		decode: NormalizeOffsetTimestamp,
	},
	{
		target: func(o *crawler.Opportunity) *string { return &o.PublishDate },
		path:   []any{"postedDate"},
		decode: NormalizeFractionalTimestamp,
	},
	{target: func(o *crawler.Opportunity) *string { return &o.Email }, path: []any{"data2", "pointOfContact", 0, "email"}},
	{target: func(o *crawler.Opportunity) *string { return &o.OrganizationID }, path: []any{"data2", "organizationId"}},
}

// extractOrDefault returns the scalar at path, or the sentinel when any step is missing.
func extractOrDefault(tree any, path ...any) string {
	if s, ok := stringAt(tree, path...); ok {
		return strings.TrimSpace(s)
	}
	return crawler.Sentinel
}

// ExtractOpportunity builds a record from a detail payload. Each field is
// extracted independently; failures leave the sentinel in place. Department
// is left as the sentinel for the organization hop to fill.
func ExtractOpportunity(tree any, link string, searchType crawler.SearchType) crawler.Opportunity {
	opp := crawler.NewOpportunity(searchType)
	for _, rule := range detailRules {
		value := extractOrDefault(tree, rule.path...)
		if value != crawler.Sentinel && rule.decode != nil {
			value = rule.decode(value)
		}
		*rule.target(&opp) = value
	}
	if link != "" {
		opp.Link = link
	}
	opp.Normalize()
	return opp
}

// DepartmentFromOrganization reads the top-level department name from an
// organization payload.
func DepartmentFromOrganization(tree any) string {
	if name := extractOrDefault(tree, "_embedded", 0, "org", "l1Name"); name != crawler.Sentinel {
		return name
	}
	return extractOrDefault(tree, "org", "l1Name")
}
