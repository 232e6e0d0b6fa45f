package samgov

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

const fullDetail = `{
  "postedDate": "2022-07-22T21:50:57.483+00:00",
  "data2": {
    "title": "Cloud Migration Services",
    "solicitationNumber": "W912-22-R-0001",
    "naics": [{"code": ["541512"]}],
    "type": "k",
    "placeOfPerformance": {"state": {"code": "CO"}, "city": {"name": "Denver"}},
    "solicitation": {"setAside": "8AN", "deadlines": {"response": "2022-04-08T16:00:00-04:00"}},
    "pointOfContact": [{"email": "co@example.gov"}],
    "organizationId": "100000123"
  }
}`

func TestExtractOpportunity_FullPayload(t *testing.T) {
	t.Parallel()

	opp := ExtractOpportunity(mustDecode(t, fullDetail), "https://sam.gov/opp/abc/view", crawler.SearchType8A)

	require.Equal(t, crawler.Opportunity{
		NoticeID:                "W912-22-R-0001",
		Title:                   "Cloud Migration Services",
		PublishDate:             "2022-07-22 14:50:57",
		ResponseDate:            "2022-04-08 13:00:00",
		Link:                    "https://sam.gov/opp/abc/view",
		ContractOpportunityType: "Combined Synopsis/Solicitation",
		OriginalSetAside:        "8(a) Sole Source (FAR 19.8)",
		NAICSCode:               "541512",
		Department:              crawler.Sentinel,
		State:                   "CO",
		City:                    "Denver",
		Email:                   "co@example.gov",
		SearchType:              crawler.SearchType8A,
		OrganizationID:          "100000123",
	}, opp)
}

func TestExtractOpportunity_MissingFieldsDegradeIndependently(t *testing.T) {
	t.Parallel()

	body := `{"data2":{"title":"Data Platform","naics":[],"type":"zz",
		"solicitation":{"setAside":"SBA"},"pointOfContact":"not-a-list","placeOfPerformance":{"state":null}}}`
	opp := ExtractOpportunity(mustDecode(t, body), "link", crawler.SearchTypeO)

	require.Equal(t, "Data Platform", opp.Title)
	require.Equal(t, "zz", opp.ContractOpportunityType)
	require.Equal(t, "SBA", opp.OriginalSetAside)
	require.Equal(t, crawler.Sentinel, opp.NoticeID)
	require.Equal(t, crawler.Sentinel, opp.NAICSCode)
	require.Equal(t, crawler.Sentinel, opp.Email)
	require.Equal(t, crawler.Sentinel, opp.State)
	require.Equal(t, crawler.Sentinel, opp.City)
	require.Equal(t, crawler.Sentinel, opp.ResponseDate)
	require.Equal(t, crawler.Sentinel, opp.PublishDate)
	require.Equal(t, crawler.Sentinel, opp.OrganizationID)
	require.False(t, opp.HasNoticeID())
	require.False(t, opp.HasOrganization())
}

func TestExtractOpportunity_NonObjectPayload(t *testing.T) {
	t.Parallel()

	opp := ExtractOpportunity(mustDecode(t, `[1,2,3]`), "", crawler.SearchTypeWOSB)
	require.Equal(t, crawler.NewOpportunity(crawler.SearchTypeWOSB), opp)
}

func TestDepartmentFromOrganization(t *testing.T) {
	t.Parallel()

	require.Equal(t, "DEPT OF DEFENSE",
		DepartmentFromOrganization(mustDecode(t, `{"_embedded":[{"org":{"l1Name":"DEPT OF DEFENSE"}}]}`)))
	require.Equal(t, "HOMELAND SECURITY, DEPARTMENT OF",
		DepartmentFromOrganization(mustDecode(t, `{"org":{"l1Name":"HOMELAND SECURITY, DEPARTMENT OF"}}`)))
	require.Equal(t, crawler.Sentinel, DepartmentFromOrganization(mustDecode(t, `{"_embedded":[]}`)))
}

func TestDecodeLookups(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Presolicitation", DecodeNoticeType("p"))
	require.Equal(t, "Justification and Approval (J&A)", DecodeNoticeType("j"))
	require.Equal(t, "P", DecodeNoticeType("P"))
	require.Equal(t, "8(a) Set-Aside (FAR 19.8)", DecodeSetAside("8A"))
	require.Equal(t, "WOSB", DecodeSetAside("WOSB"))
}
