package samgov

// Outcome classifies how a search payload was understood.
type Outcome string

// Parse outcomes.
const (
	OutcomeMatched      Outcome = "matched"
	OutcomeEmpty        Outcome = "empty"
	OutcomeUnrecognized Outcome = "unrecognized"
)

// ResultPage is the parsed form of one search response.
type ResultPage struct {
	Outcome Outcome
	Shape   string
	IDs     []string
	// Skipped counts stubs that carried none of the known id fields.
	Skipped int
	// Total is the server-reported element count, or -1 when absent.
	Total int
}

type shapeMatcher struct {
	name string
	path []any
}

// Tried in order; the first container present as an array wins.
var resultShapes = []shapeMatcher{
	{name: "embedded_results", path: []any{"_embedded", "results"}},
	{name: "page_content", path: []any{"page", "content"}},
	{name: "content", path: []any{"content"}},
	{name: "data", path: []any{"data"}},
	{name: "opportunities", path: []any{"opportunities"}},
}

var stubIDKeys = []string{"_id", "id", "noticeId"}

// ParseResults extracts stub ids from a decoded search response.
func ParseResults(tree any) ResultPage {
	page := ResultPage{Total: reportedTotal(tree)}
	for _, shape := range resultShapes {
		v, ok := lookup(tree, shape.path...)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		page.Outcome = OutcomeMatched
		page.Shape = shape.name
		page.IDs = make([]string, 0, len(items))
		for _, item := range items {
			id, ok := stubID(item)
			if !ok {
				page.Skipped++
				continue
			}
			page.IDs = append(page.IDs, id)
		}
		return page
	}
	if page.Total == 0 {
		page.Outcome = OutcomeEmpty
		return page
	}
	page.Outcome = OutcomeUnrecognized
	return page
}

func stubID(item any) (string, bool) {
	for _, key := range stubIDKeys {
		if id, ok := stringAt(item, key); ok {
			return id, true
		}
	}
	return "", false
}

func reportedTotal(tree any) int {
	if n, ok := numberAt(tree, "page", "totalElements"); ok {
		return int(n)
	}
	if n, ok := numberAt(tree, "totalElements"); ok {
		return int(n)
	}
	return -1
}
