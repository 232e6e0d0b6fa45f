// Package report renders counters and opportunity listings as terminal
// tables or CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// OpportunityHeader is the CSV export column order.
var OpportunityHeader = []string{
	"Notice ID", "Title", "Department", "Publish Date", "Response Date",
	"Type", "Set-Aside", "NAICS", "State", "City", "Email", "Search Type", "Link",
}

func opportunityRecord(o crawler.StoredOpportunity) []string {
	return []string{
		o.NoticeID, o.Title, o.Department, o.PublishDate, o.ResponseDate,
		o.ContractOpportunityType, o.OriginalSetAside, o.NAICSCode,
		o.State, o.City, o.Email, string(o.SearchType), o.Link,
	}
}

// Counters writes a two-column outcome table for one task.
func Counters(w io.Writer, taskID string, status crawler.TaskStatus, c crawler.TaskCounters) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("task %s: %s", taskID, status))
	t.AppendHeader(table.Row{"Outcome", "Records"})
	t.AppendRows([]table.Row{
		{"found", c.Found},
		{"fetched", c.Fetched},
		{"stored", c.Stored},
		{"  inserted", c.Inserted},
		{"  updated", c.Updated},
		{"dropped: no notice id", c.DroppedNoID},
		{"dropped: defense", c.DroppedDefense},
		{"dropped: deadline", c.DroppedDeadline},
		{"dropped: relevance", c.DroppedRelevance},
		{"skipped stubs", c.Skipped},
		{"errors", c.Errors},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Opportunities writes one page of stored opportunities as a table. Long
// titles are wrapped so the table stays readable.
func Opportunities(w io.Writer, page crawler.OpportunityPage) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Notice ID", "Title", "Department", "Response Date", "Set-Aside", "State"})
	for _, o := range page.Items {
		t.AppendRow(table.Row{o.NoticeID, o.Title, o.Department, o.ResponseDate, o.OriginalSetAside, o.State})
	}
	t.AppendFooter(table.Row{"", "", "", "", "page", fmt.Sprintf("%d/%d (%d total)", page.Page, page.Pages, page.Total)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 60},
		{Number: 3, WidthMax: 40},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// OpportunitiesCSV writes every column of items as RFC 4180 CSV with a
// header row.
func OpportunitiesCSV(w io.Writer, items []crawler.StoredOpportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OpportunityHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, o := range items {
		if err := cw.Write(opportunityRecord(o)); err != nil {
			return fmt.Errorf("write csv row %s: %w", o.NoticeID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
