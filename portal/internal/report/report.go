// Package report renders run summaries as terminal tables.
package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hazyhaar/baextract/portal/internal/batch"
	"github.com/hazyhaar/baextract/portal/internal/crawl"
	"github.com/hazyhaar/baextract/portal/record"
)

func newTable(title string) table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	// Footers carry durations and reasons; keep their case.
	w.Style().Format.Footer = text.FormatDefault
	if title != "" {
		w.SetTitle(title)
	}
	return w
}

// Batch renders the tally of a batch run, failures grouped by kind.
func Batch(sum batch.Summary) string {
	w := newTable("Batch " + sum.RunID)
	w.AppendHeader(table.Row{"Outcome", "Codes"})
	w.AppendRows([]table.Row{
		{"Succeeded", sum.Succeeded},
		{"  via footer search", sum.Fallback},
		{"Failed", sum.Failed},
	})
	kinds := make([]record.Kind, 0, len(sum.Kinds))
	for k := range sum.Kinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		w.AppendRow(table.Row{"  " + string(k), sum.Kinds[k]})
	}
	w.AppendFooter(table.Row{"Total", sum.Total})
	w.AppendFooter(table.Row{"Elapsed", sum.Elapsed.Round(time.Second)})
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight}})
	return w.Render()
}

// Failures lists failed codes with their reason.
func Failures(fails []record.Failure) string {
	w := newTable("Failures")
	w.AppendHeader(table.Row{"Code", "Kind", "Reason"})
	for _, f := range fails {
		w.AppendRow(table.Row{f.Code, f.Kind, f.Reason})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 60}})
	return w.Render()
}

// Crawl renders the reconciliation of a crawl with the listing counters.
func Crawl(sum crawl.Summary) string {
	w := newTable("Crawl")
	w.AppendHeader(table.Row{"Check", "Expected", "Actual", "Status"})
	for _, c := range sum.Checks() {
		expected := "-"
		if c.Expected != nil {
			expected = fmt.Sprint(*c.Expected)
		}
		w.AppendRow(table.Row{c.Name, expected, c.Actual, c.Status()})
	}
	complete := "no"
	if sum.Complete() {
		complete = "yes"
	}
	w.AppendFooter(table.Row{"Ended", sum.Reason, "", ""})
	w.AppendFooter(table.Row{"Complete", complete, "", ""})
	w.AppendFooter(table.Row{"Elapsed", sum.Elapsed.Round(time.Second), "", ""})
	return w.Render()
}

// Page renders the codes of one listing page, numbered.
func Page(page int, codes []string) string {
	w := newTable(fmt.Sprintf("Page %d", page))
	w.AppendHeader(table.Row{"#", "Activity code"})
	for i, c := range codes {
		w.AppendRow(table.Row{i + 1, c})
	}
	return w.Render()
}

// Record renders one result as field/value rows.
func Record(res record.Result, t record.Text, langs [2]string) string {
	w := newTable("Activity " + res.Code)
	if !res.OK() {
		if res.Failure == nil {
			w.AppendRow(table.Row{"Status", "error"})
			return w.Render()
		}
		w.AppendRows([]table.Row{
			{"Status", "error"},
			{"Kind", res.Failure.Kind},
			{"Reason", res.Failure.Reason},
		})
		return w.Render()
	}
	row := record.FormatRow(*res.Record, t)
	w.AppendRows([]table.Row{
		{"Code", row.Code},
		{"Name (" + langs[0] + ")", row.PrimaryName},
		{"Name (" + langs[1] + ")", row.SecondaryName},
		{"Locations", row.Locations},
		{"Eligible", row.Eligibility},
		{"Approvals", row.Approvals},
		{"Strategy", res.Strategy},
	})
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 80}})
	return w.Render()
}
