// Package report renders a harvest result as a human-readable summary.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jmylchreest/promoscout/pkg/campaign"
)

const (
	// SampleSize is how many labelled entities the summary lists.
	SampleSize = 5
	// LabelWidth is the rune limit for a sample label.
	LabelWidth = 50
)

// Render writes the metrics table followed by a short sample of entities.
func Render(w io.Writer, r *campaign.Result) error {
	if r == nil {
		return fmt.Errorf("nothing to render")
	}

	m := r.Metrics
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetTitle("Campaign harvest")
	summary.SetStyle(table.StyleRounded)
	summary.AppendRows([]table.Row{
		{"Run", r.RunID},
		{"Route", r.Route},
		{"Captured", r.CapturedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Entities", humanize.Comma(int64(m.Total))},
		{"Available", humanize.Comma(int64(m.AvailableCount))},
	})
	if m.AverageDiscount != nil {
		summary.AppendRow(table.Row{"Average discount", percent(*m.AverageDiscount)})
	}
	if m.MaxDiscount != nil {
		summary.AppendRow(table.Row{"Max discount", percent(*m.MaxDiscount)})
	}
	summary.Render()

	samples := r.Samples(SampleSize)
	if len(samples) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	grid := table.NewWriter()
	grid.SetOutputMirror(w)
	grid.SetStyle(table.StyleRounded)
	grid.AppendHeader(table.Row{"#", "Label", "Price", "Discount", "Stock"})
	grid.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, e := range samples {
		grid.AppendRow(table.Row{e.Index, Truncate(e.Label, LabelWidth), price(e), discount(e), stock(e)})
	}
	grid.Render()
	return nil
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}

func percent(v float64) string {
	return humanize.FormatFloat("#,###.##", v) + "%"
}

func price(e campaign.Entity) string {
	switch {
	case e.ReducedValue != "" && e.OriginalValue != "":
		return e.OriginalValue + " → " + e.ReducedValue
	case e.ReducedValue != "":
		return e.ReducedValue
	default:
		return e.OriginalValue
	}
}

func discount(e campaign.Entity) string {
	if e.DiscountDelta == nil {
		return "-"
	}
	return percent(*e.DiscountDelta)
}

func stock(e campaign.Entity) string {
	if e.Available {
		return "yes"
	}
	return "no"
}
