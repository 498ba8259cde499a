package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/fatih/color"
	"github.com/samber/lo"
)

const (
	redirectLabelWidth = 28
	windowLabelWidth   = 14
	maxBarWidth        = 50
)

// TextOptions controls the text renderer
type TextOptions struct {
	Color bool
}

// WriteText renders the report in the terminal layout
func WriteText(w io.Writer, r *Report, opts TextOptions) error {
	heading := color.New(color.FgRed, color.Bold, color.Underline)
	section := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)
	for _, c := range []*color.Color{heading, section, warn} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	var b strings.Builder

	for _, n := range r.Numbers {
		fmt.Fprintf(&b, "\nInternal number %s (%d total logs)\n\n", n.Number, n.Stats.Total)

		if redirects := n.Redirects(); len(redirects) > 0 {
			for _, rc := range redirects {
				fmt.Fprintf(&b, "%*s: %d\n", redirectLabelWidth, rc.Label, rc.Count)
			}
			b.WriteString("\n")
		}

		s := n.Stats
		writeWindows(&b, heading.Sprint("Incoming calls"), r.MonthLabel, s.IncomingWeek, s.IncomingMonth, s.Incoming60)
		writeWindows(&b, heading.Sprint("Outgoing calls"), r.MonthLabel, s.OutgoingWeek, s.OutgoingMonth, s.Outgoing60)
	}

	if r.Earliest != nil {
		fmt.Fprintf(&b, "\n%s\n", section.Sprintf("Calls per day (%s to %s)",
			r.Earliest.Format(types.DateLayout), r.Latest.Format(types.DateLayout)))
		writeHistogram(&b, r.Daily)
	} else {
		fmt.Fprintf(&b, "\n%s\n", section.Sprint("No plain calls in export"))
	}

	if len(r.AnomalyCounts) > 0 {
		fmt.Fprintf(&b, "\n%s\n", warn.Sprintf("Anomalies (%d)", len(r.Anomalies)))
		for _, kc := range r.AnomalyCounts {
			fmt.Fprintf(&b, "  %s: %d\n", kc.Kind, kc.Count)
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// PlainText renders the report without colour
func PlainText(r *Report) string {
	var b strings.Builder
	_ = WriteText(&b, r, TextOptions{})
	return b.String()
}

func writeWindows(b *strings.Builder, title, monthLabel string, week, month, sixty int) {
	fmt.Fprintf(b, "%s\n", title)
	fmt.Fprintf(b, "%*s: %d\n", windowLabelWidth, "Past week", week)
	fmt.Fprintf(b, "%*s: %d\n", windowLabelWidth, monthLabel, month)
	fmt.Fprintf(b, "%*s: %d\n\n", windowLabelWidth, "Last 60 days", sixty)
}

func writeHistogram(b *strings.Builder, daily []types.DayCount) {
	peak := lo.Max(lo.Map(daily, func(d types.DayCount, _ int) int { return d.Count }))
	width := len(fmt.Sprint(peak))

	for _, d := range daily {
		bar := 0
		if peak > 0 {
			bar = d.Count * maxBarWidth / peak
		}
		if bar == 0 && d.Count > 0 {
			bar = 1
		}
		fmt.Fprintf(b, "  %s %*d %s\n", d.Date, width, d.Count, strings.Repeat("#", bar))
	}
}
