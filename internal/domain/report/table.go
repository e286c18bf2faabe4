package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/stats"
)

// RenderStatsTable renders the per-type breakdown and the per-gender derived
// metrics as two plain-text tables.
func RenderStatsTable(s stats.AssemblyStats, d stats.DerivedMetrics) string {
	breakdown := table.NewWriter()
	breakdown.SetStyle(table.StyleLight)
	header := table.Row{"Type"}
	for _, g := range model.ReportingGenders() {
		header = append(header, GenderLabel(g))
	}
	header = append(header, "Total", "Share")
	breakdown.AppendHeader(header)

	for _, typ := range model.ChartOrder() {
		row := table.Row{TypeLabel(typ)}
		for _, g := range model.ReportingGenders() {
			row = append(row, humanize.Comma(int64(s.ByGender[g][typ])))
		}
		row = append(row, humanize.Comma(int64(s.ByType[typ])), FormatPercent(d.TypeShare[typ]))
		breakdown.AppendRow(row)
	}
	footer := table.Row{"Total"}
	for _, g := range model.ReportingGenders() {
		footer = append(footer, humanize.Comma(int64(s.GenderTotal(g))))
	}
	footer = append(footer, humanize.Comma(int64(s.TotalInterventions)), "")
	breakdown.AppendFooter(footer)

	people := table.NewWriter()
	people.SetStyle(table.StyleLight)
	people.AppendHeader(table.Row{"Gender", "Interventions", "Share", "Attendees", "Attendance", "Per attendee"})
	for _, g := range model.ReportingGenders() {
		m := d.ByGender[g]
		people.AppendRow(table.Row{
			GenderLabel(g),
			humanize.Comma(int64(m.Interventions)),
			FormatPercent(m.InterventionShare),
			humanize.Comma(int64(m.Attendees)),
			FormatPercent(m.AttendanceShare),
			fmt.Sprintf("%.2f", m.InterventionsPerHead),
		})
	}

	var b strings.Builder
	b.WriteString(breakdown.Render())
	b.WriteString("\n\n")
	b.WriteString(people.Render())
	if s.Unclassified > 0 {
		fmt.Fprintf(&b, "\n\n%s interventions outside the reporting genders", humanize.Comma(int64(s.Unclassified)))
	}
	return b.String()
}
