// Package report reshapes assembly statistics into the structures each output
// format needs: chart rows, CSV exports, PDF draw instructions and text tables.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/stats"
)

// ChartRow is one gender's intervention counts. Field order is the fixed
// legend order: facilitate, explain, interrupt, short, long, offensive.
type ChartRow struct {
	Gender     model.Gender `json:"gender"`
	Facilitate int          `json:"facilitate"`
	Explain    int          `json:"explain"`
	Interrupt  int          `json:"interrupt"`
	Short      int          `json:"short"`
	Long       int          `json:"long"`
	Offensive  int          `json:"offensive"`
}

// Values returns the counts in model.ChartOrder.
func (r ChartRow) Values() []int {
	return []int{r.Facilitate, r.Explain, r.Interrupt, r.Short, r.Long, r.Offensive}
}

// ShapeForChart returns one row per reporting gender.
func ShapeForChart(s stats.AssemblyStats) []ChartRow {
	rows := make([]ChartRow, 0, len(model.ReportingGenders()))
	for _, g := range model.ReportingGenders() {
		c := s.ByGender[g]
		rows = append(rows, ChartRow{
			Gender:     g,
			Facilitate: c[model.TypeFacilitates],
			Explain:    c[model.TypeExplains],
			Interrupt:  c[model.TypeInterruption],
			Short:      c[model.TypeShort],
			Long:       c[model.TypeLong],
			Offensive:  c[model.TypeOffensive],
		})
	}
	return rows
}

var typeLabels = map[model.InterventionType]string{
	model.TypeFacilitates:  "Facilitates",
	model.TypeExplains:     "Explains",
	model.TypeInterruption: "Interruption",
	model.TypeShort:        "Short",
	model.TypeLong:         "Long",
	model.TypeOffensive:    "Offensive",
}

var genderLabels = map[model.Gender]string{
	model.GenderMan:       "Men",
	model.GenderWoman:     "Women",
	model.GenderNonBinary: "Non-binary",
	model.GenderTrans:     "Trans",
}

// TypeLabel returns the display label for an intervention type.
func TypeLabel(t model.InterventionType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// GenderLabel returns the display label for a gender.
func GenderLabel(g model.Gender) string {
	if l, ok := genderLabels[g]; ok {
		return l
	}
	return string(g)
}

// seriesColors keeps each type on the same colour across charts.
var seriesColors = []string{"#4e79a7", "#59a14f", "#f28e2b", "#76b7b2", "#edc948", "#e15759"}

// BuildChart constructs a stacked bar chart with genders on the x axis and one
// series per intervention type in chart order.
func BuildChart(rows []ChartRow, title string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%", Left: "center"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Interventions"}),
	)

	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = GenderLabel(r.Gender)
	}
	bar.SetXAxis(labels)

	for col, typ := range model.ChartOrder() {
		data := make([]opts.BarData, len(rows))
		for i, r := range rows {
			data[i] = opts.BarData{Value: r.Values()[col]}
		}
		bar.AddSeries(TypeLabel(typ), data,
			charts.WithBarChartOpts(opts.BarChart{Stack: "total"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: seriesColors[col]}),
		)
	}
	return bar
}

// RenderChart writes the chart as a standalone HTML page.
func RenderChart(w io.Writer, rows []ChartRow, title string) error {
	if err := BuildChart(rows, title).Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
