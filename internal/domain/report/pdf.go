package report

import (
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/stats"
)

// OpKind identifies a draw instruction.
type OpKind string

// Draw instruction kinds consumed by the PDF renderer.
const (
	OpText        OpKind = "text"
	OpHeading     OpKind = "heading"
	OpBar         OpKind = "bar"
	OpTableHeader OpKind = "table_header"
	OpTableRow    OpKind = "table_row"
	OpNewPage     OpKind = "new_page"
)

// DrawOp is one positioned instruction. Y grows downwards from the top of the page.
type DrawOp struct {
	Kind    OpKind   `json:"kind"`
	Page    int      `json:"page"`
	Y       float64  `json:"y"`
	Text    string   `json:"text,omitempty"`
	Cells   []string `json:"cells,omitempty"`
	Count   int      `json:"count,omitempty"`
	Percent float64  `json:"percent,omitempty"`
	Width   float64  `json:"width,omitempty"`
}

// PDFOptions controls page geometry and roster collation.
type PDFOptions struct {
	PageHeight   float64
	TopMargin    float64
	BottomMargin float64
	LineHeight   float64
	HeadingGap   float64
	BarMaxWidth  float64
	Language     language.Tag
}

// DefaultPDFOptions returns A4 geometry in points.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageHeight:   842,
		TopMargin:    40,
		BottomMargin: 40,
		LineHeight:   16,
		HeadingGap:   24,
		BarMaxWidth:  400,
		Language:     language.Spanish,
	}
}

func (o PDFOptions) withDefaults() PDFOptions {
	d := DefaultPDFOptions()
	if o.PageHeight <= 0 {
		o.PageHeight = d.PageHeight
	}
	if o.TopMargin <= 0 {
		o.TopMargin = d.TopMargin
	}
	if o.BottomMargin <= 0 {
		o.BottomMargin = d.BottomMargin
	}
	if o.LineHeight <= 0 {
		o.LineHeight = d.LineHeight
	}
	if o.HeadingGap <= 0 {
		o.HeadingGap = d.HeadingGap
	}
	if o.BarMaxWidth <= 0 {
		o.BarMaxWidth = d.BarMaxWidth
	}
	if o.Language == language.Und {
		o.Language = d.Language
	}
	return o
}

// pager tracks the vertical cursor and repeats the active table header on
// every page it opens.
type pager struct {
	opts   PDFOptions
	ops    []DrawOp
	page   int
	y      float64
	header []string
}

func newPager(o PDFOptions) *pager {
	return &pager{opts: o, page: 1, y: o.TopMargin}
}

func (p *pager) reserve(h float64) {
	if p.y+h <= p.opts.PageHeight-p.opts.BottomMargin {
		return
	}
	p.page++
	p.y = p.opts.TopMargin
	p.ops = append(p.ops, DrawOp{Kind: OpNewPage, Page: p.page, Y: p.y})
	if p.header != nil {
		p.emit(DrawOp{Kind: OpTableHeader, Cells: p.header}, p.opts.LineHeight)
	}
}

func (p *pager) emit(op DrawOp, h float64) {
	op.Page = p.page
	op.Y = p.y
	p.ops = append(p.ops, op)
	p.y += h
}

func (p *pager) line(kind OpKind, text string, h float64) {
	p.reserve(h)
	p.emit(DrawOp{Kind: kind, Text: text}, h)
}

func (p *pager) startTable(header []string) {
	p.header = nil
	// keep the header with at least one row
	p.reserve(2 * p.opts.LineHeight)
	p.header = header
	p.emit(DrawOp{Kind: OpTableHeader, Cells: header}, p.opts.LineHeight)
}

func (p *pager) row(cells []string) {
	p.reserve(p.opts.LineHeight)
	p.emit(DrawOp{Kind: OpTableRow, Cells: cells}, p.opts.LineHeight)
}

func (p *pager) endTable() { p.header = nil }

// ShapeForPDFSections lays out the assembly report: header, attendance bars per
// gender, the per-type breakdown table and the attendee roster sorted by surname.
func ShapeForPDFSections(s stats.AssemblyStats, snap model.Snapshot, o PDFOptions) []DrawOp {
	o = o.withDefaults()
	p := newPager(o)
	asm := snap.Assembly

	p.line(OpHeading, asm.Name, o.HeadingGap)
	p.line(OpText, asm.Date.Format(csvDateLayout)+" · "+asm.Kind, o.LineHeight)
	if d, ok := stats.DurationBetween(asm.StartTime, asm.EndTime); ok {
		p.line(OpText, "Duration: "+d, o.LineHeight)
	} else {
		p.line(OpText, "Duration: no duration", o.LineHeight)
	}
	if asm.RegisteredBy.Name != "" {
		p.line(OpText, "Registered by: "+asm.RegisteredBy.Name, o.LineHeight)
	}
	if asm.Description != "" {
		p.line(OpText, asm.Description, o.LineHeight)
	}

	counts := stats.CountAttendance(snap.Attendance, snap.People)
	p.line(OpHeading, "Attendance by gender", o.HeadingGap)
	for _, g := range model.ReportingGenders() {
		n := counts.ByGender[g]
		pct := stats.PercentageOf(n, counts.Total)
		p.reserve(o.LineHeight)
		p.emit(DrawOp{
			Kind:    OpBar,
			Text:    GenderLabel(g),
			Count:   n,
			Percent: pct,
			Width:   o.BarMaxWidth * pct / 100,
		}, o.LineHeight)
	}
	p.line(OpText, "Total present: "+strconv.Itoa(counts.Total), o.LineHeight)

	p.line(OpHeading, "Interventions by type", o.HeadingGap)
	header := []string{"Type"}
	for _, g := range model.ReportingGenders() {
		header = append(header, GenderLabel(g))
	}
	header = append(header, "Total")
	p.startTable(header)
	for _, typ := range model.ChartOrder() {
		cells := []string{TypeLabel(typ)}
		for _, g := range model.ReportingGenders() {
			cells = append(cells, strconv.Itoa(s.ByGender[g][typ]))
		}
		cells = append(cells, strconv.Itoa(s.ByType[typ]))
		p.row(cells)
	}
	p.endTable()
	p.line(OpText, "Total interventions: "+strconv.Itoa(s.TotalInterventions), o.LineHeight)

	p.line(OpHeading, "Attendees", o.HeadingGap)
	p.startTable([]string{"Surname", "Name", "Mode", "Role"})
	for _, a := range Roster(snap, o.Language) {
		p.row([]string{a.Person.Surname, a.Person.Name, string(a.Mode), string(a.Role)})
	}
	p.endTable()

	return p.ops
}

// RosterEntry pairs a present attendee with their attendance record.
type RosterEntry struct {
	Person model.Person
	Mode   model.AttendanceMode
	Role   model.Role
}

// Roster lists present attendees sorted by surname then name using the
// collation rules of lang. Unknown people are listed by their id.
func Roster(snap model.Snapshot, lang language.Tag) []RosterEntry {
	out := make([]RosterEntry, 0, len(snap.Attendance))
	for _, rec := range snap.Attendance {
		if !rec.Present {
			continue
		}
		p, ok := snap.People[rec.PersonID]
		if !ok {
			p = model.Person{ID: rec.PersonID, Surname: rec.PersonID}
		}
		out = append(out, RosterEntry{Person: p, Mode: rec.Mode, Role: rec.Role})
	}
	SortPeople(out, func(e RosterEntry) model.Person { return e.Person }, lang)
	return out
}

// SortPeople orders items by surname, then name, then id using locale-aware collation.
func SortPeople[T any](items []T, person func(T) model.Person, lang language.Tag) {
	c := collate.New(lang, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := person(items[i]), person(items[j])
		if r := c.CompareString(a.Surname, b.Surname); r != 0 {
			return r < 0
		}
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r < 0
		}
		return a.ID < b.ID
	})
}
