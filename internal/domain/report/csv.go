package report

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/stats"
)

// Kind selects the CSV export layout.
type Kind string

// CSV export kinds.
const (
	KindAssemblyAttendance Kind = "assemblies"
	KindPersonAttendance   Kind = "people"
)

const csvDateLayout = "2006-01-02"

var csvHeaders = map[Kind][]string{
	KindAssemblyAttendance: {"name", "date", "type", "in_person", "online", "total"},
	KindPersonAttendance:   {"name", "total_assemblies", "attended", "missed", "overall_pct", "online_pct", "in_person_pct"},
}

// Record is a row that knows how to flatten itself into CSV fields.
type Record interface {
	Fields() []string
}

// AssemblyRow is one assembly in the attendance export.
type AssemblyRow struct {
	Name     string
	Date     string
	Type     string
	InPerson int
	Online   int
}

// Total is everyone present, in person or online.
func (r AssemblyRow) Total() int { return r.InPerson + r.Online }

// Fields implements Record.
func (r AssemblyRow) Fields() []string {
	return []string{
		r.Name,
		r.Date,
		r.Type,
		strconv.Itoa(r.InPerson),
		strconv.Itoa(r.Online),
		strconv.Itoa(r.Total()),
	}
}

// PersonRow is one person in the attendance history export.
type PersonRow struct {
	Name            string
	TotalAssemblies int
	Attended        int
	Online          int
	InPerson        int
}

// Missed counts assemblies without a present record.
func (r PersonRow) Missed() int { return r.TotalAssemblies - r.Attended }

// Fields implements Record. Percentages are shares of all assemblies.
func (r PersonRow) Fields() []string {
	return []string{
		r.Name,
		strconv.Itoa(r.TotalAssemblies),
		strconv.Itoa(r.Attended),
		strconv.Itoa(r.Missed()),
		FormatPercent(stats.PercentageOf(r.Attended, r.TotalAssemblies)),
		FormatPercent(stats.PercentageOf(r.Online, r.TotalAssemblies)),
		FormatPercent(stats.PercentageOf(r.InPerson, r.TotalAssemblies)),
	}
}

// FormatPercent renders a percentage with one decimal, e.g. "12.3%".
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// BuildAssemblyRows summarises each snapshot's present attendees by mode.
func BuildAssemblyRows(snaps []model.Snapshot) []AssemblyRow {
	rows := make([]AssemblyRow, 0, len(snaps))
	for _, snap := range snaps {
		counts := stats.CountAttendance(snap.Attendance, snap.People)
		rows = append(rows, AssemblyRow{
			Name:     snap.Assembly.Name,
			Date:     snap.Assembly.Date.Format(csvDateLayout),
			Type:     snap.Assembly.Kind,
			InPerson: counts.InPerson,
			Online:   counts.Online,
		})
	}
	return rows
}

// BuildPersonRows computes each person's attendance across the given
// assemblies, preserving the order of people.
func BuildPersonRows(people []model.Person, snaps []model.Snapshot) []PersonRow {
	rows := make([]PersonRow, len(people))
	index := make(map[string]int, len(people))
	for i, p := range people {
		rows[i] = PersonRow{Name: p.FullName(), TotalAssemblies: len(snaps)}
		index[p.ID] = i
	}
	for _, snap := range snaps {
		for _, rec := range snap.Attendance {
			i, ok := index[rec.PersonID]
			if !ok || !rec.Present {
				continue
			}
			rows[i].Attended++
			if rec.Mode == model.ModeOnline {
				rows[i].Online++
			} else {
				rows[i].InPerson++
			}
		}
	}
	return rows
}

// ShapeForCSV writes a header row for kind followed by one line per record.
// Fields containing commas, quotes or newlines are quoted.
func ShapeForCSV[R Record](records []R, kind Kind) (string, error) {
	header, ok := csvHeaders[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		fields := r.Fields()
		if len(fields) != len(header) {
			return "", fmt.Errorf("%w: %d fields for %d columns", ErrFieldCount, len(fields), len(header))
		}
		if err := w.Write(fields); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}
