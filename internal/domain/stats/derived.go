package stats

import (
	"fmt"
	"time"

	"github.com/okian/asamblea/internal/domain/model"
)

const percentScale = 100

// PercentageOf returns count as a percentage of total, or 0 when total is 0.
func PercentageOf(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * percentScale
}

// PerAttendee returns interventions per attendee, or 0 when nobody attended.
func PerAttendee(interventions, attendees int) float64 {
	if attendees <= 0 {
		return 0
	}
	return float64(interventions) / float64(attendees)
}

// FormatDuration renders whole minutes as "1h 30m", "1h" or "45m".
// The boolean is false for non-positive input, which callers show as "no duration".
func FormatDuration(minutes int) (string, bool) {
	if minutes <= 0 {
		return "", false
	}
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m), true
	case h > 0:
		return fmt.Sprintf("%dh", h), true
	default:
		return fmt.Sprintf("%dm", m), true
	}
}

// DurationBetween formats the whole minutes elapsed between start and end.
// Missing endpoints and non-positive spans yield no duration.
func DurationBetween(start, end *time.Time) (string, bool) {
	if start == nil || end == nil {
		return "", false
	}
	return FormatDuration(int(end.Sub(*start) / time.Minute))
}

// AttendanceCounts summarises who was present at one assembly.
type AttendanceCounts struct {
	ByGender map[model.Gender]int `json:"by_gender"`
	Total    int                  `json:"total"`
	InPerson int                  `json:"in_person"`
	Online   int                  `json:"online"`
}

// CountAttendance tallies present records. People missing from the directory
// still count toward Total but not toward any gender.
func CountAttendance(records []model.Attendance, people map[string]model.Person) AttendanceCounts {
	out := AttendanceCounts{ByGender: make(map[model.Gender]int, len(model.ReportingGenders()))}
	for _, g := range model.ReportingGenders() {
		out.ByGender[g] = 0
	}
	for _, rec := range records {
		if !rec.Present {
			continue
		}
		out.Total++
		if rec.Mode == model.ModeOnline {
			out.Online++
		} else {
			out.InPerson++
		}
		if p, ok := people[rec.PersonID]; ok && p.Gender.IsReporting() {
			out.ByGender[p.Gender]++
		}
	}
	return out
}

// GenderMetrics are the derived figures for one reporting gender.
type GenderMetrics struct {
	Interventions        int     `json:"interventions"`
	InterventionShare    float64 `json:"intervention_share"`
	Attendees            int     `json:"attendees"`
	AttendanceShare      float64 `json:"attendance_share"`
	InterventionsPerHead float64 `json:"interventions_per_attendee"`
}

// DerivedMetrics holds percentages and ratios computed from a tally and attendance.
type DerivedMetrics struct {
	ByGender             map[model.Gender]GenderMetrics     `json:"by_gender"`
	TypeShare            map[model.InterventionType]float64 `json:"type_share"`
	InterventionsPerHead float64                            `json:"interventions_per_attendee"`
}

// ComputeDerivedMetrics derives shares and per-attendee ratios.
func ComputeDerivedMetrics(s AssemblyStats, counts AttendanceCounts) DerivedMetrics {
	out := DerivedMetrics{
		ByGender:             make(map[model.Gender]GenderMetrics, len(model.ReportingGenders())),
		TypeShare:            make(map[model.InterventionType]float64, len(model.AllTypes())),
		InterventionsPerHead: PerAttendee(s.TotalInterventions, counts.Total),
	}
	for _, g := range model.ReportingGenders() {
		spoke := s.GenderTotal(g)
		present := counts.ByGender[g]
		out.ByGender[g] = GenderMetrics{
			Interventions:        spoke,
			InterventionShare:    PercentageOf(spoke, s.TotalInterventions),
			Attendees:            present,
			AttendanceShare:      PercentageOf(present, counts.Total),
			InterventionsPerHead: PerAttendee(spoke, present),
		}
	}
	for _, typ := range model.AllTypes() {
		out.TypeShare[typ] = PercentageOf(s.ByType[typ], s.TotalInterventions)
	}
	return out
}
