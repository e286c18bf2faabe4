// Package stats turns raw intervention and attendance records into the
// gender-disaggregated reporting model used by charts, tables and exports.
//
// Every function here is pure: it takes a fresh snapshot of records and
// returns a fresh structure. Nothing returns an error for structurally valid
// input; zero denominators and missing timestamps degrade to sentinels.
package stats

import "github.com/okian/asamblea/internal/domain/model"

// TypeCounts maps each intervention type to a count.
type TypeCounts map[model.InterventionType]int

// Sum totals every cell.
func (c TypeCounts) Sum() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func newTypeCounts() TypeCounts {
	c := make(TypeCounts, len(model.AllTypes()))
	for _, typ := range model.AllTypes() {
		c[typ] = 0
	}
	return c
}

// AssemblyStats is the derived, non-persisted tally of one assembly's interventions.
//
// TotalInterventions counts every record. ByGender covers only the reporting
// genders; records outside that grid (the legacy trans tag, or a type written
// by an older schema) are counted in Unclassified rather than dropped, so the
// ByGender sums plus Unclassified always equal the total.
type AssemblyStats struct {
	TotalInterventions int                         `json:"total_interventions"`
	ByGender           map[model.Gender]TypeCounts `json:"by_gender"`
	ByType             TypeCounts                  `json:"by_type"`
	Unclassified       int                         `json:"unclassified"`
}

// GenderTotal returns the number of interventions for one reporting gender.
func (s AssemblyStats) GenderTotal(g model.Gender) int {
	return s.ByGender[g].Sum()
}

// ComputeStats folds interventions into nested gender × type counts in one pass.
func ComputeStats(interventions []model.Intervention) AssemblyStats {
	out := AssemblyStats{
		ByGender: make(map[model.Gender]TypeCounts, len(model.ReportingGenders())),
		ByType:   newTypeCounts(),
	}
	for _, g := range model.ReportingGenders() {
		out.ByGender[g] = newTypeCounts()
	}

	for _, in := range interventions {
		out.TotalInterventions++
		counts, ok := out.ByGender[in.Gender]
		if !ok {
			out.Unclassified++
			continue
		}
		if _, known := counts[in.Type]; !known {
			out.Unclassified++
			continue
		}
		counts[in.Type]++
		out.ByType[in.Type]++
	}
	return out
}
