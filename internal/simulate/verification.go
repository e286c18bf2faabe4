package simulate

import (
	"errors"
	"fmt"
	"sort"
)

// verifyReport checks the reported tallies against the plan. Every mismatch
// is reported, not only the first.
func verifyReport(rep statsReport, want Expected) error {
	var errs []error
	s := rep.Stats

	sum := s.Unclassified
	for _, byType := range s.ByGender {
		for _, n := range byType {
			sum += n
		}
	}
	if sum != s.TotalInterventions {
		errs = append(errs, fmt.Errorf("by-gender counts plus unclassified (%d) do not reconcile with total (%d)", sum, s.TotalInterventions))
	}

	if s.TotalInterventions != want.Total {
		errs = append(errs, fmt.Errorf("total: have %d, want %d", s.TotalInterventions, want.Total))
	}
	if s.Unclassified != want.Unclassified {
		errs = append(errs, fmt.Errorf("unclassified: have %d, want %d", s.Unclassified, want.Unclassified))
	}

	for _, g := range sortedKeys(want.Buckets) {
		for _, typ := range sortedKeys(want.Buckets[g]) {
			if have := s.ByGender[g][typ]; have != want.Buckets[g][typ] {
				errs = append(errs, fmt.Errorf("%s/%s: have %d, want %d", g, typ, have, want.Buckets[g][typ]))
			}
		}
	}

	if rep.Attendance.Total != want.Present {
		errs = append(errs, fmt.Errorf("attendance: have %d, want %d", rep.Attendance.Total, want.Present))
	}
	for _, g := range sortedKeys(want.PresentByGender) {
		if have := rep.Attendance.ByGender[g]; have != want.PresentByGender[g] {
			errs = append(errs, fmt.Errorf("attendance %s: have %d, want %d", g, have, want.PresentByGender[g]))
		}
	}

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
