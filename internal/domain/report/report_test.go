package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/report"
	"github.com/okian/asamblea/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleStats() stats.AssemblyStats {
	return stats.ComputeStats([]model.Intervention{
		{Gender: model.GenderMan, Type: model.TypeShort},
		{Gender: model.GenderMan, Type: model.TypeShort},
		{Gender: model.GenderWoman, Type: model.TypeLong},
		{Gender: model.GenderWoman, Type: model.TypeFacilitates},
		{Gender: model.GenderNonBinary, Type: model.TypeExplains},
	})
}

func TestShapeForChart(t *testing.T) {
	Convey("Given assembly statistics", t, func() {
		rows := report.ShapeForChart(sampleStats())

		Convey("Then there should be one row per reporting gender", func() {
			So(rows, ShouldHaveLength, 3)
			So(rows[0].Gender, ShouldEqual, model.GenderMan)
			So(rows[1].Gender, ShouldEqual, model.GenderWoman)
			So(rows[2].Gender, ShouldEqual, model.GenderNonBinary)
		})

		Convey("And the values should follow the fixed legend order", func() {
			So(rows[0].Short, ShouldEqual, 2)
			So(rows[1].Values(), ShouldResemble, []int{1, 0, 0, 0, 1, 0})
			So(rows[2].Explain, ShouldEqual, 1)
		})

		Convey("And the JSON field order should match the legend order", func() {
			b, err := json.Marshal(rows[0])
			So(err, ShouldBeNil)
			s := string(b)
			order := []string{"facilitate", "explain", "interrupt", "short", "long", "offensive"}
			last := -1
			for _, key := range order {
				idx := strings.Index(s, `"`+key+`"`)
				So(idx, ShouldBeGreaterThan, last)
				last = idx
			}
		})

		Convey("When rendering the chart as HTML", func() {
			var buf bytes.Buffer
			err := report.RenderChart(&buf, rows, "Assembly 1")

			Convey("Then every type series should be present", func() {
				So(err, ShouldBeNil)
				out := buf.String()
				for _, typ := range model.ChartOrder() {
					So(out, ShouldContainSubstring, report.TypeLabel(typ))
				}
			})
		})
	})
}

func parseCSV(s string) [][]string {
	records, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	if err != nil {
		panic(err)
	}
	return records
}

func TestShapeForCSV(t *testing.T) {
	Convey("Given assembly rows", t, func() {
		rows := []report.AssemblyRow{
			{Name: "Assembly, extraordinary", Date: "2026-03-08", Type: "extraordinary", InPerson: 12, Online: 3},
			{Name: `The "big" one`, Date: "2026-04-01", Type: "ordinary", InPerson: 0, Online: 0},
		}

		Convey("When shaping the attendance export", func() {
			out, err := report.ShapeForCSV(rows, report.KindAssemblyAttendance)
			So(err, ShouldBeNil)
			records := parseCSV(out)

			Convey("Then the header should come first", func() {
				So(records[0], ShouldResemble, []string{"name", "date", "type", "in_person", "online", "total"})
			})

			Convey("And fields with commas and quotes should round-trip", func() {
				So(records[1], ShouldResemble, rows[0].Fields())
				So(records[1][0], ShouldEqual, "Assembly, extraordinary")
				So(records[2][0], ShouldEqual, `The "big" one`)
				So(out, ShouldContainSubstring, `"Assembly, extraordinary"`)
			})

			Convey("And totals should be plain decimals", func() {
				So(records[1][5], ShouldEqual, "15")
				So(records[2][5], ShouldEqual, "0")
			})
		})

		Convey("When the kind is unknown", func() {
			_, err := report.ShapeForCSV(rows, report.Kind("minutes"))
			So(errors.Is(err, report.ErrUnknownKind), ShouldBeTrue)
		})

		Convey("When the kind does not match the record shape", func() {
			_, err := report.ShapeForCSV(rows, report.KindPersonAttendance)
			So(errors.Is(err, report.ErrFieldCount), ShouldBeTrue)
		})
	})

	Convey("Given person attendance history", t, func() {
		people := []model.Person{
			{ID: "p1", Name: "Ana", Surname: "García, Jr."},
			{ID: "p2", Name: "Luis", Surname: "Pérez"},
		}
		snaps := []model.Snapshot{
			{Attendance: []model.Attendance{{PersonID: "p1", Present: true, Mode: model.ModeOnline}, {PersonID: "p2", Present: false}}},
			{Attendance: []model.Attendance{{PersonID: "p1", Present: true, Mode: model.ModeInPerson}}},
			{Attendance: []model.Attendance{{PersonID: "p1", Present: true, Mode: model.ModeInPerson}, {PersonID: "p2", Present: true}}},
		}
		rows := report.BuildPersonRows(people, snaps)

		Convey("Then totals should be derived per person", func() {
			So(rows[0].Attended, ShouldEqual, 3)
			So(rows[0].Online, ShouldEqual, 1)
			So(rows[0].Missed(), ShouldEqual, 0)
			So(rows[1].Attended, ShouldEqual, 1)
			So(rows[1].Missed(), ShouldEqual, 2)
		})

		Convey("And the export should format percentages with one decimal", func() {
			out, err := report.ShapeForCSV(rows, report.KindPersonAttendance)
			So(err, ShouldBeNil)
			records := parseCSV(out)
			So(records[0][0], ShouldEqual, "name")
			So(records[1], ShouldResemble, []string{"Ana García, Jr.", "3", "3", "0", "100.0%", "33.3%", "66.7%"})
			So(records[2], ShouldResemble, []string{"Luis Pérez", "3", "1", "2", "33.3%", "0.0%", "33.3%"})
		})

		Convey("And no assemblies should give zero percentages", func() {
			empty := report.BuildPersonRows(people, nil)
			So(empty[0].Fields()[4], ShouldEqual, "0.0%")
		})
	})

	Convey("Given snapshots of several assemblies", t, func() {
		date := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
		snaps := []model.Snapshot{{
			Assembly: model.Assembly{Name: "March", Date: date, Kind: "ordinary"},
			Attendance: []model.Attendance{
				{PersonID: "a", Present: true},
				{PersonID: "b", Present: true, Mode: model.ModeOnline},
				{PersonID: "c", Present: false},
			},
		}}
		rows := report.BuildAssemblyRows(snaps)

		Convey("Then each row should split present attendees by mode", func() {
			So(rows[0].Fields(), ShouldResemble, []string{"March", "2026-03-08", "ordinary", "1", "1", "2"})
		})
	})
}

func TestShapeForPDFSections(t *testing.T) {
	Convey("Given an assembly snapshot", t, func() {
		start := time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC)
		end := start.Add(90 * time.Minute)
		snap := model.Snapshot{
			Assembly: model.Assembly{ID: "a1", Name: "March assembly", Date: start, Kind: "ordinary", StartTime: &start, EndTime: &end},
			People: map[string]model.Person{
				"1": {ID: "1", Name: "Zoe", Surname: "Álvarez", Gender: model.GenderWoman},
				"2": {ID: "2", Name: "Bruno", Surname: "Zamora", Gender: model.GenderMan},
				"3": {ID: "3", Name: "Carla", Surname: "Nuñez", Gender: model.GenderNonBinary},
				"4": {ID: "4", Name: "Dario", Surname: "Navarro", Gender: model.GenderMan},
			},
			Attendance: []model.Attendance{
				{PersonID: "2", Present: true},
				{PersonID: "1", Present: true},
				{PersonID: "3", Present: true, Mode: model.ModeOnline},
				{PersonID: "4", Present: true},
			},
		}

		Convey("When laying out a single page", func() {
			ops := report.ShapeForPDFSections(sampleStats(), snap, report.DefaultPDFOptions())

			Convey("Then the header should lead with the assembly name and duration", func() {
				So(ops[0].Kind, ShouldEqual, report.OpHeading)
				So(ops[0].Text, ShouldEqual, "March assembly")
				So(ops[2].Text, ShouldEqual, "Duration: 1h 30m")
			})

			Convey("And attendance bars should be proportional to share", func() {
				var bars []report.DrawOp
				for _, op := range ops {
					if op.Kind == report.OpBar {
						bars = append(bars, op)
					}
				}
				So(bars, ShouldHaveLength, 3)
				So(bars[0].Count, ShouldEqual, 2)
				So(bars[0].Percent, ShouldEqual, 50.0)
				So(bars[0].Width, ShouldEqual, 200.0)
				So(bars[1].Width, ShouldEqual, 100.0)
			})

			Convey("And the roster should be sorted by surname with collation", func() {
				var roster [][]string
				inRoster := false
				for _, op := range ops {
					if op.Kind == report.OpTableHeader {
						inRoster = op.Cells[0] == "Surname"
						continue
					}
					if inRoster && op.Kind == report.OpTableRow {
						roster = append(roster, op.Cells)
					}
				}
				So(roster, ShouldHaveLength, 4)
				So(roster[0][0], ShouldEqual, "Álvarez")
				So(roster[1][0], ShouldEqual, "Navarro")
				So(roster[2][0], ShouldEqual, "Nuñez")
				So(roster[3][0], ShouldEqual, "Zamora")
			})

			Convey("And no page break should be emitted", func() {
				for _, op := range ops {
					So(op.Kind, ShouldNotEqual, report.OpNewPage)
					So(op.Page, ShouldEqual, 1)
				}
			})
		})

		Convey("When the roster overflows the page", func() {
			for i := 0; i < 60; i++ {
				id := fmt.Sprintf("x%02d", i)
				snap.People[id] = model.Person{ID: id, Name: "N", Surname: "S" + id, Gender: model.GenderMan}
				snap.Attendance = append(snap.Attendance, model.Attendance{PersonID: id, Present: true})
			}
			opts := report.DefaultPDFOptions()
			opts.PageHeight = 400
			ops := report.ShapeForPDFSections(sampleStats(), snap, opts)

			Convey("Then a break inside the roster should repeat its header", func() {
				breaks := 0
				for i, op := range ops {
					So(op.Y, ShouldBeLessThanOrEqualTo, opts.PageHeight-opts.BottomMargin)
					if op.Kind != report.OpNewPage || i == 0 || ops[i-1].Kind != report.OpTableRow {
						continue
					}
					breaks++
					So(i+1, ShouldBeLessThan, len(ops))
					So(ops[i+1].Kind, ShouldEqual, report.OpTableHeader)
					So(ops[i+1].Cells[0], ShouldEqual, "Surname")
					So(ops[i+1].Page, ShouldEqual, op.Page)
				}
				So(breaks, ShouldBeGreaterThan, 1)
			})
		})
	})
}

func TestRoster(t *testing.T) {
	Convey("Given attendees with accented and lowercase surnames", t, func() {
		snap := model.Snapshot{
			People: map[string]model.Person{
				"a": {ID: "a", Surname: "de la Fuente"},
				"b": {ID: "b", Surname: "Díaz"},
				"c": {ID: "c", Surname: "Diaz", Name: "Alba"},
				"d": {ID: "d", Surname: "Castro"},
			},
			Attendance: []model.Attendance{
				{PersonID: "a", Present: true},
				{PersonID: "b", Present: true},
				{PersonID: "c", Present: true},
				{PersonID: "d", Present: true},
				{PersonID: "ghost", Present: true},
				{PersonID: "gone", Present: false},
			},
		}
		roster := report.Roster(snap, language.Spanish)

		Convey("Then absent people should be excluded and unknown people listed by id", func() {
			So(roster, ShouldHaveLength, 5)
			ids := make([]string, len(roster))
			for i, r := range roster {
				ids[i] = r.Person.ID
			}
			So(ids[0], ShouldEqual, "d")
			So(ids[len(ids)-1], ShouldEqual, "ghost")
		})
	})
}

func TestRenderStatsTable(t *testing.T) {
	Convey("Given stats and derived metrics", t, func() {
		s := sampleStats()
		d := stats.ComputeDerivedMetrics(s, stats.AttendanceCounts{ByGender: map[model.Gender]int{model.GenderMan: 2}, Total: 2})
		out := report.RenderStatsTable(s, d)

		Convey("Then both tables should be rendered", func() {
			So(out, ShouldContainSubstring, "Facilitates")
			So(out, ShouldContainSubstring, "Per attendee")
			So(out, ShouldContainSubstring, "40.0%")
			So(out, ShouldNotContainSubstring, "outside the reporting genders")
		})
	})
}
