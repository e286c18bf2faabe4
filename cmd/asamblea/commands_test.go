package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/asamblea/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		panic(err)
	}
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	Convey("Given a SQLite database file", t, func() {
		dir := t.TempDir()
		db := filepath.Join(dir, "asamblea.db")
		store := []string{"--store", "sqlite", "--sqlite-path", db}

		people := filepath.Join(dir, "people.csv")
		So(os.WriteFile(people, []byte("id,name,surname,gender\np1,Ana,Zamora,woman\np2,Luis,Álvarez,man\np3,X,Y,robot\n"), 0o600), ShouldBeNil)

		Convey("When creating an assembly and importing people", func() {
			out, err := run(append([]string{"create", "Asamblea de marzo", "--id", "a1", "--date", "2024-03-08"}, store...)...)
			So(err, ShouldBeNil)
			So(strings.TrimSpace(out), ShouldEqual, "a1")

			out, err = run(append([]string{"import", people}, store...)...)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Imported 2 people (utf-8)")
			So(out, ShouldContainSubstring, "robot")

			Convey("Then the assembly should be listed", func() {
				out, err := run(append([]string{"list"}, store...)...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Asamblea de marzo")
				So(out, ShouldContainSubstring, "2024-03-08")
			})

			Convey("Then the report should print the tables", func() {
				out, err := run(append([]string{"report", "a1"}, store...)...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Asamblea de marzo (2024-03-08)")
				So(out, ShouldContainSubstring, "Facilitates")
				So(out, ShouldContainSubstring, "Per attendee")
			})

			Convey("Then the people export should be sorted by surname", func() {
				target := filepath.Join(dir, "people-export.csv")
				_, err := run(append([]string{"export", "people", "-o", target}, store...)...)
				So(err, ShouldBeNil)
				data, err := os.ReadFile(target)
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(string(data)), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[1], ShouldStartWith, "Luis Álvarez,1,0,1")
			})

			Convey("Then the chart should be HTML", func() {
				out, err := run(append([]string{"chart", "a1"}, store...)...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "<html")
			})
		})

		Convey("Unknown export kinds should be refused", func() {
			_, err := run(append([]string{"export", "votes"}, store...)...)
			So(err, ShouldNotBeNil)
		})

		Convey("Reports of unknown assemblies should fail", func() {
			_, err := run(append([]string{"report", "missing"}, store...)...)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCommands_InvalidLogLevel(t *testing.T) {
	Convey("Given a configured log level the logger does not know", t, func() {
		var logs bytes.Buffer
		So(logger.Init(logger.WithOutput(&logs)), ShouldBeNil)
		t.Cleanup(func() {
			_ = logger.Init(logger.WithOutput(os.Stderr))
			_ = logger.SetLevelString("info")
		})
		t.Setenv("ASAMBLEA_LOG_LEVEL", "loud")

		db := filepath.Join(t.TempDir(), "asamblea.db")
		_, err := run("list", "--store", "sqlite", "--sqlite-path", db)

		Convey("Then the command should still run and warn about the fallback", func() {
			So(err, ShouldBeNil)
			So(logs.String(), ShouldContainSubstring, "invalid log_level; falling back to info")
			So(logs.String(), ShouldContainSubstring, "loud")
		})
	})
}
