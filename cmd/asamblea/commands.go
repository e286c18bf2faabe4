package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/asamblea/internal/adapters/repository"
	app "github.com/okian/asamblea/internal/app"
	"github.com/okian/asamblea/internal/config"
	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/internal/domain/report"
	"github.com/okian/asamblea/pkg/logger"
)

// storeFlags override the store settings from the loaded configuration.
type storeFlags struct {
	store       string
	sqlitePath  string
	databaseURL string
	collation   string
	verbose     bool
}

func (f *storeFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.store, "store", "", "store backend: memory, sqlite or postgres (default from config)")
	pf.StringVar(&f.sqlitePath, "sqlite-path", "", "SQLite database file")
	pf.StringVar(&f.databaseURL, "database-url", "", "Postgres connection string")
	pf.StringVar(&f.collation, "collation", "", "language used to sort names, e.g. es or ca")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log debug output")
}

// withService loads the configuration, applies the flags and runs fn against
// a started service. The service is stopped and the store closed afterwards.
func (f *storeFlags) withService(ctx context.Context, fn func(*app.Service) error) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if f.store != "" {
		cfg.Store = f.store
	}
	if f.sqlitePath != "" {
		cfg.SQLitePath = f.sqlitePath
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}
	if f.collation != "" {
		cfg.CollationLanguage = f.collation
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := cfg.LogLevel
	if f.verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(ctx, cfg.Store, cfg.SQLitePath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := app.New(
		app.WithLogger(logger.Named(programName)),
		app.WithStore(store),
		app.WithWorkerCount(1),
		app.WithCollationLanguage(cfg.CollationLanguage),
		app.WithPageHeight(cfg.PDFPageHeight),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()
	return fn(svc)
}

func listCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List assemblies with their attendance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.withService(cmd.Context(), func(svc *app.Service) error {
				list, err := svc.Assemblies(cmd.Context())
				if err != nil {
					return err
				}
				t := table.NewWriter()
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"ID", "Date", "Name", "Type", "Present", "Interventions"})
				for _, a := range list {
					rep, err := svc.Stats(cmd.Context(), a.ID)
					if err != nil {
						return err
					}
					t.AppendRow(table.Row{
						a.ID,
						a.Date.Format("2006-01-02"),
						a.Name,
						a.Kind,
						humanize.Comma(int64(rep.Attendance.Total)),
						humanize.Comma(int64(rep.Stats.TotalInterventions)),
					})
				}
				t.AppendFooter(table.Row{"", "", "", "", "Assemblies", humanize.Comma(int64(len(list)))})
				fmt.Fprintln(cmd.OutOrStdout(), t.Render())
				return nil
			})
		},
	}
}

func createCommand(flags *storeFlags) *cobra.Command {
	var (
		a    model.Assembly
		date string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", date, err)
			}
			a.Name, a.Date = args[0], d
			return flags.withService(cmd.Context(), func(svc *app.Service) error {
				created, err := svc.CreateAssembly(cmd.Context(), a)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&a.ID, "id", "", "assembly id (generated when empty)")
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "assembly date, YYYY-MM-DD")
	cmd.Flags().StringVar(&a.Kind, "type", "ordinary", "assembly type")
	cmd.Flags().StringVar(&a.Description, "description", "", "free text description")
	return cmd
}

func reportCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report <assembly-id>",
		Short: "Print the participation breakdown of one assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withService(cmd.Context(), func(svc *app.Service) error {
				rep, err := svc.Stats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", rep.Assembly.Name, rep.Assembly.Date.Format("2006-01-02"))
				if rep.HasDuration {
					fmt.Fprintf(out, "Duration: %s\n", rep.Duration)
				}
				fmt.Fprintf(out, "Present: %s (%s in person, %s online)\n\n",
					humanize.Comma(int64(rep.Attendance.Total)),
					humanize.Comma(int64(rep.Attendance.InPerson)),
					humanize.Comma(int64(rep.Attendance.Online)))
				fmt.Fprintln(out, report.RenderStatsTable(rep.Stats, rep.Derived))
				return nil
			})
		},
	}
}

func chartCommand(flags *storeFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "chart <assembly-id>",
		Short: "Render the intervention chart as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withService(cmd.Context(), func(svc *app.Service) error {
				var buf bytes.Buffer
				if err := svc.ChartHTML(cmd.Context(), &buf, args[0]); err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), output, buf.Bytes())
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func exportCommand(flags *storeFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "export <assemblies|people>",
		Short:     "Export attendance as CSV",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(report.KindAssemblyAttendance), string(report.KindPersonAttendance)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withService(cmd.Context(), func(svc *app.Service) error {
				var (
					csv string
					err error
				)
				switch report.Kind(args[0]) {
				case report.KindAssemblyAttendance:
					csv, err = svc.ExportAssembliesCSV(cmd.Context())
				default:
					csv, err = svc.ExportPeopleCSV(cmd.Context())
				}
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), output, []byte(csv))
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func importCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <people.csv>",
		Short: "Import the person directory from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return flags.withService(cmd.Context(), func(svc *app.Service) error {
				res, err := svc.ImportPeople(cmd.Context(), f)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %s people (%s)\n", humanize.Comma(int64(res.Imported)), res.Encoding)
				if len(res.Rejected) > 0 {
					t := table.NewWriter()
					t.SetStyle(table.StyleLight)
					t.AppendHeader(table.Row{"Line", "Error"})
					for _, r := range res.Rejected {
						t.AppendRow(table.Row{r.Line, r.Err})
					}
					fmt.Fprintln(out, t.Render())
				}
				return nil
			})
		},
	}
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // reports are meant to be shared
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
