package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/asamblea/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"ASAMBLEA_CONFIG",
	"ASAMBLEA_ADDR",
	"ASAMBLEA_STORE",
	"ASAMBLEA_SQLITE_PATH",
	"ASAMBLEA_DATABASE_URL",
	"ASAMBLEA_QUEUE_SIZE",
	"ASAMBLEA_WORKER_COUNT",
	"ASAMBLEA_DEDUPE_SIZE",
	"ASAMBLEA_COLLATION_LANGUAGE",
	"ASAMBLEA_PDF_PAGE_HEIGHT",
	"ASAMBLEA_LOG_LEVEL",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "asamblea-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New(ctx))
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ASAMBLEA_ADDR", ":8080")
			_ = os.Setenv("ASAMBLEA_STORE", "sqlite")
			_ = os.Setenv("ASAMBLEA_SQLITE_PATH", "/var/lib/asamblea/data.db")
			_ = os.Setenv("ASAMBLEA_QUEUE_SIZE", "500")
			_ = os.Setenv("ASAMBLEA_WORKER_COUNT", "3")
			_ = os.Setenv("ASAMBLEA_COLLATION_LANGUAGE", "ca")
			_ = os.Setenv("ASAMBLEA_PDF_PAGE_HEIGHT", "595.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/var/lib/asamblea/data.db")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.CollationLanguage, convey.ShouldEqual, "ca")
				convey.So(cfg.PDFPageHeight, convey.ShouldEqual, 595.5)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
store: postgres
database_url: "postgres://asamblea@localhost/asamblea"
queue_size: 2000
worker_count: 8
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ASAMBLEA_CONFIG", tmpFile)
			_ = os.Setenv("ASAMBLEA_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Store, convey.ShouldEqual, config.StorePostgres)
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://asamblea@localhost/asamblea")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 2000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.CollationLanguage, convey.ShouldEqual, "es")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ASAMBLEA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ASAMBLEA_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("ASAMBLEA_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When selecting postgres without a url", func() {
			_ = os.Setenv("ASAMBLEA_STORE", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
