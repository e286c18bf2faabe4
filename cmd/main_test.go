package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	app "github.com/okian/asamblea/internal/app"
	"github.com/okian/asamblea/internal/config"
	"github.com/okian/asamblea/pkg/logger"
	"github.com/okian/asamblea/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("ASAMBLEA_ADDR", ":8080")
			_ = os.Setenv("ASAMBLEA_QUEUE_SIZE", "1000")
			_ = os.Setenv("ASAMBLEA_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("ASAMBLEA_ADDR")
				_ = os.Unsetenv("ASAMBLEA_QUEUE_SIZE")
				_ = os.Unsetenv("ASAMBLEA_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("ASAMBLEA_STORE", "cassette")
			defer func() { _ = os.Unsetenv("ASAMBLEA_STORE") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should record the goroutine count", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				n, err := testutil.GatherAndCount(metrics.GetRegistry(), "asamblea_participation_system_goroutines")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestMux(t *testing.T) {
	convey.Convey("Given the application mux over a running service", t, func() {
		svc := app.New(app.WithLogger(logger.Nop()), app.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newMux(svc))
		defer srv.Close()

		get := func(path string) *http.Response {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		convey.Convey("Then the docs and the API should be served", func() {
			for _, path := range []string{"/openapi.yaml", "/api-docs", "/healthz", "/stats", "/assemblies", "/people"} {
				resp := get(path)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then an assembly should go from creation to stats", func() {
			body := `{"id":"a1","name":"Ordinaria","date":"2024-05-01"}`
			resp, err := http.Post(srv.URL+"/assemblies", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)

			resp, err = http.Post(srv.URL+"/assemblies/a1/interventions", "application/json",
				strings.NewReader(`{"id":"i1","gender":"non-binary","type":"long-intervention"}`))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
			convey.So(svc.Flush(ctx), convey.ShouldBeNil)

			rep, err := svc.Stats(ctx, "a1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(rep.Stats.TotalInterventions, convey.ShouldEqual, 1)
		})
	})
}
