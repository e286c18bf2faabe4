package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/asamblea/internal/adapters/http/api"
	service "github.com/okian/asamblea/internal/app"
	"github.com/okian/asamblea/internal/domain/report"
	"github.com/okian/asamblea/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fullQueue refuses every intervention as if the queue were full.
type fullQueue struct {
	api.Dependencies
}

func (fullQueue) SubmitIncrement(ctx context.Context, id, assemblyID, gender, typ string) (bool, error) {
	return false, service.ErrQueueFull
}

// brokenStore fails every stats read with an unexpected error.
type brokenStore struct {
	api.Dependencies
}

func (brokenStore) Stats(ctx context.Context, assemblyID string) (service.Report, error) {
	return service.Report{}, errors.New("disk on fire")
}

type testServer struct {
	svc *service.Service
	mux *http.ServeMux
}

func newTestServer(t *testing.T, wrap func(api.Dependencies) api.Dependencies) *testServer {
	t.Helper()
	svc := service.New(service.WithLogger(logger.Nop()), service.WithWorkerCount(2))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)

	var deps api.Dependencies = svc
	if wrap != nil {
		deps = wrap(deps)
	}
	mux := http.NewServeMux()
	api.NewServer(deps, svc).Register(mux)
	return &testServer{svc: svc, mux: mux}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	So(ts.svc.Flush(ctx), ShouldBeNil)
}

func decode[T any](rec *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(rec.Body.Bytes(), &v), ShouldBeNil)
	return v
}

const assemblyBody = `{"id":"asm-1","name":"Asamblea general","date":"2024-03-08","type":"ordinary",
"registered_by":{"name":"Marta","gender":"woman"},
"start_time":"2024-03-08T18:00:00Z","end_time":"2024-03-08T19:30:00Z"}`

func TestAssemblies(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer(t, nil)

		Convey("When creating an assembly", func() {
			rec := ts.do(http.MethodPost, "/assemblies", assemblyBody)

			Convey("Then it should be created", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				got := decode[map[string]any](rec)
				So(got["id"], ShouldEqual, "asm-1")
				So(got["type"], ShouldEqual, "ordinary")
			})

			Convey("Then it should be listed and fetchable", func() {
				list := ts.do(http.MethodGet, "/assemblies", "")
				So(list.Code, ShouldEqual, http.StatusOK)
				So(decode[[]map[string]any](list), ShouldHaveLength, 1)

				one := ts.do(http.MethodGet, "/assemblies/asm-1", "")
				So(one.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then creating it again should conflict", func() {
				again := ts.do(http.MethodPost, "/assemblies", assemblyBody)
				So(again.Code, ShouldEqual, http.StatusConflict)
				So(decode[map[string]string](again)["code"], ShouldEqual, "conflict")
			})

			Convey("Then stats should include the duration", func() {
				st := ts.do(http.MethodGet, "/assemblies/asm-1/stats", "")
				So(st.Code, ShouldEqual, http.StatusOK)
				got := decode[map[string]any](st)
				So(got["duration"], ShouldEqual, "1h 30m")
				So(got["has_duration"], ShouldEqual, true)
			})
		})

		Convey("Invalid bodies should be rejected", func() {
			So(ts.do(http.MethodPost, "/assemblies", `{"name":"x","date":"08/03/2024"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/assemblies", `{"name":"x","date":"2024-03-08","registered_by":{"gender":"robot"}}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/assemblies", `not json`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/assemblies", `{"name":"x","date":"2024-03-08","colour":"red"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown assemblies should be not found", func() {
			rec := ts.do(http.MethodGet, "/assemblies/nope", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(decode[map[string]string](rec)["code"], ShouldEqual, "not_found")
			So(ts.do(http.MethodGet, "/assemblies/nope/chart", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Wrong methods should not be routed", func() {
			So(ts.do(http.MethodPatch, "/assemblies", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestInterventions(t *testing.T) {
	Convey("Given an assembly", t, func() {
		ts := newTestServer(t, nil)
		So(ts.do(http.MethodPost, "/assemblies", assemblyBody).Code, ShouldEqual, http.StatusCreated)

		Convey("When interventions are posted", func() {
			So(ts.do(http.MethodPost, "/assemblies/asm-1/interventions", `{"id":"s1","gender":"woman","type":"explains"}`).Code, ShouldEqual, http.StatusAccepted)
			So(ts.do(http.MethodPost, "/assemblies/asm-1/interventions", `{"id":"s2","gender":"woman","type":"explains"}`).Code, ShouldEqual, http.StatusAccepted)
			So(ts.do(http.MethodPost, "/assemblies/asm-1/interventions", `{"id":"s3","gender":"man","type":"interruption"}`).Code, ShouldEqual, http.StatusAccepted)
			ts.flush()

			Convey("Then the chart should reflect them", func() {
				rec := ts.do(http.MethodGet, "/assemblies/asm-1/chart", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				rows := decode[[]report.ChartRow](rec)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Interrupt, ShouldEqual, 1)
				So(rows[1].Explain, ShouldEqual, 2)
			})

			Convey("Then a retry should be acknowledged as duplicate", func() {
				rec := ts.do(http.MethodPost, "/assemblies/asm-1/interventions", `{"id":"s1","gender":"woman","type":"explains"}`)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](rec)["duplicate"], ShouldEqual, true)
			})

			Convey("Then a decrement should remove one", func() {
				rec := ts.do(http.MethodDelete, "/assemblies/asm-1/interventions?gender=woman&type=explains", "")
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				ts.flush()
				rows := decode[[]report.ChartRow](ts.do(http.MethodGet, "/assemblies/asm-1/chart", ""))
				So(rows[1].Explain, ShouldEqual, 1)
			})

			Convey("Then the chart page should render", func() {
				rec := ts.do(http.MethodGet, "/assemblies/asm-1/chart.html", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/html")
				So(rec.Body.String(), ShouldContainSubstring, "Asamblea general")
			})

			Convey("Then the report should start with the heading", func() {
				rec := ts.do(http.MethodGet, "/assemblies/asm-1/report", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				ops := decode[[]report.DrawOp](rec)
				So(ops[0].Kind, ShouldEqual, report.OpHeading)
				So(ops[0].Text, ShouldEqual, "Asamblea general")
			})
		})

		Convey("Unknown enums should be a bad request", func() {
			rec := ts.do(http.MethodPost, "/assemblies/asm-1/interventions", `{"id":"s9","gender":"robot","type":"explains"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			rec = ts.do(http.MethodDelete, "/assemblies/asm-1/interventions?gender=woman&type=yelling", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given a full queue", t, func() {
		ts := newTestServer(t, func(d api.Dependencies) api.Dependencies { return fullQueue{d} })
		So(ts.do(http.MethodPost, "/assemblies", assemblyBody).Code, ShouldEqual, http.StatusCreated)

		Convey("Then submissions should be refused with 429", func() {
			rec := ts.do(http.MethodPost, "/assemblies/asm-1/interventions", `{"id":"s1","gender":"woman","type":"explains"}`)
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode[map[string]string](rec)["code"], ShouldEqual, "backpressure")
		})
	})

	Convey("Given a failing dependency", t, func() {
		ts := newTestServer(t, func(d api.Dependencies) api.Dependencies { return brokenStore{d} })

		Convey("Then the error should surface as 500", func() {
			rec := ts.do(http.MethodGet, "/assemblies/asm-1/stats", "")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[map[string]string](rec)["code"], ShouldEqual, "internal")
		})
	})
}

func TestAttendanceAndPeople(t *testing.T) {
	Convey("Given an assembly and a directory", t, func() {
		ts := newTestServer(t, nil)
		So(ts.do(http.MethodPost, "/assemblies", assemblyBody).Code, ShouldEqual, http.StatusCreated)
		So(ts.do(http.MethodPost, "/people", `{"id":"p1","name":"Ana","surname":"Zamora","gender":"female"}`).Code, ShouldEqual, http.StatusOK)
		So(ts.do(http.MethodPost, "/people", `{"id":"p2","name":"Luis","surname":"Álvarez","gender":"man"}`).Code, ShouldEqual, http.StatusOK)

		So(ts.do(http.MethodPut, "/assemblies/asm-1/attendance/p1", `{"mode":"online"}`).Code, ShouldEqual, http.StatusAccepted)
		So(ts.do(http.MethodPut, "/assemblies/asm-1/attendance/p2", `{"present":false}`).Code, ShouldEqual, http.StatusAccepted)
		ts.flush()

		Convey("Then people should be listed by surname", func() {
			people := decode[[]map[string]any](ts.do(http.MethodGet, "/people", ""))
			So(people, ShouldHaveLength, 2)
			So(people[0]["surname"], ShouldEqual, "Álvarez")
			So(people[1]["gender"], ShouldEqual, "woman")
		})

		Convey("Then roles should only go to present attendees", func() {
			So(ts.do(http.MethodPut, "/assemblies/asm-1/roles", `{"moderator_id":"p1"}`).Code, ShouldEqual, http.StatusOK)
			rec := ts.do(http.MethodPut, "/assemblies/asm-1/roles", `{"moderator_id":"p1","secretary_id":"p2"}`)
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Then the exports should be CSV", func() {
			rec := ts.do(http.MethodGet, "/exports/assemblies.csv", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
			So(rec.Body.String(), ShouldContainSubstring, "Asamblea general,2024-03-08,ordinary,0,1,1")

			rec = ts.do(http.MethodGet, "/exports/people.csv", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "Ana Zamora,1,1,0,100.0%,100.0%,0.0%")
		})

		Convey("Then deleting attendance should be accepted", func() {
			So(ts.do(http.MethodDelete, "/assemblies/asm-1/attendance/p1", "").Code, ShouldEqual, http.StatusAccepted)
			ts.flush()
			st := decode[map[string]any](ts.do(http.MethodGet, "/assemblies/asm-1/stats", ""))
			So(st["attendance"].(map[string]any)["total"], ShouldEqual, 0)
		})

		Convey("Invalid attendance should be a bad request", func() {
			So(ts.do(http.MethodPut, "/assemblies/asm-1/attendance/p1", `{"mode":"telepathy"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPut, "/assemblies/nope/attendance/p1", `{}`).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestImport(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer(t, nil)
		csvData := "id;nombre;apellidos;genero\np1;Ana;García;mujer\np2;Luis;Pérez;man\n"

		Convey("A raw CSV body should be imported", func() {
			rec := ts.do(http.MethodPost, "/people/import", "id,name,surname,gender\np1,Ana,García,woman\n")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]any](rec)["imported"], ShouldEqual, 1)
		})

		Convey("A multipart upload should be imported", func() {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			fw, err := mw.CreateFormFile("file", "socias.csv")
			So(err, ShouldBeNil)
			_, _ = fw.Write([]byte(csvData))
			So(mw.Close(), ShouldBeNil)

			req := httptest.NewRequest(http.MethodPost, "/people/import", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := httptest.NewRecorder()
			ts.mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			got := decode[map[string]any](rec)
			So(got["imported"], ShouldEqual, 1)
			So(got["rejected"], ShouldHaveLength, 1)
		})

		Convey("An empty file should be a bad request", func() {
			So(ts.do(http.MethodPost, "/people/import", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer(t, nil)

		Convey("healthz should expose Prometheus metrics", func() {
			_ = ts.do(http.MethodGet, "/stats", "")
			rec := ts.do(http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "asamblea_")
		})

		Convey("stats should report the service state", func() {
			rec := ts.do(http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]any](rec)["started"], ShouldEqual, true)
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("KindError should match both its kind and its cause", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		So(api.NewKind("api.op", api.ErrBackpressure).Error(), ShouldEqual, "api.op: backpressure")
	})
}
