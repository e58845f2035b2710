package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/devrank/internal/adapters/http/api"
)

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given an instrumented API", t, func() {
		mux := newMux(newFakeDeps())

		Convey("error responses are counted under their API error code", func() {
			So(do(mux, http.MethodPost, "/v1/scores", `{"pulls":-3}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/rank/nobody", "").Code, ShouldEqual, http.StatusNotFound)

			body := do(mux, http.MethodGet, "/healthz", "").Body.String()
			So(body, ShouldContainSubstring, `error_type="invalid_metric"`)
			So(body, ShouldContainSubstring, `endpoint="rank"`)
			So(body, ShouldNotContainSubstring, `nobody`)
		})

		Convey("handlers that write no header record a 200", func() {
			h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}, "plain")
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/plain", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)

			body := do(mux, http.MethodGet, "/healthz", "").Body.String()
			So(body, ShouldContainSubstring, `endpoint="plain"`)
		})
	})
}
