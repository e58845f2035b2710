package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/devrank/internal/adapters/http/api"
	"github.com/okian/devrank/internal/adapters/mq/queue"
	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/domain/dedupe"
	"github.com/okian/devrank/internal/domain/model"
	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
)

type fakeDeps struct {
	dedupe.Deduper

	engine   *scoring.Engine
	saved    []scoring.ScoreResult
	enqueued []model.Job
	enqErr   error
	records  map[string]repository.Record
	board    []types.Entry
	lastMode scoring.Mode
	lastN    int
	topErr   error
}

func newFakeDeps() *fakeDeps {
	e, err := scoring.NewEngine(scoring.DefaultWeightConfig())
	if err != nil {
		panic(err)
	}
	return &fakeDeps{
		Deduper: dedupe.NewInMemoryDeduper(),
		engine:  e,
		records: map[string]repository.Record{},
	}
}

func (f *fakeDeps) Score(_ context.Context, mode scoring.Mode, in scoring.MetricsInput, repos []scoring.RepoSignal, save bool) (scoring.ScoreResult, error) {
	res, err := f.engine.Evaluate(mode, in, repos)
	if err != nil {
		return scoring.ScoreResult{}, err
	}
	if save {
		f.saved = append(f.saved, res)
	}
	return res, nil
}

func (f *fakeDeps) DefaultMode() scoring.Mode { return scoring.ModeWeightedPercentile }

func (f *fakeDeps) Enqueue(_ context.Context, job model.Job) error {
	if f.enqErr != nil {
		return f.enqErr
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeDeps) Developer(_ context.Context, id string) (repository.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return repository.Record{}, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeDeps) TopN(_ context.Context, mode scoring.Mode, n int) ([]types.Entry, error) {
	f.lastMode, f.lastN = mode, n
	if f.topErr != nil {
		return nil, f.topErr
	}
	if n > len(f.board) {
		return f.board, nil
	}
	return f.board[:n], nil
}

func (f *fakeDeps) Rank(_ context.Context, id string) (types.Entry, error) {
	for _, e := range f.board {
		if e.DeveloperID == id {
			return e, nil
		}
	}
	return types.Entry{}, repository.ErrNotFound
}

type fakeStats map[string]any

func (s fakeStats) GetStats() map[string]any { return s }

func newMux(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{"developers": 3}, 50).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the API mux", t, func() {
		mux := newMux(newFakeDeps())

		Convey("/healthz serves Prometheus text", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "devrank_")
		})

		Convey("/stats serves the provider map", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"developers":3`)
		})

		Convey("wrong methods are 404", func() {
			So(do(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/v1/scores", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPostScore(t *testing.T) {
	Convey("Given POST /v1/scores", t, func() {
		deps := newFakeDeps()
		mux := newMux(deps)

		Convey("all-median counts score a percentile of 100", func() {
			w := do(mux, http.MethodPost, "/v1/scores",
				`{"username":"octocat","commits":1000,"pulls":50,"issues":25,"reviews":2,"stars":50,"followers":10}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var res scoring.ScoreResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res.RawPercentile, ShouldEqual, 100)
			So(res.Grade, ShouldEqual, "C")
			So(res.SmoothedScore, ShouldEqual, 2.7)
			So(deps.saved, ShouldBeEmpty)
		})

		Convey("save=true persists", func() {
			w := do(mux, http.MethodPost, "/v1/scores", `{"username":"octocat","commits":5,"save":true}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.saved, ShouldHaveLength, 1)
		})

		Convey("save without a username is rejected", func() {
			w := do(mux, http.MethodPost, "/v1/scores", `{"commits":5,"save":true}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("point mode uses the supplied repositories", func() {
			w := do(mux, http.MethodPost, "/v1/scores",
				`{"mode":"points","repos":[{"name":"DevRank","contributors":2,"has_readme":true,"commits":10}]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var res scoring.ScoreResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res.Points, ShouldEqual, 15)
			So(res.Grade, ShouldEqual, "C")
		})

		Convey("negative counts are a 400 naming the field", func() {
			w := do(mux, http.MethodPost, "/v1/scores", `{"stars":-1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_metric")
			So(w.Body.String(), ShouldContainSubstring, "stars")
		})

		Convey("unknown modes and fields are rejected", func() {
			So(errorCode(do(mux, http.MethodPost, "/v1/scores", `{"mode":"elo"}`)), ShouldEqual, "unknown_mode")
			So(do(mux, http.MethodPost, "/v1/scores", `{"karma":3}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/v1/scores", `{`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPostEvaluation(t *testing.T) {
	Convey("Given POST /v1/evaluations", t, func() {
		deps := newFakeDeps()
		mux := newMux(deps)

		Convey("a new request is accepted and enqueued", func() {
			w := do(mux, http.MethodPost, "/v1/evaluations", `{"request_id":"r1","username":"octocat","mode":"points"}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued, ShouldHaveLength, 1)
			So(deps.enqueued[0].JobID, ShouldEqual, "r1")
			So(deps.enqueued[0].Mode, ShouldEqual, scoring.ModePointThreshold)
			So(deps.enqueued[0].RequestedAt.IsZero(), ShouldBeFalse)

			Convey("and the same id is a duplicate", func() {
				w := do(mux, http.MethodPost, "/v1/evaluations", `{"request_id":"r1","username":"octocat"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("a missing request id is generated", func() {
			w := do(mux, http.MethodPost, "/v1/evaluations", `{"username":"octocat"}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued[0].JobID, ShouldHaveLength, 36)
			So(deps.enqueued[0].Mode, ShouldEqual, scoring.ModeWeightedPercentile)
		})

		Convey("backpressure is a 429 and the id can be retried", func() {
			deps.enqErr = queue.ErrFull
			w := do(mux, http.MethodPost, "/v1/evaluations", `{"request_id":"r2","username":"octocat"}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(errorCode(w), ShouldEqual, "backpressure")

			deps.enqErr = nil
			w = do(mux, http.MethodPost, "/v1/evaluations", `{"request_id":"r2","username":"octocat"}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("a closed queue is a 503", func() {
			deps.enqErr = queue.ErrClosed
			So(do(mux, http.MethodPost, "/v1/evaluations", `{"username":"octocat"}`).Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("a missing username is a 400", func() {
			So(do(mux, http.MethodPost, "/v1/evaluations", `{"request_id":"r3"}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReads(t *testing.T) {
	Convey("Given stored developers", t, func() {
		deps := newFakeDeps()
		deps.records["octocat"] = repository.Record{DeveloperID: "octocat", Result: scoring.ScoreResult{Grade: "B"}}
		deps.board = []types.Entry{
			{Rank: 1, DeveloperID: "octocat", Score: 80, Grade: "C+"},
			{Rank: 2, DeveloperID: "hubot", Score: 40, Grade: "B+"},
		}
		mux := newMux(deps)

		Convey("GET /v1/developers/{id} returns the record", func() {
			w := do(mux, http.MethodGet, "/v1/developers/octocat", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"developer_id":"octocat"`)
			So(do(mux, http.MethodGet, "/v1/developers/ghost", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/v1/developers/", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /leaderboard applies limit and mode", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=1&mode=points", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(deps.lastMode, ShouldEqual, scoring.ModePointThreshold)
		})

		Convey("GET /leaderboard defaults the limit", func() {
			So(do(mux, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusOK)
			So(deps.lastN, ShouldEqual, 10)
			So(deps.lastMode, ShouldEqual, scoring.ModeWeightedPercentile)
		})

		Convey("GET /leaderboard validates the limit", func() {
			So(do(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboard?limit=x", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodGet, "/leaderboard?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "limit_exceeded")
		})

		Convey("store failures are a 500 without internals", func() {
			deps.topErr = errors.New("disk on fire")
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "disk")
		})

		Convey("GET /rank/{id}", func() {
			w := do(mux, http.MethodGet, "/rank/hubot", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rank":2`)
			So(do(mux, http.MethodGet, "/rank/ghost", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/rank/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("API errors expose kind and cause", t, func() {
		cause := errors.New("missing username")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "bad request: missing username")
		So(api.NewKind("api.op", api.ErrBackpressure).Error(), ShouldEqual, "backpressure")
		So(api.Wrap("api.op", nil), ShouldBeNil)
		So(errors.Is(api.Wrap("api.op", repository.ErrNotFound), repository.ErrNotFound), ShouldBeTrue)
	})
}
