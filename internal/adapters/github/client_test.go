package github_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/devrank/internal/adapters/github"
)

func newTestClient(srv *httptest.Server, opts ...github.ClientOption) *github.Client {
	base := []github.ClientOption{
		github.WithBaseURL(srv.URL),
		github.WithToken("secret"),
		github.WithRetryPolicy(github.RetryPolicy{MaxAttempts: 3}),
		github.WithPagination(2, 5),
	}
	return github.NewClient(append(base, opts...)...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientRequests(t *testing.T) {
	ctx := context.Background()

	Convey("Given a GitHub API stub", t, func() {
		var lastAuth, lastAccept string
		mux := http.NewServeMux()
		mux.HandleFunc("/users/octo", func(w http.ResponseWriter, r *http.Request) {
			lastAuth = r.Header.Get("Authorization")
			lastAccept = r.Header.Get("Accept")
			writeJSON(w, map[string]any{"login": "octo", "followers": 42, "public_repos": 3})
		})
		mux.HandleFunc("/users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			switch page {
			case 1:
				writeJSON(w, []map[string]any{{"name": "a"}, {"name": "b"}})
			case 2:
				writeJSON(w, []map[string]any{{"name": "c", "stargazers_count": 7}})
			default:
				t.Errorf("unexpected page %d", page)
			}
		})
		mux.HandleFunc("/repos/octo/a/issues", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, []map[string]any{{"number": 1}, {"number": 2, "pull_request": map[string]any{}}})
		})
		mux.HandleFunc("/repos/octo/a/commits", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("author") != "octo" {
				t.Errorf("author filter missing")
			}
			writeJSON(w, []map[string]any{{"sha": "1"}})
		})
		mux.HandleFunc("/repos/octo/empty/commits", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})
		mux.HandleFunc("/repos/octo/a/readme", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"name": "README.md"})
		})
		mux.HandleFunc("/repos/octo/a/languages", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]int64{"Go": 1200, "Shell": 30})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		client := newTestClient(srv)

		Convey("When fetching a user", func() {
			u, err := client.GetUser(ctx, "octo")

			Convey("Then the profile is decoded with token auth", func() {
				So(err, ShouldBeNil)
				So(u.Followers, ShouldEqual, 42)
				So(lastAuth, ShouldEqual, "token secret")
				So(lastAccept, ShouldEqual, "application/vnd.github.v3+json")
			})
		})

		Convey("When fetching an unknown user", func() {
			_, err := client.GetUser(ctx, "ghost")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, github.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When listing repositories across pages", func() {
			repos, err := client.ListRepos(ctx, "octo")

			Convey("Then pagination stops at the short page", func() {
				So(err, ShouldBeNil)
				So(repos, ShouldHaveLength, 3)
				So(repos[2].StargazersCount, ShouldEqual, 7)
			})
		})

		Convey("When counting issues", func() {
			n, err := client.CountIssues(ctx, "octo", "a")

			Convey("Then pull requests are excluded", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When counting commits", func() {
			n, err := client.CountCommits(ctx, "octo", "a", "octo")
			empty, emptyErr := client.CountCommits(ctx, "octo", "empty", "octo")

			Convey("Then commits are counted and empty repositories count zero", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(emptyErr, ShouldBeNil)
				So(empty, ShouldEqual, 0)
			})
		})

		Convey("When checking for a README", func() {
			has, err := client.HasReadme(ctx, "octo", "a")
			missing, missingErr := client.HasReadme(ctx, "octo", "b")

			Convey("Then a 404 means no README", func() {
				So(err, ShouldBeNil)
				So(has, ShouldBeTrue)
				So(missingErr, ShouldBeNil)
				So(missing, ShouldBeFalse)
			})
		})

		Convey("When reading languages", func() {
			langs, err := client.Languages(ctx, "octo", "a")

			Convey("Then byte counts are returned", func() {
				So(err, ShouldBeNil)
				So(langs, ShouldResemble, map[string]int64{"Go": 1200, "Shell": 30})
			})
		})

		Convey("When a username is empty", func() {
			_, err := client.GetUser(ctx, "")
			So(err, ShouldEqual, github.ErrEmptyUser)
		})
	})
}

func TestClientFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a server that fails twice then succeeds", t, func() {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) <= 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(w, map[string]any{"login": "octo"})
		}))
		defer srv.Close()

		u, err := newTestClient(srv).GetUser(ctx, "octo")

		Convey("Then the retry policy recovers", func() {
			So(err, ShouldBeNil)
			So(u.Login, ShouldEqual, "octo")
			So(hits.Load(), ShouldEqual, 3)
		})
	})

	Convey("Given a server that always fails", t, func() {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).GetUser(ctx, "octo")

		Convey("Then the status error surfaces after three attempts", func() {
			var se *github.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode, ShouldEqual, http.StatusInternalServerError)
			So(hits.Load(), ShouldEqual, 3)
		})
	})

	Convey("Given an exhausted rate limit", t, func() {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", "1700000000")
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).GetUser(ctx, "octo")

		Convey("Then a RateLimitError carries the reset time and is not retried", func() {
			var rl *github.RateLimitError
			So(errors.As(err, &rl), ShouldBeTrue)
			So(rl.Reset.Unix(), ShouldEqual, 1700000000)
			So(hits.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given a 403 that is not a rate limit", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-RateLimit-Remaining", "4000")
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).GetUser(ctx, "octo")

		Convey("Then it is a plain status error", func() {
			var se *github.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(errors.Is(err, github.ErrRateLimited), ShouldBeFalse)
		})
	})

	Convey("Given a page cap smaller than the data", t, func() {
		var pages atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pages.Add(1)
			writeJSON(w, []map[string]any{{"name": fmt.Sprintf("r%s-1", r.URL.Query().Get("page"))}, {"name": "x"}})
		}))
		defer srv.Close()

		repos, err := newTestClient(srv, github.WithPagination(2, 3)).ListRepos(ctx, "octo")

		Convey("Then listing stops at MaxPages", func() {
			So(err, ShouldBeNil)
			So(repos, ShouldHaveLength, 6)
			So(pages.Load(), ShouldEqual, 3)
		})
	})
}
