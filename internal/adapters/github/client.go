// Package github fetches developer activity from the GitHub REST API and
// aggregates it into scoring input.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/devrank/pkg/logger"
	"github.com/okian/devrank/pkg/metrics"
)

const (
	defaultBaseURL  = "https://api.github.com"
	defaultPerPage  = 100
	defaultMaxPages = 10
	acceptHeader    = "application/vnd.github.v3+json"
	userAgent       = "devrank"
	maxErrorBody    = 1 << 10
)

// Client is a small GitHub REST v3 client. All list calls are paginated.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  *RateLimiter
	retry    RetryPolicy
	perPage  int
	maxPages int
	log      logger.Logger
}

// NewClient creates a client with configuration options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		http:     &http.Client{},
		retry:    DefaultRetryPolicy(),
		perPage:  defaultPerPage,
		maxPages: defaultMaxPages,
		log:      logger.GetOrNop().Named("github"),
	}
	for _, opt := range opts {
		opt(c)
	}

	userHook := c.retry.OnRetry
	c.retry.OnRetry = func(attempt int, err error) {
		metrics.RecordGitHubRetry()
		c.log.Warn(context.Background(), "retrying github request",
			logger.Int("attempt", attempt),
			logger.Error(err))
		if userHook != nil {
			userHook(attempt, err)
		}
	}
	return c
}

// get fetches path into out under the retry policy. A false return with a nil
// error means the resource does not exist and notFoundOK was set.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any, notFoundOK bool) (bool, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	found := true
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		found = true
		err := c.do(ctx, u, out)
		if notFoundOK && isNotFound(err) {
			found = false
			return nil
		}
		return err
	})
	return found, err
}

func (c *Client) do(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordGitHubRequest("error", latency)
		return err
	}
	defer resp.Body.Close()
	metrics.RecordGitHubRequest(statusClass(resp.StatusCode), latency)

	if rl := rateLimit(resp); rl != nil {
		metrics.RecordGitHubRateLimited()
		c.log.Warn(ctx, "github rate limit exhausted", logger.String("reset", rl.Reset.Format(time.RFC3339)))
		return rl
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, URL: u}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decode %s: %w", u, err)
	}
	return nil
}

// rateLimit recognises an exhausted primary rate limit.
func rateLimit(resp *http.Response) *RateLimitError {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return nil
	}
	rl := &RateLimitError{}
	if sec, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.Reset = time.Unix(sec, 0)
	}
	return rl
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// list walks every page of a list endpoint, stopping at a short page or maxPages.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(c.perPage))

	var all []T
	for page := 1; page <= c.maxPages; page++ {
		query.Set("page", strconv.Itoa(page))
		var batch []T
		found, err := c.get(ctx, path, query, &batch, true)
		if err != nil {
			return nil, err
		}
		if !found {
			return all, nil
		}
		all = append(all, batch...)
		if len(batch) < c.perPage {
			break
		}
	}
	return all, nil
}

func repoPath(owner, repo string, tail string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + tail
}

// GetUser returns the public profile of username.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, ErrEmptyUser
	}
	var u User
	if _, err := c.get(ctx, "/users/"+url.PathEscape(username), nil, &u, false); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListRepos returns the repositories owned by username.
func (c *Client) ListRepos(ctx context.Context, username string) ([]Repo, error) {
	return list[Repo](ctx, c, "/users/"+url.PathEscape(username)+"/repos", url.Values{"type": {"owner"}})
}

// CountCommits counts commits in owner/repo authored by author. Empty
// repositories (409) and missing ones count as zero.
func (c *Client) CountCommits(ctx context.Context, owner, repo, author string) (int64, error) {
	commits, err := list[commit](ctx, c, repoPath(owner, repo, "/commits"), url.Values{"author": {author}})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
			return 0, nil
		}
		return 0, err
	}
	return int64(len(commits)), nil
}

// ListPulls returns every pull request of owner/repo in any state.
func (c *Client) ListPulls(ctx context.Context, owner, repo string) ([]Pull, error) {
	return list[Pull](ctx, c, repoPath(owner, repo, "/pulls"), url.Values{"state": {"all"}})
}

// CountIssues counts issues of owner/repo in any state, excluding pull requests.
func (c *Client) CountIssues(ctx context.Context, owner, repo string) (int64, error) {
	issues, err := list[Issue](ctx, c, repoPath(owner, repo, "/issues"), url.Values{"state": {"all"}})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, is := range issues {
		if is.PullRequest == nil {
			n++
		}
	}
	return n, nil
}

// CountReviews counts reviews on one pull request.
func (c *Client) CountReviews(ctx context.Context, owner, repo string, number int) (int64, error) {
	reviews, err := list[review](ctx, c, repoPath(owner, repo, "/pulls/"+strconv.Itoa(number)+"/reviews"), nil)
	if err != nil {
		return 0, err
	}
	return int64(len(reviews)), nil
}

// CountContributors counts contributors of owner/repo.
func (c *Client) CountContributors(ctx context.Context, owner, repo string) (int64, error) {
	contributors, err := list[contributor](ctx, c, repoPath(owner, repo, "/contributors"), nil)
	if err != nil {
		return 0, err
	}
	return int64(len(contributors)), nil
}

// HasReadme reports whether owner/repo has a README.
func (c *Client) HasReadme(ctx context.Context, owner, repo string) (bool, error) {
	return c.get(ctx, repoPath(owner, repo, "/readme"), nil, nil, true)
}

// Languages returns bytes of code per language in owner/repo.
func (c *Client) Languages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	langs := map[string]int64{}
	if _, err := c.get(ctx, repoPath(owner, repo, "/languages"), nil, &langs, true); err != nil {
		return nil, err
	}
	return langs, nil
}
