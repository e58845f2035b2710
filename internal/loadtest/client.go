package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
	"github.com/okian/devrank/pkg/logger"
)

type client struct {
	http *http.Client
	base string
	log  logger.Logger
}

func newClient(cfg Config) *client {
	h := cfg.Client
	if h == nil {
		h = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{http: h, base: cfg.BaseURL, log: logger.GetOrNop().Named("loadtest")}
}

func (c *client) health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// submitAll posts every developer with at most workers requests in flight.
// Individual failures are counted, not returned.
func (c *client) submitAll(ctx context.Context, devs []developer, workers int) (ok, failed int) {
	var nOK, nFailed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, d := range devs {
		g.Go(func() error {
			if err := c.submit(gctx, d); err != nil {
				nFailed.Add(1)
				c.log.Debug(gctx, "score request failed", logger.String("username", d.Username), logger.Error(err))
				return nil
			}
			nOK.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(nOK.Load()), int(nFailed.Load())
}

func (c *client) submit(ctx context.Context, d developer) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/scores", body)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// ranks looks up every developer; ones the service does not know are skipped.
func (c *client) ranks(ctx context.Context, devs []developer, workers int) ([]types.Entry, error) {
	var (
		mu  sync.Mutex
		out = make([]types.Entry, 0, len(devs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, d := range devs {
		g.Go(func() error {
			resp, err := c.do(gctx, http.MethodGet, "/rank/"+url.PathEscape(d.Username), nil)
			if err != nil {
				return err
			}
			if resp.StatusCode == http.StatusNotFound {
				_ = resp.Body.Close()
				return nil
			}
			var e types.Entry
			if err := decode(resp, &e); err != nil {
				return fmt.Errorf("rank %s: %w", d.Username, err)
			}
			mu.Lock()
			out = append(out, e)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) leaderboard(ctx context.Context, mode scoring.Mode, n int) ([]types.Entry, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(n))
	q.Set("mode", string(mode))
	resp, err := c.do(ctx, http.MethodGet, "/leaderboard?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var board []types.Entry
	if err := decode(resp, &board); err != nil {
		return nil, err
	}
	return board, nil
}

func (c *client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// decode closes the body and decodes it into out when out is non-nil.
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
