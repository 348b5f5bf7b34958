// Package client implements the REST adapter for the cluster scheduler HTTP
// API: authenticated GETs with token pagination, bounded exponential-backoff
// retry on transient failures, and rate limiting.
package client

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-nomad/pkg/config"
	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

const (
	headerAuthToken = "X-Nomad-Token"
	headerNextToken = "X-Nomad-NextToken"
)

// Pager is a pull-based page cursor. Each Next call fetches one page of raw
// records; ok=false signals the sequence is exhausted. A Pager is finite and
// non-restartable.
type Pager interface {
	Next(ctx context.Context) (page []gojson.RawMessage, ok bool, err error)
}

// Client is the source API adapter. It is safe for sequential use by one
// stream at a time, which is the only access pattern the sync engine has.
type Client struct {
	baseURL    string
	token      string
	namespace  string
	pageSize   int
	httpClient *http.Client
	retry      *RetryPolicy
	limiter    *rateLimiter
	logger     *zap.Logger
}

// New creates a Client from the resolved tap configuration.
func New(cfg *config.Config, log *zap.Logger) *Client {
	retry := &RetryPolicy{
		MaxAttempts:     cfg.Reliability.RetryAttempts,
		InitialDelay:    cfg.Reliability.RetryDelay,
		MaxDelay:        cfg.Reliability.MaxRetryDelay,
		Multiplier:      cfg.Reliability.RetryMultiplier,
		RandomizeFactor: 0.25,
	}

	return &Client{
		baseURL:   cfg.APIURL,
		token:     cfg.Token,
		namespace: cfg.Namespace,
		pageSize:  cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeouts.Request,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.Timeouts.Connection,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
			},
		},
		retry:   retry,
		limiter: newRateLimiter(cfg.Reliability.RateLimitPerSec),
		logger:  log,
	}
}

// Fetch returns a fresh cursor over the given endpoint. Pagination is
// transparent: the cursor follows the continuation token from each response
// and terminates when the source stops returning one.
func (c *Client) Fetch(path string, params url.Values) Pager {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	if c.pageSize > 0 {
		merged.Set("per_page", strconv.Itoa(c.pageSize))
	}
	if c.namespace != "" && !merged.Has("namespace") {
		merged.Set("namespace", c.namespace)
	}

	return &cursor{client: c, path: path, params: merged}
}

// cursor drives token pagination over one endpoint. There is no hidden
// global cursor state; each Fetch call owns its own.
type cursor struct {
	client    *Client
	path      string
	params    url.Values
	nextToken string
	started   bool
	done      bool
}

// Next fetches the next page. The final page is the one whose response
// carries no continuation token.
func (cur *cursor) Next(ctx context.Context) ([]gojson.RawMessage, bool, error) {
	if cur.done {
		return nil, false, nil
	}

	params := cur.params
	if cur.started {
		params = cloneValues(cur.params)
		params.Set("next_token", cur.nextToken)
	}
	cur.started = true

	page, nextToken, err := cur.client.getPage(ctx, cur.path, params)
	if err != nil {
		cur.done = true
		return nil, false, err
	}

	cur.nextToken = nextToken
	if nextToken == "" {
		cur.done = true
	}
	return page, true, nil
}

// getPage performs one GET with rate limiting and retry, returning the
// decoded page and the continuation token from the response header.
func (c *Client) getPage(ctx context.Context, path string, params url.Values) ([]gojson.RawMessage, string, error) {
	var page []gojson.RawMessage
	var nextToken string

	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeCancelled, "rate limit wait cancelled")
		}

		reqURL := c.baseURL + path
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeSourceRequest, "failed to build request").
				WithDetail("path", path)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set(headerAuthToken, c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeConnection, "request failed").
				WithDetail("path", path)
		}
		defer resp.Body.Close()

		if err := classifyStatus(path, resp); err != nil {
			// Drain so the connection can be reused
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to read response body").
				WithDetail("path", path)
		}

		var decoded []gojson.RawMessage
		if err := gojson.Unmarshal(body, &decoded); err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeMalformedRecord, "response is not a JSON array").
				WithDetail("path", path)
		}

		page = decoded
		nextToken = resp.Header.Get(headerNextToken)
		return nil
	}

	err := c.retry.ExecuteWithCondition(ctx, attempt, taperrors.IsRetryable)
	if err != nil {
		c.logger.Warn("page fetch failed",
			zap.String("path", path),
			zap.Error(err))
		return nil, "", err
	}

	c.logger.Debug("page fetched",
		zap.String("path", path),
		zap.Int("records", len(page)),
		zap.Bool("has_next", nextToken != ""))
	return page, nextToken, nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 5xx and
// 429 are transient and retried, any other non-200 fails the stream
// immediately.
func classifyStatus(path string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return taperrors.Newf(taperrors.ErrorTypeRateLimit, "source rate limited request to %s", path).
			WithDetail("path", path).
			WithDetail("status", resp.StatusCode)
	case resp.StatusCode >= 500:
		return taperrors.Newf(taperrors.ErrorTypeConnection, "source returned %d for %s", resp.StatusCode, path).
			WithDetail("path", path).
			WithDetail("status", resp.StatusCode)
	default:
		return taperrors.Newf(taperrors.ErrorTypeSourceRequest, "source rejected request to %s with %d", path, resp.StatusCode).
			WithDetail("path", path).
			WithDetail("status", resp.StatusCode)
	}
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
