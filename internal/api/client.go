// Package api implements the HTTP client for the dashboard's drive proxy API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/http"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/metrics"
	"github.com/fedesuarez16/opting-sub000/internal/models"
	"github.com/fedesuarez16/opting-sub000/internal/ratelimit"
)

const backendName = "http"

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 * 1024

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client is the drive proxy API client. It implements cloud.FolderSource.
type Client struct {
	httpClient *nethttp.Client
	retry      *retryablehttp.Client
	baseURL    string
	token      string
	cache      *responseCache
	logger     *logging.Logger
	now        func() time.Time
	maxPages   int
	limiter    *ratelimit.RateLimiter
	limiterSet bool
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock overrides the time source used for cache expiry and cache busting.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithRetryWait overrides the retry backoff bounds.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.retry.RetryWaitMin = min
		c.retry.RetryWaitMax = max
	}
}

// WithMaxPages caps how many nextPageToken pages one listing follows.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		c.maxPages = n
	}
}

// WithRateLimiter replaces the drive request limiter. nil disables throttling.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = rl
		c.limiterSet = true
	}
}

// NewClient creates a drive API client from configuration.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.Drive.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("drive base URL is empty: %w", config.ErrMissingBaseURL)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid drive base URL: %w", err)
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.Drive.MaxRetries
	retryClient.RetryWaitMin = constants.DriveRetryWaitMin
	retryClient.RetryWaitMax = constants.DriveRetryWaitMax
	// Hand the final response back instead of a generic "giving up" error so
	// status and body can be classified.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		retry:    retryClient,
		baseURL:  baseURL,
		token:    cfg.Drive.Token,
		cache:    newResponseCache(cfg.Drive.CacheTTL()),
		logger:   logging.NewNopLogger(),
		now:      time.Now,
		maxPages: constants.MaxListPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.limiterSet {
		c.limiter = ratelimit.NewDriveRateLimiter(c.logger)
	}
	retryClient.Logger = &retryLogger{logger: c.logger}
	c.httpClient = retryClient.StandardClient()

	return c, nil
}

// Backend implements cloud.Named.
func (c *Client) Backend() string {
	return backendName
}

// InvalidateCache drops every cached listing.
func (c *Client) InvalidateCache() {
	c.cache.clear()
}

// ListRootFolders returns the drive's top-level folders.
func (c *Client) ListRootFolders(ctx context.Context, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	return c.list(ctx, cloud.ActionListRootFolders, nil, opts)
}

// ListFolderContents returns the immediate children of folderID.
func (c *Client) ListFolderContents(ctx context.Context, folderID string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, &cloud.FetchError{Action: cloud.ActionListFolderContents, Message: "folder id is required"}
	}
	return c.list(ctx, cloud.ActionListFolderContents, url.Values{"folderId": {folderID}}, opts)
}

// SearchFoldersByName returns folders whose name matches query, as decided by the drive.
func (c *Client) SearchFoldersByName(ctx context.Context, query string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	return c.list(ctx, cloud.ActionSearchFolder, url.Values{"folderName": {query}}, opts)
}

// list runs one listing action, following nextPageToken and applying the cache policy
func (c *Client) list(ctx context.Context, action string, params url.Values, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	key := cacheKey(action, params)
	if !opts.Force {
		if cached, ok := c.cache.get(key, c.now()); ok {
			metrics.RecordCacheHit(backendName, action)
			c.logger.Debug().Str("action", action).Int("entries", len(cached)).Msg("drive listing served from cache")
			return cached, nil
		}
	}

	start := time.Now()
	var all []wireEntry
	pageToken := ""
	for page := 0; ; page++ {
		resp, err := c.fetchPage(ctx, action, params, pageToken, opts.Force)
		if err != nil {
			metrics.RecordDriveRequest(backendName, action, outcomeOf(err), time.Since(start))
			c.logger.Warn().Err(err).Str("action", action).Msg("drive listing failed")
			return nil, err
		}
		all = append(all, resp.entries()...)

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
		if page+1 >= c.maxPages {
			c.logger.Warn().Str("action", action).Int("pages", page+1).Msg("drive listing truncated at page limit")
			break
		}
	}

	entries, dropped := cloud.FilterValid(toEntries(all), c.logger.Zerolog())
	metrics.RecordDroppedEntries(backendName, action, dropped)
	metrics.RecordDriveRequest(backendName, action, metrics.OutcomeOK, time.Since(start))
	c.cache.put(key, entries, c.now())

	c.logger.Debug().
		Str("action", action).
		Bool("force", opts.Force).
		Int("entries", len(entries)).
		Int("dropped", dropped).
		Dur("took", time.Since(start)).
		Msg("drive listing fetched")

	return entries, nil
}

func outcomeOf(err error) string {
	if cloud.IsUnauthenticated(err) {
		return metrics.OutcomeUnauthenticated
	}
	return metrics.OutcomeError
}

// fetchPage performs one GET /folders request
func (c *Client) fetchPage(ctx context.Context, action string, params url.Values, pageToken string, force bool) (*listResponse, error) {
	q := url.Values{}
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if force {
		q.Set(constants.CacheBustParam, strconv.FormatInt(c.now().UnixNano(), 10))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, cloud.NewFetchError(action, 0, err)
		}
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, c.baseURL+"/folders?"+q.Encode(), nil)
	if err != nil {
		return nil, cloud.NewFetchError(action, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if force {
		req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, cloud.NewFetchError(action, 0, ctx.Err())
		}
		return nil, cloud.NewFetchError(action, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyStatus(action, resp.StatusCode, body)
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &cloud.FetchError{
			Action:     action,
			StatusCode: resp.StatusCode,
			Message:    "malformed response: " + err.Error(),
			Err:        err,
		}
	}
	if !decoded.Success {
		return nil, classifyFailure(action, resp.StatusCode, decoded.errorText())
	}

	return &decoded, nil
}
