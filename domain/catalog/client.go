package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anivault/anivault/internal/metrics"
	"github.com/anivault/anivault/pkg/logger"
)

const (
	maxRetries = 3
	retryBase  = time.Second

	minPageSize = 1
	maxPageSize = 100
)

// Item is one raw catalog record as returned by the list feed. The shape is
// heterogeneous upstream; the normalizer turns it into typed bundles.
type Item map[string]any

// UpdatedAt parses the item's updated_at stamp. ok is false when the field
// is absent or not in a recognized layout.
func (it Item) UpdatedAt() (time.Time, bool) {
	raw, _ := it["updated_at"].(string)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

type listResponse struct {
	Results  []Item  `json:"results"`
	NextPage *string `json:"next_page"`
}

type playlistResponse struct {
	Link string `json:"link"`
}

// idTypes lists external id kinds in lookup priority order.
var idTypes = []string{"shikimori", "kinopoisk", "imdb"}

// PickExternalID selects the preferred external id for catalog lookups,
// preferring shikimori over kinopoisk over imdb. Returns ErrNotFound when
// none of the known kinds carries a value.
func PickExternalID(ids map[string]string) (value, kind string, err error) {
	for _, kind := range idTypes {
		if v := ids[kind]; v != "" {
			return v, kind, nil
		}
	}
	return "", "", fmt.Errorf("%w: no shikimori/kinopoisk/imdb id", ErrNotFound)
}

// Client talks to the catalog's HTTP API. All methods share one Pacer, so
// every HTTP request consumes exactly one rate token regardless of caller.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	pacer      *Pacer
	log        *slog.Logger

	// backoffBase is the first retry delay; tests shrink it
	backoffBase time.Duration
}

// NewClient creates a catalog API client
func NewClient(cfg *Config, pacer *Pacer, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pacer:       pacer,
		log:         log.With(logger.Scope("catalog")),
		backoffBase: retryBase,
	}
}

// FetchFullList pulls the catalog feed page by page until the server stops
// returning a cursor or maxPages is reached (maxPages <= 0 means no limit).
func (c *Client) FetchFullList(ctx context.Context, pageSize, maxPages int) ([]Item, error) {
	pageSize = clampPageSize(pageSize)

	c.log.Info("starting full catalog fetch",
		slog.Int("page_size", pageSize),
		slog.Int("max_pages", maxPages))

	var items []Item
	cursor := ""
	pages := 0

	for {
		batch, next, err := c.fetchPage(ctx, pageSize, cursor)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		pages++

		c.log.Debug("fetched page",
			slog.Int("page", pages),
			slog.Int("items", len(batch)),
			slog.Int("total", len(items)))

		if next == "" {
			break
		}
		if maxPages > 0 && pages >= maxPages {
			c.log.Info("reached max_pages limit", slog.Int("max_pages", maxPages))
			break
		}
		cursor = next
	}

	c.log.Info("full catalog fetch complete",
		slog.Int("items", len(items)),
		slog.Int("pages", pages))
	return items, nil
}

// FetchDelta returns feed items updated at or after since. The feed is
// requested sorted by updated_at descending, so the walk short-circuits on
// the first older item instead of paging the whole catalog. Items without a
// parseable updated_at are skipped.
func (c *Client) FetchDelta(ctx context.Context, since time.Time, pageSize, maxPages int) ([]Item, error) {
	pageSize = clampPageSize(pageSize)

	c.log.Info("starting delta fetch",
		slog.Time("updated_since", since),
		slog.Int("page_size", pageSize))

	var items []Item
	cursor := ""
	pages := 0

	for {
		batch, next, err := c.fetchPage(ctx, pageSize, cursor)
		if err != nil {
			return nil, err
		}
		pages++

		for _, item := range batch {
			ts, ok := item.UpdatedAt()
			if !ok {
				continue
			}
			if ts.Before(since) {
				c.log.Info("delta fetch complete",
					slog.Int("items", len(items)),
					slog.Int("pages", pages))
				return items, nil
			}
			items = append(items, item)
		}

		if next == "" || (maxPages > 0 && pages >= maxPages) {
			break
		}
		cursor = next
	}

	c.log.Info("delta fetch complete",
		slog.Int("items", len(items)),
		slog.Int("pages", pages))
	return items, nil
}

// GetEpisodePlaylist resolves the stream playlist URL for one episode.
// quality is one of 360, 480, 720, 1080.
func (c *Client) GetEpisodePlaylist(ctx context.Context, externalIDs map[string]string, translationID, episodeNum, quality int) (string, error) {
	id, kind, err := PickExternalID(externalIDs)
	if err != nil {
		return "", err
	}

	c.log.Debug("resolving episode playlist",
		slog.String("id_type", kind),
		slog.String("id", id),
		slog.Int("translation_id", translationID),
		slog.Int("episode", episodeNum),
		slog.Int("quality", quality))

	params := url.Values{}
	if c.cfg.Token != "" {
		params.Set("token", c.cfg.Token)
	}
	params.Set("id", id)
	params.Set("id_type", kind)
	params.Set("translation_id", strconv.Itoa(translationID))
	params.Set("seria", strconv.Itoa(episodeNum))
	params.Set("quality", strconv.Itoa(quality))

	var out playlistResponse
	if err := c.getJSON(ctx, "/playlist", params, &out); err != nil {
		return "", err
	}
	if out.Link == "" {
		return "", &ProtocolError{Reason: "playlist response without link"}
	}

	link := out.Link
	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}
	return link, nil
}

// fetchPage retrieves one feed page and the cursor for the next one.
// An empty cursor means the page is terminal.
func (c *Client) fetchPage(ctx context.Context, pageSize int, cursor string) ([]Item, string, error) {
	params := url.Values{}
	if c.cfg.Token != "" {
		params.Set("token", c.cfg.Token)
	}
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("types", "anime,anime-serial")
	params.Set("with_material_data", "true")
	params.Set("with_episodes", "true")
	params.Set("sort", "updated_at")
	params.Set("order", "desc")
	if cursor != "" {
		params.Set("next", cursor)
	}

	var page listResponse
	if err := c.getJSON(ctx, "/list", params, &page); err != nil {
		return nil, "", err
	}

	if page.NextPage == nil || *page.NextPage == "" {
		return page.Results, "", nil
	}
	next, err := cursorFrom(*page.NextPage)
	if err != nil {
		return nil, "", err
	}
	return page.Results, next, nil
}

// cursorFrom extracts the next cursor from the next_page link. The server
// normally sends a full URL carrying a next query parameter; a bare cursor
// value is accepted as-is.
func cursorFrom(nextPage string) (string, error) {
	if !strings.HasPrefix(nextPage, "http") {
		return nextPage, nil
	}
	u, err := url.Parse(nextPage)
	if err != nil {
		return "", &ProtocolError{Reason: "unparseable next_page URL: " + nextPage}
	}
	next := u.Query().Get("next")
	if next == "" {
		return "", &ProtocolError{Reason: "next_page URL without next cursor: " + nextPage}
	}
	return next, nil
}

// getJSON performs a GET with retry. Transient failures (network errors, 5xx,
// 429) are retried up to maxRetries times with exponential backoff; a 429's
// Retry-After overrides the computed delay. Permanent errors surface
// immediately.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := c.getJSONOnce(ctx, endpoint, params, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		delay := c.retryDelay(attempt, err)
		c.log.Warn("catalog request failed, retrying",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("delay", delay),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	c.log.Error("catalog request failed after all retries",
		slog.String("endpoint", endpoint),
		logger.Error(lastErr))
	return fmt.Errorf("%s failed after %d attempts: %w", endpoint, maxRetries, lastErr)
}

// getJSONOnce performs one rate-limited HTTP call and decodes the response.
func (c *Client) getJSONOnce(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.pacer.Acquire(ctx); err != nil {
		return err
	}

	reqURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &ProtocolError{Reason: "build request: " + err.Error()}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "network_error").Inc()
		return &NetworkError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "network_error").Inc()
		return &NetworkError{Op: endpoint, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.CatalogRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		metrics.CatalogRateLimited.Inc()
		return &RateLimitedError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 500:
		metrics.CatalogRequests.WithLabelValues(endpoint, "server_error").Inc()
		return &NetworkError{Op: endpoint, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))}
	case resp.StatusCode == http.StatusNotFound:
		metrics.CatalogRequests.WithLabelValues(endpoint, "not_found").Inc()
		return fmt.Errorf("%w: HTTP 404 from %s", ErrNotFound, endpoint)
	case resp.StatusCode >= 400:
		metrics.CatalogRequests.WithLabelValues(endpoint, "client_error").Inc()
		return &ProtocolError{Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "malformed").Inc()
		return &ProtocolError{Reason: "malformed response body: " + err.Error()}
	}

	metrics.CatalogRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// retryDelay computes the wait before the next attempt: the server's
// Retry-After when rate limited, exponential backoff otherwise.
func (c *Client) retryDelay(attempt int, err error) time.Duration {
	if rl, ok := err.(*RateLimitedError); ok && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return c.backoffBase * (1 << (attempt - 1))
}

// retryAfter reads the Retry-After header as delay seconds.
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func clampPageSize(n int) int {
	if n < minPageSize {
		return minPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
