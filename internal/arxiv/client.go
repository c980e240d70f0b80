// Package arxiv provides the query builder and the fetch-with-fallback
// client for the arXiv search API.
package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperstream/paperstream/internal/categories"
	"github.com/paperstream/paperstream/internal/domain"
	"github.com/paperstream/paperstream/internal/observability"
)

const (
	// DefaultBaseURL is the primary arXiv query endpoint.
	DefaultBaseURL = "https://export.arxiv.org/api/query"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the sustained request rate (arXiv asks for <= 3/s).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the rate limiter burst size.
	DefaultBurstSize = 3

	// DefaultRetryBaseDelay is the unit of the linear fallback backoff: the
	// wait before attempt n is n * DefaultRetryBaseDelay.
	DefaultRetryBaseDelay = time.Second

	// maxBodyBytes caps how much of a response body is read (10MB).
	maxBodyBytes = 10 << 20
)

// idRegex extracts the bare identifier from an abs URL, dropping any
// trailing version marker. Matches "http://arxiv.org/abs/2301.12345v1" and
// "http://arxiv.org/abs/hep-th/9901001v2".
var idRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// versionSuffix matches a trailing version marker on a bare identifier.
var versionSuffix = regexp.MustCompile(`v\d+$`)

// Endpoint is one upstream target in the fallback sequence.
type Endpoint struct {
	// Name labels the endpoint in logs and metrics.
	Name string

	// URL is the request prefix. For the direct endpoint it is the full
	// query URL base; for mirrors it is a pass-through prefix that takes
	// the URL-escaped target as its final component.
	URL string

	// Wrap marks a pass-through mirror that wraps the target URL.
	Wrap bool
}

// requestURL builds the concrete URL for fetching target via this endpoint.
func (e Endpoint) requestURL(target string) string {
	if e.Wrap {
		return e.URL + url.QueryEscape(target)
	}
	return target
}

// Config holds configuration for the fetch client.
type Config struct {
	// BaseURL is the direct arXiv query endpoint.
	BaseURL string

	// Mirrors are pass-through proxy prefixes tried, in order, after the
	// direct endpoint fails.
	Mirrors []string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// RetryBaseDelay is the unit of the linear backoff between endpoint
	// attempts.
	RetryBaseDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = "paperstream/1.0"
	}
}

// Client fetches search pages from arXiv, falling back across mirror
// endpoints when the primary fails. Fetch failure degrades to an empty
// result; the only error a caller ever sees is its own cancellation.
type Client struct {
	config     Config
	endpoints  []Endpoint
	httpClient *http.Client
	limiter    *RateLimiter
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a new fetch client. metrics may be nil.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	endpoints := []Endpoint{{Name: "arxiv", URL: cfg.BaseURL}}
	for i, m := range cfg.Mirrors {
		endpoints = append(endpoints, Endpoint{
			Name: fmt.Sprintf("mirror-%d", i+1),
			URL:  m,
			Wrap: true,
		})
	}

	return &Client{
		config:     cfg,
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		logger:     logger.With().Str("component", "arxiv-client").Logger(),
		metrics:    metrics,
	}
}

// Endpoints returns the fallback sequence, primary first.
func (c *Client) Endpoints() []Endpoint {
	return c.endpoints
}

// Search fetches one result page for the given query expression. start is
// the pagination offset and pageSize the requested page size.
//
// Endpoints are tried in order with a linear backoff between attempts. The
// cancellation token is checked before each attempt and during each backoff
// wait, and cancellation is the only error returned: transport failures,
// bad statuses, and proxy HTML error pages all advance the fallback, and
// full exhaustion degrades to an empty result after logging. A page either
// parses completely from one endpoint or counts as a failure; results from
// different endpoints are never mixed within one call.
func (c *Client) Search(ctx context.Context, query string, start, pageSize int) ([]domain.Paper, error) {
	target := c.searchURL(query, start, pageSize)

	for attempt := 0; attempt < len(c.endpoints); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
		}
		if attempt > 0 {
			delay := time.Duration(attempt) * c.config.RetryBaseDelay
			if err := c.wait(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
			}
		}

		ep := c.endpoints[attempt]
		log := observability.WithFetchContext(c.logger, ep.Name, attempt)

		papers, err := c.fetchPage(ctx, ep, target)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
			}
			log.Warn().Err(err).Msg("endpoint failed, falling back")
			if c.metrics != nil {
				c.metrics.FetchFailures.WithLabelValues(ep.Name).Inc()
			}
			continue
		}

		log.Debug().Int("papers", len(papers)).Msg("page fetched")
		if c.metrics != nil {
			c.metrics.PapersFetched.Add(float64(len(papers)))
		}
		return papers, nil
	}

	c.logger.Error().Str("query", query).Msg("all endpoints exhausted")
	if c.metrics != nil {
		c.metrics.FetchesExhausted.Inc()
	}
	return []domain.Paper{}, nil
}

// fetchPage executes one attempt against one endpoint and parses the page.
func (c *Client) fetchPage(ctx context.Context, ep Endpoint, target string) ([]domain.Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.requestURL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	startTime := time.Now()
	if c.metrics != nil {
		c.metrics.FetchAttempts.WithLabelValues(ep.Name).Inc()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.FetchDuration.WithLabelValues(ep.Name).Observe(time.Since(startTime).Seconds())
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(ep.Name, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	// Failing proxies tend to answer 200 with an HTML error page instead of
	// the Atom payload. Treat that as an endpoint failure.
	if isHTMLErrorPage(resp.Header.Get("Content-Type"), body) {
		return nil, domain.NewExternalAPIError(ep.Name, resp.StatusCode, "HTML error page instead of feed", nil)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		papers = append(papers, entryToPaper(&feed.Entries[i]))
	}
	return papers, nil
}

// searchURL constructs the direct arXiv search URL for one page.
func (c *Client) searchURL(query string, start, pageSize int) string {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(pageSize))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	return c.config.BaseURL + "?" + params.Encode()
}

// wait sleeps for the backoff delay, respecting context cancellation.
func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isHTMLErrorPage detects a proxy failure signature: an HTML document where
// the Atom feed was expected.
func isHTMLErrorPage(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// entryToPaper converts an Atom entry to a domain Paper with defensive
// defaults for missing fields.
func entryToPaper(entry *Entry) domain.Paper {
	title := domain.NormalizeWhitespace(entry.Title)
	abstract := domain.NormalizeWhitespace(entry.Summary)

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) == 0 {
		authors = []string{domain.UnknownAuthor}
	}

	var published time.Time
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		// Submission dates carry no meaningful time component.
		published = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	tags := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			tags = append(tags, cat.Term)
		}
	}

	primary := entry.PrimaryCategory.Term
	if primary == "" && len(tags) > 0 {
		primary = tags[0]
	}

	pageURL := strings.TrimSpace(entry.ID)
	for _, link := range entry.Links {
		if link.Rel == "alternate" && link.Href != "" {
			pageURL = link.Href
			break
		}
	}

	return domain.Paper{
		ID:        extractID(entry.ID),
		Title:     title,
		Abstract:  abstract,
		Authors:   authors,
		Published: published,
		Journal:   categories.NameOf(primary),
		Tags:      tags,
		URL:       pageURL,
	}
}

// extractID derives the stable identifier from the entry URL by dropping
// the version suffix, so repeated fetches of re-submitted papers agree on
// the id.
func extractID(entryURL string) string {
	if matches := idRegex.FindStringSubmatch(entryURL); len(matches) >= 2 {
		return matches[1]
	}
	return versionSuffix.ReplaceAllString(strings.TrimSpace(entryURL), "")
}
