// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed retrieves article records from the NCBI E-utilities API:
// esearch for ranked PMID lists and efetch for article XML, parsed into
// types.Article values.
//
// Failures never escape as errors. A search that cannot be completed
// returns no IDs, and a fetch batch that cannot be completed contributes
// no articles, so callers read partial success from the counts they get.
package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/pms/internal/httputil"
	"github.com/pdiddy/pms/internal/ratelimit"
	"github.com/pdiddy/pms/pkg/types"
)

const (
	// DefaultBaseURL is the E-utilities root.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultBatchSize bounds the number of PMIDs sent in one efetch call.
	DefaultBatchSize = 100

	defaultMaxResults = 100
	defaultTool       = "pms"
	database          = "pubmed"
)

// Client talks to the esearch and efetch endpoints. It is not safe for
// concurrent use; runs are single-threaded.
type Client struct {
	cfg     types.APIConfig
	baseURL string
	retrier *httputil.Retrier
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.retrier.Client = hc }
}

// WithBaseURL points the client at another E-utilities root (tests use an
// httptest server).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the logger for request and parse diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithLimiter replaces the rate limiter built from the configured rate.
func WithLimiter(w httputil.Waiter) Option {
	return func(c *Client) { c.retrier.Limiter = w }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn httputil.SleepFunc) Option {
	return func(c *Client) { c.retrier.Sleep = fn }
}

// NewClient builds a Client from cfg. The request rate is
// cfg.EffectiveRate(): the higher keyed rate when an API key is set.
func NewClient(cfg types.APIConfig, opts ...Option) *Client {
	if cfg.Tool == "" {
		cfg.Tool = defaultTool
	}
	if !cfg.ResponseMode.Valid() {
		cfg.ResponseMode = types.ResponseJSON
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := DefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
		retrier: &httputil.Retrier{
			Client:     &http.Client{Timeout: timeout},
			Limiter:    ratelimit.New(cfg.EffectiveRate()),
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryDelay,
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retrier.Logger = c.log

	if l, ok := c.retrier.Limiter.(*ratelimit.Limiter); ok {
		c.log.Debug("request rate",
			zap.Float64("requests_per_second", cfg.EffectiveRate()),
			zap.Duration("min_interval", l.Interval()))
	}

	if cfg.Email == "" {
		c.log.Warn("no email configured for the PubMed API; NCBI requires one. " +
			"Set it with: pms config set api email you@example.com")
	}
	return c
}

// Search runs an esearch query and returns PMIDs in the order the service
// ranked them. dateRange, when non-nil, restricts results to that inclusive
// publication date range. Any transport or parse failure is logged as
// "search failed" and yields an empty result.
func (c *Client) Search(ctx context.Context, query string, maxResults int, dateRange *types.DateRange) []string {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	params := url.Values{
		"db":         {database},
		"term":       {query},
		"retmax":     {strconv.Itoa(maxResults)},
		"usehistory": {"y"},
		"retmode":    {string(c.cfg.ResponseMode)},
	}
	if dateRange != nil {
		params.Set("datetype", "pdat")
		params.Set("mindate", dateRange.Start)
		params.Set("maxdate", dateRange.End)
	}

	body, err := c.get(ctx, "esearch", params)
	if err != nil {
		c.log.Error("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	ids, err := parseSearchResult(c.cfg.ResponseMode, body)
	if err != nil {
		c.log.Error("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	c.log.Debug("search complete", zap.String("query", query), zap.Int("ids", len(ids)))
	return ids
}

// FetchArticles retrieves the articles for ids in consecutive batches of at
// most batchSize (DefaultBatchSize when batchSize <= 0). Results keep batch
// order and, within a batch, document order. A batch that fails to fetch
// or parse contributes nothing; later batches still run.
func (c *Client) FetchArticles(ctx context.Context, ids []string, batchSize int) []types.Article {
	if len(ids) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	batches := Batches(ids, batchSize)
	var articles []types.Article
	for i, batch := range batches {
		got := c.fetchBatch(ctx, batch)
		articles = append(articles, got...)
		c.log.Info("fetched articles",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("requested", len(batch)),
			zap.Int("parsed", len(got)))
	}
	return articles
}

func (c *Client) fetchBatch(ctx context.Context, pmids []string) []types.Article {
	params := url.Values{
		"db":      {database},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	}

	body, err := c.get(ctx, "efetch", params)
	if err != nil {
		c.log.Error("fetch failed", zap.Int("pmids", len(pmids)), zap.Error(err))
		return nil
	}

	articles, err := ParseArticles(body, c.log)
	if err != nil {
		c.log.Error("parsing fetched articles", zap.Int("pmids", len(pmids)), zap.Error(err))
		return nil
	}
	return articles
}

// get issues one rate-limited, retrying GET against endpoint.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var header http.Header
	if c.cfg.UserAgent != "" {
		header = http.Header{"User-Agent": {c.cfg.UserAgent}}
	}
	return c.retrier.Get(ctx, c.requestURL(endpoint, params), header)
}

// requestURL adds the caller identity parameters NCBI expects on every
// request and returns the full endpoint URL.
func (c *Client) requestURL(endpoint string, params url.Values) string {
	params.Set("tool", c.cfg.Tool)
	params.Set("email", c.cfg.Email)
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	return fmt.Sprintf("%s/%s.fcgi?%s", c.baseURL, endpoint, params.Encode())
}

// Batches splits ids into consecutive chunks of at most size elements.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
