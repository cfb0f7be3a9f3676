// Package fetch retrieves source content through the hosted scraping
// service. Politeness, robots handling and rendering are the service's
// problem; this package only shapes requests and survives failures.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/model"
	"github.com/booth-beacon/beacon-crawler/internal/resilience"
	"github.com/booth-beacon/beacon-crawler/pkg/firecrawl"
)

// Page is one fetched page of markdown.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Fetcher retrieves a source's pages in scrape or crawl mode.
type Fetcher interface {
	Fetch(ctx context.Context, src model.Source) ([]Page, error)
}

// FirecrawlFetcher implements Fetcher over the Firecrawl API, with
// bounded retries and a circuit breaker shared across sources.
type FirecrawlFetcher struct {
	client       firecrawl.Client
	retry        resilience.Policy
	breaker      *resilience.Breaker
	pollInterval time.Duration
	crawlTimeout time.Duration
	maxPages     int
}

// Config tunes a FirecrawlFetcher.
type Config struct {
	Retry        resilience.Policy
	Breaker      *resilience.Breaker
	PollInterval time.Duration
	CrawlTimeout time.Duration
	MaxPages     int
}

// NewFirecrawl creates a FirecrawlFetcher.
func NewFirecrawl(client firecrawl.Client, cfg Config) *FirecrawlFetcher {
	f := &FirecrawlFetcher{
		client:       client,
		retry:        cfg.Retry,
		breaker:      cfg.Breaker,
		pollInterval: cfg.PollInterval,
		crawlTimeout: cfg.CrawlTimeout,
		maxPages:     cfg.MaxPages,
	}
	if f.breaker == nil {
		f.breaker = resilience.NewBreaker("firecrawl", 0, 0)
	}
	if f.pollInterval <= 0 {
		f.pollInterval = 5 * time.Second
	}
	if f.crawlTimeout <= 0 {
		f.crawlTimeout = 10 * time.Minute
	}
	if f.maxPages <= 0 {
		f.maxPages = 50
	}
	return f
}

// Fetch retrieves the source's pages. A tripped breaker surfaces as an
// error immediately instead of burning the crawl timeout per source.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, src model.Source) ([]Page, error) {
	switch src.Mode {
	case model.ModeCrawl:
		return f.crawl(ctx, src)
	default:
		return f.scrape(ctx, src)
	}
}

func (f *FirecrawlFetcher) scrape(ctx context.Context, src model.Source) ([]Page, error) {
	resp, err := resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return resilience.DoVal(ctx, f.withLogging("scrape"), func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
			r, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
				URL:             src.URL,
				Formats:         []string{"markdown"},
				OnlyMainContent: true,
			})
			return r, classify(err, "fetch: scrape "+src.URL)
		})
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.Errorf("fetch: scrape %s not successful", src.URL)
	}
	return []Page{{
		URL:      resp.Data.URL,
		Title:    resp.Data.Title,
		Markdown: resp.Data.Markdown,
	}}, nil
}

func (f *FirecrawlFetcher) crawl(ctx context.Context, src model.Source) ([]Page, error) {
	limit := src.PageLimit
	if limit <= 0 || limit > f.maxPages {
		limit = f.maxPages
	}

	crawlCtx, cancel := context.WithTimeout(ctx, f.crawlTimeout)
	defer cancel()

	status, err := resilience.ExecuteVal(crawlCtx, f.breaker, func(ctx context.Context) (*firecrawl.CrawlStatusResponse, error) {
		started, err := resilience.DoVal(ctx, f.withLogging("crawl"), func(ctx context.Context) (*firecrawl.CrawlResponse, error) {
			r, err := f.client.Crawl(ctx, firecrawl.CrawlRequest{
				URL:          src.URL,
				Limit:        limit,
				IncludePaths: src.IncludePaths,
				ExcludePaths: src.ExcludePaths,
				ScrapeOptions: &firecrawl.ScrapeOptions{
					Formats:         []string{"markdown"},
					OnlyMainContent: true,
				},
			})
			return r, classify(err, "fetch: crawl "+src.URL)
		})
		if err != nil {
			return nil, err
		}
		if !started.Success {
			return nil, eris.Errorf("fetch: crawl %s not accepted", src.URL)
		}
		status, err := f.client.WaitForCrawl(ctx, started.ID, f.pollInterval)
		return status, classify(err, "fetch: wait for crawl "+src.URL)
	})
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(status.Data))
	for _, d := range status.Data {
		if d.Markdown == "" {
			continue
		}
		pages = append(pages, Page{URL: d.URL, Title: d.Title, Markdown: d.Markdown})
	}
	zap.L().Debug("fetch: crawl finished",
		zap.String("source", src.Name),
		zap.Int("pages", len(pages)),
	)
	return pages, nil
}

func (f *FirecrawlFetcher) withLogging(op string) resilience.Policy {
	p := f.retry
	p.OnRetry = resilience.RetryLogger("firecrawl", op)
	return p
}

// classify marks retryable API failures transient so the breaker and
// outer retries treat them correctly.
func classify(err error, msg string) error {
	var apiErr *firecrawl.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return eris.Wrap(resilience.NewTransientError(apiErr, apiErr.StatusCode), msg)
	}
	return eris.Wrap(err, msg)
}
