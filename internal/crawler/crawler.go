package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const acceptHeader = "text/html,application/xhtml+xml"

// PageFetcher fetches one HTML page and returns its parsed root element
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Selection, error)
}

// FetchObserver receives the outcome of every page fetch
type FetchObserver interface {
	ObserveFetch(source, kind string, elapsed time.Duration, err error)
}

// FetcherOptions configures the shared colly collector
type FetcherOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Delay is enforced after every request, which keeps fetches against one
	// site ordered and spaced.
	Delay     time.Duration
	Transport http.RoundTripper
}

// Fetcher performs synchronous page fetches through a colly collector
type Fetcher struct {
	collector *colly.Collector
	log       logrus.FieldLogger
}

var _ PageFetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher. Each Fetch runs on a clone of the base
// collector so callbacks never leak between pages while limits and the
// transport stay shared.
func NewFetcher(opts FetcherOptions, log logrus.FieldLogger) (*Fetcher, error) {
	if opts.UserAgent == "" {
		return nil, fmt.Errorf("user agent is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	c.SetRequestTimeout(opts.Timeout)

	if opts.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       opts.Delay,
		}); err != nil {
			return nil, fmt.Errorf("failed to set fetch limit: %w", err)
		}
	}
	if opts.Transport != nil {
		c.WithTransport(opts.Transport)
	}

	return &Fetcher{collector: c, log: log}, nil
}

// Fetch downloads pageURL and returns the <html> element
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.collector.Clone()

	var (
		root   *goquery.Selection
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if root == nil {
			root = e.DOM
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := c.Visit(pageURL)
	elapsed := time.Since(start)

	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("GET %s returned %d (latency=%v): %w", pageURL, status, elapsed.Round(time.Millisecond), err)
		}
		return nil, fmt.Errorf("GET %s failed (latency=%v): %w", pageURL, elapsed.Round(time.Millisecond), err)
	}
	if root == nil {
		return nil, fmt.Errorf("GET %s returned no HTML document (status=%d)", pageURL, status)
	}

	f.log.WithFields(logrus.Fields{"url": pageURL, "status": status, "latency": elapsed.Round(time.Millisecond)}).Debug("Fetched page")
	return root, nil
}
