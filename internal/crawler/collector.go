package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/sirupsen/logrus"
)

// IndexFetchError aborts a source: without every index page the link list is incomplete
type IndexFetchError struct {
	URL string
	Err error
}

func (e *IndexFetchError) Error() string {
	return fmt.Sprintf("index page %s: %v", e.URL, e.Err)
}

func (e *IndexFetchError) Unwrap() error {
	return e.Err
}

// LinkCollector discovers artist detail URLs from a source's index pages
type LinkCollector struct {
	fetcher  PageFetcher
	observer FetchObserver
	log      logrus.FieldLogger
}

// NewLinkCollector creates a collector; observer may be nil
func NewLinkCollector(fetcher PageFetcher, observer FetchObserver, log logrus.FieldLogger) *LinkCollector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LinkCollector{fetcher: fetcher, observer: observer, log: log}
}

// Collect returns the de-duplicated union of candidate links across all index pages
func (lc *LinkCollector) Collect(ctx context.Context, p *config.SiteProfile) ([]string, error) {
	log := lc.log.WithField("source", p.ID)

	var hrefs []string
	for _, indexURL := range p.IndexURLs {
		start := time.Now()
		root, err := lc.fetcher.Fetch(ctx, indexURL)
		if lc.observer != nil {
			lc.observer.ObserveFetch(p.ID, "index", time.Since(start), err)
		}
		if err != nil {
			return nil, &IndexFetchError{URL: indexURL, Err: err}
		}

		before := len(hrefs)
		root.Find(p.LinkSelector).Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				hrefs = append(hrefs, href)
			}
		})
		log.WithField("url", indexURL).Debugf("Index page yielded %d anchors", len(hrefs)-before)
	}

	links := FilterLinks(p, hrefs)
	log.Infof("Collected %d candidate links from %d index pages", len(links), len(p.IndexURLs))
	return links, nil
}
