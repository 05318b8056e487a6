package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/sirupsen/logrus"
)

// Extractor turns artist detail pages into ArtistDetail records
type Extractor struct {
	fetcher  PageFetcher
	observer FetchObserver
	log      logrus.FieldLogger
}

// NewExtractor creates an extractor; observer may be nil
func NewExtractor(fetcher PageFetcher, observer FetchObserver, log logrus.FieldLogger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{fetcher: fetcher, observer: observer, log: log}
}

// ExtractAll fetches each URL in order. Individual failures are recorded and
// skipped; only context cancellation stops the batch early.
func (x *Extractor) ExtractAll(ctx context.Context, p *config.SiteProfile, urls []string) ([]ArtistDetail, []ScrapeFailure, error) {
	parser, err := ParserFor(p.Parser)
	if err != nil {
		return nil, nil, err
	}
	log := x.log.WithField("source", p.ID)

	var (
		details  []ArtistDetail
		failures []ScrapeFailure
	)
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return details, failures, err
		}

		detail, err := x.extract(ctx, p, parser, u)
		if err != nil {
			reason := fmt.Sprintf("Failed to scrape %s: %v", u, err)
			failures = append(failures, ScrapeFailure{URL: u, Reason: reason})
			log.WithField("url", u).Warnf("Detail extraction failed: %v", err)
			continue
		}
		details = append(details, detail)
		log.WithFields(logrus.Fields{"url": u, "band": detail.Name}).Debugf("Extracted [%d/%d]", i+1, len(urls))
	}

	return details, failures, nil
}

// Extract fetches and extracts a single detail page
func (x *Extractor) Extract(ctx context.Context, p *config.SiteProfile, pageURL string) (ArtistDetail, error) {
	parser, err := ParserFor(p.Parser)
	if err != nil {
		return ArtistDetail{}, err
	}
	return x.extract(ctx, p, parser, pageURL)
}

func (x *Extractor) extract(ctx context.Context, p *config.SiteProfile, parser MetaParser, pageURL string) (ArtistDetail, error) {
	start := time.Now()
	root, err := x.fetcher.Fetch(ctx, pageURL)
	if x.observer != nil {
		x.observer.ObserveFetch(p.ID, "detail", time.Since(start), err)
	}
	if err != nil {
		return ArtistDetail{}, err
	}
	return ExtractFromDocument(p, parser, pageURL, root), nil
}

// ExtractFromDocument applies the profile's selectors to a parsed page and
// fills gaps from the free-text parser. Selector values win.
func ExtractFromDocument(p *config.SiteProfile, parser MetaParser, pageURL string, root *goquery.Selection) ArtistDetail {
	pick := func(selector string) string {
		if selector == "" {
			return ""
		}
		return NormalizeText(root.Find(selector).First().Text())
	}

	name, country := SplitNameAndCountry(pick(p.Selectors.Name))
	meta := parser(root.Text())

	stage := SanitizeStage(firstNonEmpty(pick(p.Selectors.Stage), meta.Stage))
	clock := SanitizeTime(firstNonEmpty(pick(p.Selectors.Time), meta.Time))

	return ArtistDetail{
		Festival: p.ID,
		URL:      pageURL,
		Slug:     ExtractSlug(pageURL),
		Name:     name,
		Country:  country,
		Day:      firstNonEmpty(pick(p.Selectors.Day), meta.Day),
		Stage:    firstNonEmpty(stage, Placeholder),
		Time:     firstNonEmpty(clock, Placeholder),
	}
}
