// Package enrich scrapes a work's public page for identifiers the catalog
// entry is missing: series name and position, and an ISBN. Enrichment is
// strictly best effort; a failed or slow lookup returns nothing and the
// pipeline carries on with what it has.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfstream/shelfstream/internal/logger"
)

// WorkInfo is what a workpage lookup can add to a catalog item.
type WorkInfo struct {
	Series    string
	SeriesNum float64
	ISBN      string
}

// Source resolves a work's info page. Implementations must respect the
// context deadline.
type Source interface {
	Lookup(ctx context.Context, pageURL string) (*WorkInfo, error)
}

// Service caches lookups in front of a Source.
type Service struct {
	source  Source
	cache   *cache
	timeout time.Duration
	log     *logger.Logger
}

// NewService creates an enrichment service with a per-lookup timeout.
func NewService(source Source, cacheTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		source:  source,
		cache:   newCache(cacheTTL, 0),
		timeout: 10 * time.Second,
		log:     log.WithComponent("enrich"),
	}
}

// Enrich looks up a work's page. It never returns an error; anything that
// goes wrong is logged at debug level and yields nil.
func (s *Service) Enrich(ctx context.Context, pageURL string) *WorkInfo {
	if pageURL == "" {
		return nil
	}
	if info, ok := s.cache.get(pageURL); ok {
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.source.Lookup(ctx, pageURL)
	if err != nil {
		s.log.Debug().Str("url", pageURL).Err(err).Msg("Workpage lookup failed")
		return nil
	}
	s.cache.set(pageURL, info)
	return info
}

var (
	// "(Dune Chronicles #1)" or "(Dune Chronicles, Book 1)" after a title.
	seriesParenRegex = regexp.MustCompile(`\(([^()#]+?)[,\s]+(?:#|Book\s+)(\d+(?:\.\d+)?)\)`)
	isbn13Regex      = regexp.MustCompile(`\b97[89]\d{10}\b`)
)

// WorkpageSource scrapes series and ISBN hints out of a work's HTML page.
type WorkpageSource struct {
	client *http.Client
}

// NewWorkpageSource creates a scraping source.
func NewWorkpageSource(client *http.Client) *WorkpageSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WorkpageSource{client: client}
}

// Lookup fetches and parses one workpage.
func (w *WorkpageSource) Lookup(ctx context.Context, pageURL string) (*WorkInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("workpage returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workpage: %w", err)
	}
	return parseWorkpage(doc), nil
}

// parseWorkpage pulls what it can from common workpage shapes: a series
// parenthetical near the title, itemprop/meta ISBN markers, and a bare
// ISBN-13 anywhere in a property table.
func parseWorkpage(doc *goquery.Document) *WorkInfo {
	info := &WorkInfo{}

	doc.Find("h1, h2, [itemprop=name]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if m := seriesParenRegex.FindStringSubmatch(sel.Text()); m != nil {
			info.Series = strings.TrimSpace(m[1])
			info.SeriesNum, _ = strconv.ParseFloat(m[2], 64)
			return false
		}
		return true
	})
	if info.Series == "" {
		doc.Find("a[href*=series]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				info.Series = text
				return false
			}
			return true
		})
	}

	if v, ok := doc.Find("meta[property='books:isbn']").Attr("content"); ok {
		info.ISBN = strings.TrimSpace(v)
	}
	if info.ISBN == "" {
		info.ISBN = strings.TrimSpace(doc.Find("[itemprop=isbn]").First().Text())
	}
	if info.ISBN == "" {
		if m := isbn13Regex.FindString(doc.Text()); m != "" {
			info.ISBN = m
		}
	}

	if info.Series == "" && info.ISBN == "" {
		return nil
	}
	return info
}
