package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var fallbackDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"2006-01-02",
	"02.01.2006",
}

// Scraper turns listing pages of sources without a syndication feed into items using the
// selectors of the source's scrape config. Dates without a zone are read in the scraper's location.
type Scraper struct {
	location *time.Location
}

func NewScraper() *Scraper {
	return &Scraper{location: time.Local}
}

func (s *Scraper) Run(data []byte, pageURL string, src *Source) ([]Item, error) {
	if src == nil || src.Scrape == nil {
		return nil, fmt.Errorf("source has no scrape config")
	}
	cfg := src.Scrape

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var items []Item
	seen := make(map[string]bool)
	doc.Find(cfg.Item).Each(func(_ int, sel *goquery.Selection) {
		linkSel := sel
		if cfg.Link != "" {
			linkSel = sel.Find(cfg.Link).First()
		}
		href, ok := linkSel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		link := base.ResolveReference(ref).String()
		if seen[link] {
			return
		}
		seen[link] = true

		title := selectText(sel, cfg.Title)
		if title == "" {
			title = collapse(linkSel.Text())
		}

		item := Item{
			URL:     link,
			Title:   title,
			Summary: truncate(selectText(sel, cfg.Summary), maxSummaryLength),
			Source:  src.Tag,
			Trust:   src.Trust,
		}

		if cfg.Date != "" {
			item.PublishedAt = parseDate(selectText(sel, cfg.Date), cfg.DateLayout, s.location)
		}

		var tickers []string
		if cfg.Ticker != "" {
			if t := strings.ToUpper(selectText(sel, cfg.Ticker)); t != "" {
				tickers = append(tickers, t)
			}
		}
		for _, t := range src.ExtractTickers(title) {
			if !slices.Contains(tickers, t) {
				tickers = append(tickers, t)
			}
		}
		item.SourceTickers = tickers

		items = append(items, item)
	})

	return items, nil
}

func selectText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapse(sel.Find(selector).First().Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseDate returns nil instead of failing when the text matches no layout.
func parseDate(text, layout string, loc *time.Location) *time.Time {
	if text == "" {
		return nil
	}

	layouts := fallbackDateLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, text, loc); err == nil {
			return utcPtr(t)
		}
	}
	return nil
}
