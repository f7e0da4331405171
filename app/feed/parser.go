package feed

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

var ErrUnknownFormat = errors.New("unknown feed format")

const maxSummaryLength = 4000

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run sniffs the wire format (item-based RSS or entry-based Atom) and normalizes every entry that
// carries a link. Relative links resolve against the feed's own link, then against pageURL. src
// supplies the origin tag, trust level and ticker extraction.
func (p *Parser) Run(data []byte, pageURL string, src *Source) ([]Item, error) {
	feedType := gofeed.DetectFeedType(bytes.NewReader(data))
	if feedType == gofeed.FeedTypeUnknown {
		return nil, ErrUnknownFormat
	}

	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	base := linkBase(pageURL, feed.Link)

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		item, ok := p.normalizeItem(entry, base, src)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (p *Parser) normalizeItem(entry *gofeed.Item, base *url.URL, src *Source) (Item, bool) {
	link := strings.TrimSpace(entry.Link)
	if link == "" && strings.HasPrefix(entry.GUID, "http") {
		link = strings.TrimSpace(entry.GUID)
	}
	if link == "" {
		return Item{}, false
	}
	if base != nil {
		ref, err := url.Parse(link)
		if err != nil {
			return Item{}, false
		}
		link = base.ResolveReference(ref).String()
	}

	title := StripHTML(entry.Title)
	item := Item{
		URL:     link,
		Title:   title,
		Summary: truncate(StripHTML(cmp.Or(entry.Description, entry.Content)), maxSummaryLength),
	}

	// gofeed leaves the parsed time nil when the date string is malformed.
	switch {
	case entry.PublishedParsed != nil:
		item.PublishedAt = utcPtr(*entry.PublishedParsed)
	case entry.UpdatedParsed != nil:
		item.PublishedAt = utcPtr(*entry.UpdatedParsed)
	}

	if src != nil {
		item.Source = src.Tag
		item.Trust = src.Trust
		item.SourceTickers = src.ExtractTickers(title)
	}

	return item, true
}

// linkBase returns the URL that relative entry links resolve against, or nil when neither the page
// nor the feed link is absolute.
func linkBase(pageURL, feedLink string) *url.URL {
	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		base = u
	}

	link, err := url.Parse(strings.TrimSpace(feedLink))
	if err != nil || feedLink == "" {
		return base
	}
	if base != nil {
		return base.ResolveReference(link)
	}
	if link.IsAbs() {
		return link
	}
	return nil
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
