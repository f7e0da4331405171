package feed

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Rynki</title>
    <link>https://example.com</link>
    <description>Wiadomości</description>
    <item>
      <title>mBank ogłasza wyniki Q4</title>
      <link>https://example.com/news/1</link>
      <description>&lt;p&gt;Zysk &lt;b&gt;powyżej&lt;/b&gt; oczekiwań&lt;/p&gt;</description>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Data nie do odczytania</title>
      <link>https://example.com/news/2</link>
      <pubDate>wczoraj wieczorem</pubDate>
    </item>
    <item>
      <title>Bez linku</title>
    </item>
  </channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Komunikaty</title>
  <id>urn:komunikaty</id>
  <updated>2024-01-15T08:00:00Z</updated>
  <entry>
    <title>PKN: Raport bieżący 5/2024</title>
    <link href="https://example.com/espi/5"/>
    <id>urn:espi:5</id>
    <updated>2024-01-15T08:00:00Z</updated>
    <summary>Zawarcie znaczącej umowy</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	src := &Source{Name: "rynki", Tag: "rynki", Trust: TrustStandard}

	items, err := NewParser().Run([]byte(rssFeed), "https://example.com/rss", src)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}

	first := items[0]
	if first.URL != "https://example.com/news/1" {
		t.Errorf("Expected link 'https://example.com/news/1', got: %s", first.URL)
	}
	if first.Summary != "Zysk powyżej oczekiwań" {
		t.Errorf("Expected stripped summary, got: %q", first.Summary)
	}
	if first.Source != "rynki" || first.Trust != TrustStandard {
		t.Errorf("Expected source tag and trust from source, got: %s %s", first.Source, first.Trust)
	}
	expected := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if first.PublishedAt == nil || !first.PublishedAt.Equal(expected) {
		t.Errorf("Expected published at %v, got: %v", expected, first.PublishedAt)
	}

	if items[1].PublishedAt != nil {
		t.Errorf("Expected nil date for malformed pubDate, got: %v", items[1].PublishedAt)
	}
}

func TestParseAtomWithTickerPattern(t *testing.T) {
	sources, err := ParseSources([]byte(`
sources:
  - name: espi
    trust: regulatory
    ticker_pattern: '^([A-Z]{3}):'
    urls: ["https://example.com/espi.xml"]
`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	items, err := NewParser().Run([]byte(atomFeed), "https://example.com/espi.xml", sources[0])
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}

	item := items[0]
	if item.URL != "https://example.com/espi/5" {
		t.Errorf("Expected entry link, got: %s", item.URL)
	}
	if item.Trust != TrustRegulatory {
		t.Errorf("Expected regulatory trust, got: %s", item.Trust)
	}
	if len(item.SourceTickers) != 1 || item.SourceTickers[0] != "PKN" {
		t.Errorf("Expected source tickers [PKN], got: %v", item.SourceTickers)
	}
	if item.PublishedAt == nil {
		t.Error("Expected updated date as fallback for published date")
	}
}

const relativeLinksFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Komunikaty</title>
    <link>https://news.example.com/komunikaty/</link>
    <item>
      <title>Zarząd zwołuje walne zgromadzenie</title>
      <link>/komunikaty/2025/12</link>
    </item>
    <item>
      <title>Korekta raportu</title>
      <link>13.html</link>
    </item>
  </channel>
</rss>`

func TestParseResolvesRelativeLinks(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		pageURL  string
		expected []string
	}{
		{
			name:     "against feed link",
			data:     relativeLinksFeed,
			pageURL:  "https://cdn.example.net/feeds/komunikaty.xml",
			expected: []string{"https://news.example.com/komunikaty/2025/12", "https://news.example.com/komunikaty/13.html"},
		},
		{
			name:     "against page URL when the feed has no link",
			data:     strings.Replace(relativeLinksFeed, "<link>https://news.example.com/komunikaty/</link>", "", 1),
			pageURL:  "https://cdn.example.net/feeds/komunikaty.xml",
			expected: []string{"https://cdn.example.net/komunikaty/2025/12", "https://cdn.example.net/feeds/13.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := NewParser().Run([]byte(tt.data), tt.pageURL, nil)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(items) != len(tt.expected) {
				t.Fatalf("Expected %d items, got: %d", len(tt.expected), len(items))
			}
			for i, expected := range tt.expected {
				if items[i].URL != expected {
					t.Errorf("Expected link %q, got: %q", expected, items[i].URL)
				}
			}
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := NewParser().Run([]byte("<html><body>not a feed</body></html>"), "", nil)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got: %v", err)
	}
}

func TestParseTruncatedFeed(t *testing.T) {
	_, err := NewParser().Run([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><item><title>`), "", nil)
	if err == nil {
		t.Error("Expected error for truncated feed")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain   text\n here", "plain text here"},
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"Zysk &amp; przychody", "Zysk & przychody"},
		{"<div>a<script>alert(1)</script></div>", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StripHTML(tt.input); got != tt.expected {
			t.Errorf("StripHTML(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
