package feed

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/newsdesk/app/database"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator()

	published := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	items := []database.NewsItem{
		{
			ID:          1,
			URL:         "https://pap.example/orlen?a=1&b=2",
			Title:       "Orlen & partnerzy podpisali umowę",
			Summary:     "Krótki opis",
			Source:      "pap",
			PublishedAt: &published,
			Classified:  true,
			Classification: &database.Classification{
				Tickers:   []string{"PKN"},
				Category:  "contract",
				AISummary: "Orlen zawarł kontrakt na dostawy LNG.",
			},
		},
		{
			ID:        2,
			URL:       "https://pap.example/bez-daty",
			Title:     "Komunikat bez daty",
			Source:    "espi",
			CreatedAt: time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC),
		},
	}

	rss, err := generator.Run(Channel{
		Title:     "Newsdesk: PKN",
		Link:      "http://localhost:8080/feeds/PKN",
		SelfLink:  "http://localhost:8080/feeds/PKN",
		Generator: "Newsdesk/test",
	}, items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var doc struct {
		Channel struct {
			Title string `xml:"title"`
			Items []struct {
				Title       string   `xml:"title"`
				Link        string   `xml:"link"`
				Description string   `xml:"description"`
				PubDate     string   `xml:"pubDate"`
				Categories  []string `xml:"category"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("Generated RSS is not valid XML: %v\n%s", err, rss)
	}

	if doc.Channel.Title != "Newsdesk: PKN" {
		t.Errorf("Expected channel title, got: %q", doc.Channel.Title)
	}
	if len(doc.Channel.Items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(doc.Channel.Items))
	}

	first := doc.Channel.Items[0]
	if first.Title != "Orlen & partnerzy podpisali umowę" || first.Link != "https://pap.example/orlen?a=1&b=2" {
		t.Errorf("Expected escaped title and link to round-trip, got: %+v", first)
	}
	if first.Description != "Orlen zawarł kontrakt na dostawy LNG." {
		t.Errorf("Expected AI summary as description, got: %q", first.Description)
	}
	if strings.Join(first.Categories, ",") != "PKN,contract" {
		t.Errorf("Expected ticker and category, got: %v", first.Categories)
	}
	if first.PubDate != published.Format(time.RFC1123Z) {
		t.Errorf("Expected pubDate %s, got: %s", published.Format(time.RFC1123Z), first.PubDate)
	}

	second := doc.Channel.Items[1]
	if second.Description != "No description available" {
		t.Errorf("Expected placeholder description, got: %q", second.Description)
	}
	if second.PubDate != "Tue, 04 Mar 2025 08:00:00 +0000" {
		t.Errorf("Expected created_at fallback, got: %s", second.PubDate)
	}
}

func TestGenerateRSSEmpty(t *testing.T) {
	rss, err := NewGenerator().Run(Channel{Title: "Newsdesk: XYZ"}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(rss, "<description>Newsdesk: XYZ</description>") {
		t.Errorf("Expected title as fallback description, got:\n%s", rss)
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
}
