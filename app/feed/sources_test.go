package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yml")
	content := `
sources:
  - name: bankier
    urls:
      - https://example.com/rss.xml
      - https://cdn.example.com/rss2.xml
  - name: gpw
    tag: espi
    kind: html
    trust: regulatory
    timeout: 5
    urls: ["https://example.com/komunikaty"]
    scrape:
      item: li.news
      link: a
      ticker: .ticker
    filters:
      - field: title
        excludes: [notowania]
  - name: archived
    disabled: true
    urls: ["https://example.com/old.xml"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 enabled sources, got: %d", len(sources))
	}

	bankier := sources[0]
	if bankier.Tag != "bankier" || bankier.Kind != KindFeed || bankier.Trust != TrustStandard {
		t.Errorf("Expected defaults to be applied, got: %+v", bankier)
	}
	if bankier.TimeoutDuration() != 15*time.Second {
		t.Errorf("Expected default timeout 15s, got: %v", bankier.TimeoutDuration())
	}

	gpw := sources[1]
	if gpw.Tag != "espi" || gpw.Scrape == nil || gpw.Scrape.Ticker != ".ticker" {
		t.Errorf("Expected gpw scrape config, got: %+v", gpw)
	}

	if len(gpw.Filters) != 1 || gpw.Filters[0].Excludes[0] != "notowania" {
		t.Errorf("Expected gpw title filter, got: %+v", gpw.Filters)
	}

	if targets := Targets(sources); len(targets) != 3 {
		t.Errorf("Expected 3 targets, got: %d", len(targets))
	}
}

func TestParseSourcesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"missing urls", "sources:\n  - name: a\n", "URLs"},
		{"invalid url", "sources:\n  - name: a\n    urls: [\"not a url\"]\n", "URLs"},
		{"unknown kind", "sources:\n  - name: a\n    kind: pdf\n    urls: [\"https://example.com\"]\n", "Kind"},
		{"html without scrape", "sources:\n  - name: a\n    kind: html\n    urls: [\"https://example.com\"]\n", "Scrape"},
		{"duplicate names", "sources:\n  - name: a\n    urls: [\"https://example.com\"]\n  - name: a\n    urls: [\"https://example.org\"]\n", "duplicate"},
		{"pattern without group", "sources:\n  - name: a\n    ticker_pattern: '[A-Z]+'\n    urls: [\"https://example.com\"]\n", "capture group"},
		{"unknown filter field", "sources:\n  - name: a\n    urls: [\"https://example.com\"]\n    filters:\n      - field: body\n        excludes: [sport]\n", "Filters[0]"},
		{"bad yaml", "sources: [", "YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSources([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Expected error containing %q, got: %v", tt.errPart, err)
			}
		})
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	if _, err := LoadSources(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
