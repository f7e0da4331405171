package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcherIsolatesFailingURLs(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/rss.xml":
			if ua := r.Header.Get("User-Agent"); ua != "Newsdesk/test" {
				t.Errorf("Expected user agent header, got: %s", ua)
			}
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(rssFeed))
		case "/atom.xml":
			w.Write([]byte(atomFeed))
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/garbage":
			w.Write([]byte("not a feed at all"))
		case "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}
	}))
	defer server.Close()

	sources := []*Source{
		{Name: "good", Tag: "good", Trust: TrustStandard, URLs: []string{server.URL + "/rss.xml", server.URL + "/broken"}},
		{Name: "atom", Tag: "atom", Trust: TrustStandard, URLs: []string{server.URL + "/atom.xml"}},
		{Name: "garbage", Tag: "garbage", URLs: []string{server.URL + "/garbage"}},
		{Name: "slow", Tag: "slow", Timeout: 1, URLs: []string{server.URL + "/slow"}},
	}

	fetcher := NewFetcher(server.Client(), FetcherOptions{Concurrency: 3, UserAgent: "Newsdesk/test"})
	result := fetcher.Run(context.Background(), sources)

	if len(result.Items) != 3 {
		t.Errorf("Expected 3 items from healthy URLs, got: %d", len(result.Items))
	}

	good := result.Sources["good"]
	if good.Fetched != 2 || len(good.Errors) != 1 {
		t.Errorf("Expected 2 fetched and 1 error for good source, got: %+v", good)
	}
	if !strings.Contains(good.Errors[0], "500") {
		t.Errorf("Expected HTTP status in error, got: %s", good.Errors[0])
	}
	if result.Sources["atom"].Failed() {
		t.Errorf("Expected atom source to succeed, got: %+v", result.Sources["atom"])
	}
	if !result.Sources["garbage"].Failed() {
		t.Error("Expected garbage source to fail")
	}
	if !result.Sources["slow"].Failed() {
		t.Error("Expected slow source to time out")
	}
	if result.ErrorCount() != 3 {
		t.Errorf("Expected 3 errors, got: %d", result.ErrorCount())
	}
	if hits.Load() != 5 {
		t.Errorf("Expected 5 requests, got: %d", hits.Load())
	}
}

func TestFetcherExtractsContent(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss.xml":
			w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>x</title>
<item><title>mBank ogłasza wyniki Q4</title><link>` + server.URL + `/article</link><description>krótko</description></item>
</channel></rss>`))
		case "/article":
			w.Write([]byte(articlePage))
		}
	}))
	defer server.Close()

	sources := []*Source{{Name: "paper", Tag: "paper", ExtractContent: true, URLs: []string{server.URL + "/rss.xml"}}}

	result := NewFetcher(server.Client(), FetcherOptions{}).Run(context.Background(), sources)
	if len(result.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(result.Items))
	}
	if !strings.Contains(result.Items[0].Summary, "zysk netto") {
		t.Errorf("Expected summary replaced by article text, got: %q", result.Items[0].Summary)
	}
}

func TestHostLimiterSpacesRequestsPerHost(t *testing.T) {
	limiter := NewHostLimiter(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "https://example.com/a"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("Expected requests to the same host to be spaced, took %v", elapsed)
	}

	start = time.Now()
	if err := limiter.Wait(ctx, "https://other.example.com/a"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected first request to a new host to pass immediately, took %v", elapsed)
	}
}

func TestHostLimiterHonorsContext(t *testing.T) {
	limiter := NewHostLimiter(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Wait(ctx, "https://example.com"); err == nil {
		t.Error("Expected error when the wait exceeds the context deadline")
	}
}
