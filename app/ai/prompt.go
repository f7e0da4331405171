package ai

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const maxBodyRunes = 3000

const systemInstructions = `You classify Polish and US stock market news for retail investors.
Answer with a single JSON object and nothing else, using these fields:
- tickers: array of exchange tickers the article is actually about (not merely mentioned), most relevant first
- ticker_confidence: object mapping each considered ticker to a confidence between 0 and 1
- relevance_score: 0..1, how relevant the article is for an investor in the listed companies
- sector: sector of the main company, empty when none
- sentiment: -1 (very negative) .. 1 (very positive) for the main company's shareholders
- impact_score: integer 1..10, expected price impact
- category: one of earnings, dividend, mna, regulatory, management, contract, guidance, legal, macro, other
- ai_summary: two sentences in Polish
- key_facts: array of {"label": string, "value": string} with concrete numbers and dates
- topics: array of short keywords
- is_breaking: true only for unexpected, market-moving news
- impact_assessment: one sentence on the likely market reaction
Use an empty tickers array for macro or sector news that names no company.`

type Request struct {
	System string
	User   string
}

type Quote struct {
	Ticker   string
	Price    decimal.Decimal
	Currency string
}

type PromptInput struct {
	Title      string
	Body       string
	Source     string
	Candidates []string // heuristic tickers, passed as hints
	Quotes     []Quote
}

// BuildPrompt renders the classification request. The body is cut to a fixed number of runes.
func BuildPrompt(in PromptInput) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "Source: %s\n", in.Source)
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(in.Title))

	if len(in.Candidates) > 0 {
		fmt.Fprintf(&b, "Possible tickers from name matching: %s\n", strings.Join(in.Candidates, ", "))
	}
	for _, q := range in.Quotes {
		fmt.Fprintf(&b, "Latest price %s: %s %s\n", q.Ticker, q.Price.StringFixed(2), q.Currency)
	}

	body := strings.TrimSpace(in.Body)
	if runes := []rune(body); len(runes) > maxBodyRunes {
		body = string(runes[:maxBodyRunes]) + "…"
	}
	if body != "" {
		fmt.Fprintf(&b, "\n%s\n", body)
	}

	return Request{System: systemInstructions, User: b.String()}
}
