package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini API backend. baseURL overrides the endpoint and may be empty.
func NewGeminiProvider(ctx context.Context, apiKey, model, baseURL string) (*GeminiProvider, error) {
	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
		Temperature:       genai.Ptr[float32](0.1),
	})
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no response generated from gemini API")
	}

	return text, nil
}

func responseSchema() *genai.Schema {
	stringArray := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"tickers": stringArray,
			"ticker_confidence": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"ticker":     {Type: genai.TypeString},
						"confidence": {Type: genai.TypeNumber},
					},
				},
			},
			"relevance_score": {Type: genai.TypeNumber},
			"sector":          {Type: genai.TypeString},
			"sentiment":       {Type: genai.TypeNumber},
			"impact_score":    {Type: genai.TypeInteger},
			"category":        {Type: genai.TypeString},
			"ai_summary":      {Type: genai.TypeString},
			"key_facts": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"label": {Type: genai.TypeString},
						"value": {Type: genai.TypeString},
					},
				},
			},
			"topics":            stringArray,
			"is_breaking":       {Type: genai.TypeBoolean},
			"impact_assessment": {Type: genai.TypeString},
		},
		Required: []string{"tickers", "sentiment", "impact_score", "category"},
	}
}
