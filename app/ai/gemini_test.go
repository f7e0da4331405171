package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProviderGenerate(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {
					"role": "model",
					"parts": [{"text": "{\"tickers\": [\"PKN\"], \"ticker_confidence\": [{\"ticker\": \"PKN\", \"confidence\": 0.9}], \"sentiment\": 0.4, \"impact_score\": 6, \"category\": \"contract\"}"}]
				},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5}
		}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(context.Background(), "test-key", "gemini-2.5-flash", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "gemini", provider.Name())

	raw, err := provider.Generate(context.Background(), BuildPrompt(PromptInput{Title: "Orlen podpisał umowę"}))
	require.NoError(t, err)

	generation, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "request carries generation config")
	assert.Equal(t, "application/json", generation["responseMimeType"])
	assert.NotNil(t, generation["responseSchema"])
	assert.NotNil(t, body["systemInstruction"])

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"PKN"}, analysis.Tickers)
	assert.InDelta(t, 0.9, analysis.TickerConfidence["PKN"], 1e-9)
	assert.Equal(t, 6, analysis.ImpactScore)
	assert.Equal(t, "contract", analysis.Category)
}

func TestGeminiProviderEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "  "}]}}]}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(context.Background(), "test-key", "gemini-2.5-flash", server.URL)
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), Request{System: "s", User: "u"})
	assert.ErrorContains(t, err, "no response generated")
}

func TestGeminiProviderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(context.Background(), "test-key", "gemini-2.5-flash", server.URL)
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), Request{System: "s", User: "u"})
	assert.ErrorContains(t, err, "gemini API call failed")
}
