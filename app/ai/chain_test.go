package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	raw   string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.raw, f.err
}

func TestChainReturnsFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "gemini", raw: `{"tickers": ["MBK"]}`}
	second := &fakeProvider{name: "claude", raw: `{"tickers": ["PKO"]}`}

	result, err := NewChain(time.Second, first, second).Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, []string{"MBK"}, result.Analysis.Tickers)
	require.Len(t, result.Attempts, 1)
	assert.NoError(t, result.Attempts[0].Err)
	assert.Equal(t, 0, second.calls)
}

func TestChainFallsBackOnErrorAndUnparsable(t *testing.T) {
	failing := &fakeProvider{name: "gemini", err: errors.New("429 too many requests")}
	garbage := &fakeProvider{name: "claude", raw: "Przepraszam, nie mogę."}
	good := &fakeProvider{name: "backup", raw: `{"category": "contract"}`}

	result, err := NewChain(time.Second, failing, garbage, good).Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, "backup", result.Provider)
	require.Len(t, result.Attempts, 3)
	assert.EqualError(t, result.Attempts[0].Err, "429 too many requests")
	assert.ErrorIs(t, result.Attempts[1].Err, ErrUnparsable)
	assert.NoError(t, result.Attempts[2].Err)
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(20*time.Millisecond,
		&fakeProvider{name: "slow", delay: time.Second},
		&fakeProvider{name: "garbage", raw: "???"},
	)

	result, err := chain.Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Nil(t, result.Analysis)
	require.Len(t, result.Attempts, 2)
	assert.ErrorIs(t, result.Attempts[0].Err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnparsable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChainWithoutProviders(t *testing.T) {
	_, err := NewChain(time.Second).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	provider := &fakeProvider{name: "gemini", raw: `{}`}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewChain(time.Second, provider).Run(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Attempts)
	assert.Equal(t, 0, provider.calls)
}

func TestClaudeProviderGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "{\"tickers\": [\"CDR\"]}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	provider := NewClaudeProvider("test-key", "claude-haiku-4-5", option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	assert.Equal(t, "claude", provider.Name())

	raw, err := provider.Generate(context.Background(), BuildPrompt(PromptInput{Title: "CD Projekt"}))
	require.NoError(t, err)
	assert.Equal(t, `{"tickers": ["CDR"]}`, raw)
}

func TestClaudeProviderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`))
	}))
	defer server.Close()

	provider := NewClaudeProvider("test-key", "claude-haiku-4-5", option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	_, err := provider.Generate(context.Background(), Request{System: "s", User: "u"})
	assert.Error(t, err)
}
