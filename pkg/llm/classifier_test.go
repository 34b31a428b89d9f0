package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
)

// completionServer returns an httptest server answering chat completions with
// the given message content, recording request count and last request body
func completionServer(t *testing.T, content string, calls *atomic.Int32, lastReq *atomic.Value) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if calls != nil {
			calls.Add(1)
		}

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if lastReq != nil {
			lastReq.Store(req)
		}

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // test server
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Endpoint:  endpoint + "/v1",
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		MaxTokens: 500,
		Timeout:   5 * time.Second,
	}
}

func TestClassifier_ClassifyArticle(t *testing.T) {
	var lastReq atomic.Value
	server := completionServer(t, `{
		"category": "feature_launch",
		"summary": "Acme shipped an AI analytics dashboard for enterprise plans",
		"confidence": 0.92,
		"entities": ["Acme", "AI dashboard"],
		"impact_level": "high"
	}`, nil, &lastReq)

	classifier := NewClassifier(testConfig(server.URL))

	article := domain.Article{
		Title:          "Acme launches AI dashboard",
		Body:           "Today we are announcing our new AI-powered analytics dashboard...",
		URL:            "https://acme.example.com/blog/ai-dashboard",
		CompetitorName: "Acme",
	}

	result, err := classifier.ClassifyArticle(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFeatureLaunch, result.Category)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
	assert.Equal(t, domain.ImpactHigh, result.Impact)
	assert.Equal(t, []string{"Acme", "AI dashboard"}, result.Entities)
	assert.True(t, result.Actionable())

	// request carries model, JSON mode and the article context
	req := lastReq.Load().(openai.ChatCompletionRequest)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	assert.LessOrEqual(t, req.Temperature, float32(1e-30), "temperature pinned to zero")
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "feature_launch")
	assert.Contains(t, req.Messages[1].Content, "Acme launches AI dashboard")
	assert.Contains(t, req.Messages[1].Content, "**Source**: Acme")
}

func TestClassifier_ClassifyArticle_TruncatesLongContent(t *testing.T) {
	var lastReq atomic.Value
	server := completionServer(t, `{
		"category": "other",
		"summary": "General content",
		"confidence": 0.3,
		"entities": [],
		"impact_level": "low"
	}`, nil, &lastReq)

	classifier := NewClassifier(testConfig(server.URL))

	article := domain.Article{
		Title: "Long post",
		Body:  strings.Repeat("x", 10000),
		URL:   "https://example.com/long",
	}
	result, err := classifier.ClassifyArticle(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, result.Category)
	assert.False(t, result.Actionable())

	req := lastReq.Load().(openai.ChatCompletionRequest)
	assert.Less(t, len(req.Messages[1].Content), 4000, "body truncated before sending")
}

func TestClassifier_ClassifyArticle_FencedJSON(t *testing.T) {
	server := completionServer(t, "```json\n{\"category\": \"partnership\", \"summary\": \"s\", \"confidence\": 0.7, \"entities\": [], \"impact_level\": \"medium\"}\n```", nil, nil)

	classifier := NewClassifier(testConfig(server.URL))
	result, err := classifier.ClassifyArticle(context.Background(), domain.Article{Title: "t", URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPartnership, result.Category)
}

func TestClassifier_ClassifyArticle_InvalidResponses(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "I cannot classify this article."},
		{"missing fields", `{"category": "partnership", "confidence": 0.8}`},
		{"unknown category", `{"category": "acquisition", "summary": "s", "confidence": 0.8, "entities": [], "impact_level": "low"}`},
		{"unknown impact", `{"category": "partnership", "summary": "s", "confidence": 0.8, "entities": [], "impact_level": "critical"}`},
		{"confidence out of range", `{"category": "partnership", "summary": "s", "confidence": 1.5, "entities": [], "impact_level": "low"}`},
		{"string confidence", `{"category": "partnership", "summary": "s", "confidence": "0.8", "entities": [], "impact_level": "low"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := completionServer(t, tt.content, &calls, nil)

			cfg := testConfig(server.URL)
			cfg.Classification.MaxRetries = 2
			classifier := NewClassifier(cfg)

			result, err := classifier.ClassifyArticle(context.Background(), domain.Article{Title: "t", URL: "u"})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, domain.ErrInvalidResponse)
			assert.Equal(t, int32(2), calls.Load(), "invalid payloads are retried")
		})
	}
}

func TestClassifier_ClassifyArticle_TransportRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{
					Content: `{"category": "pricing_change", "summary": "s", "confidence": 0.8, "entities": [], "impact_level": "medium"}`,
				}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // test server
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Classification.MaxRetries = 3
	classifier := NewClassifier(cfg)

	result, err := classifier.ClassifyArticle(context.Background(), domain.Article{Title: "t", URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPricingChange, result.Category)
	assert.Equal(t, int32(2), calls.Load(), "first failure retried, second attempt succeeds")
}

func TestParseClassification_Validation(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		result, err := parseClassification(`{"category": "feature_launch", "summary": "s", "confidence": 0.5, "entities": ["a"], "impact_level": "low"}`)
		require.NoError(t, err)
		assert.True(t, result.Actionable(), "confidence exactly at the gate is actionable")
	})

	t.Run("below gate is valid but not actionable", func(t *testing.T) {
		result, err := parseClassification(`{"category": "feature_launch", "summary": "s", "confidence": 0.49999, "entities": [], "impact_level": "low"}`)
		require.NoError(t, err)
		assert.False(t, result.Actionable())
	})

	t.Run("zero confidence allowed", func(t *testing.T) {
		result, err := parseClassification(`{"category": "other", "summary": "s", "confidence": 0, "entities": [], "impact_level": "low"}`)
		require.NoError(t, err)
		assert.False(t, result.Actionable())
	})
}
