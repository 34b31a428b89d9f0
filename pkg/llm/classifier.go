// Package llm classifies articles into strategic events with an
// OpenAI-compatible chat endpoint. Decoding temperature is pinned to zero and
// responses are requested in JSON mode, so the same article yields the same
// classification across runs.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
)

// Classifier uses LLM to extract strategic events from articles
type Classifier struct {
	client *openai.Client
	config config.LLMConfig
}

// NewClassifier creates a new LLM classifier
func NewClassifier(cfg config.LLMConfig) *Classifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &Classifier{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// system prompt with category definitions and scoring rules
const systemPrompt = `You are a competitive intelligence assistant specializing in SaaS, design tools, and project management software.
Your task is to analyze company blog posts and announcements to extract actionable competitive intelligence events.

## Event Categories

**feature_launch**: New product features, capabilities, tools, or major functionality additions
Examples: AI-powered analytics dashboard, Mobile app update, API v2.0 release

**pricing_change**: Pricing updates, new tiers, packaging changes, or promotional offers
Examples: 20% discount, Enterprise plan now available, Free tier expansion

**partnership**: Collaborations, integrations, acquisitions, or strategic alliances
Examples: Slack integration, Acquired by BigCorp, Partnership with Microsoft

**other**: General announcements, blog posts, events, hiring, or non-strategic updates
Examples: Company culture post, Industry trends article, Conference attendance

## Classification Rules

1. Be selective: only classify articles that contain actual competitive intelligence (product changes, pricing, partnerships). Skip generic content, tutorials, or thought leadership pieces.
2. Confidence scoring, 0.0-1.0:
   - 0.9-1.0: explicit announcement with clear details
   - 0.7-0.9: strong indicators but some ambiguity
   - 0.5-0.7: indirect mentions or implications
   - below 0.5: uncertain or not relevant (classify as "other")
3. Extract entities: mentioned products, features, pricing tiers, partner companies, or technologies.
4. Impact assessment, "high", "medium" or "low":
   - high: major feature launches, significant pricing changes, strategic acquisitions
   - medium: incremental features, minor pricing adjustments, standard integrations
   - low: bug fixes, UI improvements, general partnerships
5. Summarize concisely: 1-2 sentences capturing the key competitive insight.

## Response Format

You must respond with valid JSON matching this structure:
{
    "category": "feature_launch|pricing_change|partnership|other",
    "summary": "Brief description of the event (1-2 sentences)",
    "confidence": 0.85,
    "entities": ["Entity1", "Entity2"],
    "impact_level": "high|medium|low"
}

REQUIREMENTS:
- "confidence" MUST be a NUMBER between 0.0 and 1.0 (NOT a string)
- "entities" MUST be an ARRAY of strings (NOT a string or object)
- "category" MUST be one of: feature_launch, pricing_change, partnership, other
- "impact_level" MUST be one of: high, medium, low

If the article contains no relevant competitive intelligence, return:
{
    "category": "other",
    "summary": "General content or not actionable",
    "confidence": 0.3,
    "entities": [],
    "impact_level": "low"
}`

// maxContentChars limits article body sent to the model, enough signal for
// classification without burning tokens on long posts
const maxContentChars = 3000

// ClassifyArticle sends one article for classification and validates the
// response. Transport failures and malformed payloads are retried with
// backoff up to the configured attempt count; a payload that is still invalid
// after retries comes back wrapped in domain.ErrInvalidResponse.
func (c *Classifier) ClassifyArticle(ctx context.Context, article domain.Article) (*domain.Classification, error) {
	attempts := c.config.Classification.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}

	reqCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(attempts)*c.config.Timeout)
		defer cancel()
	}

	var result *domain.Classification
	retrier := repeater.NewBackoff(attempts, 500*time.Millisecond, repeater.WithMaxDelay(5*time.Second))
	err := retrier.Do(reqCtx, func() error {
		resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model: c.config.Model,
			// go-openai drops a literal zero from the request, the smallest
			// positive float is the established way to pin temperature to 0
			Temperature: math.SmallestNonzeroFloat32,
			MaxTokens:   c.config.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(article)},
			},
		})
		if err != nil {
			return fmt.Errorf("llm request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response from llm: %w", domain.ErrInvalidResponse)
		}

		parsed, err := parseClassification(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("classify %q: %w", truncate(article.Title, 60), err)
	}
	return result, nil
}

// buildUserPrompt formats one article for the model
func buildUserPrompt(article domain.Article) string {
	competitor := article.CompetitorName
	if competitor == "" {
		competitor = "Unknown"
	}

	var sb strings.Builder
	sb.WriteString("Analyze this article for competitive intelligence:\n\n")
	sb.WriteString(fmt.Sprintf("**Title**: %s\n\n", article.Title))
	sb.WriteString(fmt.Sprintf("**Source**: %s\n\n", competitor))
	sb.WriteString(fmt.Sprintf("**Content**:\n%s\n\n", truncate(article.Body, maxContentChars)))
	sb.WriteString(fmt.Sprintf("**URL**: %s\n\n", article.URL))
	sb.WriteString("Classify this article according to the system instructions.")
	return sb.String()
}

// parseClassification decodes and validates the model response
func parseClassification(content string) (*domain.Classification, error) {
	// models occasionally wrap JSON in markdown fences even in JSON mode
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		Category   *string  `json:"category"`
		Summary    *string  `json:"summary"`
		Confidence *float64 `json:"confidence"`
		Entities   []string `json:"entities"`
		Impact     *string  `json:"impact_level"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse llm response: %v: %w", err, domain.ErrInvalidResponse)
	}

	switch {
	case raw.Category == nil || raw.Summary == nil || raw.Confidence == nil || raw.Impact == nil:
		return nil, fmt.Errorf("missing required fields: %w", domain.ErrInvalidResponse)
	case !domain.ValidCategory(domain.EventCategory(*raw.Category)):
		return nil, fmt.Errorf("unknown category %q: %w", *raw.Category, domain.ErrInvalidResponse)
	case !domain.ValidImpact(domain.ImpactLevel(*raw.Impact)):
		return nil, fmt.Errorf("unknown impact %q: %w", *raw.Impact, domain.ErrInvalidResponse)
	case *raw.Confidence < 0 || *raw.Confidence > 1:
		return nil, fmt.Errorf("confidence %.3f out of range: %w", *raw.Confidence, domain.ErrInvalidResponse)
	}

	return &domain.Classification{
		Category:   domain.EventCategory(*raw.Category),
		Confidence: *raw.Confidence,
		Impact:     domain.ImpactLevel(*raw.Impact),
		Entities:   raw.Entities,
		Summary:    *raw.Summary,
	}, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
