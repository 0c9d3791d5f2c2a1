// Package llm wraps the external generation service behind the three call
// shapes the engine needs: free-form answers, constrained binary routing
// decisions and bounded summarization.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are an expert document analyst. Answer strictly from the provided
document context. Combine facts from different parts of the context, state your confidence,
and answer in the same language as the question. If the context does not contain the
answer, say so plainly instead of inventing one. Do not emit source citations or
"Sources:" sections; the application renders sources itself.`

const decisionPrompt = `You are a retrieval router. Decide whether the context contains
enough information to answer the question. Reply with a single word: YES or NO.`

// affirmativeTokens is the fixed set accepted as a positive routing decision.
var affirmativeTokens = []string{"yes", "да", "true", "использовать"}

// Config configures the generation client. BaseURL may point at any
// OpenAI-compatible server, including a local one.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to the generation service.
type Client struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Answer generates a free-form answer given the assembled document context
// and optional prior-conversation context.
func (c *Client) Answer(ctx context.Context, question, docContext, memoryContext string, temperature float32, maxTokens int) (string, error) {
	var b strings.Builder
	if memoryContext != "" {
		b.WriteString(memoryContext)
		b.WriteString("\n\n")
	}
	if docContext != "" {
		b.WriteString("KNOWLEDGE BASE:\n")
		b.WriteString(docContext)
		b.WriteString("\n\n")
	}
	b.WriteString("QUESTION:\n")
	b.WriteString(question)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("answer generation: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Decide asks for a binary verdict on whether the context supports an
// answer. The call is constrained: temperature 0, ten output tokens. On any
// failure it returns true so an ambiguous case errs toward answering.
func (c *Client) Decide(ctx context.Context, query, docContext string) bool {
	user := fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION:\n%s\n\nDECISION:", docContext, query)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   10,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: decisionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		c.logger.Warn("routing decision call failed, defaulting to answer", "err", err)
		return true
	}
	return parseDecision(resp.Choices[0].Message.Content)
}

// parseDecision scans the reply for the fixed affirmative token set.
func parseDecision(reply string) bool {
	lower := strings.ToLower(reply)
	for _, tok := range affirmativeTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Summarize condenses text to roughly maxChars. Errors are returned so the
// caller can fall back to truncation; summarization is never load-bearing.
func (c *Client) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following document context in at most %d characters. Keep every key fact, figure and date. Keep the original language.\n\n%s",
		maxChars, text)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   maxChars / 4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarization: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
