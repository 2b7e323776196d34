package translate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tablechat-io/tablechat/internal/session"
)

// AnthropicConfig configures the Anthropic-backed translator.
type AnthropicConfig struct {
	APIKey    string
	Model     anthropic.Model
	MaxTokens int64
	Timeout   time.Duration // per-call ceiling; a timed-out call surfaces as a translation failure
	Logger    *slog.Logger
}

// AnthropicTranslator implements Translator using the Anthropic Messages API.
type AnthropicTranslator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	log       *slog.Logger
}

// NewAnthropic creates the translator. Defaults: Claude Haiku, 1024 max
// tokens, 30s per-call timeout.
func NewAnthropic(cfg AnthropicConfig) *AnthropicTranslator {
	if cfg.Model == "" {
		cfg.Model = anthropic.ModelClaude3_5Haiku20241022
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AnthropicTranslator{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		log:       cfg.Logger,
	}
}

// Translate sends instructions, history, and the question, and returns the
// raw response text.
func (t *AnthropicTranslator) Translate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, turn := range req.History {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == session.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)))

	start := time.Now()
	msg, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     t.model,
		MaxTokens: t.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: req.Instructions},
		},
		Messages: messages,
	})
	duration := time.Since(start)
	if err != nil {
		t.log.Error("anthropic call failed", "duration", duration, "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	t.log.Debug("anthropic call completed", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}
