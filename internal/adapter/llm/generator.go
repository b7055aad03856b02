package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 1024
)

// Config selects and configures the completion provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string // optional; OpenAI-compatible or Anthropic endpoint override
	Timeout  time.Duration
}

// completer sends one system+user exchange and returns the raw reply text.
type completer func(ctx context.Context, system, user string) (string, error)

// Generator implements port.SQLGenerator over a hosted model.
type Generator struct {
	provider string
	model    string
	timeout  time.Duration
	complete completer
	logger   *slog.Logger
}

var _ port.SQLGenerator = (*Generator)(nil)

// New builds a generator for cfg.Provider.
func New(cfg Config, logger *slog.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	g := &Generator{
		provider: cfg.Provider,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		logger:   logger.With("component", "llm", "provider", cfg.Provider),
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		g.complete = openAICompleter(cfg)
	case ProviderAnthropic:
		g.complete = anthropicCompleter(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (want %s or %s)", cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	return g, nil
}

// Generate asks the model for SQL answering prompt under pol. The reply is
// returned with code fences stripped and is not otherwise validated.
func (g *Generator) Generate(ctx context.Context, prompt string, pol domain.Policy) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.complete(ctx, SystemPrompt(pol), prompt)
	elapsed := time.Since(start)
	if err != nil {
		cerr := classify(err)
		g.logger.Error("generation failed",
			"model", g.model,
			"error.type", string(cerr.Kind),
			"status", cerr.StatusCode,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return "", cerr
	}

	sql := StripFences(text)
	if sql == "" {
		return "", &Error{Kind: KindEmpty}
	}
	g.logger.Info("generation completed",
		"model", g.model,
		"prompt_len", len(prompt),
		"duration_ms", elapsed.Milliseconds())
	return sql, nil
}

func openAICompleter(cfg Config) completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	client := openai.NewClientWithConfig(clientCfg)

	return func(ctx context.Context, system, user string) (string, error) {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", &Error{Kind: KindEmpty}
		}
		return resp.Choices[0].Message.Content, nil
	}
}

func anthropicCompleter(cfg Config) completer {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	client := anthropic.NewClient(cfg.APIKey, opts...)

	return func(ctx context.Context, system, user string) (string, error) {
		resp, err := client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:     anthropic.Model(cfg.Model),
			System:    system,
			MaxTokens: defaultMaxTokens,
			Messages: []anthropic.Message{
				anthropic.NewUserTextMessage(user),
			},
		})
		if err != nil {
			return "", err
		}
		for _, block := range resp.Content {
			if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
				return *block.Text, nil
			}
		}
		return "", &Error{Kind: KindEmpty}
	}
}
