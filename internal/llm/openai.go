package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/saudeflow/agendabot/pkg/logging"
)

const callTimeout = 30 * time.Second

// chatClient abstracts the OpenAI SDK for tests.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIPlanner proposes the next conversational step by calling the chat
// completions API with the fixed function registry attached.
type OpenAIPlanner struct {
	client      chatClient
	model       string
	temperature float32
	maxTokens   int
	logger      *logging.Logger
}

// OpenAIConfig holds the settings for the OpenAI-backed planner.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *logging.Logger
}

// NewOpenAIPlanner builds a planner from cfg. The API key is required.
func NewOpenAIPlanner(cfg OpenAIConfig) (*OpenAIPlanner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: missing OpenAI API key")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIPlanner{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}, nil
}

// Propose sends the system prompt plus history to the model and returns either
// plain assistant content, a proposed action, or both.
func (p *OpenAIPlanner) Propose(ctx context.Context, history []Message) (Step, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		cm := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		}
		if m.FunctionCall != nil {
			cm.FunctionCall = &openai.FunctionCall{
				Name:      m.FunctionCall.Name,
				Arguments: m.FunctionCall.Arguments,
			}
		}
		msgs = append(msgs, cm)
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Functions:   definitions,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return Step{}, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Step{}, fmt.Errorf("llm: chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	step := Step{Content: choice.Content}
	if fc := choice.FunctionCall; fc != nil {
		args := map[string]any{}
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
				return Step{}, fmt.Errorf("llm: decode arguments for %s: %w", fc.Name, err)
			}
		}
		step.Action = &Action{Name: fc.Name, Arguments: args}
	}

	p.logger.Debug("chat completion finished",
		"model", p.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"has_action", step.Action != nil,
	)
	return step, nil
}
