package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/observability"
)

type OpenAIConfig struct {
	BaseURL            string
	APIKey             string
	Model              string
	Temperature        float64
	SummaryTemperature float64
	Timeout            time.Duration
}

// OpenAIAssistant talks to any server speaking the OpenAI chat completions
// API. Each Translate and Summarize call is exactly one completion.
type OpenAIAssistant struct {
	client             *openai.Client
	model              string
	temperature        float32
	summaryTemperature float32
}

func NewOpenAIAssistant(cfg OpenAIConfig) (*OpenAIAssistant, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, apperr.New(apperr.KindConfigInvalid, "settings", "llm api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIAssistant{
		client:             openai.NewClientWithConfig(clientConfig),
		model:              model,
		temperature:        float32(cfg.Temperature),
		summaryTemperature: float32(cfg.SummaryTemperature),
	}, nil
}

// Translate returns the model's first answer, trimmed, as the SQL to run.
func (a *OpenAIAssistant) Translate(ctx context.Context, req Request) (string, error) {
	system, user := TranslationMessages(req)
	sqlText, err := a.complete(ctx, "translate", a.temperature, system, user)
	if err != nil {
		return "", err
	}
	return sqlText, nil
}

func (a *OpenAIAssistant) Summarize(ctx context.Context, req SummaryRequest) (Rendering, error) {
	system, user, err := SummaryMessages(req)
	if err != nil {
		return Rendering{}, apperr.Wrap(apperr.KindUnexpected, "summarize", "build summary prompt", err)
	}
	summary, err := a.complete(ctx, "summarize", a.summaryTemperature, system, user)
	if err != nil {
		return Rendering{}, err
	}
	return newRendering(summary, req), nil
}

func (a *OpenAIAssistant) complete(ctx context.Context, operation string, temperature float32, system, user string) (string, error) {
	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: requestTemperature(temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("empty chat completion choices")
	}
	var content string
	if err == nil {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			err = errors.New("model returned an empty message")
		}
	}
	observability.ObserveLLMCall(operation, time.Since(start), err)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnexpected, operation, fmt.Sprintf("%s with %s", operation, a.model), err)
	}
	return content, nil
}

// requestTemperature maps zero to the smallest positive float32: the client
// omits a zero temperature from the request body, and the server default
// is not zero.
func requestTemperature(value float32) float32 {
	if value <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return value
}
