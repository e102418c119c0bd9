package advisory

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/sashabaranov/go-openai"
)

const DefaultPrompt = `You are a stock trader specialising in technical analysis of candlestick charts.
The chart shows daily candles, the selected indicators and a short forecast with its confidence band.
Describe the trend, the support and resistance levels you see, and what the indicators and the forecast suggest.
Finish with a recommendation: buy, hold or sell, with a short justification.`

const userInstruction = "Analyse this stock chart."

// OpenAIConfig holds the settings of the vision advisor
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Prompt    string
	MaxTokens int
	Client    *http.Client
}

// OpenAI asks a vision capable chat model about a chart image
type OpenAI struct {
	client    *openai.Client
	model     string
	prompt    string
	maxTokens int
}

var _ core.Advisor = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Client != nil {
		config.HTTPClient = cfg.Client
	}

	advisor := &OpenAI{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		prompt:    cfg.Prompt,
		maxTokens: cfg.MaxTokens,
	}

	if advisor.model == "" {
		advisor.model = openai.GPT4o
	}
	if advisor.prompt == "" {
		advisor.prompt = DefaultPrompt
	}
	if advisor.maxTokens <= 0 {
		advisor.maxTokens = 800
	}

	return advisor
}

// Advise implements core.Advisor
func (a *OpenAI) Advise(ctx context.Context, image []byte) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: a.prompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userInstruction},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(image),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("openai request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyAdvice
	}

	return resp.Choices[0].Message.Content, nil
}

func dataURL(image []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}
