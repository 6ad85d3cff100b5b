package scanning

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultAnthropicModel is used when no model name is configured
	DefaultAnthropicModel = "claude-haiku-4-5-20251001"

	anthropicMaxTokens = 1024
)

// Anthropic implements the Generator interface using the Anthropic Messages API
type Anthropic struct {
	client sdk.Client
	model  string
}

// NewAnthropic creates a new Anthropic Generator instance
func NewAnthropic(apiKey string, modelName string, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if modelName == "" {
		modelName = DefaultAnthropicModel
	}

	return &Anthropic{
		client: sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:  modelName,
	}, nil
}

// Generate sends the prompt as a single user message and joins the text blocks of the reply
func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating anthropic message: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text in anthropic response")
	}
	return text.String(), nil
}

// Close is a no-op; the SDK client holds no resources
func (a *Anthropic) Close() error {
	return nil
}
