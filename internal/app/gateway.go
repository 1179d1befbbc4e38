package app

import (
	"context"
	"fmt"

	"github.com/m3rciful/dreambot/internal/config"
	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/gateway/ark"
	"github.com/m3rciful/dreambot/internal/gateway/openai"
)

// chatProvider builds a text or vision backend.
type chatProvider interface {
	gateway.TextCompleter
	gateway.ImageAnalyzer
}

// buildGateway routes each capability to its configured provider, then adds
// the call timeout and logging. Speech is optional; without it voice input
// fails as a transcription error.
func buildGateway(ctx context.Context, ai config.AIConfig) (gateway.Gateway, error) {
	text, err := newChatProvider(ctx, ai.Text, ai.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("ai.text: %w", err)
	}
	vision := text
	if ai.Vision != ai.Text {
		if vision, err = newChatProvider(ctx, ai.Vision, ai.SystemPrompt); err != nil {
			return nil, fmt.Errorf("ai.vision: %w", err)
		}
	}
	split := gateway.Split{Text: text, Vision: vision}
	if ai.Speech.Model != "" {
		stt, err := openai.NewClient(ai.Speech.APIKey, ai.Speech.Model,
			openai.WithBaseURL(ai.Speech.BaseURL),
			openai.WithLanguage(ai.Speech.Language),
		)
		if err != nil {
			return nil, fmt.Errorf("ai.speech: %w", err)
		}
		split.Speech = stt
	}
	return gateway.WithLogging(gateway.WithTimeout(split, ai.Timeout), ai.Text.Provider), nil
}

func newChatProvider(ctx context.Context, p config.ProviderConfig, system string) (chatProvider, error) {
	switch p.Provider {
	case config.ProviderArk:
		return ark.New(ctx, ark.Config{
			BaseURL:     p.BaseURL,
			Region:      p.Region,
			APIKey:      p.APIKey,
			AccessKey:   p.AccessKey,
			SecretKey:   p.SecretKey,
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			System:      system,
		})
	default:
		opts := []openai.Option{
			openai.WithBaseURL(p.BaseURL),
			openai.WithSystemPrompt(system),
		}
		if p.MaxTokens > 0 {
			opts = append(opts, openai.WithMaxTokens(p.MaxTokens))
		}
		if p.Temperature > 0 {
			opts = append(opts, openai.WithTemperature(float64(p.Temperature)))
		}
		return openai.NewClient(p.APIKey, p.Model, opts...)
	}
}
