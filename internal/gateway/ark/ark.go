// Package ark serves text and vision calls through a Volcengine Ark chat model
// driven by eino.
package ark

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	arkmodel "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/m3rciful/dreambot/internal/gateway"
)

// Config mirrors the subset of ark.ChatModelConfig the bot exposes.
type Config struct {
	BaseURL     string
	Region      string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	MaxTokens   int
	Temperature float32
	System      string
}

// Enabled reports whether credentials and a model are present.
func (c Config) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client implements gateway.TextCompleter and gateway.ImageAnalyzer.
type Client struct {
	chat   generator
	system string
}

// New builds the underlying eino chat model.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("ark: model and api key (or access/secret key pair) are required")
	}
	mc := &arkmodel.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		Region:    cfg.Region,
		APIKey:    cfg.APIKey,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Model:     cfg.Model,
	}
	if cfg.MaxTokens > 0 {
		mc.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		mc.Temperature = &cfg.Temperature
	}
	cm, err := arkmodel.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("ark: new chat model: %w", err)
	}
	return &Client{chat: cm, system: strings.TrimSpace(cfg.System)}, nil
}

func (c *Client) CompleteText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, gateway.OpComplete, schema.UserMessage(prompt))
}

func (c *Client) AnalyzeImage(ctx context.Context, image gateway.Image, prompt string) (string, error) {
	if len(image.Data) == 0 {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: gateway.OpAnalyze, Err: errors.New("empty image")}
	}
	mime := image.MIME
	if mime == "" {
		mime = http.DetectContentType(image.Data)
	}
	msg := &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: prompt},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{
				URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data),
				Detail: schema.ImageURLDetailAuto,
			}},
		},
	}
	return c.generate(ctx, gateway.OpAnalyze, msg)
}

func (c *Client) generate(ctx context.Context, op string, msg *schema.Message) (string, error) {
	var in []*schema.Message
	if c.system != "" {
		in = append(in, schema.SystemMessage(c.system))
	}
	in = append(in, msg)

	out, err := c.chat.Generate(ctx, in)
	if err != nil {
		return "", classify(op, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: op, Err: errors.New("empty completion")}
	}
	return strings.TrimSpace(out.Content), nil
}

// classify maps SDK errors by message since the ark client does not expose typed statuses.
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "quota"), strings.Contains(msg, "ratelimit"), strings.Contains(msg, "rate limit"):
		return &gateway.Error{Kind: gateway.KindQuota, Op: op, Err: err}
	default:
		return gateway.Classify(op, err)
	}
}
