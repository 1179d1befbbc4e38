// Package openai talks to OpenAI-compatible HTTP APIs (OpenAI, Groq, Gemini's
// compatibility endpoint) for chat, vision and audio transcription.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/dreambot/internal/gateway"
)

const defaultBaseURL = "https://api.openai.com/v1"

// HTTPStatusError captures a non-2xx upstream response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Client is one configured model endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	system      string
	language    string
	temperature *float64
	maxTokens   int
	httpClient  *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSystemPrompt prepends a system message to chat and vision calls.
func WithSystemPrompt(s string) Option {
	return func(c *Client) { c.system = strings.TrimSpace(s) }
}

// WithLanguage sets the ISO-639-1 hint for transcription.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = strings.TrimSpace(lang) }
}

func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = &t }
}

func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// NewClient requires an API key and a model name.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	apiKey, model = strings.TrimSpace(apiKey), strings.TrimSpace(model)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func endpoint(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") && !strings.HasSuffix(base, "/openai") {
		base += "/v1"
	}
	return base + path
}

// CompleteText sends prompt as a single user message.
func (c *Client) CompleteText(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, gateway.OpComplete, prompt)
}

// AnalyzeImage sends prompt and the image inline as a base64 data URL.
func (c *Client) AnalyzeImage(ctx context.Context, image gateway.Image, prompt string) (string, error) {
	if len(image.Data) == 0 {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: gateway.OpAnalyze, Err: errors.New("empty image")}
	}
	mime := image.MIME
	if mime == "" {
		mime = http.DetectContentType(image.Data)
	}
	parts := []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{
			URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data),
		}},
	}
	return c.chat(ctx, gateway.OpAnalyze, parts)
}

func (c *Client) chat(ctx context.Context, op string, content any) (string, error) {
	var msgs []chatMessage
	if c.system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: content})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := endpoint(c.baseURL, "/chat/completions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", gateway.Classify(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, url)
	if err != nil {
		return "", c.wrap(op, err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(payload.Choices) == 0 {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: op, Err: errors.New("no choices in response")}
	}
	text := strings.TrimSpace(payload.Choices[0].Message.Content)
	if text == "" {
		return "", &gateway.Error{Kind: gateway.KindMalformed, Op: op, Err: errors.New("empty completion")}
	}
	return text, nil
}

// Transcribe uploads audio to /audio/transcriptions. Every failure matches
// gateway.ErrTranscription; upstream failures additionally carry a *gateway.Error.
func (c *Client) Transcribe(ctx context.Context, audio gateway.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", fmt.Errorf("%w: empty audio", gateway.ErrTranscription)
	}
	name := audio.Filename
	if name == "" {
		name = "voice.ogg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err == nil {
		_, err = fw.Write(audio.Data)
	}
	if err == nil {
		err = mw.WriteField("model", c.model)
	}
	if err == nil {
		err = mw.WriteField("response_format", "json")
	}
	if err == nil && c.language != "" {
		err = mw.WriteField("language", c.language)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return "", fmt.Errorf("%w: build form: %v", gateway.ErrTranscription, err)
	}

	url := endpoint(c.baseURL, "/audio/transcriptions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", gateway.ErrTranscription, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := c.do(req, url)
	if err != nil {
		var status *HTTPStatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %v", gateway.ErrTranscription, err)
		}
		return "", errors.Join(gateway.ErrTranscription, c.wrap(gateway.OpTranscribe, err))
	}

	var payload transcriptionResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", gateway.ErrTranscription, err)
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", gateway.ErrTranscription)
	}
	return text, nil
}

func (c *Client) wrap(op string, err error) error {
	var status *HTTPStatusError
	if errors.As(err, &status) {
		return &gateway.Error{Kind: gateway.KindForStatus(status.StatusCode), Op: op, Err: err}
	}
	return gateway.Classify(op, err)
}

func (c *Client) do(req *http.Request, url string) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(b)}
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return b, nil
}
