// Package gateway is the boundary to the generative-AI services that produce
// readings: speech-to-text, text completion and image analysis.
package gateway

import "context"

// Audio is a recorded voice message.
type Audio struct {
	Data     []byte
	Filename string
	MIME     string
}

// Image is an uploaded photo.
type Image struct {
	Data []byte
	MIME string
}

// Transcriber turns audio into text. Empty or corrupt audio and empty
// transcripts fail with ErrTranscription.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// TextCompleter answers a text prompt.
type TextCompleter interface {
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// ImageAnalyzer answers a prompt about an image.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error)
}

// Gateway bundles the three capabilities. Each fails independently.
type Gateway interface {
	Transcriber
	TextCompleter
	ImageAnalyzer
}

// Split routes each capability to its own provider, so e.g. speech can use
// one vendor while text and vision use another.
type Split struct {
	Speech Transcriber
	Text   TextCompleter
	Vision ImageAnalyzer
}

func (s Split) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if s.Speech == nil {
		return "", &Error{Kind: KindUpstream, Op: OpTranscribe, Err: errNotConfigured}
	}
	return s.Speech.Transcribe(ctx, audio)
}

func (s Split) CompleteText(ctx context.Context, prompt string) (string, error) {
	if s.Text == nil {
		return "", &Error{Kind: KindUpstream, Op: OpComplete, Err: errNotConfigured}
	}
	return s.Text.CompleteText(ctx, prompt)
}

func (s Split) AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error) {
	if s.Vision == nil {
		return "", &Error{Kind: KindUpstream, Op: OpAnalyze, Err: errNotConfigured}
	}
	return s.Vision.AnalyzeImage(ctx, image, prompt)
}
