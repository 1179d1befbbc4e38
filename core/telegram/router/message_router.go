package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/dreambot/core/telegram"
	"github.com/m3rciful/dreambot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives the free-form user input that drives a dialogue.
type Conversation interface {
	HandleText(c tele.Context) error
	HandleVoice(c tele.Context) error
	HandlePhoto(c tele.Context) error
}

// MessageOptions controls fallbacks for message updates.
type MessageOptions struct {
	// Commands gates AdminOnly commands reached through free text.
	Commands        CommandRouteOptions
	UnknownDocument tele.HandlerFunc
}

// MessageRoutes builds handlers for text, voice, audio, photo and document
// updates. Slash text that telebot did not route itself ("/Start", an alias
// typed with arguments) is resolved through the registry first.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	input := func(name string, fn func(Conversation) tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if conv == nil {
				logHandlerSummary(c, name, start, "skip", nil)
				return nil
			}
			return handleWithSummary(c, name, start, func() error { return fn(conv)(c) })
		}
	}
	textInput := input("text", func(cv Conversation) tele.HandlerFunc { return cv.HandleText })
	voice := input("voice", func(cv Conversation) tele.HandlerFunc { return cv.HandleVoice })
	photo := input("photo", func(cv Conversation) tele.HandlerFunc { return cv.HandlePhoto })
	imageDoc := input("photo_document", func(cv Conversation) tele.HandlerFunc { return cv.HandlePhoto })

	text := func(c tele.Context) error {
		if reg != nil && strings.HasPrefix(c.Text(), "/") {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok {
				return commandHandler(key, cmd, opts.Commands)(c)
			}
		}
		return textInput(c)
	}

	// Photos sent "as file" arrive as documents.
	document := func(c tele.Context) error {
		if IsImageDocument(c.Message()) {
			return imageDoc(c)
		}
		start := time.Now()
		if opts.UnknownDocument == nil {
			logHandlerSummary(c, "unexpected_document", start, "skip", nil)
			return nil
		}
		return handleWithSummary(c, "unexpected_document", start, func() error {
			return opts.UnknownDocument(c)
		})
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnVoice, Handler: wrap(voice)},
		{Endpoint: tele.OnAudio, Handler: wrap(voice)},
		{Endpoint: tele.OnPhoto, Handler: wrap(photo)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}

// IsImageDocument reports whether msg carries a document with an image MIME type.
func IsImageDocument(msg *tele.Message) bool {
	if msg == nil || msg.Document == nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(msg.Document.MIME), "image/")
}
