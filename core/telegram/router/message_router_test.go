package router

import (
	"errors"
	"testing"

	tg "github.com/m3rciful/dreambot/core/telegram"
	"github.com/m3rciful/dreambot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func TestIsImageDocument(t *testing.T) {
	tests := []struct {
		name string
		msg  *tele.Message
		want bool
	}{
		{"nil", nil, false},
		{"no document", &tele.Message{Text: "hi"}, false},
		{"jpeg", &tele.Message{Document: &tele.Document{MIME: "image/jpeg"}}, true},
		{"upper case", &tele.Message{Document: &tele.Document{MIME: "IMAGE/PNG"}}, true},
		{"pdf", &tele.Message{Document: &tele.Document{MIME: "application/pdf"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsImageDocument(tt.msg); got != tt.want {
				t.Fatalf("IsImageDocument() = %v, want %v", got, tt.want)
			}
		})
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "boom" }
func (codedErr) Code() string  { return "upstream timeout" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(nil); got != "" {
		t.Fatalf("nil error code = %q", got)
	}
	if got := deriveErrorCode(codedErr{}); got != "UPSTREAM_TIMEOUT" {
		t.Fatalf("coded error = %q", got)
	}
	if got := deriveErrorCode(&plainErr{}); got != "PLAINERR" {
		t.Fatalf("typed error = %q", got)
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("errors.New code = %q", got)
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	if got := normalizeHandlerName(" /Stats "); got != "stats" {
		t.Fatalf("normalizeHandlerName = %q", got)
	}
	if got := normalizeHandlerName(""); got != "unknown" {
		t.Fatalf("empty name = %q", got)
	}
}

type fakeContext struct {
	tele.Context
	sender *tele.User
	text   string
	store  map[string]any
}

func (f *fakeContext) Sender() *tele.User     { return f.sender }
func (f *fakeContext) Chat() *tele.Chat       { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update    { return tele.Update{ID: 1} }
func (f *fakeContext) Text() string           { return f.text }
func (f *fakeContext) Message() *tele.Message { return &tele.Message{Text: f.text} }
func (f *fakeContext) Get(key string) any     { return f.store[key] }
func (f *fakeContext) Set(key string, v any) {
	if f.store == nil {
		f.store = map[string]any{}
	}
	f.store[key] = v
}

type recordingConv struct{ texts []string }

func (r *recordingConv) HandleText(c tele.Context) error {
	r.texts = append(r.texts, c.Text())
	return nil
}
func (r *recordingConv) HandleVoice(tele.Context) error { return nil }
func (r *recordingConv) HandlePhoto(tele.Context) error { return nil }

func textHandler(t *testing.T, routes []tg.Route) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == tele.OnText {
			return r.Handler
		}
	}
	t.Fatal("no text route")
	return nil
}

func TestTextCommandHonoursAdminGate(t *testing.T) {
	reg := tg.NewRegistry()
	calls := 0
	if err := reg.RegisterCommand("/stats", commands.Command{
		Handler:     func(tele.Context) error { calls++; return nil },
		Description: "stats",
		AdminOnly:   true,
	}); err != nil {
		t.Fatal(err)
	}
	conv := &recordingConv{}
	h := textHandler(t, MessageRoutes(conv, reg, MessageOptions{Commands: CommandRouteOptions{AdminID: 7}}))

	if err := h(&fakeContext{sender: &tele.User{ID: 8}, text: "/Stats now"}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("non-admin reached the command")
	}
	if err := h(&fakeContext{sender: &tele.User{ID: 7}, text: "/Stats now"}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("admin calls = %d, want 1", calls)
	}
	if len(conv.texts) != 0 {
		t.Fatalf("command text leaked into the conversation: %v", conv.texts)
	}
}

func TestTextFallsThroughToConversation(t *testing.T) {
	conv := &recordingConv{}
	h := textHandler(t, MessageRoutes(conv, tg.NewRegistry(), MessageOptions{}))
	for _, text := range []string{"/unknown", "I dreamt of rain"} {
		if err := h(&fakeContext{sender: &tele.User{ID: 1}, text: text}); err != nil {
			t.Fatal(err)
		}
	}
	if len(conv.texts) != 2 {
		t.Fatalf("conversation got %v", conv.texts)
	}
}
