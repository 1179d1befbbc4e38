package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"raw", &tele.Callback{Data: "\fgender|female"}, "gender", "female"},
		{"raw without payload", &tele.Callback{Data: "\fnav"}, "nav", ""},
		{"split", &tele.Callback{Unique: "layout", Data: "celtic_cross"}, "layout", "celtic_cross"},
		{"payload keeps separators", &tele.Callback{Data: "\fx|a|b"}, "x", "a|b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, payload := Parse(tt.cb)
			if key != tt.key || payload != tt.payload {
				t.Fatalf("Parse() = (%q, %q), want (%q, %q)", key, payload, tt.key, tt.payload)
			}
		})
	}
}
