package session

import (
	"strconv"
	"strings"

	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/reading"
)

// Event is an inbound user action.
type Event interface {
	kind() string
}

type TextEvent struct{ Text string }
type VoiceEvent struct{ Audio gateway.Audio }
type PhotoEvent struct{ Image gateway.Image }

// ButtonEvent carries a choice id such as "flow:tarot" or "layout:one_card".
type ButtonEvent struct{ Choice string }

func (TextEvent) kind() string   { return "text" }
func (VoiceEvent) kind() string  { return "voice" }
func (PhotoEvent) kind() string  { return "photo" }
func (ButtonEvent) kind() string { return "button" }

// Choice namespaces.
const (
	nsFlow   = "flow"
	nsNav    = "nav"
	nsGender = "gender"
	nsMonth  = "month"
	nsLayout = "layout"
)

// Navigation choices, valid from any stage.
const (
	NavStart = "nav:start"
	NavHome  = "nav:home"
	NavReset = "nav:reset"
	NavHelp  = "nav:help"
)

func ChoiceFlow(f reading.Flow) string     { return nsFlow + ":" + string(f) }
func ChoiceGender(g profile.Gender) string { return nsGender + ":" + string(g) }
func ChoiceMonth(ordinal int) string       { return nsMonth + ":" + strconv.Itoa(ordinal) }
func ChoiceLayout(id string) string        { return nsLayout + ":" + id }

// SplitChoice separates "ns:value". A choice without a colon has an empty value.
func SplitChoice(choice string) (ns, value string) {
	ns, value, _ = strings.Cut(strings.TrimSpace(choice), ":")
	return ns, value
}

func parseFlow(value string) (reading.Flow, bool) {
	switch f := reading.Flow(value); f {
	case reading.FlowDream, reading.FlowCoffee, reading.FlowTarot:
		return f, true
	}
	return reading.FlowNone, false
}
