package session

import (
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/tarot"
)

// Prompt is a copy category; the transport renders it to localized text.
type Prompt int

const (
	PromptWelcome Prompt = iota + 1
	PromptMainMenu
	PromptHelp
	PromptResetDone
	PromptChooseFromMenu
	PromptAskGender
	PromptAskBirthMonth
	PromptAskBirthYear
	PromptAskDream
	PromptAskCoffeePhoto
	PromptChooseLayout
	PromptWorking
	PromptReading
	PromptAskFeedback
	PromptFeedbackThanks
	PromptDreamFallback
	PromptTryAgain
	PromptInvalidSubject
	PromptTranscriptionFailed
	PromptAssetFailure
	PromptBusy
)

var promptNames = map[Prompt]string{
	PromptWelcome:             "welcome",
	PromptMainMenu:            "main_menu",
	PromptHelp:                "help",
	PromptResetDone:           "reset_done",
	PromptChooseFromMenu:      "choose_from_menu",
	PromptAskGender:           "ask_gender",
	PromptAskBirthMonth:       "ask_birth_month",
	PromptAskBirthYear:        "ask_birth_year",
	PromptAskDream:            "ask_dream",
	PromptAskCoffeePhoto:      "ask_coffee_photo",
	PromptChooseLayout:        "choose_layout",
	PromptWorking:             "working",
	PromptReading:             "reading",
	PromptAskFeedback:         "ask_feedback",
	PromptFeedbackThanks:      "feedback_thanks",
	PromptDreamFallback:       "dream_fallback",
	PromptTryAgain:            "try_again",
	PromptInvalidSubject:      "invalid_subject",
	PromptTranscriptionFailed: "transcription_failed",
	PromptAssetFailure:        "asset_failure",
	PromptBusy:                "busy",
}

// String is the copy key used by the locale catalog.
func (p Prompt) String() string {
	if s, ok := promptNames[p]; ok {
		return s
	}
	return "unknown"
}

// Reply is one outbound message.
type Reply struct {
	Prompt Prompt
	// Invalid marks a re-prompt after rejected input.
	Invalid bool
	// Flow selects flow-specific copy, e.g. which reading is in progress.
	Flow reading.Flow
	// Text is generated content such as the reading itself.
	Text  string
	Album []reading.Image
	// Cards parallels Album for tarot readings.
	Cards []tarot.DrawnCard
	// Options are choice ids offered as inline buttons.
	Options []string
	// Menu asks the transport to show the persistent main menu keyboard.
	Menu bool
}

// Prompts lists every prompt in declaration order.
func Prompts() []Prompt {
	out := make([]Prompt, 0, PromptBusy)
	for p := PromptWelcome; p <= PromptBusy; p++ {
		out = append(out, p)
	}
	return out
}
