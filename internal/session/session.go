// Package session owns per-user conversation state and the state machine that
// drives profile capture, the reading flows and feedback.
package session

import (
	"time"

	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/tarot"
)

// Stage is the step of the conversation a user is on.
type Stage int

const (
	StageMainMenu Stage = iota
	StageAwaitingGender
	StageAwaitingBirthMonth
	StageAwaitingBirthYear
	StageAwaitingFlowInput
	StageAwaitingFeedback
)

func (s Stage) String() string {
	switch s {
	case StageMainMenu:
		return "main_menu"
	case StageAwaitingGender:
		return "awaiting_gender"
	case StageAwaitingBirthMonth:
		return "awaiting_birth_month"
	case StageAwaitingBirthYear:
		return "awaiting_birth_year"
	case StageAwaitingFlowInput:
		return "awaiting_flow_input"
	case StageAwaitingFeedback:
		return "awaiting_feedback"
	default:
		return "unknown"
	}
}

// State is the tagged machine state. Flow is set only for StageAwaitingFlowInput.
type State struct {
	Stage Stage
	Flow  reading.Flow
}

// TarotData is the tarot flow's scratch space: the chosen layout and, once a
// reading succeeds, the drawn cards. It lives until feedback, reset or the next
// flow choice.
type TarotData struct {
	Layout string
	Cards  []tarot.DrawnCard
}

// Session is everything remembered about one user.
type Session struct {
	UserID  int64
	State   State
	Profile profile.Draft

	ActiveFlow reading.Flow
	Tarot      TarotData

	LastFlow      reading.Flow
	LastReadingID string
	Readings      int

	UpdatedAt time.Time
}

// Fresh returns the session a new user starts with.
func Fresh(userID int64) Session {
	return Session{UserID: userID, State: State{Stage: StageMainMenu}}
}

func (s *Session) clearFlowData() {
	s.Tarot = TarotData{}
}

