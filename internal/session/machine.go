package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/internal/feedback"
	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/tarot"
)

// outcome is the result of one synchronous step. work, when set, runs outside
// the user's lock and returns a function that applies its result.
type outcome struct {
	replies  []Reply
	reset    bool
	progress *Reply
	work     func(ctx context.Context) func(*Session) []Reply
}

func say(replies ...Reply) (outcome, error) { return outcome{replies: replies}, nil }

func menu(p Prompt) Reply { return Reply{Prompt: p, Menu: true} }

func (m *Manager) transition(ctx context.Context, s *Session, ev Event) (outcome, error) {
	if b, ok := ev.(ButtonEvent); ok {
		ns, value := SplitChoice(b.Choice)
		switch ns {
		case nsNav:
			return m.navigate(s, value)
		case nsFlow:
			if f, ok := parseFlow(value); ok {
				return m.selectFlow(s, f)
			}
		}
	}

	switch s.State.Stage {
	case StageMainMenu:
		return say(menu(PromptChooseFromMenu))
	case StageAwaitingGender:
		return m.captureField(s, profile.FieldGender, ev)
	case StageAwaitingBirthMonth:
		return m.captureField(s, profile.FieldBirthMonth, ev)
	case StageAwaitingBirthYear:
		return m.captureField(s, profile.FieldBirthYear, ev)
	case StageAwaitingFlowInput:
		return m.flowInput(ctx, s, ev)
	case StageAwaitingFeedback:
		return m.feedback(ctx, s, ev)
	}
	return outcome{}, fmt.Errorf("%w: stage %d", ErrUnhandledState, s.State.Stage)
}

func (m *Manager) navigate(s *Session, value string) (outcome, error) {
	switch "nav:" + value {
	case NavStart:
		s.State = State{Stage: StageMainMenu}
		return say(menu(PromptWelcome))
	case NavHome:
		s.State = State{Stage: StageMainMenu}
		return say(menu(PromptMainMenu))
	case NavReset:
		*s = Fresh(s.UserID)
		return outcome{replies: []Reply{menu(PromptResetDone)}, reset: true}, nil
	case NavHelp:
		return say(menu(PromptHelp))
	}
	return say(m.reprompt(s, true))
}

// selectFlow starts flow, resuming profile capture at the first missing field.
func (m *Manager) selectFlow(s *Session, f reading.Flow) (outcome, error) {
	s.ActiveFlow = f
	s.clearFlowData()
	return say(m.advance(s))
}

// advance moves to the next profile prompt or, once the profile is complete,
// into the active flow's input stage.
func (m *Manager) advance(s *Session) Reply {
	switch s.Profile.Missing() {
	case profile.FieldGender:
		s.State = State{Stage: StageAwaitingGender}
	case profile.FieldBirthMonth:
		s.State = State{Stage: StageAwaitingBirthMonth}
	case profile.FieldBirthYear:
		s.State = State{Stage: StageAwaitingBirthYear}
	default:
		s.State = State{Stage: StageAwaitingFlowInput, Flow: s.ActiveFlow}
	}
	return m.reprompt(s, false)
}

// reprompt returns the prompt for the current state.
func (m *Manager) reprompt(s *Session, invalid bool) Reply {
	var r Reply
	switch s.State.Stage {
	case StageMainMenu:
		r = menu(PromptChooseFromMenu)
	case StageAwaitingGender:
		r = Reply{Prompt: PromptAskGender, Options: genderOptions()}
	case StageAwaitingBirthMonth:
		r = Reply{Prompt: PromptAskBirthMonth, Options: monthOptions()}
	case StageAwaitingBirthYear:
		r = Reply{Prompt: PromptAskBirthYear}
	case StageAwaitingFlowInput:
		switch s.State.Flow {
		case reading.FlowDream:
			r = Reply{Prompt: PromptAskDream}
		case reading.FlowCoffee:
			r = Reply{Prompt: PromptAskCoffeePhoto}
		default:
			r = Reply{Prompt: PromptChooseLayout, Options: layoutOptions()}
		}
	case StageAwaitingFeedback:
		r = Reply{Prompt: PromptAskFeedback}
	}
	r.Invalid = invalid
	r.Flow = s.ActiveFlow
	return r
}

func genderOptions() []string {
	out := make([]string, len(profile.Genders))
	for i, g := range profile.Genders {
		out[i] = ChoiceGender(g)
	}
	return out
}

func monthOptions() []string {
	out := make([]string, len(profile.Months))
	for i, mo := range profile.Months {
		out[i] = ChoiceMonth(mo.Ordinal)
	}
	return out
}

func layoutOptions() []string {
	ls := tarot.Layouts()
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = ChoiceLayout(l.ID)
	}
	return out
}

// captureField accepts either free text or the matching button for field.
func (m *Manager) captureField(s *Session, field profile.Field, ev Event) (outcome, error) {
	var raw string
	switch e := ev.(type) {
	case TextEvent:
		raw = e.Text
	case ButtonEvent:
		ns, value := SplitChoice(e.Choice)
		if (field == profile.FieldGender && ns == nsGender) || (field == profile.FieldBirthMonth && ns == nsMonth) {
			raw = value
		}
	}
	if raw == "" {
		return say(m.reprompt(s, true))
	}
	if err := s.Profile.Set(field, raw, m.now()); err != nil {
		if errors.Is(err, profile.ErrValidation) {
			return say(m.reprompt(s, true))
		}
		return outcome{}, err
	}
	return say(m.advance(s))
}

func (m *Manager) flowInput(ctx context.Context, s *Session, ev Event) (outcome, error) {
	p, ok := s.Profile.Profile()
	if !ok {
		return say(m.advance(s))
	}
	switch s.State.Flow {
	case reading.FlowDream:
		return m.dreamInput(s, p, ev)
	case reading.FlowCoffee:
		return m.coffeeInput(s, p, ev)
	case reading.FlowTarot:
		return m.tarotInput(ctx, s, p, ev)
	}
	return outcome{}, fmt.Errorf("%w: flow %q", ErrUnhandledState, s.State.Flow)
}

func (m *Manager) dreamInput(s *Session, p profile.Profile, ev Event) (outcome, error) {
	working := &Reply{Prompt: PromptWorking, Flow: reading.FlowDream}
	switch e := ev.(type) {
	case TextEvent:
		narrative := strings.TrimSpace(e.Text)
		if narrative == "" {
			return say(m.reprompt(s, true))
		}
		return outcome{progress: working, work: func(ctx context.Context) func(*Session) []Reply {
			res, err := m.reader.Dream(ctx, p, narrative)
			return m.finish(reading.FlowDream, res, err)
		}}, nil
	case VoiceEvent:
		if len(e.Audio.Data) == 0 {
			return say(Reply{Prompt: PromptTranscriptionFailed, Flow: reading.FlowDream})
		}
		return outcome{progress: working, work: func(ctx context.Context) func(*Session) []Reply {
			narrative, err := m.reader.Transcribe(ctx, e.Audio)
			if err != nil {
				return m.finish(reading.FlowDream, reading.Result{}, err)
			}
			res, err := m.reader.Dream(ctx, p, narrative)
			return m.finish(reading.FlowDream, res, err)
		}}, nil
	}
	return say(m.reprompt(s, true))
}

func (m *Manager) coffeeInput(s *Session, p profile.Profile, ev Event) (outcome, error) {
	e, ok := ev.(PhotoEvent)
	if !ok || len(e.Image.Data) == 0 {
		return say(m.reprompt(s, true))
	}
	return outcome{
		progress: &Reply{Prompt: PromptWorking, Flow: reading.FlowCoffee},
		work: func(ctx context.Context) func(*Session) []Reply {
			res, err := m.reader.Coffee(ctx, p, e.Image)
			return m.finish(reading.FlowCoffee, res, err)
		},
	}, nil
}

func (m *Manager) tarotInput(ctx context.Context, s *Session, p profile.Profile, ev Event) (outcome, error) {
	b, ok := ev.(ButtonEvent)
	if !ok {
		return say(m.reprompt(s, true))
	}
	ns, value := SplitChoice(b.Choice)
	if ns != nsLayout {
		return say(m.reprompt(s, true))
	}
	layout, err := tarot.LayoutByID(value)
	if err != nil {
		logger.Debug(ctx, logger.CompSession, "tarot.unknown_layout", slog.String("layout", logger.Sanitize(value)))
		return say(m.reprompt(s, true))
	}
	s.Tarot.Layout = layout.ID
	return outcome{
		progress: &Reply{Prompt: PromptWorking, Flow: reading.FlowTarot},
		work: func(ctx context.Context) func(*Session) []Reply {
			res, err := m.reader.Tarot(ctx, p, layout)
			return m.finish(reading.FlowTarot, res, err)
		},
	}, nil
}

// finish maps a reading result onto the session. Failures leave the session
// at its flow's input stage.
func (m *Manager) finish(flow reading.Flow, res reading.Result, err error) func(*Session) []Reply {
	return func(s *Session) []Reply {
		if err != nil {
			return m.failed(s, flow, err)
		}
		s.LastFlow = flow
		s.LastReadingID = res.ID
		s.Readings++
		if flow == reading.FlowTarot {
			s.Tarot.Cards = res.Cards
		} else {
			s.clearFlowData()
		}
		s.State = State{Stage: StageAwaitingFeedback}
		return []Reply{
			{Prompt: PromptReading, Flow: flow, Text: res.Text, Album: res.Images, Cards: res.Cards},
			{Prompt: PromptAskFeedback, Flow: flow},
		}
	}
}

func (m *Manager) failed(s *Session, flow reading.Flow, err error) []Reply {
	s.State = State{Stage: StageAwaitingFlowInput, Flow: flow}
	var r Reply
	switch {
	case errors.Is(err, gateway.ErrTranscription):
		r = Reply{Prompt: PromptTranscriptionFailed}
	case errors.Is(err, gateway.ErrInvalidSubject):
		r = Reply{Prompt: PromptInvalidSubject}
	case errors.Is(err, tarot.ErrAsset):
		s.clearFlowData()
		return []Reply{
			{Prompt: PromptAssetFailure, Flow: flow},
			m.reprompt(s, false),
		}
	case flow == reading.FlowDream:
		r = Reply{Prompt: PromptDreamFallback}
	default:
		r = Reply{Prompt: PromptTryAgain}
	}
	if flow == reading.FlowTarot {
		s.clearFlowData()
		r.Options = layoutOptions()
	}
	r.Flow = flow
	return []Reply{r}
}

func (m *Manager) feedback(ctx context.Context, s *Session, ev Event) (outcome, error) {
	e, ok := ev.(TextEvent)
	if !ok || strings.TrimSpace(e.Text) == "" {
		return say(m.reprompt(s, true))
	}
	if m.recorder != nil {
		m.recorder.Record(ctx, feedback.Entry{
			UserID:    s.UserID,
			Flow:      s.LastFlow,
			ReadingID: s.LastReadingID,
			Text:      e.Text,
		})
	}
	s.ActiveFlow = reading.FlowNone
	s.clearFlowData()
	s.State = State{Stage: StageMainMenu}
	return say(menu(PromptFeedbackThanks))
}
