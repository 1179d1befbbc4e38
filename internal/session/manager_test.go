package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dreambot/internal/feedback"
	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/tarot"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeReader struct {
	mu       sync.Mutex
	profiles []profile.Profile

	transcribe func(gateway.Audio) (string, error)
	dream      func(string) (reading.Result, error)
	coffee     func(gateway.Image) (reading.Result, error)
	tarot      func(tarot.Layout) (reading.Result, error)
}

func (f *fakeReader) seen(p profile.Profile) {
	f.mu.Lock()
	f.profiles = append(f.profiles, p)
	f.mu.Unlock()
}

func (f *fakeReader) Transcribe(_ context.Context, a gateway.Audio) (string, error) {
	if f.transcribe != nil {
		return f.transcribe(a)
	}
	return string(a.Data), nil
}

func (f *fakeReader) Dream(_ context.Context, p profile.Profile, narrative string) (reading.Result, error) {
	f.seen(p)
	if f.dream != nil {
		return f.dream(narrative)
	}
	return reading.Result{ID: "r-dream", Flow: reading.FlowDream, Text: "dream: " + narrative}, nil
}

func (f *fakeReader) Coffee(_ context.Context, p profile.Profile, img gateway.Image) (reading.Result, error) {
	f.seen(p)
	if f.coffee != nil {
		return f.coffee(img)
	}
	return reading.Result{ID: "r-coffee", Flow: reading.FlowCoffee, Text: "cup"}, nil
}

func (f *fakeReader) Tarot(_ context.Context, p profile.Profile, l tarot.Layout) (reading.Result, error) {
	f.seen(p)
	if f.tarot != nil {
		return f.tarot(l)
	}
	images := make([]reading.Image, l.Count)
	for i := range images {
		images[i] = reading.Image{Filename: fmt.Sprintf("%02d.jpg", i), Data: []byte{byte(i)}}
	}
	cards := make([]tarot.DrawnCard, l.Count)
	for i := range cards {
		cards[i] = tarot.DrawnCard{Index: i, Orientation: tarot.Upright}
	}
	return reading.Result{ID: "r-tarot", Flow: reading.FlowTarot, Text: "cards", Cards: cards, Images: images}, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []feedback.Entry
}

func (r *fakeRecorder) Record(_ context.Context, e feedback.Entry) feedback.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return e
}

func newTestManager(reader *fakeReader, rec *fakeRecorder) *Manager {
	return NewManager(NewMemoryStore(), reader, rec, WithClock(func() time.Time { return fixedNow }))
}

const uid int64 = 42

func send(t *testing.T, m *Manager, ev Event) []Reply {
	t.Helper()
	replies, err := m.Handle(context.Background(), uid, ev)
	require.NoError(t, err)
	require.NotEmpty(t, replies)
	return replies
}

func current(t *testing.T, m *Manager) Session {
	t.Helper()
	s, err := m.load(context.Background(), uid)
	require.NoError(t, err)
	return s
}

func completeProfile(t *testing.T, m *Manager, flow reading.Flow) {
	t.Helper()
	send(t, m, ButtonEvent{Choice: ChoiceFlow(flow)})
	send(t, m, ButtonEvent{Choice: ChoiceGender(profile.GenderFemale)})
	send(t, m, ButtonEvent{Choice: ChoiceMonth(7)})
	send(t, m, TextEvent{Text: "1990"})
}

func TestProfileCaptureThenFlowSkipsPrompts(t *testing.T) {
	reader, rec := &fakeReader{}, &fakeRecorder{}
	m := newTestManager(reader, rec)

	r := send(t, m, ButtonEvent{Choice: ChoiceFlow(reading.FlowDream)})
	require.Equal(t, PromptAskGender, r[0].Prompt)
	require.Equal(t, []string{"gender:female", "gender:male"}, r[0].Options)
	require.Equal(t, StageAwaitingGender, current(t, m).State.Stage)
	require.Equal(t, reading.FlowDream, current(t, m).ActiveFlow)

	r = send(t, m, TextEvent{Text: "زن"})
	require.Equal(t, PromptAskBirthMonth, r[0].Prompt)
	require.Len(t, r[0].Options, 12)

	r = send(t, m, TextEvent{Text: "مهر"})
	require.Equal(t, PromptAskBirthYear, r[0].Prompt)

	r = send(t, m, TextEvent{Text: "1990"})
	require.Equal(t, PromptAskDream, r[0].Prompt)
	require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowDream}, current(t, m).State)

	for round := 0; round < 2; round++ {
		if round > 0 {
			r = send(t, m, ButtonEvent{Choice: ChoiceFlow(reading.FlowDream)})
			require.Equal(t, PromptAskDream, r[0].Prompt, "complete profile must skip prompts")
		}
		r = send(t, m, TextEvent{Text: "  a river of light  "})
		require.Len(t, r, 2)
		require.Equal(t, PromptReading, r[0].Prompt)
		require.Equal(t, "dream: a river of light", r[0].Text)
		require.Equal(t, PromptAskFeedback, r[1].Prompt)
		require.Equal(t, StageAwaitingFeedback, current(t, m).State.Stage)

		r = send(t, m, TextEvent{Text: "spot on"})
		require.Equal(t, PromptFeedbackThanks, r[0].Prompt)
		require.True(t, r[0].Menu)
		require.Equal(t, StageMainMenu, current(t, m).State.Stage)
	}

	want := profile.Profile{Gender: profile.GenderFemale, BirthMonth: 7, BirthYear: 1990}
	require.Equal(t, []profile.Profile{want, want}, reader.profiles)

	require.Len(t, rec.entries, 2)
	require.Equal(t, feedback.Entry{UserID: uid, Flow: reading.FlowDream, ReadingID: "r-dream", Text: "spot on"}, rec.entries[0])

	s := current(t, m)
	require.Equal(t, 2, s.Readings)
	require.Equal(t, reading.FlowNone, s.ActiveFlow)
	require.Equal(t, reading.FlowDream, s.LastFlow)
}

func TestInvalidProfileInputLeavesStateUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		setup  []Event
		input  Event
		prompt Prompt
	}{
		{
			name:   "gender",
			setup:  []Event{ButtonEvent{Choice: "flow:coffee"}},
			input:  TextEvent{Text: "unicorn"},
			prompt: PromptAskGender,
		},
		{
			name:   "gender photo",
			setup:  []Event{ButtonEvent{Choice: "flow:coffee"}},
			input:  PhotoEvent{Image: gateway.Image{Data: []byte{1}}},
			prompt: PromptAskGender,
		},
		{
			name:   "month",
			setup:  []Event{ButtonEvent{Choice: "flow:coffee"}, ButtonEvent{Choice: "gender:male"}},
			input:  ButtonEvent{Choice: "month:13"},
			prompt: PromptAskBirthMonth,
		},
		{
			name:   "year too old",
			setup:  []Event{ButtonEvent{Choice: "flow:coffee"}, ButtonEvent{Choice: "gender:male"}, TextEvent{Text: "3"}},
			input:  TextEvent{Text: "1850"},
			prompt: PromptAskBirthYear,
		},
		{
			name:   "year in future",
			setup:  []Event{ButtonEvent{Choice: "flow:coffee"}, ButtonEvent{Choice: "gender:male"}, TextEvent{Text: "3"}},
			input:  TextEvent{Text: "2027"},
			prompt: PromptAskBirthYear,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(&fakeReader{}, &fakeRecorder{})
			for _, ev := range tc.setup {
				send(t, m, ev)
			}
			before := current(t, m)

			r := send(t, m, tc.input)
			require.Len(t, r, 1)
			require.Equal(t, tc.prompt, r[0].Prompt)
			require.True(t, r[0].Invalid)

			after := current(t, m)
			require.Equal(t, before.State, after.State)
			require.Equal(t, before.Profile, after.Profile)
		})
	}
}

func TestResetFromAnyStateYieldsFreshSession(t *testing.T) {
	reaches := map[Stage][]Event{
		StageMainMenu:       {ButtonEvent{Choice: NavStart}},
		StageAwaitingGender: {ButtonEvent{Choice: "flow:tarot"}},
		StageAwaitingBirthMonth: {
			ButtonEvent{Choice: "flow:tarot"}, ButtonEvent{Choice: "gender:female"},
		},
		StageAwaitingBirthYear: {
			ButtonEvent{Choice: "flow:tarot"}, ButtonEvent{Choice: "gender:female"}, TextEvent{Text: "1"},
		},
		StageAwaitingFlowInput: {
			ButtonEvent{Choice: "flow:tarot"}, ButtonEvent{Choice: "gender:female"}, TextEvent{Text: "1"}, TextEvent{Text: "1999"},
		},
		StageAwaitingFeedback: {
			ButtonEvent{Choice: "flow:tarot"}, ButtonEvent{Choice: "gender:female"}, TextEvent{Text: "1"}, TextEvent{Text: "1999"},
			ButtonEvent{Choice: "layout:three_card"},
		},
	}
	for stage, events := range reaches {
		t.Run(stage.String(), func(t *testing.T) {
			m := newTestManager(&fakeReader{}, &fakeRecorder{})
			for _, ev := range events {
				send(t, m, ev)
			}
			require.Equal(t, stage, current(t, m).State.Stage)

			r := send(t, m, ButtonEvent{Choice: NavReset})
			require.Equal(t, PromptResetDone, r[0].Prompt)

			_, ok, err := m.Session(context.Background(), uid)
			require.NoError(t, err)
			require.False(t, ok)
			require.Equal(t, Fresh(uid), current(t, m))
		})
	}
}

func TestHomePreservesProfileAndFlow(t *testing.T) {
	m := newTestManager(&fakeReader{}, &fakeRecorder{})
	send(t, m, ButtonEvent{Choice: "flow:dream"})
	send(t, m, ButtonEvent{Choice: "gender:male"})
	send(t, m, ButtonEvent{Choice: "month:2"})

	r := send(t, m, ButtonEvent{Choice: NavHome})
	require.Equal(t, PromptMainMenu, r[0].Prompt)

	s := current(t, m)
	require.Equal(t, State{Stage: StageMainMenu}, s.State)
	require.Equal(t, profile.Draft{Gender: profile.GenderMale, BirthMonth: 2}, s.Profile)
	require.Equal(t, reading.FlowDream, s.ActiveFlow)

	// re-entering resumes at the first missing field
	r = send(t, m, ButtonEvent{Choice: "flow:coffee"})
	require.Equal(t, PromptAskBirthYear, r[0].Prompt)

	send(t, m, TextEvent{Text: "1988"})
	send(t, m, ButtonEvent{Choice: NavHome})
	r = send(t, m, ButtonEvent{Choice: "flow:coffee"})
	require.Equal(t, PromptAskCoffeePhoto, r[0].Prompt)
}

func TestMainMenuRejectsUnrecognizedText(t *testing.T) {
	m := newTestManager(&fakeReader{}, &fakeRecorder{})
	r := send(t, m, TextEvent{Text: "tell me everything"})
	require.Equal(t, []Reply{{Prompt: PromptChooseFromMenu, Menu: true}}, r)
	require.Equal(t, State{Stage: StageMainMenu}, current(t, m).State)
}

func TestHelpKeepsState(t *testing.T) {
	m := newTestManager(&fakeReader{}, &fakeRecorder{})
	send(t, m, ButtonEvent{Choice: "flow:dream"})
	r := send(t, m, ButtonEvent{Choice: NavHelp})
	require.Equal(t, PromptHelp, r[0].Prompt)
	require.Equal(t, StageAwaitingGender, current(t, m).State.Stage)
}

func TestCoffeeInvalidSubjectStaysThenSucceeds(t *testing.T) {
	calls := 0
	reader := &fakeReader{coffee: func(gateway.Image) (reading.Result, error) {
		calls++
		if calls == 1 {
			return reading.Result{}, reading.ErrInvalidSubject
		}
		return reading.Result{ID: "c2", Flow: reading.FlowCoffee, Text: "a bird near the rim"}, nil
	}}
	m := newTestManager(reader, &fakeRecorder{})
	completeProfile(t, m, reading.FlowCoffee)

	r := send(t, m, TextEvent{Text: "here is my cup"})
	require.Equal(t, PromptAskCoffeePhoto, r[0].Prompt)
	require.True(t, r[0].Invalid)

	photo := PhotoEvent{Image: gateway.Image{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"}}
	r = send(t, m, photo)
	require.Equal(t, PromptInvalidSubject, r[0].Prompt)
	require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowCoffee}, current(t, m).State)

	r = send(t, m, photo)
	require.Equal(t, PromptReading, r[0].Prompt)
	require.Equal(t, "a bird near the rim", r[0].Text)
	require.Equal(t, StageAwaitingFeedback, current(t, m).State.Stage)
}

func TestGatewayFailureKeepsInputStage(t *testing.T) {
	gwErr := fmt.Errorf("%w: %w", reading.ErrReadingFailed, &gateway.Error{Kind: gateway.KindTimeout, Op: gateway.OpComplete})

	t.Run("dream fallback", func(t *testing.T) {
		m := newTestManager(&fakeReader{dream: func(string) (reading.Result, error) { return reading.Result{}, gwErr }}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowDream)
		r := send(t, m, TextEvent{Text: "falling"})
		require.Equal(t, []Reply{{Prompt: PromptDreamFallback, Flow: reading.FlowDream}}, r)
		require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowDream}, current(t, m).State)
	})

	t.Run("coffee try again", func(t *testing.T) {
		m := newTestManager(&fakeReader{coffee: func(gateway.Image) (reading.Result, error) { return reading.Result{}, gwErr }}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowCoffee)
		r := send(t, m, PhotoEvent{Image: gateway.Image{Data: []byte{1}}})
		require.Equal(t, PromptTryAgain, r[0].Prompt)
		require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowCoffee}, current(t, m).State)
	})

	t.Run("tarot try again", func(t *testing.T) {
		m := newTestManager(&fakeReader{tarot: func(tarot.Layout) (reading.Result, error) { return reading.Result{}, gwErr }}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowTarot)
		r := send(t, m, ButtonEvent{Choice: "layout:one_card"})
		require.Equal(t, PromptTryAgain, r[0].Prompt)
		require.NotEmpty(t, r[0].Options)
		s := current(t, m)
		require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowTarot}, s.State)
		require.Empty(t, s.Tarot.Layout)
	})
}

func TestVoiceDream(t *testing.T) {
	t.Run("transcribed", func(t *testing.T) {
		m := newTestManager(&fakeReader{}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowDream)
		r := send(t, m, VoiceEvent{Audio: gateway.Audio{Data: []byte("flying over the sea"), MIME: "audio/ogg"}})
		require.Equal(t, "dream: flying over the sea", r[0].Text)
	})

	t.Run("transcription failure re-prompts", func(t *testing.T) {
		reader := &fakeReader{transcribe: func(gateway.Audio) (string, error) {
			return "", fmt.Errorf("%w: empty transcript", gateway.ErrTranscription)
		}}
		m := newTestManager(reader, &fakeRecorder{})
		completeProfile(t, m, reading.FlowDream)
		r := send(t, m, VoiceEvent{Audio: gateway.Audio{Data: []byte{0}}})
		require.Equal(t, PromptTranscriptionFailed, r[0].Prompt)
		require.Empty(t, reader.profiles)
		require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowDream}, current(t, m).State)
	})

	t.Run("empty text re-prompts", func(t *testing.T) {
		m := newTestManager(&fakeReader{}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowDream)
		r := send(t, m, TextEvent{Text: "   "})
		require.Equal(t, PromptAskDream, r[0].Prompt)
		require.True(t, r[0].Invalid)
	})
}

func TestTarotFlow(t *testing.T) {
	t.Run("celtic cross delivers every card", func(t *testing.T) {
		m := newTestManager(&fakeReader{}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowTarot)

		r := send(t, m, TextEvent{Text: "celtic_cross"})
		require.Equal(t, PromptChooseLayout, r[0].Prompt)
		require.True(t, r[0].Invalid)

		r = send(t, m, ButtonEvent{Choice: ChoiceLayout("celtic_cross")})
		require.Equal(t, PromptReading, r[0].Prompt)
		require.Len(t, r[0].Album, 10)
		s := current(t, m)
		require.Equal(t, StageAwaitingFeedback, s.State.Stage)
		require.Equal(t, "celtic_cross", s.Tarot.Layout)
		require.Len(t, s.Tarot.Cards, 10)

		send(t, m, TextEvent{Text: "thank you"})
		require.Equal(t, TarotData{}, current(t, m).Tarot)
	})

	t.Run("unknown layout re-prompts", func(t *testing.T) {
		m := newTestManager(&fakeReader{}, &fakeRecorder{})
		completeProfile(t, m, reading.FlowTarot)
		r := send(t, m, ButtonEvent{Choice: "layout:thirteen_moons"})
		require.Equal(t, PromptChooseLayout, r[0].Prompt)
		require.True(t, r[0].Invalid)
	})

	t.Run("asset failure restarts at layout selection", func(t *testing.T) {
		reader := &fakeReader{tarot: func(tarot.Layout) (reading.Result, error) {
			return reading.Result{}, &tarot.AssetError{Index: 13, Err: errors.New("missing")}
		}}
		m := newTestManager(reader, &fakeRecorder{})
		completeProfile(t, m, reading.FlowTarot)

		r := send(t, m, ButtonEvent{Choice: "layout:relationship"})
		require.Len(t, r, 2)
		require.Equal(t, PromptAssetFailure, r[0].Prompt)
		require.Empty(t, r[0].Album)
		require.Equal(t, PromptChooseLayout, r[1].Prompt)
		require.Equal(t, State{Stage: StageAwaitingFlowInput, Flow: reading.FlowTarot}, current(t, m).State)
	})
}

func TestFeedbackRequiresText(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(&fakeReader{}, rec)
	completeProfile(t, m, reading.FlowDream)
	send(t, m, TextEvent{Text: "stairs"})

	r := send(t, m, VoiceEvent{Audio: gateway.Audio{Data: []byte{1}}})
	require.Equal(t, PromptAskFeedback, r[0].Prompt)
	require.True(t, r[0].Invalid)
	require.Empty(t, rec.entries)
	require.Equal(t, StageAwaitingFeedback, current(t, m).State.Stage)
}

func TestBusySessionRejectsEvents(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	reader := &fakeReader{dream: func(n string) (reading.Result, error) {
		close(started)
		<-release
		return reading.Result{ID: "slow", Flow: reading.FlowDream, Text: n}, nil
	}}
	m := newTestManager(reader, &fakeRecorder{})
	completeProfile(t, m, reading.FlowDream)

	var progress []Reply
	m.progress = func(_ context.Context, _ int64, r Reply) { progress = append(progress, r) }

	done := make(chan []Reply)
	go func() {
		r, _ := m.Handle(context.Background(), uid, TextEvent{Text: "a long corridor"})
		done <- r
	}()
	<-started

	for _, ev := range []Event{TextEvent{Text: "again"}, ButtonEvent{Choice: NavReset}, ButtonEvent{Choice: NavHome}} {
		r, err := m.Handle(context.Background(), uid, ev)
		require.NoError(t, err)
		require.Equal(t, []Reply{{Prompt: PromptBusy}}, r)
	}

	// other users are not blocked
	r, err := m.Handle(context.Background(), uid+shardCount, ButtonEvent{Choice: NavStart})
	require.NoError(t, err)
	require.Equal(t, PromptWelcome, r[0].Prompt)

	st, err := m.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, st.Busy)

	close(release)
	r = <-done
	require.Equal(t, "a long corridor", r[0].Text)
	require.Equal(t, []Reply{{Prompt: PromptWorking, Flow: reading.FlowDream}}, progress)
	require.False(t, m.isBusy(uid))
}

func TestUnhandledStage(t *testing.T) {
	m := newTestManager(&fakeReader{}, &fakeRecorder{})
	s := Fresh(uid)
	s.State.Stage = Stage(99)
	_, err := m.transition(context.Background(), &s, TextEvent{Text: "x"})
	require.ErrorIs(t, err, ErrUnhandledState)
}

func TestProfileContract(t *testing.T) {
	m := newTestManager(&fakeReader{}, &fakeRecorder{})
	ctx := context.Background()

	ok, err := m.ProfileComplete(ctx, uid)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.SetProfileField(ctx, uid, profile.FieldGender, "male"))
	err = m.SetProfileField(ctx, uid, profile.FieldBirthMonth, "Brumaire")
	require.ErrorIs(t, err, profile.ErrValidation)
	require.NoError(t, m.SetProfileField(ctx, uid, profile.FieldBirthMonth, "Dey"))
	require.NoError(t, m.SetProfileField(ctx, uid, profile.FieldBirthYear, "2001"))

	p, ok, err := m.Profile(ctx, uid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, profile.Profile{Gender: profile.GenderMale, BirthMonth: 10, BirthYear: 2001}, p)

	err = m.SetProfileField(ctx, uid, profile.FieldGender, "female")
	require.ErrorIs(t, err, profile.ErrComplete)
	require.NotErrorIs(t, err, profile.ErrValidation)
	p, _, err = m.Profile(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, profile.GenderMale, p.Gender)

	_, err = m.Handle(ctx, uid, ButtonEvent{Choice: NavReset})
	require.NoError(t, err)
	require.NoError(t, m.SetProfileField(ctx, uid, profile.FieldGender, "female"))
}

func TestStatsCountsStages(t *testing.T) {
	m := newTestManager(&fakeReader{}, &fakeRecorder{})
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		_, err := m.Handle(ctx, id, ButtonEvent{Choice: "flow:dream"})
		require.NoError(t, err)
	}
	_, err := m.Handle(ctx, 9, ButtonEvent{Choice: NavStart})
	require.NoError(t, err)

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, st.Sessions)
	require.Equal(t, 3, st.ByStage["awaiting_gender"])
	require.Equal(t, 1, st.ByStage["main_menu"])
	require.Zero(t, st.Busy)
}
