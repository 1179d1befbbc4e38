package reading

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand/v2"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/tarot"
)

type fakeGateway struct {
	text, vision, speech string
	err                  error
	calls                map[string]int
	lastPrompt           string
}

func newFake() *fakeGateway {
	return &fakeGateway{text: "a reading", vision: "a cup reading", speech: " a dream ", calls: map[string]int{}}
}

func (f *fakeGateway) Transcribe(context.Context, gateway.Audio) (string, error) {
	f.calls[gateway.OpTranscribe]++
	return f.speech, f.err
}

func (f *fakeGateway) CompleteText(_ context.Context, prompt string) (string, error) {
	f.calls[gateway.OpComplete]++
	f.lastPrompt = prompt
	return f.text, f.err
}

func (f *fakeGateway) AnalyzeImage(_ context.Context, _ gateway.Image, prompt string) (string, error) {
	f.calls[gateway.OpAnalyze]++
	f.lastPrompt = prompt
	return f.vision, f.err
}

var (
	seekerProfile = profile.Profile{Gender: profile.GenderFemale, BirthMonth: 1, BirthYear: 1990}
	fixedNow      = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
)

func deckFS(t *testing.T) fstest.MapFS {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	fsys := fstest.MapFS{}
	store := tarot.NewFSStore(fsys, ".png")
	for i := 0; i < tarot.DeckSize; i++ {
		fsys[store.Filename(i)] = &fstest.MapFile{Data: buf.Bytes()}
	}
	return fsys
}

func newOrchestrator(t *testing.T, gw gateway.Gateway, fsys fstest.MapFS) *Orchestrator {
	t.Helper()
	return New(gw, tarot.NewFSStore(fsys, ".png"),
		WithRNG(tarot.SeededRNG{R: rand.New(rand.NewPCG(1, 2))}),
		WithClock(fixedNow),
		WithIDs(func() string { return "rid-1" }),
	)
}

func TestDreamCallsGatewayOnce(t *testing.T) {
	gw := newFake()
	o := newOrchestrator(t, gw, nil)

	res, err := o.Dream(context.Background(), seekerProfile, "  I was flying  ")
	require.NoError(t, err)
	require.Equal(t, Result{ID: "rid-1", Flow: FlowDream, Text: "a reading"}, res)
	require.Equal(t, 1, gw.calls[gateway.OpComplete])
	require.Contains(t, gw.lastPrompt, "I was flying")
	require.Contains(t, gw.lastPrompt, "فروردین")
	require.Contains(t, gw.lastPrompt, "36 years old")
}

func TestDreamFailureWrapsGatewayError(t *testing.T) {
	gw := newFake()
	gw.err = &gateway.Error{Kind: gateway.KindQuota, Op: gateway.OpComplete}
	o := newOrchestrator(t, gw, nil)

	_, err := o.Dream(context.Background(), seekerProfile, "dream")
	require.ErrorIs(t, err, ErrReadingFailed)
	require.ErrorIs(t, err, gateway.ErrGateway)
	require.Equal(t, gateway.KindQuota, gateway.KindOf(err))

	_, err = o.Dream(context.Background(), seekerProfile, "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Equal(t, 1, gw.calls[gateway.OpComplete])
}

func TestCoffeeInvalidSubject(t *testing.T) {
	gw := newFake()
	gw.vision = "NOT_A_COFFEE_CUP"
	o := newOrchestrator(t, gw, nil)

	_, err := o.Coffee(context.Background(), seekerProfile, gateway.Image{Data: []byte("x")})
	require.ErrorIs(t, err, ErrInvalidSubject)
	require.Contains(t, gw.lastPrompt, "NOT_A_COFFEE_CUP")

	gw.vision = "unsure_coffee_cup"
	_, err = o.Coffee(context.Background(), seekerProfile, gateway.Image{Data: []byte("x")})
	require.ErrorIs(t, err, ErrInvalidSubject)

	gw.vision = "Your cup shows a bird"
	res, err := o.Coffee(context.Background(), seekerProfile, gateway.Image{Data: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, FlowCoffee, res.Flow)
	require.Equal(t, 3, gw.calls[gateway.OpAnalyze])
}

func TestTarotComposesAllCardsThenCallsText(t *testing.T) {
	gw := newFake()
	o := newOrchestrator(t, gw, deckFS(t))
	layout, err := tarot.LayoutByID("celtic_cross")
	require.NoError(t, err)

	res, err := o.Tarot(context.Background(), seekerProfile, layout)
	require.NoError(t, err)
	require.Len(t, res.Cards, 10)
	require.Len(t, res.Images, 10)
	require.Equal(t, 1, gw.calls[gateway.OpComplete])
	require.Contains(t, gw.lastPrompt, "Celtic Cross")
	for i, c := range res.Cards {
		require.Equal(t, c.Label(), res.Images[i].Caption)
		require.True(t, strings.Contains(gw.lastPrompt, c.Label()))
	}
}

func TestTarotAssetFailureSkipsGateway(t *testing.T) {
	gw := newFake()
	o := newOrchestrator(t, gw, fstest.MapFS{})
	layout, err := tarot.LayoutByID("one_card")
	require.NoError(t, err)

	res, err := o.Tarot(context.Background(), seekerProfile, layout)
	require.ErrorIs(t, err, tarot.ErrAsset)
	require.Empty(t, res.Images)
	require.Zero(t, gw.calls[gateway.OpComplete])
}

func TestTranscribe(t *testing.T) {
	gw := newFake()
	o := newOrchestrator(t, gw, nil)
	text, err := o.Transcribe(context.Background(), gateway.Audio{Data: []byte("ogg")})
	require.NoError(t, err)
	require.Equal(t, "a dream", text)

	gw.speech = "  "
	_, err = o.Transcribe(context.Background(), gateway.Audio{Data: []byte("ogg")})
	require.ErrorIs(t, err, gateway.ErrTranscription)

	gw.err = errors.New("network down")
	_, err = o.Transcribe(context.Background(), gateway.Audio{Data: []byte("ogg")})
	require.ErrorIs(t, err, gateway.ErrTranscription)
}
