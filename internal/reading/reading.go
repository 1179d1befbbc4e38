// Package reading produces dream, coffee-cup and tarot readings by combining
// the seeker's profile, the tarot draw and the interpretation gateway.
package reading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/tarot"
)

var (
	// ErrReadingFailed wraps any gateway failure while producing a reading.
	ErrReadingFailed = errors.New("reading: interpretation failed")
	// ErrInvalidSubject is returned when the coffee photo is rejected.
	ErrInvalidSubject = gateway.ErrInvalidSubject
	// ErrEmptyInput is returned for blank dream narratives.
	ErrEmptyInput = errors.New("reading: empty input")
)

// Flow names a reading flow.
type Flow string

const (
	FlowNone   Flow = ""
	FlowDream  Flow = "dream"
	FlowCoffee Flow = "coffee"
	FlowTarot  Flow = "tarot"
)

// Image is one picture to deliver with a reading.
type Image struct {
	Filename string
	Data     []byte
	Caption  string
}

// Result is a finished reading. Cards and Images are set for tarot only.
type Result struct {
	ID     string
	Flow   Flow
	Text   string
	Cards  []tarot.DrawnCard
	Images []Image
}

// Orchestrator runs one gateway call per reading.
type Orchestrator struct {
	gw      gateway.Gateway
	assets  tarot.AssetStore
	rng     tarot.RNG
	markers []string
	now     func() time.Time
	newID   func() string
}

type Option func(*Orchestrator)

// WithRNG replaces the production random source.
func WithRNG(rng tarot.RNG) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithInvalidMarkers overrides gateway.DefaultInvalidMarkers.
func WithInvalidMarkers(m []string) Option {
	return func(o *Orchestrator) {
		if len(m) > 0 {
			o.markers = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func New(gw gateway.Gateway, assets tarot.AssetStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:      gw,
		assets:  assets,
		rng:     tarot.NewRNG(),
		markers: gateway.DefaultInvalidMarkers,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe returns the trimmed transcript of a voice message.
func (o *Orchestrator) Transcribe(ctx context.Context, audio gateway.Audio) (string, error) {
	text, err := o.gw.Transcribe(ctx, audio)
	if err != nil {
		if !errors.Is(err, gateway.ErrTranscription) {
			err = errors.Join(gateway.ErrTranscription, err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", gateway.ErrTranscription)
	}
	return text, nil
}

// Dream interprets a narrative.
func (o *Orchestrator) Dream(ctx context.Context, p profile.Profile, narrative string) (Result, error) {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return Result{}, ErrEmptyInput
	}
	id := o.newID()
	ctx = logger.WithReadingID(ctx, id)
	start := time.Now()

	text, err := o.gw.CompleteText(ctx, dreamPrompt(p, narrative, o.now()))
	if err != nil {
		return Result{}, o.fail(ctx, FlowDream, start, err)
	}
	return o.done(ctx, start, Result{ID: id, Flow: FlowDream, Text: text}), nil
}

// Coffee reads a cup photo. A rejected subject yields ErrInvalidSubject.
func (o *Orchestrator) Coffee(ctx context.Context, p profile.Profile, image gateway.Image) (Result, error) {
	id := o.newID()
	ctx = logger.WithReadingID(ctx, id)
	start := time.Now()

	text, err := o.gw.AnalyzeImage(ctx, image, coffeePrompt(p, o.markers, o.now()))
	if err != nil {
		return Result{}, o.fail(ctx, FlowCoffee, start, err)
	}
	if gateway.InvalidSubject(text, o.markers) {
		logger.Info(ctx, logger.CompReading, "reading.rejected",
			slog.String("flow", string(FlowCoffee)),
			slog.Duration("duration", logger.Took(start)),
		)
		return Result{}, ErrInvalidSubject
	}
	return o.done(ctx, start, Result{ID: id, Flow: FlowCoffee, Text: text}), nil
}

// Tarot draws layout.Count cards and composes all their images before asking
// for the interpretation. A card asset failure returns an error matching
// tarot.ErrAsset without any gateway call.
func (o *Orchestrator) Tarot(ctx context.Context, p profile.Profile, layout tarot.Layout) (Result, error) {
	id := o.newID()
	ctx = logger.WithReadingID(ctx, id)
	start := time.Now()

	cards, err := tarot.Draw(layout, o.rng)
	if err != nil {
		return Result{}, err
	}
	composed, err := tarot.Compose(ctx, o.assets, cards)
	if err != nil {
		logger.Error(ctx, logger.CompReading, "tarot.compose",
			slog.String("layout", layout.ID),
			slog.String("err", err.Error()),
		)
		return Result{}, err
	}

	text, err := o.gw.CompleteText(ctx, tarotPrompt(p, layout, cards, o.now()))
	if err != nil {
		return Result{}, o.fail(ctx, FlowTarot, start, err)
	}

	images := make([]Image, len(composed))
	for i, ci := range composed {
		images[i] = Image{Filename: ci.Filename, Data: ci.Data, Caption: ci.Card.Label()}
	}
	return o.done(ctx, start, Result{ID: id, Flow: FlowTarot, Text: text, Cards: cards, Images: images}), nil
}

func (o *Orchestrator) fail(ctx context.Context, flow Flow, start time.Time, err error) error {
	logger.Warn(ctx, logger.CompReading, "reading.failed",
		slog.String("flow", string(flow)),
		slog.String("err_code", string(gateway.KindOf(err))),
		slog.Duration("duration", logger.Took(start)),
	)
	return fmt.Errorf("%w: %w", ErrReadingFailed, err)
}

func (o *Orchestrator) done(ctx context.Context, start time.Time, r Result) Result {
	logger.Info(ctx, logger.CompReading, "reading.done",
		slog.String("flow", string(r.Flow)),
		slog.Int("cards", len(r.Cards)),
		slog.Duration("duration", logger.Took(start)),
	)
	return r
}
