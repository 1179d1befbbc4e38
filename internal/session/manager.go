package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/internal/feedback"
	"github.com/m3rciful/dreambot/internal/gateway"
	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/tarot"
)

// ErrUnhandledState is returned for a stage the machine has no rule for.
var ErrUnhandledState = errors.New("session: unhandled state")

// Reader produces readings. *reading.Orchestrator satisfies it.
type Reader interface {
	Transcribe(ctx context.Context, audio gateway.Audio) (string, error)
	Dream(ctx context.Context, p profile.Profile, narrative string) (reading.Result, error)
	Coffee(ctx context.Context, p profile.Profile, image gateway.Image) (reading.Result, error)
	Tarot(ctx context.Context, p profile.Profile, layout tarot.Layout) (reading.Result, error)
}

// Recorder accepts feedback. *feedback.Collector satisfies it.
type Recorder interface {
	Record(ctx context.Context, e feedback.Entry) feedback.Entry
}

// ProgressFunc is told when a long-running reading starts for a user.
type ProgressFunc func(ctx context.Context, userID int64, r Reply)

// Manager applies events to sessions. Events for one user are serialized;
// different users proceed in parallel.
type Manager struct {
	store    Store
	reader   Reader
	recorder Recorder
	progress ProgressFunc
	now      func() time.Time

	locks [shardCount]sync.Mutex

	busyMu sync.Mutex
	busy   map[int64]struct{}
}

type Option func(*Manager)

func WithProgress(fn ProgressFunc) Option   { return func(m *Manager) { m.progress = fn } }
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(store Store, reader Reader, recorder Recorder, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		reader:   reader,
		recorder: recorder,
		now:      time.Now,
		busy:     make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle applies ev to the user's session and returns the replies to send.
// When the event starts a reading, the shard lock is released during the
// gateway call and the user is marked busy until the result is applied.
func (m *Manager) Handle(ctx context.Context, userID int64, ev Event) ([]Reply, error) {
	mu := &m.locks[shardOf(userID)]
	mu.Lock()

	if m.isBusy(userID) {
		mu.Unlock()
		logger.Debug(ctx, logger.CompSession, "session.busy", slog.String("event_kind", ev.kind()))
		return []Reply{{Prompt: PromptBusy}}, nil
	}

	s, err := m.load(ctx, userID)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	from := s.State
	out, err := m.transition(ctx, &s, ev)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if out.reset {
		err = m.store.Delete(ctx, userID)
	} else {
		err = m.save(ctx, s)
	}
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	m.logTransition(ctx, from, s.State, ev)

	if out.work == nil {
		mu.Unlock()
		return out.replies, nil
	}

	m.setBusy(userID, true)
	mu.Unlock()

	apply := m.runWork(ctx, userID, out)

	mu.Lock()
	defer mu.Unlock()
	defer m.setBusy(userID, false)

	s, err = m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	from = s.State
	more := apply(&s)
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	m.logTransition(ctx, from, s.State, ev)
	return append(out.replies, more...), nil
}

func (m *Manager) runWork(ctx context.Context, userID int64, out outcome) (apply func(*Session) []Reply) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, logger.CompSession, "session.work_panic", slog.Any("panic", r))
			apply = func(s *Session) []Reply {
				return []Reply{{Prompt: PromptTryAgain, Flow: s.State.Flow}}
			}
		}
	}()
	if m.progress != nil && out.progress != nil {
		m.progress(ctx, userID, *out.progress)
	}
	return out.work(ctx)
}

func (m *Manager) load(ctx context.Context, userID int64) (Session, error) {
	s, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Fresh(userID), nil
	}
	return s, nil
}

func (m *Manager) save(ctx context.Context, s Session) error {
	s.UpdatedAt = m.now().UTC()
	return m.store.Put(ctx, s)
}

func (m *Manager) isBusy(userID int64) bool {
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	_, ok := m.busy[userID]
	return ok
}

func (m *Manager) setBusy(userID int64, busy bool) {
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	if busy {
		m.busy[userID] = struct{}{}
	} else {
		delete(m.busy, userID)
	}
}

func (m *Manager) logTransition(ctx context.Context, from, to State, ev Event) {
	if from == to || !logger.ShouldSampleDebug() {
		return
	}
	ctx = logger.WithSession(ctx, string(to.Flow), to.Stage.String())
	logger.Debug(ctx, logger.CompSession, "session.transition",
		slog.String("from", from.Stage.String()),
		slog.String("event_kind", ev.kind()),
	)
}

// Session returns a copy of the user's session, if one exists.
func (m *Manager) Session(ctx context.Context, userID int64) (Session, bool, error) {
	mu := &m.locks[shardOf(userID)]
	mu.Lock()
	defer mu.Unlock()
	return m.store.Get(ctx, userID)
}

// Profile returns the user's completed profile.
func (m *Manager) Profile(ctx context.Context, userID int64) (profile.Profile, bool, error) {
	s, ok, err := m.Session(ctx, userID)
	if err != nil || !ok {
		return profile.Profile{}, false, err
	}
	p, complete := s.Profile.Profile()
	return p, complete, nil
}

// SetProfileField validates raw and merges it into the user's profile.
// A complete profile rejects writes with profile.ErrComplete until reset.
// On a validation error nothing is stored.
func (m *Manager) SetProfileField(ctx context.Context, userID int64, field profile.Field, raw string) error {
	mu := &m.locks[shardOf(userID)]
	mu.Lock()
	defer mu.Unlock()
	s, err := m.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Profile.Set(field, raw, m.now()); err != nil {
		return err
	}
	return m.save(ctx, s)
}

// ProfileComplete reports whether all profile fields are set.
func (m *Manager) ProfileComplete(ctx context.Context, userID int64) (bool, error) {
	_, ok, err := m.Profile(ctx, userID)
	return ok, err
}

// Stats summarizes live sessions.
type Stats struct {
	Sessions        int            `json:"sessions"`
	Busy            int            `json:"busy"`
	ProfileComplete int            `json:"profile_complete"`
	Readings        int            `json:"readings"`
	ByStage         map[string]int `json:"by_stage"`
}

func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByStage: make(map[string]int)}
	err := m.store.Range(ctx, func(s Session) bool {
		st.Sessions++
		st.Readings += s.Readings
		if s.Profile.Complete() {
			st.ProfileComplete++
		}
		st.ByStage[s.State.Stage.String()]++
		return true
	})
	m.busyMu.Lock()
	st.Busy = len(m.busy)
	m.busyMu.Unlock()
	return st, err
}
