// Package store is the client side view of a user's habits: a cache kept in
// sync with the backend by refetching after every write, with change
// notifications for whoever renders it.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/internal/session"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/entity"
)

const defaultTimeout = 10 * time.Second

type Backend interface {
	ListHabits(ctx context.Context, uid uuid.UUID) ([]*entity.Habit, error)
	CreateHabit(ctx context.Context, uid uuid.UUID, req *service.CreateHabitRequest) (*entity.Habit, error)
	UpdateHabit(ctx context.Context, habitID, uid uuid.UUID, req *service.UpdateHabitRequest) (*entity.Habit, error)
	DeleteHabit(ctx context.Context, habitID, uid uuid.UUID) error
	ToggleCompletion(ctx context.Context, habitID, uid uuid.UUID, date time.Time) (*entity.Habit, error)
}

type Sessions interface {
	Require() (session.Identity, error)
	Subscribe(fn session.Listener) func()
}

// Listener receives a private copy of the cached habits after every change.
type Listener func(habits []*entity.Habit)

// HabitStore caches the habits of the signed-in user. Every refresh takes a
// sequence number; a response older than the last applied one is dropped.
// Listeners are called outside the cache lock, one change at a time, and
// must not call back into the store's write methods.
type HabitStore struct {
	backend  Backend
	sessions Sessions
	cal      *streak.Calendar
	timeout  time.Duration

	seq atomic.Uint64

	mu      sync.RWMutex
	habits  []*entity.Habit
	owner   uuid.UUID
	applied uint64

	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]Listener
	nextSub  int

	toggles     keyedMutex
	unsubscribe func()
}

func New(backend Backend, sessions Sessions, cal *streak.Calendar, timeout time.Duration) *HabitStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if cal == nil {
		cal = streak.NewCalendar(nil, nil)
	}
	s := &HabitStore{
		backend:  backend,
		sessions: sessions,
		cal:      cal,
		timeout:  timeout,
		subs:     make(map[int]Listener),
	}
	s.unsubscribe = sessions.Subscribe(s.onIdentity)
	return s
}

// Close detaches the store from the session.
func (s *HabitStore) Close() {
	s.unsubscribe()
}

// Snapshot returns a copy of the cached habits.
func (s *HabitStore) Snapshot() []*entity.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.habits)
}

// Subscribe registers fn for cache changes. The returned func removes it.
func (s *HabitStore) Subscribe(fn Listener) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	key := s.nextSub
	s.nextSub++
	s.subs[key] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, key)
	}
}

// Refresh refetches the habits of the signed-in user. On failure the cache
// keeps what it had.
func (s *HabitStore) Refresh(ctx context.Context) error {
	id, err := s.sessions.Require()
	if err != nil {
		return err
	}
	return s.refresh(ctx, id)
}

func (s *HabitStore) CreateHabit(ctx context.Context, req *service.CreateHabitRequest) (*entity.Habit, error) {
	id, err := s.sessions.Require()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	habit, err := s.backend.CreateHabit(callCtx, id.UserID, req)
	if err != nil {
		return nil, remoteError("creating habit", err)
	}
	return habit, s.refresh(ctx, id)
}

func (s *HabitStore) UpdateHabit(ctx context.Context, habitID uuid.UUID, req *service.UpdateHabitRequest) (*entity.Habit, error) {
	id, err := s.sessions.Require()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	habit, err := s.backend.UpdateHabit(callCtx, habitID, id.UserID, req)
	if err != nil {
		return nil, remoteError("updating habit", err)
	}
	return habit, s.refresh(ctx, id)
}

func (s *HabitStore) DeleteHabit(ctx context.Context, habitID uuid.UUID) error {
	id, err := s.sessions.Require()
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err = s.backend.DeleteHabit(callCtx, habitID, id.UserID); err != nil {
		return remoteError("deleting habit", err)
	}
	return s.refresh(ctx, id)
}

// ToggleCompletion flips completion of habitID on date, today when zero.
// Toggles of the same habit and period run one after another.
func (s *HabitStore) ToggleCompletion(ctx context.Context, habitID uuid.UUID, date time.Time) (*entity.Habit, error) {
	id, err := s.sessions.Require()
	if err != nil {
		return nil, err
	}
	day := s.cal.Today()
	if !date.IsZero() {
		day = streak.CivilDate(date)
	}
	unlock, err := s.toggles.Lock(ctx, s.toggleKey(habitID, day))
	if err != nil {
		return nil, remoteError("waiting for toggle", err)
	}
	defer unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	habit, err := s.backend.ToggleCompletion(callCtx, habitID, id.UserID, day)
	if err != nil {
		return nil, remoteError("toggling completion", err)
	}
	return habit, s.refresh(ctx, id)
}

// toggleKey names the period a toggle of day writes to. A habit missing from
// the cache is locked by week, which covers both frequencies.
func (s *HabitStore) toggleKey(habitID uuid.UUID, day time.Time) string {
	freq := entity.FrequencyWeekly
	s.mu.RLock()
	for _, h := range s.habits {
		if h.ID == habitID {
			freq = h.Frequency
			break
		}
	}
	s.mu.RUnlock()
	return habitID.String() + "|" + streak.PeriodKey(freq, day).Format(time.DateOnly)
}

func (s *HabitStore) refresh(ctx context.Context, id session.Identity) error {
	seq := s.seq.Add(1)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	habits, err := s.backend.ListHabits(callCtx, id.UserID)
	if err != nil {
		return remoteError("refreshing habits", err)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		slog.DebugContext(ctx, "stale habits response dropped", slog.Uint64("seq", seq))
		return nil
	}
	s.habits = habits
	s.owner = id.UserID
	s.applied = seq
	snapshot := cloneAll(habits)
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// onIdentity empties the cache when the user signs out or another one signs
// in. Responses still in flight become stale.
func (s *HabitStore) onIdentity(id session.Identity, signedIn bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if signedIn && id.UserID == s.owner {
		s.mu.Unlock()
		return
	}
	s.habits = nil
	s.owner = uuid.Nil
	s.applied = s.seq.Add(1)
	s.mu.Unlock()

	s.notify([]*entity.Habit{})
}

func (s *HabitStore) notify(snapshot []*entity.Habit) {
	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range listeners {
		fn(cloneAll(snapshot))
	}
}

// remoteError turns an expired deadline into a persistence failure, other
// errors are already categorized by the backend.
func remoteError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errorvalues.NewPersistenceError(op, err)
	}
	return err
}

func cloneAll(habits []*entity.Habit) []*entity.Habit {
	out := make([]*entity.Habit, len(habits))
	for i, h := range habits {
		out[i] = h.Clone()
	}
	return out
}
