package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
)

// callLog records gateway and store calls in order across both fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (l *callLog) reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

type scheduled struct {
	userID   string
	title    string
	body     string
	when     time.Time
	hour     int
	minute   int
	weekday  int
	payload  map[string]string
	repeated bool
}

type fakeGateway struct {
	log *callLog

	mu         sync.Mutex
	seq        int
	live       map[string]scheduled
	failDay    int // ScheduleRecurring fails for this weekday
	failOnce   bool
	failCancel bool
}

func newFakeGateway(log *callLog) *fakeGateway {
	return &fakeGateway{log: log, live: make(map[string]scheduled)}
}

func (g *fakeGateway) next() string {
	g.seq++
	return fmt.Sprintf("n%d", g.seq)
}

func (g *fakeGateway) ScheduleOnce(_ context.Context, userID, title, body string, when time.Time, payload map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOnce {
		g.log.add("once:error")
		return "", errors.New("gateway unavailable")
	}
	id := g.next()
	g.live[id] = scheduled{userID: userID, title: title, body: body, when: when, payload: payload}
	g.log.add("once:%s", id)
	return id, nil
}

func (g *fakeGateway) ScheduleRecurring(_ context.Context, userID, title, body string, hour, minute, weekday int, payload map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDay != 0 && weekday == g.failDay {
		g.log.add("recurring:error")
		return "", errors.New("gateway unavailable")
	}
	id := g.next()
	g.live[id] = scheduled{userID: userID, title: title, body: body, hour: hour, minute: minute, weekday: weekday, payload: payload, repeated: true}
	g.log.add("recurring:%s", id)
	return id, nil
}

func (g *fakeGateway) Cancel(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCancel {
		return errors.New("gateway unavailable")
	}
	delete(g.live, id)
	g.log.add("cancel:%s", id)
	return nil
}

func (g *fakeGateway) ListScheduled(_ context.Context, userID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for id, s := range g.live {
		if s.userID == userID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (g *fakeGateway) get(id string) (scheduled, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.live[id]
	return s, ok
}

func (g *fakeGateway) liveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

type fakeStore struct {
	log *callLog

	mu        sync.Mutex
	reminders map[string]model.Reminder
	order     []string
	failSave  bool
	failUpd   bool
}

func newFakeStore(log *callLog) *fakeStore {
	return &fakeStore{log: log, reminders: make(map[string]model.Reminder)}
}

func (s *fakeStore) Save(_ context.Context, userID string, r *model.Reminder) (*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("save:%s", r.ID)
	if s.failSave {
		return nil, errors.New("store unavailable")
	}
	c := cloneReminder(*r)
	c.UserID = userID
	s.reminders[r.ID] = c
	s.order = append(s.order, r.ID)
	out := cloneReminder(c)
	return &out, nil
}

func (s *fakeStore) List(_ context.Context, userID string) ([]model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reminder
	for _, id := range s.order {
		r, ok := s.reminders[id]
		if ok && r.UserID == userID {
			out = append(out, cloneReminder(r))
		}
	}
	slices.SortStableFunc(out, func(a, b model.Reminder) int { return a.DateTime.Compare(b.DateTime) })
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, userID, id string) (*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.UserID != userID {
		return nil, nil
	}
	out := cloneReminder(r)
	return &out, nil
}

func (s *fakeStore) Update(_ context.Context, userID string, r *model.Reminder) (*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("update:%s", r.ID)
	if s.failUpd {
		return nil, errors.New("store unavailable")
	}
	if cur, ok := s.reminders[r.ID]; !ok || cur.UserID != userID {
		return nil, nil
	}
	c := cloneReminder(*r)
	c.UserID = userID
	s.reminders[r.ID] = c
	out := cloneReminder(c)
	return &out, nil
}

func (s *fakeStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("delete:%s", id)
	if r, ok := s.reminders[id]; ok && r.UserID == userID {
		delete(s.reminders, id)
	}
	return nil
}

func cloneReminder(r model.Reminder) model.Reminder {
	r.Weekdays = slices.Clone(r.Weekdays)
	r.Registrations = slices.Clone(r.Registrations)
	return r
}

type fakeVoice struct {
	mu     sync.Mutex
	spoken []string
	stops  int
}

func (v *fakeVoice) Speak(_ context.Context, userID, text string) {
	v.mu.Lock()
	v.spoken = append(v.spoken, userID+":"+text)
	v.mu.Unlock()
}

func (v *fakeVoice) Stop(string) {
	v.mu.Lock()
	v.stops++
	v.mu.Unlock()
}

type fakePrefs map[string]bool

func (p fakePrefs) VoiceEnabled(_ context.Context, userID string) (bool, error) {
	return p[userID], nil
}

// Monday 2 March 2026, 09:00 UTC.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	m       *Manager
	log     *callLog
	gateway *fakeGateway
	store   *fakeStore
	voice   *fakeVoice
	prefs   fakePrefs
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	log := &callLog{}
	h := &harness{
		log:     log,
		gateway: newFakeGateway(log),
		store:   newFakeStore(log),
		voice:   &fakeVoice{},
		prefs:   fakePrefs{},
	}
	opts.Location = time.UTC
	opts.Now = func() time.Time { return testNow }
	h.m = NewManager(h.store, h.gateway, h.voice, h.prefs, opts, slog.Default())
	return h
}
