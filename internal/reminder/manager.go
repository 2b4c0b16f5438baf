// Package reminder turns user reminders into notification registrations and
// keeps the two consistent across edits, completion and deletion.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/smartassist/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Payload keys attached to every registration.
const (
	PayloadReminderID  = "reminderId"
	PayloadType        = "type"
	PayloadVoicePrompt = "voicePrompt"
)

// Store persists reminders per user. Get and Update return nil, nil when the
// reminder does not exist.
type Store interface {
	Save(ctx context.Context, userID string, r *model.Reminder) (*model.Reminder, error)
	List(ctx context.Context, userID string) ([]model.Reminder, error)
	Get(ctx context.Context, userID, id string) (*model.Reminder, error)
	Update(ctx context.Context, userID string, r *model.Reminder) (*model.Reminder, error)
	Delete(ctx context.Context, userID, id string) error
}

// Gateway schedules platform notifications. Weekday is 0 for daily
// registrations and 1..7 (Mon..Sun) for weekly ones.
type Gateway interface {
	ScheduleOnce(ctx context.Context, userID, title, body string, when time.Time, payload map[string]string) (string, error)
	ScheduleRecurring(ctx context.Context, userID, title, body string, hour, minute, weekday int, payload map[string]string) (string, error)
	Cancel(ctx context.Context, id string) error
	ListScheduled(ctx context.Context, userID string) ([]string, error)
}

// Voice reads text aloud on the user's devices.
type Voice interface {
	Speak(ctx context.Context, userID, text string)
	Stop(userID string)
}

// Preferences answers whether the user wants fired reminders read aloud.
type Preferences interface {
	VoiceEnabled(ctx context.Context, userID string) (bool, error)
}

// Notification is a fired or acknowledged registration as seen by the manager.
type Notification struct {
	ID      string
	UserID  string
	Title   string
	Body    string
	Payload map[string]string
}

type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Input describes a new reminder. Only the calendar date of Date is used; the
// fire time is Date combined with Time in the manager's location.
type Input struct {
	Title       string
	Description string
	Date        time.Time
	Time        TimeOfDay
	Type        model.ReminderType
	Weekdays    []int
	VoicePrompt string
	Color       string
}

// Patch holds the fields to change on an existing reminder. Nil fields are
// left untouched.
type Patch struct {
	Title       *string
	Description *string
	Date        *time.Time
	Time        *TimeOfDay
	Type        *model.ReminderType
	Weekdays    *[]int
	VoicePrompt *string
	Color       *string
}

func (p Patch) touchesSchedule() bool {
	return p.Date != nil || p.Time != nil || p.Type != nil || p.Weekdays != nil
}

type Options struct {
	Location *time.Location
	Now      func() time.Time
	// RestoreOnUncomplete re-registers notifications when a completed
	// reminder is marked active again.
	RestoreOnUncomplete bool
}

// Manager is the reminder core. Voice and preferences are optional.
type Manager struct {
	store   Store
	gateway Gateway
	voice   Voice
	prefs   Preferences

	loc                 *time.Location
	now                 func() time.Time
	restoreOnUncomplete bool

	mu     sync.Mutex
	active map[string]map[string]struct{}

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	logger *slog.Logger
}

func NewManager(store Store, gateway Gateway, voice Voice, prefs Preferences, opts Options, logger *slog.Logger) *Manager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:               store,
		gateway:             gateway,
		voice:               voice,
		prefs:               prefs,
		loc:                 opts.Location,
		now:                 opts.Now,
		restoreOnUncomplete: opts.RestoreOnUncomplete,
		active:              make(map[string]map[string]struct{}),
		locks:               make(map[string]*sync.Mutex),
		logger:              logger,
	}
}

// Create validates the input, registers its notifications and persists it.
func (m *Manager) Create(ctx context.Context, userID string, in Input) (*model.Reminder, error) {
	defer m.lockUser(userID)()

	r := &model.Reminder{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DateTime:    m.combine(in.Date, in.Time),
		Type:        in.Type,
		Weekdays:    in.Weekdays,
		VoicePrompt: in.VoicePrompt,
		Color:       in.Color,
	}
	if err := m.validate(r, in.Time, true); err != nil {
		return nil, err
	}

	regs, err := m.register(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	r.Registrations = regs

	saved, err := m.store.Save(ctx, userID, r)
	if err != nil {
		m.cancelAll(ctx, regs)
		return nil, &StoreError{Op: "save", Err: err}
	}

	m.logger.Info("reminder created", "user_id", userID, "reminder_id", saved.ID, "type", saved.Type, "registrations", len(regs))
	return saved, nil
}

// Edit merges the patch onto the stored reminder and re-registers its
// notifications unless it is completed.
func (m *Manager) Edit(ctx context.Context, userID, id string, p Patch) (*model.Reminder, error) {
	defer m.lockUser(userID)()

	cur, err := m.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	merged := *cur
	tod := TimeOfDay{Hour: cur.DateTime.In(m.loc).Hour(), Minute: cur.DateTime.In(m.loc).Minute()}
	date := cur.DateTime.In(m.loc)
	if p.Title != nil {
		merged.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		merged.Description = *p.Description
	}
	if p.Date != nil {
		date = *p.Date
	}
	if p.Time != nil {
		tod = *p.Time
	}
	if p.Type != nil {
		merged.Type = *p.Type
	}
	if p.Weekdays != nil {
		merged.Weekdays = *p.Weekdays
	}
	if p.VoicePrompt != nil {
		merged.VoicePrompt = *p.VoicePrompt
	}
	if p.Color != nil {
		merged.Color = *p.Color
	}
	merged.DateTime = m.combine(date, tod)

	if err := m.validate(&merged, tod, p.touchesSchedule()); err != nil {
		return nil, err
	}

	if !cur.IsCompleted {
		if err := m.cancelEach(ctx, cur.Registrations); err != nil {
			return nil, err
		}
	}

	merged.Registrations = nil
	if !merged.IsCompleted {
		regs, err := m.register(ctx, userID, &merged)
		if err != nil {
			return nil, err
		}
		merged.Registrations = regs
	}

	updated, err := m.store.Update(ctx, userID, &merged)
	if err != nil {
		m.cancelAll(ctx, merged.Registrations)
		return nil, &StoreError{Op: "update", Err: err}
	}
	if updated == nil {
		m.cancelAll(ctx, merged.Registrations)
		return nil, ErrNotFound
	}

	m.logger.Info("reminder edited", "user_id", userID, "reminder_id", id, "registrations", len(updated.Registrations))
	return updated, nil
}

// ToggleCompletion marks a reminder completed (cancelling its notifications)
// or active again. It always clears the reminder's ringing state.
func (m *Manager) ToggleCompletion(ctx context.Context, userID, id string, completed bool) (*model.Reminder, error) {
	defer m.lockUser(userID)()

	cur, err := m.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	next := *cur
	next.IsCompleted = completed

	var restored []model.Registration
	switch {
	case !cur.IsCompleted && completed:
		if err := m.cancelEach(ctx, cur.Registrations); err != nil {
			return nil, err
		}
		next.Registrations = nil
	case cur.IsCompleted && !completed && m.restoreOnUncomplete:
		restored, err = m.register(ctx, userID, &next)
		if err != nil {
			return nil, err
		}
		next.Registrations = restored
	}

	updated := cur
	if cur.IsCompleted != completed {
		updated, err = m.store.Update(ctx, userID, &next)
		if err != nil {
			m.cancelAll(ctx, restored)
			return nil, &StoreError{Op: "update", Err: err}
		}
		if updated == nil {
			m.cancelAll(ctx, restored)
			return nil, ErrNotFound
		}
	}

	m.dismiss(userID, id, false)
	return updated, nil
}

// Delete cancels every registration of the reminder, then removes it.
func (m *Manager) Delete(ctx context.Context, userID, id string) error {
	defer m.lockUser(userID)()

	cur, err := m.get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := m.cancelEach(ctx, cur.Registrations); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, userID, id); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}

	m.dismiss(userID, id, false)
	m.logger.Info("reminder deleted", "user_id", userID, "reminder_id", id)
	return nil
}

// Get returns a single reminder.
func (m *Manager) Get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	return m.get(ctx, userID, id)
}

// List returns the user's reminders in store order.
func (m *Manager) List(ctx context.Context, userID string) ([]model.Reminder, error) {
	reminders, err := m.store.List(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return reminders, nil
}

// View lists the user's reminders and reduces them to grouped view data.
func (m *Manager) View(ctx context.Context, userID string, f Filter) ([]Group, error) {
	reminders, err := m.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ListView(reminders, m.activeSet(userID), f, m.now().In(m.loc)), nil
}

// OnNotificationReceived marks the reminder as ringing and reads it aloud
// when the user enabled voice. Firings of reminders that were deleted or
// completed in the meantime are ignored.
func (m *Manager) OnNotificationReceived(ctx context.Context, n Notification) {
	id := n.Payload[PayloadReminderID]
	if id == "" {
		return
	}

	defer m.lockUser(n.UserID)()

	r, err := m.get(ctx, n.UserID, id)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("load fired reminder", "user_id", n.UserID, "reminder_id", id, "error", err)
		return
	}
	if r.IsCompleted {
		return
	}

	m.mu.Lock()
	set, ok := m.active[n.UserID]
	if !ok {
		set = make(map[string]struct{})
		m.active[n.UserID] = set
	}
	set[id] = struct{}{}
	m.mu.Unlock()

	if m.voice == nil || m.prefs == nil {
		return
	}
	enabled, err := m.prefs.VoiceEnabled(ctx, n.UserID)
	if err != nil {
		m.logger.Warn("read voice preference", "user_id", n.UserID, "error", err)
		return
	}
	if !enabled {
		return
	}

	text := n.Payload[PayloadVoicePrompt]
	if text == "" {
		text = n.Title + ". " + n.Body
	}
	m.voice.Speak(ctx, n.UserID, text)
}

// OnNotificationResponse clears the ringing state and completes one-time
// reminders the user acknowledged.
func (m *Manager) OnNotificationResponse(ctx context.Context, n Notification) error {
	id := n.Payload[PayloadReminderID]
	if id == "" {
		return nil
	}
	m.dismiss(n.UserID, id, true)

	r, err := m.get(ctx, n.UserID, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if r.Type != model.ReminderOnce {
		return nil
	}
	_, err = m.ToggleCompletion(ctx, n.UserID, id, true)
	return err
}

// Dismiss stops a ringing reminder without completing it.
func (m *Manager) Dismiss(userID, id string) {
	m.dismiss(userID, id, true)
}

// Active returns the ids of the user's ringing reminders, sorted.
func (m *Manager) Active(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active[userID]))
	for id := range m.active[userID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager) activeSet(userID string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.active[userID]))
	for id := range m.active[userID] {
		out[id] = true
	}
	return out
}

// dismiss drops the ringing marker. Playback stops when the reminder was
// ringing, or unconditionally when force is set.
func (m *Manager) dismiss(userID, id string, force bool) {
	m.mu.Lock()
	_, was := m.active[userID][id]
	delete(m.active[userID], id)
	if len(m.active[userID]) == 0 {
		delete(m.active, userID)
	}
	m.mu.Unlock()

	if m.voice != nil && (was || force) {
		m.voice.Stop(userID)
	}
}

// lockUser serializes mutating operations of one user.
func (m *Manager) lockUser(userID string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (m *Manager) get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	r, err := m.store.Get(ctx, userID, id)
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *Manager) combine(date time.Time, tod TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, m.loc)
}

// validate checks r and normalizes its weekdays. checkFuture enables the
// future-date rule for one-time reminders.
func (m *Manager) validate(r *model.Reminder, tod TimeOfDay, checkFuture bool) error {
	if r.Title == "" {
		return invalid("title required")
	}
	if !r.Type.Valid() {
		return invalid("unknown reminder type")
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return invalid("time out of range")
	}

	if r.Type != model.ReminderWeekly {
		r.Weekdays = nil
	} else {
		if len(r.Weekdays) == 0 {
			return invalid("weekdays required")
		}
		days := slices.Clone(r.Weekdays)
		for _, d := range days {
			if d < 1 || d > 7 {
				return invalid("weekday out of range")
			}
		}
		slices.Sort(days)
		r.Weekdays = slices.Compact(days)
	}

	if checkFuture && r.Type == model.ReminderOnce && !r.DateTime.After(m.now()) {
		return invalid("date must be future")
	}
	return nil
}

func (m *Manager) payload(r *model.Reminder) map[string]string {
	p := map[string]string{
		PayloadReminderID: r.ID,
		PayloadType:       string(r.Type),
	}
	if r.VoicePrompt != "" {
		p[PayloadVoicePrompt] = r.VoicePrompt
	}
	return p
}

// register creates one registration per firing occasion of r. One-time
// reminders whose fire time has passed get none. On failure nothing created
// by this call is left live.
func (m *Manager) register(ctx context.Context, userID string, r *model.Reminder) ([]model.Registration, error) {
	local := r.DateTime.In(m.loc)
	hour, minute := local.Hour(), local.Minute()

	switch {
	case r.Type.OneShot():
		if !r.DateTime.After(m.now()) {
			return nil, nil
		}
		id, err := m.gateway.ScheduleOnce(ctx, userID, r.Title, r.Description, r.DateTime, m.payload(r))
		if err != nil {
			return nil, &NotificationError{Op: "schedule", Err: err}
		}
		return []model.Registration{{NotificationID: id}}, nil

	case r.Type == model.ReminderDaily:
		id, err := m.gateway.ScheduleRecurring(ctx, userID, r.Title, r.Description, hour, minute, 0, m.payload(r))
		if err != nil {
			return nil, &NotificationError{Op: "schedule", Err: err}
		}
		return []model.Registration{{NotificationID: id}}, nil
	}

	regs := make([]model.Registration, len(r.Weekdays))
	g, gctx := errgroup.WithContext(ctx)
	for i, day := range r.Weekdays {
		g.Go(func() error {
			id, err := m.gateway.ScheduleRecurring(gctx, userID, r.Title, r.Description, hour, minute, day, m.payload(r))
			if err != nil {
				return err
			}
			regs[i] = model.Registration{Weekday: day, NotificationID: id}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.cancelAll(ctx, regs)
		return nil, &NotificationError{Op: "schedule", Err: err}
	}
	return regs, nil
}

// cancelEach cancels registrations in order and stops at the first failure.
func (m *Manager) cancelEach(ctx context.Context, regs []model.Registration) error {
	for _, reg := range regs {
		if err := m.gateway.Cancel(ctx, reg.NotificationID); err != nil {
			return &NotificationError{Op: "cancel", Err: err}
		}
	}
	return nil
}

// cancelAll is the best-effort rollback of registrations created by a failed
// operation.
func (m *Manager) cancelAll(ctx context.Context, regs []model.Registration) {
	for _, reg := range regs {
		if reg.NotificationID == "" {
			continue
		}
		if err := m.gateway.Cancel(ctx, reg.NotificationID); err != nil {
			m.logger.Error("roll back registration", "notification_id", reg.NotificationID, "error", err)
		}
	}
}
