// Package notify is the notification gateway: it owns scheduled notification
// registrations, fires them when due, and reports received and responded
// events to listeners.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
	"github.com/dukerupert/smartassist/internal/recurrence"
	"github.com/dukerupert/smartassist/internal/store"

	"github.com/google/uuid"
)

// ErrUnknownNotification is returned by Respond for ids that never fired or
// were already acknowledged.
var ErrUnknownNotification = errors.New("unknown notification")

// Error is the failure of a gateway operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notification %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	return &Error{Op: op, Err: err}
}

type EventKind string

const (
	Received  EventKind = "received"
	Responded EventKind = "responded"
)

// Event reports a notification firing or the user's response to it. Payload
// is the opaque map supplied when the notification was scheduled.
type Event struct {
	Kind           EventKind
	NotificationID string
	UserID         string
	Title          string
	Body           string
	Payload        map[string]string
	FiredAt        time.Time
}

// Listener receives gateway events. Listeners run on the dispatch goroutine
// (received) or the caller's goroutine (responded) and must not block for long.
// An error from a responded listener is returned by Respond and leaves the
// notification pending so the response can be retried.
type Listener func(ctx context.Context, ev Event) error

// Deliverer pushes a fired notification to the user's devices.
type Deliverer interface {
	Deliver(ctx context.Context, n model.ScheduledNotification) error
}

type Options struct {
	PollInterval time.Duration
	Location     *time.Location
	Now          func() time.Time
}

// Gateway schedules notifications and dispatches them when due. It is
// constructed by the application root and started with Init.
type Gateway struct {
	mu        sync.RWMutex
	store     *store.NotificationStore
	deliverer Deliverer
	interval  time.Duration
	loc       *time.Location
	now       func() time.Time
	listeners []Listener
	pending   map[string]Event
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *slog.Logger
}

// New creates a gateway. deliverer may be nil, in which case firings are only
// reported to listeners.
func New(st *store.NotificationStore, deliverer Deliverer, opts Options, logger *slog.Logger) *Gateway {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		store:     st,
		deliverer: deliverer,
		interval:  opts.PollInterval,
		loc:       opts.Location,
		now:       opts.Now,
		pending:   make(map[string]Event),
		logger:    logger,
	}
}

// Subscribe registers a listener for received and responded events.
func (g *Gateway) Subscribe(l Listener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, l)
	g.mu.Unlock()
}

// Init starts the dispatch loop. Due registrations are checked immediately and
// then every poll interval until Shutdown.
func (g *Gateway) Init(ctx context.Context) error {
	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return opError("init", errors.New("already running"))
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	g.mu.Unlock()

	go func() {
		defer close(g.done)
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		g.dispatch(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.dispatch(ctx)
			}
		}
	}()

	g.logger.Info("notification gateway started", "poll_interval", g.interval)
	return nil
}

// Shutdown stops the dispatch loop and waits for it to exit.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	cancel := g.cancel
	done := g.done
	g.cancel = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// ScheduleOnce registers a notification that fires a single time at when.
func (g *Gateway) ScheduleOnce(ctx context.Context, userID, title, body string, when time.Time, payload map[string]string) (string, error) {
	if when.IsZero() {
		return "", opError("schedule", errors.New("missing fire time"))
	}

	n := &model.ScheduledNotification{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		Body:       body,
		Hour:       when.In(g.loc).Hour(),
		Minute:     when.In(g.loc).Minute(),
		NextFireAt: when,
		Payload:    payload,
	}
	if err := g.store.Create(ctx, n); err != nil {
		return "", opError("schedule", err)
	}
	return n.ID, nil
}

// ScheduleRecurring registers a notification firing at hour:minute every day
// (weekday 0) or every week on weekday (1..7, Mon..Sun).
func (g *Gateway) ScheduleRecurring(ctx context.Context, userID, title, body string, hour, minute, weekday int, payload map[string]string) (string, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", opError("schedule", fmt.Errorf("invalid time %02d:%02d", hour, minute))
	}

	rule := recurrence.DailyRule()
	if weekday != 0 {
		var err error
		rule, err = recurrence.WeeklyRule(weekday)
		if err != nil {
			return "", opError("schedule", err)
		}
	}

	n := &model.ScheduledNotification{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		Body:       body,
		Rule:       rule.String(),
		Hour:       hour,
		Minute:     minute,
		NextFireAt: rule.Next(g.now(), hour, minute, g.loc),
		Payload:    payload,
	}
	if err := g.store.Create(ctx, n); err != nil {
		return "", opError("schedule", err)
	}
	return n.ID, nil
}

// Cancel removes a registration. Unknown ids are ignored.
func (g *Gateway) Cancel(ctx context.Context, id string) error {
	if err := g.store.Delete(ctx, id); err != nil {
		return opError("cancel", err)
	}
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
	return nil
}

// ListScheduled returns the ids of every live registration of the user.
func (g *Gateway) ListScheduled(ctx context.Context, userID string) ([]string, error) {
	scheduled, err := g.Scheduled(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(scheduled))
	for i, n := range scheduled {
		ids[i] = n.ID
	}
	return ids, nil
}

// Scheduled returns the live registrations of the user ordered by next firing.
func (g *Gateway) Scheduled(ctx context.Context, userID string) ([]model.ScheduledNotification, error) {
	scheduled, err := g.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, opError("list", err)
	}
	return scheduled, nil
}

// Respond records that the user acknowledged a fired notification and emits a
// Responded event carrying the original payload. If a listener fails the
// notification stays pending and the listener's error is returned.
func (g *Gateway) Respond(ctx context.Context, userID, notificationID string) error {
	g.mu.Lock()
	fired, ok := g.pending[notificationID]
	if ok && fired.UserID == userID {
		delete(g.pending, notificationID)
	}
	g.mu.Unlock()

	if !ok || fired.UserID != userID {
		return opError("respond", ErrUnknownNotification)
	}

	if err := g.emit(ctx, Event{
		Kind:           Responded,
		NotificationID: fired.NotificationID,
		UserID:         fired.UserID,
		Title:          fired.Title,
		Body:           fired.Body,
		Payload:        fired.Payload,
		FiredAt:        fired.FiredAt,
	}); err != nil {
		g.mu.Lock()
		g.pending[notificationID] = fired
		g.mu.Unlock()
		return opError("respond", err)
	}
	return nil
}

// emit calls every listener and joins their errors.
func (g *Gateway) emit(ctx context.Context, ev Event) error {
	g.mu.RLock()
	listeners := make([]Listener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
