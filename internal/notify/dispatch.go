package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
	"github.com/dukerupert/smartassist/internal/push"
	"github.com/dukerupert/smartassist/internal/recurrence"
	"github.com/dukerupert/smartassist/internal/store"
)

// dispatch fires every due registration once. A firing already present in the
// sent log is not delivered again; the registration is only advanced.
func (g *Gateway) dispatch(ctx context.Context) {
	now := g.now()

	due, err := g.store.ListDue(ctx, now)
	if err != nil {
		g.logger.Error("list due notifications", "error", err)
		return
	}

	for _, n := range due {
		if ctx.Err() != nil {
			return
		}
		g.fire(ctx, n, now)
	}
}

func (g *Gateway) fire(ctx context.Context, n model.ScheduledNotification, now time.Time) {
	log := g.logger.With("notification_id", n.ID, "user_id", n.UserID)

	sent, err := g.store.WasSent(ctx, n.ID, n.NextFireAt)
	if err != nil {
		log.Error("check sent log", "error", err)
		return
	}

	if !sent {
		if g.deliverer != nil {
			if err := g.deliverer.Deliver(ctx, n); err != nil {
				log.Warn("push delivery failed", "error", err)
			}
		}
		if err := g.store.RecordSent(ctx, n.ID, n.NextFireAt); err != nil {
			log.Error("record sent notification", "error", err)
			return
		}

		ev := Event{
			Kind:           Received,
			NotificationID: n.ID,
			UserID:         n.UserID,
			Title:          n.Title,
			Body:           n.Body,
			Payload:        n.Payload,
			FiredAt:        n.NextFireAt,
		}
		// Delivery can be slow; a registration cancelled meanwhile must not
		// come back as pending. Cancel deletes the row before the pending
		// entry, so checking the row under mu is enough.
		g.mu.Lock()
		live, err := g.store.GetByID(ctx, n.ID)
		if err == nil && live != nil {
			g.pending[n.ID] = ev
		}
		g.mu.Unlock()
		if err != nil {
			log.Error("check registration after delivery", "error", err)
			return
		}
		if live == nil {
			log.Info("notification cancelled during delivery")
			return
		}

		if err := g.emit(ctx, ev); err != nil {
			log.Warn("notification listener failed", "error", err)
		}
		log.Info("notification fired", "fire_at", n.NextFireAt)
	}

	if n.Rule == "" {
		if err := g.store.Delete(ctx, n.ID); err != nil {
			log.Error("remove fired notification", "error", err)
		}
		return
	}

	rule, err := recurrence.Parse(n.Rule)
	if err != nil {
		log.Error("parse recurrence rule", "rule", n.Rule, "error", err)
		return
	}

	// Missed occurrences while the process was down are skipped.
	after := n.NextFireAt
	if now.After(after) {
		after = now
	}
	next := rule.Next(after, n.Hour, n.Minute, g.loc)
	if err := g.store.Reschedule(ctx, n.ID, next); err != nil {
		log.Error("reschedule notification", "error", err)
	}
}

// PushDeliverer sends fired notifications to every push subscription of the
// user and removes subscriptions the push service reports as gone.
type PushDeliverer struct {
	service *push.Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewPushDeliverer(service *push.Service, subs *store.PushStore, logger *slog.Logger) *PushDeliverer {
	return &PushDeliverer{service: service, subs: subs, logger: logger}
}

func (d *PushDeliverer) Deliver(ctx context.Context, n model.ScheduledNotification) error {
	subs, err := d.subs.ListByUser(ctx, n.UserID)
	if err != nil {
		return err
	}

	payload := push.Payload{
		NotificationID: n.ID,
		Title:          n.Title,
		Body:           n.Body,
		Tag:            model.NotifTypeReminder,
		Data:           n.Payload,
	}

	var errs []error
	for _, sub := range subs {
		err := d.service.Send(ctx, &sub, payload)
		switch {
		case errors.Is(err, push.ErrExpired):
			d.logger.Info("removing expired push subscription", "subscription_id", sub.ID)
			if err := d.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				d.logger.Error("remove expired subscription", "error", err)
			}
		case err != nil:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
