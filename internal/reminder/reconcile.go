package reminder

import (
	"context"

	"github.com/dukerupert/smartassist/internal/model"
)

// ReconcileReport counts the repairs made by a reconciliation sweep.
type ReconcileReport struct {
	Reregistered int `json:"reregistered"`
	Cleared      int `json:"cleared"`
	Orphans      int `json:"orphans"`
}

// Reconcile repairs drift between stored registrations and the gateway. A
// reminder that lost any of its live registrations is cancelled and
// registered again; completed reminders are stripped of leftovers; live
// registrations no reminder refers to are cancelled.
func (m *Manager) Reconcile(ctx context.Context, userID string) (ReconcileReport, error) {
	defer m.lockUser(userID)()

	var report ReconcileReport
	reminders, err := m.store.List(ctx, userID)
	if err != nil {
		return report, &StoreError{Op: "list", Err: err}
	}
	scheduled, err := m.gateway.ListScheduled(ctx, userID)
	if err != nil {
		return report, &NotificationError{Op: "list", Err: err}
	}

	live := make(map[string]bool, len(scheduled))
	for _, id := range scheduled {
		live[id] = true
	}
	referenced := make(map[string]bool)

	for i := range reminders {
		r := &reminders[i]
		for _, reg := range r.Registrations {
			referenced[reg.NotificationID] = true
		}

		if r.IsCompleted {
			if len(r.Registrations) == 0 {
				continue
			}
			m.cancelAll(ctx, liveOnly(r.Registrations, live))
			r.Registrations = nil
			if _, err := m.store.Update(ctx, userID, r); err != nil {
				return report, &StoreError{Op: "update", Err: err}
			}
			report.Cleared++
			continue
		}

		// A one-time reminder past its fire time either still awaits dispatch
		// or already fired; it is never registered again.
		if r.Type.OneShot() && !r.DateTime.After(m.now()) {
			if len(r.Registrations) == 0 || len(liveOnly(r.Registrations, live)) > 0 {
				continue
			}
			r.Registrations = nil
			if _, err := m.store.Update(ctx, userID, r); err != nil {
				return report, &StoreError{Op: "update", Err: err}
			}
			report.Cleared++
			continue
		}

		if m.intact(r, live) {
			continue
		}

		m.cancelAll(ctx, liveOnly(r.Registrations, live))
		regs, err := m.register(ctx, userID, r)
		if err != nil {
			return report, err
		}
		r.Registrations = regs
		if _, err := m.store.Update(ctx, userID, r); err != nil {
			m.cancelAll(ctx, regs)
			return report, &StoreError{Op: "update", Err: err}
		}
		for _, reg := range regs {
			referenced[reg.NotificationID] = true
		}
		report.Reregistered++
	}

	for _, id := range scheduled {
		if referenced[id] {
			continue
		}
		if err := m.gateway.Cancel(ctx, id); err != nil {
			return report, &NotificationError{Op: "cancel", Err: err}
		}
		report.Orphans++
	}

	if report != (ReconcileReport{}) {
		m.logger.Info("reminders reconciled", "user_id", userID,
			"reregistered", report.Reregistered, "cleared", report.Cleared, "orphans", report.Orphans)
	}
	return report, nil
}

// intact reports whether every firing occasion of r has a live registration.
func (m *Manager) intact(r *model.Reminder, live map[string]bool) bool {
	want := 1
	if r.Type == model.ReminderWeekly {
		want = len(r.Weekdays)
	}
	if len(r.Registrations) != want {
		return false
	}
	for _, reg := range r.Registrations {
		if !live[reg.NotificationID] {
			return false
		}
	}
	return true
}

func liveOnly(regs []model.Registration, live map[string]bool) []model.Registration {
	var out []model.Registration
	for _, reg := range regs {
		if live[reg.NotificationID] {
			out = append(out, reg)
		}
	}
	return out
}
