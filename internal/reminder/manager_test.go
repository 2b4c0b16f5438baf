package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/smartassist/internal/model"

	"github.com/google/go-cmp/cmp"
)

func tomorrow() time.Time {
	return testNow.AddDate(0, 0, 1)
}

func onceInput(title string) Input {
	return Input{
		Title: title,
		Date:  tomorrow(),
		Time:  TimeOfDay{Hour: 10, Minute: 0},
		Type:  model.ReminderOnce,
	}
}

func TestCreateWeeklyRegistersPerWeekday(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", Input{
		Title:    "Physio",
		Date:     testNow,
		Time:     TimeOfDay{Hour: 8, Minute: 30},
		Type:     model.ReminderWeekly,
		Weekdays: []int{5, 1, 3},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(r.Registrations) != 3 {
		t.Fatalf("registrations = %d, want 3", len(r.Registrations))
	}
	if diff := cmp.Diff([]int{1, 3, 5}, r.Weekdays); diff != "" {
		t.Errorf("weekdays mismatch (-want +got):\n%s", diff)
	}

	recurring := 0
	for _, call := range h.log.all() {
		if len(call) > 10 && call[:10] == "recurring:" {
			recurring++
		}
	}
	if recurring != 3 {
		t.Errorf("scheduleRecurring calls = %d, want 3", recurring)
	}

	for i, reg := range r.Registrations {
		if reg.Weekday != r.Weekdays[i] {
			t.Errorf("registration %d weekday = %d, want %d", i, reg.Weekday, r.Weekdays[i])
		}
		s, ok := h.gateway.get(reg.NotificationID)
		if !ok {
			t.Fatalf("registration %s not live", reg.NotificationID)
		}
		if s.weekday != reg.Weekday || s.hour != 8 || s.minute != 30 || !s.repeated {
			t.Errorf("scheduled = %+v, want weekday %d at 08:30 repeating", s, reg.Weekday)
		}
		if s.payload[PayloadReminderID] != r.ID {
			t.Errorf("payload reminderId = %q, want %q", s.payload[PayloadReminderID], r.ID)
		}
	}
}

func TestCreateOnce(t *testing.T) {
	h := newHarness(t, Options{})
	in := onceInput("Collect prescription")
	in.Description = "Pharmacy on Main St"
	in.VoicePrompt = "Time to collect your prescription"

	r, err := h.m.Create(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	if !r.DateTime.Equal(want) {
		t.Errorf("dateTime = %v, want %v", r.DateTime, want)
	}
	if len(r.Registrations) != 1 || r.Registrations[0].Weekday != 0 {
		t.Fatalf("registrations = %+v, want one without weekday", r.Registrations)
	}

	s, _ := h.gateway.get(r.Registrations[0].NotificationID)
	if !s.when.Equal(want) || s.repeated {
		t.Errorf("scheduled = %+v, want one-shot at %v", s, want)
	}
	wantPayload := map[string]string{
		PayloadReminderID:  r.ID,
		PayloadType:        "once",
		PayloadVoicePrompt: "Time to collect your prescription",
	}
	if diff := cmp.Diff(wantPayload, s.payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if s.body != "Pharmacy on Main St" {
		t.Errorf("body = %q, want %q", s.body, "Pharmacy on Main St")
	}
}

func TestCreateDaily(t *testing.T) {
	h := newHarness(t, Options{})

	r, err := h.m.Create(context.Background(), "u1", Input{
		Title:    "Vitamins",
		Date:     testNow.AddDate(0, 0, -3),
		Time:     TimeOfDay{Hour: 7, Minute: 15},
		Type:     model.ReminderDaily,
		Weekdays: []int{2},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Weekdays != nil {
		t.Errorf("weekdays = %v, want nil for daily", r.Weekdays)
	}
	if len(r.Registrations) != 1 {
		t.Fatalf("registrations = %d, want 1", len(r.Registrations))
	}
	s, _ := h.gateway.get(r.Registrations[0].NotificationID)
	if !s.repeated || s.weekday != 0 || s.hour != 7 || s.minute != 15 {
		t.Errorf("scheduled = %+v, want daily at 07:15", s)
	}
}

func TestCreateMedicationInPastIsUnregistered(t *testing.T) {
	h := newHarness(t, Options{})

	in := onceInput("Insulin")
	in.Type = model.ReminderMedication
	in.Date = testNow.AddDate(0, 0, -1)

	r, err := h.m.Create(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(r.Registrations) != 0 {
		t.Errorf("registrations = %+v, want none", r.Registrations)
	}
}

func TestCreateOnceNotInFuture(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		tod  TimeOfDay
	}{
		{"now", testNow, TimeOfDay{Hour: 9, Minute: 0}},
		{"earlier today", testNow, TimeOfDay{Hour: 8, Minute: 59}},
		{"yesterday", testNow.AddDate(0, 0, -1), TimeOfDay{Hour: 12, Minute: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			_, err := h.m.Create(context.Background(), "u1", Input{
				Title: "Late",
				Date:  tt.date,
				Time:  tt.tod,
				Type:  model.ReminderOnce,
			})

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Message != "date must be future" {
				t.Errorf("message = %q, want %q", verr.Message, "date must be future")
			}
			if calls := h.log.all(); len(calls) != 0 {
				t.Errorf("expected no gateway or store calls, got %v", calls)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"blank title", Input{Title: "   ", Date: tomorrow(), Type: model.ReminderOnce}, "title required"},
		{"weekly without days", Input{Title: "Bins", Date: tomorrow(), Type: model.ReminderWeekly}, "weekdays required"},
		{"weekday out of range", Input{Title: "Bins", Date: tomorrow(), Type: model.ReminderWeekly, Weekdays: []int{0}}, "weekday out of range"},
		{"unknown type", Input{Title: "Bins", Date: tomorrow(), Type: "hourly"}, "unknown reminder type"},
		{"bad time", Input{Title: "Bins", Date: tomorrow(), Time: TimeOfDay{Hour: 25}, Type: model.ReminderDaily}, "time out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			_, err := h.m.Create(context.Background(), "u1", tt.in)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Error() != tt.want {
				t.Errorf("message = %q, want %q", verr.Error(), tt.want)
			}
			if calls := h.log.all(); len(calls) != 0 {
				t.Errorf("expected no side effects, got %v", calls)
			}
		})
	}
}

func TestCreateWeeklyPartialFailureRollsBack(t *testing.T) {
	h := newHarness(t, Options{})
	h.gateway.failDay = 3

	_, err := h.m.Create(context.Background(), "u1", Input{
		Title:    "Choir",
		Date:     testNow,
		Time:     TimeOfDay{Hour: 18, Minute: 0},
		Type:     model.ReminderWeekly,
		Weekdays: []int{1, 3, 5},
	})

	var nerr *NotificationError
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *NotificationError", err)
	}
	if n := h.gateway.liveCount(); n != 0 {
		t.Errorf("live registrations after rollback = %d, want 0", n)
	}
	for _, call := range h.log.all() {
		if len(call) > 5 && call[:5] == "save:" {
			t.Errorf("reminder persisted despite failure: %v", h.log.all())
		}
	}
}

func TestCreateStoreFailureCancelsRegistrations(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.failSave = true

	_, err := h.m.Create(context.Background(), "u1", onceInput("Dentist"))

	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *StoreError", err)
	}
	if n := h.gateway.liveCount(); n != 0 {
		t.Errorf("live registrations = %d, want 0", n)
	}
}

func TestDeleteCancelsBeforeRemoving(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", Input{
		Title:    "Bins",
		Date:     testNow,
		Time:     TimeOfDay{Hour: 7, Minute: 0},
		Type:     model.ReminderWeekly,
		Weekdays: []int{1, 3, 5},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.log.reset()

	if err := h.m.Delete(ctx, "u1", r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var want []string
	for _, reg := range r.Registrations {
		want = append(want, "cancel:"+reg.NotificationID)
	}
	want = append(want, "delete:"+r.ID)
	if diff := cmp.Diff(want, h.log.all()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}

	if _, err := h.m.Get(ctx, "u1", r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCancelFailureKeepsRecord(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.gateway.failCancel = true

	var nerr *NotificationError
	if err := h.m.Delete(ctx, "u1", r.ID); !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *NotificationError", err)
	}
	if _, err := h.m.Get(ctx, "u1", r.ID); err != nil {
		t.Errorf("reminder should still exist: %v", err)
	}
}

func TestDeleteUnknown(t *testing.T) {
	h := newHarness(t, Options{})
	if err := h.m.Delete(context.Background(), "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleCompletion(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Call mum"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.m.OnNotificationReceived(ctx, Notification{UserID: "u1", Payload: map[string]string{PayloadReminderID: r.ID}})

	done, err := h.m.ToggleCompletion(ctx, "u1", r.ID, true)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !done.IsCompleted {
		t.Error("expected completed")
	}
	if len(done.Registrations) != 0 {
		t.Errorf("registrations = %+v, want none", done.Registrations)
	}
	if n := h.gateway.liveCount(); n != 0 {
		t.Errorf("live registrations = %d, want 0", n)
	}
	if active := h.m.Active("u1"); len(active) != 0 {
		t.Errorf("active = %v, want empty", active)
	}
	if h.voice.stops != 1 {
		t.Errorf("voice stops = %d, want 1", h.voice.stops)
	}

	undone, err := h.m.ToggleCompletion(ctx, "u1", r.ID, false)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if undone.IsCompleted {
		t.Error("expected not completed")
	}
	if len(undone.Registrations) != 0 || h.gateway.liveCount() != 0 {
		t.Errorf("un-completion should stay silent, registrations = %+v", undone.Registrations)
	}
}

func TestToggleUncompleteRestores(t *testing.T) {
	h := newHarness(t, Options{RestoreOnUncomplete: true})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", Input{
		Title: "Water plants",
		Date:  testNow,
		Time:  TimeOfDay{Hour: 18, Minute: 0},
		Type:  model.ReminderDaily,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.m.ToggleCompletion(ctx, "u1", r.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}

	undone, err := h.m.ToggleCompletion(ctx, "u1", r.ID, false)
	if err != nil {
		t.Fatalf("un-complete: %v", err)
	}
	if len(undone.Registrations) != 1 || h.gateway.liveCount() != 1 {
		t.Errorf("registrations = %+v, want one restored", undone.Registrations)
	}
}

func TestOnNotificationResponse(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	once, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create once: %v", err)
	}
	daily, err := h.m.Create(ctx, "u1", Input{Title: "Vitamins", Date: testNow, Time: TimeOfDay{Hour: 8}, Type: model.ReminderDaily})
	if err != nil {
		t.Fatalf("create daily: %v", err)
	}

	for _, r := range []*model.Reminder{once, daily} {
		n := Notification{UserID: "u1", Payload: map[string]string{PayloadReminderID: r.ID}}
		h.m.OnNotificationReceived(ctx, n)
	}
	if got := len(h.m.Active("u1")); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}

	for _, r := range []*model.Reminder{once, daily} {
		n := Notification{UserID: "u1", Payload: map[string]string{PayloadReminderID: r.ID}}
		if err := h.m.OnNotificationResponse(ctx, n); err != nil {
			t.Fatalf("response: %v", err)
		}
	}

	if active := h.m.Active("u1"); len(active) != 0 {
		t.Errorf("active = %v, want empty", active)
	}

	got, _ := h.m.Get(ctx, "u1", once.ID)
	if !got.IsCompleted || len(got.Registrations) != 0 {
		t.Errorf("once reminder = completed %v registrations %+v, want completed with none", got.IsCompleted, got.Registrations)
	}
	got, _ = h.m.Get(ctx, "u1", daily.ID)
	if got.IsCompleted || len(got.Registrations) != 1 {
		t.Errorf("daily reminder = completed %v registrations %+v, want untouched", got.IsCompleted, got.Registrations)
	}
}

func TestOnNotificationResponseDeletedReminder(t *testing.T) {
	h := newHarness(t, Options{})
	n := Notification{UserID: "u1", Payload: map[string]string{PayloadReminderID: "gone"}}
	if err := h.m.OnNotificationResponse(context.Background(), n); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestOnNotificationReceivedVoice(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		prompt  string
		noID    bool
		want    []string
	}{
		{name: "disabled", want: nil},
		{name: "title and body", enabled: true, want: []string{"u1:Dentist. Bring insurance card"}},
		{name: "voice prompt", enabled: true, prompt: "Dentist in one hour", want: []string{"u1:Dentist in one hour"}},
		{name: "no reminder id", enabled: true, noID: true, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.prefs["u1"] = tt.enabled
			r, err := h.m.Create(context.Background(), "u1", onceInput("Dentist"))
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			payload := map[string]string{}
			if !tt.noID {
				payload[PayloadReminderID] = r.ID
			}
			if tt.prompt != "" {
				payload[PayloadVoicePrompt] = tt.prompt
			}
			h.m.OnNotificationReceived(context.Background(), Notification{
				UserID:  "u1",
				Title:   "Dentist",
				Body:    "Bring insurance card",
				Payload: payload,
			})

			if diff := cmp.Diff(tt.want, h.voice.spoken); diff != "" {
				t.Errorf("spoken mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOnNotificationReceivedIgnoresStaleFirings(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.prefs["u1"] = true

	deleted, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.m.Delete(ctx, "u1", deleted.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	completed, err := h.m.Create(ctx, "u1", onceInput("Pharmacy"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.m.ToggleCompletion(ctx, "u1", completed.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}

	for _, id := range []string{deleted.ID, completed.ID} {
		h.m.OnNotificationReceived(ctx, Notification{UserID: "u1", Title: "late", Payload: map[string]string{PayloadReminderID: id}})
	}

	if active := h.m.Active("u1"); len(active) != 0 {
		t.Errorf("active = %v, want empty", active)
	}
	if len(h.voice.spoken) != 0 {
		t.Errorf("spoken = %v, want nothing", h.voice.spoken)
	}
}

func TestDismiss(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.m.OnNotificationReceived(ctx, Notification{UserID: "u1", Payload: map[string]string{PayloadReminderID: r.ID}})

	h.m.Dismiss("u1", r.ID)

	if active := h.m.Active("u1"); len(active) != 0 {
		t.Errorf("active = %v, want empty", active)
	}
	if h.voice.stops != 1 {
		t.Errorf("voice stops = %d, want 1", h.voice.stops)
	}
}

func TestEditTitleKeepsSchedule(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldID := r.Registrations[0].NotificationID

	title := "X"
	if _, err := h.m.Edit(ctx, "u1", r.ID, Patch{Title: &title}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	groups, err := h.m.View(ctx, "u1", Filter{})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Items) != 1 {
		t.Fatalf("groups = %+v, want one item", groups)
	}
	got := groups[0].Items[0]
	if got.Title != "X" {
		t.Errorf("title = %q, want %q", got.Title, "X")
	}
	if !got.DateTime.Equal(r.DateTime) || got.Type != r.Type {
		t.Errorf("schedule changed: %v %s, want %v %s", got.DateTime, got.Type, r.DateTime, r.Type)
	}

	if _, ok := h.gateway.get(oldID); ok {
		t.Error("old registration still live")
	}
	if len(got.Registrations) != 1 {
		t.Fatalf("registrations = %+v, want 1", got.Registrations)
	}
	s, ok := h.gateway.get(got.Registrations[0].NotificationID)
	if !ok || s.title != "X" || s.payload[PayloadReminderID] != r.ID {
		t.Errorf("new registration = %+v, want title X for %s", s, r.ID)
	}
}

func TestEditToWeekly(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", Input{Title: "Walk", Date: testNow, Time: TimeOfDay{Hour: 17}, Type: model.ReminderDaily})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	weekly := model.ReminderWeekly
	days := []int{6, 7}
	edited, err := h.m.Edit(ctx, "u1", r.ID, Patch{Type: &weekly, Weekdays: &days})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(edited.Registrations) != 2 || h.gateway.liveCount() != 2 {
		t.Errorf("registrations = %+v, want 2 live", edited.Registrations)
	}
}

func TestEditValidation(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.log.reset()

	past := testNow.AddDate(0, 0, -2)
	weekly := model.ReminderWeekly
	blank := " "
	tests := []struct {
		name  string
		patch Patch
		want  string
	}{
		{"past date", Patch{Date: &past}, "date must be future"},
		{"weekly without days", Patch{Type: &weekly}, "weekdays required"},
		{"blank title", Patch{Title: &blank}, "title required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.m.Edit(ctx, "u1", r.ID, tt.patch)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Message != tt.want {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if calls := h.log.all(); len(calls) != 0 {
		t.Errorf("expected no side effects, got %v", calls)
	}
}

func TestEditCompletedStaysUnregistered(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.m.ToggleCompletion(ctx, "u1", r.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}

	color := "#ff0000"
	edited, err := h.m.Edit(ctx, "u1", r.ID, Patch{Color: &color})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(edited.Registrations) != 0 || h.gateway.liveCount() != 0 {
		t.Errorf("completed reminder registered again: %+v", edited.Registrations)
	}
	if edited.Color != color {
		t.Errorf("color = %q, want %q", edited.Color, color)
	}
}

func TestEditNotFound(t *testing.T) {
	h := newHarness(t, Options{})
	title := "X"
	if _, err := h.m.Edit(context.Background(), "u1", "missing", Patch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEditOtherUsersReminder(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "X"
	if _, err := h.m.Edit(ctx, "u2", r.ID, Patch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEditRegisterFailureSurfaces(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldID := r.Registrations[0].NotificationID
	h.log.reset()
	h.gateway.failOnce = true

	title := "Orthodontist"
	_, err = h.m.Edit(ctx, "u1", r.ID, Patch{Title: &title})

	var nerr *NotificationError
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *NotificationError", err)
	}
	want := []string{"cancel:" + oldID, "once:error"}
	if diff := cmp.Diff(want, h.log.all()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if n := h.gateway.liveCount(); n != 0 {
		t.Errorf("live registrations = %d, want 0", n)
	}
}

func TestEditStoreFailureCancelsNewRegistrations(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", Input{Title: "Vitamins", Date: testNow, Time: TimeOfDay{Hour: 8}, Type: model.ReminderDaily})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldID := r.Registrations[0].NotificationID
	h.log.reset()
	h.store.failUpd = true

	title := "Vitamin D"
	_, err = h.m.Edit(ctx, "u1", r.ID, Patch{Title: &title})

	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *StoreError", err)
	}
	want := []string{"cancel:" + oldID, "recurring:n2", "update:" + r.ID, "cancel:n2"}
	if diff := cmp.Diff(want, h.log.all()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if n := h.gateway.liveCount(); n != 0 {
		t.Errorf("live registrations = %d, want 0", n)
	}
}

func TestToggleUncompleteStoreFailureRollsBack(t *testing.T) {
	h := newHarness(t, Options{RestoreOnUncomplete: true})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.m.ToggleCompletion(ctx, "u1", r.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.log.reset()
	h.store.failUpd = true

	_, err = h.m.ToggleCompletion(ctx, "u1", r.ID, false)

	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *StoreError", err)
	}
	want := []string{"once:n2", "update:" + r.ID, "cancel:n2"}
	if diff := cmp.Diff(want, h.log.all()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	got, _ := h.m.Get(ctx, "u1", r.ID)
	if !got.IsCompleted {
		t.Error("reminder should stay completed")
	}
}

func TestOnNotificationResponseStoreFailure(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	r, err := h.m.Create(ctx, "u1", onceInput("Dentist"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	n := Notification{UserID: "u1", Payload: map[string]string{PayloadReminderID: r.ID}}
	h.m.OnNotificationReceived(ctx, n)
	h.store.failUpd = true

	var serr *StoreError
	if err := h.m.OnNotificationResponse(ctx, n); !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *StoreError", err)
	}

	h.store.failUpd = false
	if err := h.m.OnNotificationResponse(ctx, n); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := h.m.Get(ctx, "u1", r.ID)
	if !got.IsCompleted {
		t.Error("expected reminder completed after retry")
	}
}
