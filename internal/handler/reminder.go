package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/smartassist/internal/auth"
	"github.com/dukerupert/smartassist/internal/model"
	"github.com/dukerupert/smartassist/internal/reminder"
	"github.com/dukerupert/smartassist/internal/websocket"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type ReminderHandler struct {
	manager *reminder.Manager
	hub     Sender
	logger  *slog.Logger
}

func NewReminderHandler(m *reminder.Manager, hub Sender, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{manager: m, hub: hub, logger: logger}
}

func (h *ReminderHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.SendToUser(userID, msg)
	}
}

type reminderRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Type        string `json:"type"`
	Weekdays    []int  `json:"weekdays"`
	VoicePrompt string `json:"voice_prompt"`
	Color       string `json:"color"`
}

type reminderPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Type        *string `json:"type"`
	Weekdays    *[]int  `json:"weekdays"`
	VoicePrompt *string `json:"voice_prompt"`
	Color       *string `json:"color"`
}

func parseTimeOfDay(s string) (reminder.TimeOfDay, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return reminder.TimeOfDay{}, fmt.Errorf("time must be HH:MM")
	}
	return reminder.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return d, nil
}

func (req reminderRequest) input() (reminder.Input, error) {
	in := reminder.Input{
		Title:       req.Title,
		Description: req.Description,
		Type:        model.ReminderType(req.Type),
		Weekdays:    req.Weekdays,
		VoicePrompt: req.VoicePrompt,
		Color:       req.Color,
	}
	var err error
	if in.Date, err = parseDate(req.Date); err != nil {
		return in, err
	}
	if in.Time, err = parseTimeOfDay(req.Time); err != nil {
		return in, err
	}
	return in, nil
}

func (req reminderPatchRequest) patch() (reminder.Patch, error) {
	p := reminder.Patch{
		Title:       req.Title,
		Description: req.Description,
		Weekdays:    req.Weekdays,
		VoicePrompt: req.VoicePrompt,
		Color:       req.Color,
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if req.Time != nil {
		tod, err := parseTimeOfDay(*req.Time)
		if err != nil {
			return p, err
		}
		p.Time = &tod
	}
	if req.Type != nil {
		t := model.ReminderType(*req.Type)
		p.Type = &t
	}
	return p, nil
}

// List handles GET /api/reminders?completed=&type=&q=
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	q := r.URL.Query()

	f := reminder.Filter{
		Type:   model.ReminderType(q.Get("type")),
		Search: q.Get("q"),
	}
	if v := q.Get("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		f.IncludeCompleted = b
	}
	if f.Type != "" && !f.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown reminder type")
		return
	}

	groups, err := h.manager.View(r.Context(), userID, f)
	if err != nil {
		writeReminderError(w, h.logger, "list reminders", err)
		return
	}
	if groups == nil {
		groups = []reminder.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// Create handles POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rem, err := h.manager.Create(r.Context(), userID, in)
	if err != nil {
		writeReminderError(w, h.logger, "create reminder", err)
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "created", rem.ID, nil))
	writeJSON(w, http.StatusCreated, rem)
}

// Get handles GET /api/reminders/{id}
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rem, err := h.manager.Get(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeReminderError(w, h.logger, "get reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// Update handles PATCH /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req reminderPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	p, err := req.patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rem, err := h.manager.Edit(r.Context(), userID, r.PathValue("id"), p)
	if err != nil {
		writeReminderError(w, h.logger, "update reminder", err)
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "updated", rem.ID, nil))
	writeJSON(w, http.StatusOK, rem)
}

// Delete handles DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	if err := h.manager.Delete(r.Context(), userID, id); err != nil {
		writeReminderError(w, h.logger, "delete reminder", err)
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type completionRequest struct {
	Completed *bool `json:"completed"`
}

// SetCompletion handles PUT /api/reminders/{id}/completion
func (h *ReminderHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}

	rem, err := h.manager.ToggleCompletion(r.Context(), userID, r.PathValue("id"), *req.Completed)
	if err != nil {
		writeReminderError(w, h.logger, "toggle reminder completion", err)
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "completed", rem.ID, map[string]any{"completed": rem.IsCompleted}))
	writeJSON(w, http.StatusOK, rem)
}

// Dismiss handles POST /api/reminders/{id}/dismiss
func (h *ReminderHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.manager.Dismiss(auth.UserID(r.Context()), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile handles POST /api/reminders/reconcile
func (h *ReminderHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.manager.Reconcile(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeReminderError(w, h.logger, "reconcile reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Active handles GET /api/reminders/active
func (h *ReminderHandler) Active(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ids": h.manager.Active(auth.UserID(r.Context()))})
}
