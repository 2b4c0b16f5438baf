package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
)

// ReminderStore persists reminders and their notification registrations in SQLite.
type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `id, user_id, title, description, date_time, type, weekdays, is_completed, voice_prompt, color, created_at, updated_at`

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	var weekdays string
	var completed int

	err := scanner.Scan(
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.DateTime, &r.Type,
		&weekdays, &completed, &r.VoicePrompt, &r.Color, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.IsCompleted = completed != 0
	r.Weekdays, err = decodeWeekdays(weekdays)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Save inserts a new reminder. The caller assigns the id.
func (s *ReminderStore) Save(ctx context.Context, userID string, r *model.Reminder) (*model.Reminder, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("insert reminder: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reminders (id, user_id, title, description, date_time, type, weekdays, is_completed, voice_prompt, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, userID, r.Title, r.Description, r.DateTime.UTC(), string(r.Type),
		encodeWeekdays(r.Weekdays), boolInt(r.IsCompleted), r.VoicePrompt, r.Color, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}

	if err := writeRegistrations(ctx, tx, r.ID, r.Registrations); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.Get(ctx, userID, r.ID)
}

// Get returns the reminder or nil if it does not exist for this user.
func (s *ReminderStore) Get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderCols+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}

	regs, err := s.registrations(ctx, []string{r.ID})
	if err != nil {
		return nil, err
	}
	r.Registrations = regs[r.ID]
	return r, nil
}

// List returns every reminder of the user ordered by date_time ascending.
func (s *ReminderStore) List(ctx context.Context, userID string) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE user_id = ? ORDER BY date_time ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	var ids []string
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}

	regs, err := s.registrations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reminders {
		reminders[i].Registrations = regs[reminders[i].ID]
	}
	return reminders, nil
}

// ListUserIDs returns the distinct users that own at least one reminder.
func (s *ReminderStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM reminders ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list reminder users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update overwrites the mutable fields and the registration list of a reminder.
func (s *ReminderStore) Update(ctx context.Context, userID string, r *model.Reminder) (*model.Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE reminders
		 SET title = ?, description = ?, date_time = ?, type = ?, weekdays = ?, is_completed = ?, voice_prompt = ?, color = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		r.Title, r.Description, r.DateTime.UTC(), string(r.Type), encodeWeekdays(r.Weekdays),
		boolInt(r.IsCompleted), r.VoicePrompt, r.Color, time.Now().UTC(), r.ID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminder_registrations WHERE reminder_id = ?`, r.ID); err != nil {
		return nil, fmt.Errorf("clear registrations: %w", err)
	}
	if err := writeRegistrations(ctx, tx, r.ID, r.Registrations); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.Get(ctx, userID, r.ID)
}

func (s *ReminderStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

func (s *ReminderStore) registrations(ctx context.Context, reminderIDs []string) (map[string][]model.Registration, error) {
	out := make(map[string][]model.Registration, len(reminderIDs))
	if len(reminderIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(reminderIDs)), ",")
	args := make([]any, len(reminderIDs))
	for i, id := range reminderIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT reminder_id, weekday, notification_id FROM reminder_registrations
		 WHERE reminder_id IN (`+placeholders+`) ORDER BY reminder_id, position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reminderID string
		var reg model.Registration
		if err := rows.Scan(&reminderID, &reg.Weekday, &reg.NotificationID); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out[reminderID] = append(out[reminderID], reg)
	}
	return out, rows.Err()
}

func writeRegistrations(ctx context.Context, tx *sql.Tx, reminderID string, regs []model.Registration) error {
	for i, reg := range regs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reminder_registrations (reminder_id, position, weekday, notification_id) VALUES (?, ?, ?, ?)`,
			reminderID, i, reg.Weekday, reg.NotificationID,
		)
		if err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
	}
	return nil
}

func encodeWeekdays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q: %w", p, err)
		}
		days = append(days, d)
	}
	return days, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
