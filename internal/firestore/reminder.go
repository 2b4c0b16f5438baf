// Package firestore stores reminders as Firestore documents under
// users/{userID}/reminders/{reminderID}.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/smartassist/internal/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errMissing = errors.New("reminder missing")

type ReminderStore struct {
	client *firestore.Client
}

func NewReminderStore(client *firestore.Client) *ReminderStore {
	return &ReminderStore{client: client}
}

func (s *ReminderStore) reminders(userID string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(userID).Collection("reminders")
}

// Save creates the reminder document. The caller assigns the id.
func (s *ReminderStore) Save(ctx context.Context, userID string, r *model.Reminder) (*model.Reminder, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("create reminder: empty id")
	}

	doc := *r
	doc.UserID = userID
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt

	if _, err := s.reminders(userID).Doc(r.ID).Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	return &doc, nil
}

// Get returns the reminder or nil if it does not exist.
func (s *ReminderStore) Get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	snap, err := s.reminders(userID).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return decode(snap)
}

// List returns the user's reminders ordered by dateTime ascending.
func (s *ReminderStore) List(ctx context.Context, userID string) ([]model.Reminder, error) {
	iter := s.reminders(userID).OrderBy("dateTime", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []model.Reminder
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list reminders: %w", err)
		}
		r, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// ListUserIDs returns every user with a reminders collection.
func (s *ReminderStore) ListUserIDs(ctx context.Context) ([]string, error) {
	iter := s.client.Collection("users").DocumentRefs(ctx)

	var ids []string
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list reminder users: %w", err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// Update overwrites the reminder inside a transaction, keeping its creation
// time. It returns nil if the reminder does not exist.
func (s *ReminderStore) Update(ctx context.Context, userID string, r *model.Reminder) (*model.Reminder, error) {
	ref := s.reminders(userID).Doc(r.ID)
	doc := *r
	doc.UserID = userID

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return errMissing
		}
		if err != nil {
			return err
		}
		cur, err := decode(snap)
		if err != nil {
			return err
		}
		doc.CreatedAt = cur.CreatedAt
		doc.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, doc)
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return &doc, nil
}

// Delete removes the reminder document. Deleting a missing reminder is not an error.
func (s *ReminderStore) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.reminders(userID).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

func decode(snap *firestore.DocumentSnapshot) (*model.Reminder, error) {
	var r model.Reminder
	if err := snap.DataTo(&r); err != nil {
		return nil, fmt.Errorf("decode reminder %s: %w", snap.Ref.ID, err)
	}
	r.ID = snap.Ref.ID
	return &r, nil
}
