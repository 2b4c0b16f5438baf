package reminder

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a reminder id does not exist for the user.
var ErrNotFound = errors.New("reminder not found")

// ValidationError reports bad user input. It is returned before any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// NotificationError wraps a failed notification gateway call.
type NotificationError struct {
	Op  string
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s notification: %v", e.Op, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failed reminder store call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s reminder: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
