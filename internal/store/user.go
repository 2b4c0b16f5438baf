package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/smartassist/internal/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned when an API token does not match any user.
var ErrInvalidToken = errors.New("invalid token")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Create registers a user and returns the plaintext API token. Only a bcrypt
// hash of the secret part is stored, so the token cannot be recovered later.
// Tokens have the form "<user id>.<secret>".
func (s *UserStore) Create(ctx context.Context, name string) (*model.User, string, error) {
	id := uuid.NewString()

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, token_hash) VALUES (?, ?, ?)`,
		id, name, string(hash),
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert user: %w", err)
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return u, id + "." + secret, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Authenticate resolves an API token to its user.
func (s *UserStore) Authenticate(ctx context.Context, token string) (*model.User, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return nil, ErrInvalidToken
	}

	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT token_hash FROM users WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return nil, ErrInvalidToken
	}
	return s.GetByID(ctx, id)
}
