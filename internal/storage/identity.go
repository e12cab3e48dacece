package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"invoicely/internal/gateway"
)

const (
	sessionTTL = 24 * time.Hour
	jwtTTL     = 15 * time.Minute
)

// IdentityStore is the local identity provider backing the sqlite mode.
// Sessions are opaque random tokens; IssueToken mints signed JWTs for
// downstream calls.
type IdentityStore struct {
	repo      *SQLiteRepository
	jwtSecret []byte
}

var _ gateway.IdentityGateway = (*IdentityStore)(nil)

func NewIdentityStore(repo *SQLiteRepository, jwtSecret string) *IdentityStore {
	return &IdentityStore{repo: repo, jwtSecret: []byte(jwtSecret)}
}

func (s *IdentityStore) CreateAccount(ctx context.Context, email, password, name string) (gateway.Session, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return gateway.Session{}, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	_, err = s.repo.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, key, name, string(hash), s.repo.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return gateway.Session{}, gateway.ErrConflict
		}
		return gateway.Session{}, fmt.Errorf("insert user: %w", err)
	}

	return s.createSession(ctx, id)
}

func (s *IdentityStore) Login(ctx context.Context, email, password string) (gateway.Session, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	var (
		id   string
		hash string
	)
	row := s.repo.db.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email = ?`, key)
	if err := row.Scan(&id, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gateway.Session{}, gateway.ErrUnauthorized
		}
		return gateway.Session{}, fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return gateway.Session{}, gateway.ErrUnauthorized
	}

	// A fresh login replaces any session the user already had.
	if _, err := s.repo.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, id); err != nil {
		return gateway.Session{}, fmt.Errorf("drop old sessions: %w", err)
	}
	return s.createSession(ctx, id)
}

func (s *IdentityStore) CurrentUser(ctx context.Context, token string) (gateway.Identity, error) {
	var (
		ident     gateway.Identity
		expiresAt string
	)
	row := s.repo.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, token)
	if err := row.Scan(&ident.ID, &ident.Email, &ident.Name, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gateway.Identity{}, gateway.ErrUnauthorized
		}
		return gateway.Identity{}, fmt.Errorf("query session: %w", err)
	}

	exp, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil || s.repo.now().After(exp) {
		_, _ = s.repo.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return gateway.Identity{}, gateway.ErrUnauthorized
	}
	return ident, nil
}

func (s *IdentityStore) Logout(ctx context.Context, token string) error {
	res, err := s.repo.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gateway.ErrUnauthorized
	}
	return nil
}

// IssueToken mints a short-lived JWT bound to the session's user.
func (s *IdentityStore) IssueToken(ctx context.Context, token string) (string, error) {
	ident, err := s.CurrentUser(ctx, token)
	if err != nil {
		return "", err
	}

	now := s.repo.now()
	claims := jwt.MapClaims{
		"sub":   ident.ID,
		"email": ident.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(jwtTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *IdentityStore) createSession(ctx context.Context, userID string) (gateway.Session, error) {
	sess := gateway.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.repo.now().Add(sessionTTL),
	}
	_, err := s.repo.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES (?, ?, ?)`,
		sess.Token, sess.UserID, sess.ExpiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return gateway.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}
