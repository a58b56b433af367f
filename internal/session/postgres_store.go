package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"notebox/api/internal/auth"
	"notebox/api/internal/store"
)

type sessionRows interface {
	CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time) error
	GetSession(ctx context.Context, sessionID string) (store.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

// PostgresStore keeps sessions in the sessions table when Redis is not configured.
// Ids are hashed the same way as in Redis so a leaked table holds no usable cookies.
type PostgresStore struct {
	rows sessionRows
}

func NewPostgresStore(rows sessionRows) *PostgresStore {
	return &PostgresStore{rows: rows}
}

func (s *PostgresStore) CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time) error {
	if !expiresAt.After(time.Now()) {
		expiresAt = time.Now().Add(DefaultTTL)
	}
	return s.rows.CreateSession(ctx, auth.HashToken(sessionID), userID, expiresAt)
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	session, err := s.rows.GetSession(ctx, auth.HashToken(sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return store.Session{}, err
	}
	session.ID = sessionID
	return session, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.rows.DeleteSession(ctx, auth.HashToken(sessionID))
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.rows.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	return nil
}
