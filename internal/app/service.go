package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"notebox/api/internal/auth"
	"notebox/api/internal/config"
	"notebox/api/internal/export"
	"notebox/api/internal/notetree"
	"notebox/api/internal/search"
	"notebox/api/internal/session"
	"notebox/api/internal/store"
)

const (
	demoEmail = "demo@notebox.app"
	demoName  = "Demo User"
)

// Session is an authenticated browser session resolved from the cookie.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

type noteTree interface {
	MaxDepth() int
	Create(context.Context, store.NoteFields) (store.Note, error)
	Update(context.Context, string, store.NoteFields) (store.Note, error)
	Move(context.Context, string, *string) (store.Note, error)
	Delete(context.Context, string, bool) (notetree.Deletion, error)
	Get(context.Context, string) (store.Note, error)
	Children(context.Context, *string) ([]store.Note, error)
	AncestorPath(context.Context, string) ([]store.Note, error)
}

type dataStore interface {
	ListNotes(context.Context) ([]store.Note, error)
	ListRootNotes(context.Context) ([]store.Note, error)
	EnsureUserByEmail(context.Context, string, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	ListDatabases(context.Context) ([]store.CustomDatabase, error)
	GetDatabase(context.Context, string) (store.CustomDatabase, error)
	InsertDatabase(context.Context, string, *string) (store.CustomDatabase, error)
	UpdateDatabase(context.Context, string, string, *string) (store.CustomDatabase, error)
	DeleteDatabase(context.Context, string) (bool, error)
	ListColumns(context.Context, []string) (map[string][]store.Column, error)
	InsertColumn(context.Context, store.Column) (store.Column, error)
	UpdateColumn(context.Context, store.Column) (store.Column, error)
	DeleteColumn(context.Context, string, string) (bool, error)
	ListRecords(context.Context, string) ([]store.Record, error)
	InsertRecord(context.Context, string, map[string]json.RawMessage) (store.Record, error)
	UpdateRecord(context.Context, string, string, map[string]json.RawMessage) (store.Record, error)
	DeleteRecord(context.Context, string, string) (bool, error)
	Ping(ctx context.Context) error
}

// SessionStore keeps browser sessions. Redis and Postgres implementations
// live in the session package.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time) error
	GetSession(ctx context.Context, sessionID string) (store.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexNote(store.Note)
	DeleteNotes([]string)
}

type fileStore interface {
	Enabled() bool
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type noteExporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	tree     noteTree
	store    dataStore
	sessions SessionStore
	search   searchIndex
	files    fileStore
	exporter noteExporter
	secret   []byte
	now      func() time.Time
}

// noteTxRunner runs tree operations inside a locked Postgres transaction.
type noteTxRunner struct {
	pg *store.PostgresStore
}

func (r noteTxRunner) WithTx(ctx context.Context, fn func(notetree.Repository) error) error {
	return r.pg.WithNoteTx(ctx, func(repo *store.NoteRepo) error {
		return fn(repo)
	})
}

// NewNoteTree builds the tree service over Postgres.
func NewNoteTree(pg *store.PostgresStore, maxDepth int) *notetree.Service {
	return notetree.New(noteTxRunner{pg: pg}, notetree.WithMaxDepth(maxDepth))
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions SessionStore, searchService *search.Service, files fileStore) *Service {
	tree := NewNoteTree(dataStore, cfg.MaxDepth)
	return &Service{
		cfg:      cfg,
		tree:     tree,
		store:    dataStore,
		sessions: sessions,
		search:   searchService,
		files:    files,
		exporter: export.NewService(tree, cfg.ChromeExecutable),
		secret:   []byte(cfg.SessionSecret),
		now:      time.Now,
	}
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingSessions checks the session backend.
func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) PublicConfig() map[string]any {
	return map[string]any{
		"demoModeEnabled": s.cfg.DemoMode,
		"maxDepth":        s.tree.MaxDepth(),
	}
}

// DemoLogin signs in the shared demo user and returns the signed cookie value.
func (s *Service) DemoLogin(ctx context.Context) (store.User, string, error) {
	if !s.cfg.DemoMode {
		return store.User{}, "", domainError(http.StatusForbidden, "DEMO_DISABLED", "Demo mode is not enabled", nil)
	}

	user, err := s.store.EnsureUserByEmail(ctx, demoEmail, demoName)
	if err != nil {
		return store.User{}, "", fmt.Errorf("ensure demo user: %w", err)
	}

	sessionID, err := auth.NewSessionID()
	if err != nil {
		return store.User{}, "", err
	}
	expiresAt := s.now().Add(s.sessionTTL())
	if err := s.sessions.CreateSession(ctx, sessionID, user.ID, expiresAt); err != nil {
		return store.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, auth.SignSession(s.secret, sessionID), nil
}

func (s *Service) sessionTTL() time.Duration {
	if s.cfg.SessionTTL <= 0 {
		return session.DefaultTTL
	}
	return s.cfg.SessionTTL
}

// SessionFromCookie verifies the cookie signature and loads the session.
func (s *Service) SessionFromCookie(ctx context.Context, value string) (Session, error) {
	if value == "" {
		return Session{}, unauthorized("UNAUTHORIZED", "Not authenticated")
	}
	sessionID, err := auth.ParseSession(s.secret, value)
	if err != nil {
		return Session{}, unauthorized("UNAUTHORIZED", "Not authenticated")
	}

	stored, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return Session{}, unauthorized("SESSION_EXPIRED", "Session expired")
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return Session{ID: sessionID, UserID: stored.UserID, ExpiresAt: stored.ExpiresAt}, nil
}

func (s *Service) CurrentUser(ctx context.Context, current Session) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, current.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, unauthorized("USER_NOT_FOUND", "User not found")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Logout drops the session named by the cookie. Unknown or forged cookies
// are ignored.
func (s *Service) Logout(ctx context.Context, cookieValue string) error {
	sessionID, err := auth.ParseSession(s.secret, cookieValue)
	if err != nil {
		return nil
	}
	return s.sessions.DeleteSession(ctx, sessionID)
}

func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL()
}
