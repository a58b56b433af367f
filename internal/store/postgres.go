package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"notebox/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// EnsureUserByEmail returns the user with the given email, creating it on first sight.
func (s *PostgresStore) EnsureUserByEmail(ctx context.Context, email, name string) (User, error) {
	user, err := s.getUser(ctx, `WHERE email=$1`, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET updated_at=users.updated_at
		RETURNING id, email, name, avatar_url, created_at, updated_at
	`, util.NewID(), email, name)
	user, err = scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.getUser(ctx, `WHERE id=$1`, userID)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, email, name, avatar_url, created_at, updated_at FROM users `+where, arg)
	return scanUser(row)
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var avatar sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &avatar, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.AvatarURL = fromNull(avatar)
	return user, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, sessionID, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns sql.ErrNoRows for missing or expired sessions.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var session Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at
		FROM sessions
		WHERE id=$1 AND expires_at > NOW()
	`, sessionID).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func (s *PostgresStore) ListDatabases(ctx context.Context) ([]CustomDatabase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, note_id, created_at, updated_at
		FROM custom_databases
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	items := make([]CustomDatabase, 0)
	for rows.Next() {
		item, err := scanDatabase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDatabase(ctx context.Context, databaseID string) (CustomDatabase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, note_id, created_at, updated_at
		FROM custom_databases
		WHERE id=$1
	`, databaseID)
	return scanDatabase(row)
}

func (s *PostgresStore) InsertDatabase(ctx context.Context, name string, noteID *string) (CustomDatabase, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO custom_databases (id, name, note_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, note_id, created_at, updated_at
	`, util.NewID(), name, nullable(noteID))
	item, err := scanDatabase(row)
	if err != nil {
		return CustomDatabase{}, fmt.Errorf("insert database: %w", err)
	}
	return item, nil
}

// UpdateDatabase returns sql.ErrNoRows when the database does not exist.
func (s *PostgresStore) UpdateDatabase(ctx context.Context, databaseID, name string, noteID *string) (CustomDatabase, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE custom_databases
		SET name=$2, note_id=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, name, note_id, created_at, updated_at
	`, databaseID, name, nullable(noteID))
	return scanDatabase(row)
}

func (s *PostgresStore) DeleteDatabase(ctx context.Context, databaseID string) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM custom_databases WHERE id=$1`, databaseID, "database")
}

func scanDatabase(row rowScanner) (CustomDatabase, error) {
	var item CustomDatabase
	var noteID sql.NullString
	if err := row.Scan(&item.ID, &item.Name, &noteID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return CustomDatabase{}, err
	}
	item.NoteID = fromNull(noteID)
	return item, nil
}

// ListColumns returns the columns of the given databases keyed by database id.
func (s *PostgresStore) ListColumns(ctx context.Context, databaseIDs []string) (map[string][]Column, error) {
	out := make(map[string][]Column, len(databaseIDs))
	if len(databaseIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, database_id, name, type, options, position, created_at
		FROM columns
		WHERE database_id = ANY($1)
		ORDER BY position, created_at
	`, databaseIDs)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		column, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out[column.DatabaseID] = append(out[column.DatabaseID], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertColumn(ctx context.Context, column Column) (Column, error) {
	options, err := marshalOptions(column.Options)
	if err != nil {
		return Column{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO columns (id, database_id, name, type, options, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, database_id, name, type, options, position, created_at
	`, util.NewID(), column.DatabaseID, column.Name, string(column.Type), options, column.Position)
	inserted, err := scanColumn(row)
	if err != nil {
		return Column{}, fmt.Errorf("insert column: %w", err)
	}
	return inserted, nil
}

// UpdateColumn returns sql.ErrNoRows when the column is not part of the database.
func (s *PostgresStore) UpdateColumn(ctx context.Context, column Column) (Column, error) {
	options, err := marshalOptions(column.Options)
	if err != nil {
		return Column{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE columns
		SET name=$3, type=$4, options=$5, position=$6
		WHERE id=$1 AND database_id=$2
		RETURNING id, database_id, name, type, options, position, created_at
	`, column.ID, column.DatabaseID, column.Name, string(column.Type), options, column.Position)
	return scanColumn(row)
}

func (s *PostgresStore) DeleteColumn(ctx context.Context, databaseID, columnID string) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM columns WHERE id=$1 AND database_id=$2`, columnID, "column", databaseID)
}

func marshalOptions(options []SelectOption) (any, error) {
	if options == nil {
		return nil, nil
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode column options: %w", err)
	}
	return string(raw), nil
}

func scanColumn(row rowScanner) (Column, error) {
	var column Column
	var columnType string
	var options []byte
	if err := row.Scan(&column.ID, &column.DatabaseID, &column.Name, &columnType, &options, &column.Position, &column.CreatedAt); err != nil {
		return Column{}, err
	}
	column.Type = ColumnType(columnType)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &column.Options); err != nil {
			return Column{}, fmt.Errorf("decode column options: %w", err)
		}
	}
	return column, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, databaseID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, database_id, data, created_at, updated_at
		FROM records
		WHERE database_id=$1
		ORDER BY created_at
	`, databaseID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertRecord(ctx context.Context, databaseID string, data map[string]json.RawMessage) (Record, error) {
	raw, err := marshalRecordData(data)
	if err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO records (id, database_id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id, database_id, data, created_at, updated_at
	`, util.NewID(), databaseID, raw)
	record, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}
	return record, nil
}

// UpdateRecord returns sql.ErrNoRows when the record is not part of the database.
func (s *PostgresStore) UpdateRecord(ctx context.Context, databaseID, recordID string, data map[string]json.RawMessage) (Record, error) {
	raw, err := marshalRecordData(data)
	if err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE records
		SET data=$3::jsonb, updated_at=NOW()
		WHERE id=$1 AND database_id=$2
		RETURNING id, database_id, data, created_at, updated_at
	`, recordID, databaseID, raw)
	return scanRecord(row)
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, databaseID, recordID string) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM records WHERE id=$1 AND database_id=$2`, recordID, "record", databaseID)
}

func marshalRecordData(data map[string]json.RawMessage) (string, error) {
	if data == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode record data: %w", err)
	}
	return string(raw), nil
}

func scanRecord(row rowScanner) (Record, error) {
	var record Record
	var data []byte
	if err := row.Scan(&record.ID, &record.DatabaseID, &data, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return Record{}, err
	}
	record.Data = map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &record.Data); err != nil {
			return Record{}, fmt.Errorf("decode record data: %w", err)
		}
	}
	return record, nil
}

func (s *PostgresStore) deleteRow(ctx context.Context, query, id, noun string, extra ...any) (bool, error) {
	args := append([]any{id}, extra...)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", noun, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s rows affected: %w", noun, err)
	}
	return affected > 0, nil
}

// SearchNotes runs a full-text query over titles and content, falling back to
// a title substring match when the text query yields nothing.
func (s *PostgresStore) SearchNotes(ctx context.Context, query string, limit int) ([]NoteSearchRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []NoteSearchRecord{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	items, err := s.searchNoteRows(ctx, `
		SELECT id, title, content, parent_id, updated_at
		FROM notes
		WHERE fts @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(fts, plainto_tsquery('simple', $1)) DESC, updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil || len(items) > 0 {
		return items, err
	}

	return s.searchNoteRows(ctx, `
		SELECT id, title, content, parent_id, updated_at
		FROM notes
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2
	`, query, limit)
}

// LoadAllNoteRecords returns every note in its search projection for reindexing.
func (s *PostgresStore) LoadAllNoteRecords(ctx context.Context) ([]NoteSearchRecord, error) {
	return s.searchNoteRows(ctx, `SELECT id, title, content, parent_id, updated_at FROM notes ORDER BY id`)
}

func (s *PostgresStore) searchNoteRows(ctx context.Context, query string, args ...any) ([]NoteSearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	items := make([]NoteSearchRecord, 0)
	for rows.Next() {
		var item NoteSearchRecord
		var parentID sql.NullString
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &parentID, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan search note: %w", err)
		}
		item.ParentID = fromNull(parentID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search notes: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
