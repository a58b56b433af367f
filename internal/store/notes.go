package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"notebox/api/internal/util"
)

// treeLockKey is the advisory lock every structural tree transaction holds.
const treeLockKey int64 = 0x6e6f746574726565

// ErrConflict reports a serialization failure. The transaction was rolled back
// and may be retried by the caller.
var ErrConflict = errors.New("concurrent tree modification")

const noteColumns = `id, title, content, parent_id, icon, backdrop_type, backdrop_value, backdrop_position_y, created_at, updated_at`

// NoteRepo reads and writes note rows through either the pool or a transaction.
type NoteRepo struct {
	q queryer
}

// Notes returns a repository bound to the connection pool.
func (s *PostgresStore) Notes() *NoteRepo {
	return &NoteRepo{q: s.db}
}

// WithNoteTx runs fn in a transaction holding the tree advisory lock. The
// isolation level is read committed so every statement after the lock sees
// the commits of the writer that held it before. It commits when fn returns
// nil and rolls back on error or panic.
func (s *PostgresStore) WithNoteTx(ctx context.Context, fn func(*NoteRepo) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tree tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			err = classifyTxError(err)
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, treeLockKey); err != nil {
		return fmt.Errorf("lock tree: %w", err)
	}
	if err = fn(&NoteRepo{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tree tx: %w", err)
	}
	return nil
}

func classifyTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (r *NoteRepo) FindByID(ctx context.Context, id string) (*Note, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}
	return &note, nil
}

func (r *NoteRepo) FindByParentID(ctx context.Context, parentID *string) ([]Note, error) {
	if parentID == nil {
		return r.list(ctx, `SELECT `+noteColumns+` FROM notes WHERE parent_id IS NULL ORDER BY created_at, id`)
	}
	return r.list(ctx, `SELECT `+noteColumns+` FROM notes WHERE parent_id=$1 ORDER BY created_at, id`, *parentID)
}

func (r *NoteRepo) Insert(ctx context.Context, fields NoteFields) (Note, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO notes (id, title, content, parent_id, icon, backdrop_type, backdrop_value, backdrop_position_y)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+noteColumns,
		util.NewID(), fields.Title, fields.Content, nullable(fields.ParentID),
		nullable(fields.Icon), nullable(fields.BackdropType), nullable(fields.BackdropValue), fields.BackdropPositionY,
	)
	note, err := scanNote(row)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

func (r *NoteRepo) UpdateFields(ctx context.Context, id string, fields NoteFields) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE notes
		SET title=$2, content=$3, parent_id=$4, icon=$5, backdrop_type=$6, backdrop_value=$7,
		    backdrop_position_y=$8, updated_at=NOW()
		WHERE id=$1
	`, id, fields.Title, fields.Content, nullable(fields.ParentID),
		nullable(fields.Icon), nullable(fields.BackdropType), nullable(fields.BackdropValue), fields.BackdropPositionY)
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update note rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *NoteRepo) UpdateParent(ctx context.Context, id string, parentID *string) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE notes SET parent_id=$2, updated_at=NOW() WHERE id=$1`, id, nullable(parentID)); err != nil {
		return fmt.Errorf("update note parent: %w", err)
	}
	return nil
}

func (r *NoteRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (r *NoteRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM notes WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	return nil
}

// ListNotes returns every note, oldest first.
func (s *PostgresStore) ListNotes(ctx context.Context) ([]Note, error) {
	return s.Notes().list(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at, id`)
}

func (s *PostgresStore) ListRootNotes(ctx context.Context) ([]Note, error) {
	return s.Notes().FindByParentID(ctx, nil)
}

func (r *NoteRepo) list(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func scanNote(row rowScanner) (Note, error) {
	var (
		note          Note
		parentID      sql.NullString
		icon          sql.NullString
		backdropType  sql.NullString
		backdropValue sql.NullString
	)
	err := row.Scan(
		&note.ID, &note.Title, &note.Content, &parentID, &icon, &backdropType, &backdropValue,
		&note.BackdropPositionY, &note.CreatedAt, &note.UpdatedAt,
	)
	if err != nil {
		return Note{}, err
	}
	note.ParentID = fromNull(parentID)
	note.Icon = fromNull(icon)
	note.BackdropType = fromNull(backdropType)
	note.BackdropValue = fromNull(backdropValue)
	return note, nil
}

func nullable(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNull(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}
