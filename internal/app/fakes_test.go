package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"notebox/api/internal/auth"
	"notebox/api/internal/config"
	"notebox/api/internal/export"
	"notebox/api/internal/notetree"
	"notebox/api/internal/search"
	"notebox/api/internal/session"
	"notebox/api/internal/store"
)

const (
	noteA      = "11111111-1111-4111-8111-111111111111"
	noteB      = "22222222-2222-4222-8222-222222222222"
	noteC      = "33333333-3333-4333-8333-333333333333"
	dbID       = "44444444-4444-4444-8444-444444444444"
	colID      = "55555555-5555-4555-8555-555555555555"
	recID      = "66666666-6666-4666-8666-666666666666"
	demoUserID = "77777777-7777-4777-8777-777777777777"
)

type fakeTree struct {
	createFn       func(context.Context, store.NoteFields) (store.Note, error)
	updateFn       func(context.Context, string, store.NoteFields) (store.Note, error)
	moveFn         func(context.Context, string, *string) (store.Note, error)
	deleteFn       func(context.Context, string, bool) (notetree.Deletion, error)
	getFn          func(context.Context, string) (store.Note, error)
	childrenFn     func(context.Context, *string) ([]store.Note, error)
	ancestorPathFn func(context.Context, string) ([]store.Note, error)
}

func (f *fakeTree) MaxDepth() int { return notetree.DefaultMaxDepth }

func (f *fakeTree) Create(ctx context.Context, fields store.NoteFields) (store.Note, error) {
	if f.createFn != nil {
		return f.createFn(ctx, fields)
	}
	return store.Note{ID: noteA, Title: fields.Title, ParentID: fields.ParentID}, nil
}

func (f *fakeTree) Update(ctx context.Context, id string, fields store.NoteFields) (store.Note, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, fields)
	}
	return store.Note{ID: id, Title: fields.Title, ParentID: fields.ParentID}, nil
}

func (f *fakeTree) Move(ctx context.Context, id string, parentID *string) (store.Note, error) {
	if f.moveFn != nil {
		return f.moveFn(ctx, id, parentID)
	}
	return store.Note{ID: id, ParentID: parentID}, nil
}

func (f *fakeTree) Delete(ctx context.Context, id string, cascade bool) (notetree.Deletion, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, cascade)
	}
	return notetree.Deletion{Removed: []string{id}}, nil
}

func (f *fakeTree) Get(ctx context.Context, id string) (store.Note, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return store.Note{ID: id}, nil
}

func (f *fakeTree) Children(ctx context.Context, parentID *string) ([]store.Note, error) {
	if f.childrenFn != nil {
		return f.childrenFn(ctx, parentID)
	}
	return nil, nil
}

func (f *fakeTree) AncestorPath(ctx context.Context, id string) ([]store.Note, error) {
	if f.ancestorPathFn != nil {
		return f.ancestorPathFn(ctx, id)
	}
	return nil, nil
}

type fakeStore struct {
	pingFn           func(context.Context) error
	listNotesFn      func(context.Context) ([]store.Note, error)
	getDatabaseFn    func(context.Context, string) (store.CustomDatabase, error)
	insertDatabaseFn func(context.Context, string, *string) (store.CustomDatabase, error)
	deleteDatabaseFn func(context.Context, string) (bool, error)
	listColumnsFn    func(context.Context, []string) (map[string][]store.Column, error)
	insertColumnFn   func(context.Context, store.Column) (store.Column, error)
	updateColumnFn   func(context.Context, store.Column) (store.Column, error)
	insertRecordFn   func(context.Context, string, map[string]json.RawMessage) (store.Record, error)
	updateRecordFn   func(context.Context, string, string, map[string]json.RawMessage) (store.Record, error)
	deleteRecordFn   func(context.Context, string, string) (bool, error)
	users            map[string]store.User
}

func (f *fakeStore) ListNotes(ctx context.Context) ([]store.Note, error) {
	if f.listNotesFn != nil {
		return f.listNotesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) ListRootNotes(context.Context) ([]store.Note, error) { return nil, nil }
func (f *fakeStore) EnsureUserByEmail(_ context.Context, email, name string) (store.User, error) {
	if f.users == nil {
		f.users = map[string]store.User{}
	}
	user := store.User{ID: demoUserID, Email: email, Name: name}
	f.users[user.ID] = user
	return user, nil
}
func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}
func (f *fakeStore) ListDatabases(context.Context) ([]store.CustomDatabase, error) { return nil, nil }
func (f *fakeStore) GetDatabase(ctx context.Context, id string) (store.CustomDatabase, error) {
	if f.getDatabaseFn != nil {
		return f.getDatabaseFn(ctx, id)
	}
	return store.CustomDatabase{ID: id, Name: "Tasks"}, nil
}
func (f *fakeStore) InsertDatabase(ctx context.Context, name string, noteID *string) (store.CustomDatabase, error) {
	if f.insertDatabaseFn != nil {
		return f.insertDatabaseFn(ctx, name, noteID)
	}
	return store.CustomDatabase{ID: dbID, Name: name, NoteID: noteID}, nil
}
func (f *fakeStore) UpdateDatabase(_ context.Context, id, name string, noteID *string) (store.CustomDatabase, error) {
	return store.CustomDatabase{ID: id, Name: name, NoteID: noteID}, nil
}
func (f *fakeStore) DeleteDatabase(ctx context.Context, id string) (bool, error) {
	if f.deleteDatabaseFn != nil {
		return f.deleteDatabaseFn(ctx, id)
	}
	return true, nil
}
func (f *fakeStore) ListColumns(ctx context.Context, ids []string) (map[string][]store.Column, error) {
	if f.listColumnsFn != nil {
		return f.listColumnsFn(ctx, ids)
	}
	return map[string][]store.Column{}, nil
}
func (f *fakeStore) InsertColumn(ctx context.Context, column store.Column) (store.Column, error) {
	if f.insertColumnFn != nil {
		return f.insertColumnFn(ctx, column)
	}
	column.ID = colID
	return column, nil
}
func (f *fakeStore) UpdateColumn(ctx context.Context, column store.Column) (store.Column, error) {
	if f.updateColumnFn != nil {
		return f.updateColumnFn(ctx, column)
	}
	return column, nil
}
func (f *fakeStore) DeleteColumn(context.Context, string, string) (bool, error)  { return true, nil }
func (f *fakeStore) ListRecords(context.Context, string) ([]store.Record, error) { return nil, nil }
func (f *fakeStore) InsertRecord(ctx context.Context, databaseID string, data map[string]json.RawMessage) (store.Record, error) {
	if f.insertRecordFn != nil {
		return f.insertRecordFn(ctx, databaseID, data)
	}
	return store.Record{ID: recID, DatabaseID: databaseID, Data: data}, nil
}
func (f *fakeStore) UpdateRecord(ctx context.Context, databaseID, recordID string, data map[string]json.RawMessage) (store.Record, error) {
	if f.updateRecordFn != nil {
		return f.updateRecordFn(ctx, databaseID, recordID, data)
	}
	return store.Record{ID: recordID, DatabaseID: databaseID, Data: data}, nil
}
func (f *fakeStore) DeleteRecord(ctx context.Context, databaseID, recordID string) (bool, error) {
	if f.deleteRecordFn != nil {
		return f.deleteRecordFn(ctx, databaseID, recordID)
	}
	return true, nil
}
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeSearch struct {
	indexed []store.Note
	deleted []string
	queries []search.Query
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.queries = append(f.queries, q)
	return search.Response{Results: []search.Result{}, Query: q.Text}
}
func (f *fakeSearch) IndexNote(note store.Note) { f.indexed = append(f.indexed, note) }
func (f *fakeSearch) DeleteNotes(ids []string)  { f.deleted = append(f.deleted, ids...) }

type fakeFiles struct {
	enabled  bool
	uploaded map[string][]byte
	deleted  []string
}

func (f *fakeFiles) Enabled() bool { return f.enabled }
func (f *fakeFiles) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[key] = data
	return nil
}
func (f *fakeFiles) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key + "?X-Amz-Expires=3600", nil
}
func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeExporter struct {
	exportFn func(context.Context, export.Request) (*export.Result, error)
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return f.exportFn(ctx, req)
}

type fixture struct {
	tree     *fakeTree
	store    *fakeStore
	search   *fakeSearch
	files    *fakeFiles
	exporter *fakeExporter
	redis    *miniredis.Miniredis
	service  *Service
	server   *HTTPServer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions, err := session.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	f := &fixture{
		tree:     &fakeTree{},
		store:    &fakeStore{},
		search:   &fakeSearch{},
		files:    &fakeFiles{enabled: true},
		exporter: &fakeExporter{},
		redis:    mr,
	}
	f.service = &Service{
		cfg: config.Config{
			DemoMode:       true,
			SessionSecret:  "test-secret",
			SessionTTL:     time.Hour,
			MaxUploadBytes: 1024,
		},
		tree:     f.tree,
		store:    f.store,
		sessions: sessions,
		search:   f.search,
		files:    f.files,
		exporter: f.exporter,
		secret:   []byte("test-secret"),
		now:      time.Now,
	}
	f.server = NewHTTPServer(f.service, "http://localhost:5173")
	return f
}

// login runs the demo login and returns the session cookie.
func (f *fixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/auth/demo", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("demo login status = %d body=%s", rr.Code, rr.Body.String())
	}
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			return cookie
		}
	}
	t.Fatal("demo login did not set a session cookie")
	return nil
}

func (f *fixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return env
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rr)
	if env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
	return env.Error.Code
}

func ptr(s string) *string { return &s }
