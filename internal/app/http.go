package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"notebox/api/internal/auth"
	"notebox/api/internal/export"
	"notebox/api/internal/notetree"
	"notebox/api/internal/session"
	"notebox/api/internal/storage"
	"notebox/api/internal/store"
)

const (
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/config" {
		writeData(w, http.StatusOK, s.service.PublicConfig())
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/demo" {
		user, cookieValue, err := s.service.DemoLogin(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.setSessionCookie(w, cookieValue, s.service.SessionTTL())
		writeData(w, http.StatusOK, toUserDTO(user))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		current, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		user, err := s.service.CurrentUser(r.Context(), current)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toUserDTO(user))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		if cookie, err := r.Cookie(auth.CookieName); err == nil {
			if err := s.service.Logout(r.Context(), cookie.Value); err != nil {
				log.Printf("logout: %v", err)
			}
		}
		s.setSessionCookie(w, "", 0)
		writeData(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
		return
	}

	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" {
		switch parts[1] {
		case "notes":
			s.handleNotes(w, r, parts[2:])
			return
		case "databases":
			s.handleDatabases(w, r, parts[2:])
			return
		case "files":
			s.handleFiles(w, r, parts[2:])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, ping := range map[string]func(context.Context) error{
		"database": s.service.Ping,
		"sessions": s.service.PingSessions,
	} {
		if err := ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
		return
	}
	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "offset must be an integer", nil)
		return
	}

	payload, err := s.service.Search(r.Context(), query.Get("q"), strings.TrimSpace(query.Get("parentId")), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payload)
}

// handleNotes serves /api/notes and everything below it. parts is the path
// after "/api/notes".
func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		notes, err := s.service.ListNotes(ctx)
		s.respondNotes(w, r, notes, err)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body NoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.CreateNote(ctx, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, toNoteDTO(note))

	case len(parts) == 1 && parts[0] == "root" && r.Method == http.MethodGet:
		notes, err := s.service.RootNotes(ctx)
		s.respondNotes(w, r, notes, err)

	case len(parts) == 1 && r.Method == http.MethodGet:
		note, err := s.service.GetNote(ctx, parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toNoteDTO(note))

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body NoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.UpdateNote(ctx, parts[0], body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toNoteDTO(note))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		cascade, ok := deleteMode(r.URL.Query().Get("action"))
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "action must be cascade or orphan", nil)
			return
		}
		if err := s.service.DeleteNote(ctx, parts[0], cascade); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "children" && r.Method == http.MethodGet:
		notes, err := s.service.NoteChildren(ctx, parts[0])
		s.respondNotes(w, r, notes, err)

	case len(parts) == 2 && parts[1] == "path" && r.Method == http.MethodGet:
		notes, err := s.service.NotePath(ctx, parts[0])
		s.respondNotes(w, r, notes, err)

	case len(parts) == 2 && parts[1] == "move" && r.Method == http.MethodPut:
		var body struct {
			ParentID *string `json:"parentId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.MoveNote(ctx, parts[0], body.ParentID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toNoteDTO(note))

	case len(parts) == 2 && parts[1] == "export" && r.Method == http.MethodGet:
		result, err := s.service.ExportNote(ctx, parts[0], r.URL.Query().Get("format"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) respondNotes(w http.ResponseWriter, r *http.Request, notes []store.Note, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toNoteDTOs(notes))
}

// deleteMode parses ?action=. Cascade is the default.
func deleteMode(action string) (cascade bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "", "cascade":
		return true, true
	case "orphan":
		return false, true
	default:
		return false, false
	}
}

// handleDatabases serves /api/databases. parts is the path after it.
func (s *HTTPServer) handleDatabases(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		views, err := s.service.ListDatabases(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out := make([]databaseDTO, 0, len(views))
		for _, view := range views {
			out = append(out, toDatabaseDTO(view))
		}
		writeData(w, http.StatusOK, out)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body DatabaseInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreateDatabase(ctx, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, toDatabaseDTO(view))

	case len(parts) == 1 && r.Method == http.MethodGet:
		view, err := s.service.GetDatabase(ctx, parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toDatabaseDTO(view))

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body DatabaseInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.UpdateDatabase(ctx, parts[0], body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toDatabaseDTO(view))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteDatabase(ctx, parts[0]); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) >= 2 && parts[1] == "columns":
		s.handleColumns(w, r, parts[0], parts[2:])

	case len(parts) >= 2 && parts[1] == "records":
		s.handleRecords(w, r, parts[0], parts[2:])

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleColumns(w http.ResponseWriter, r *http.Request, databaseID string, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body ColumnInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		column, err := s.service.AddColumn(ctx, databaseID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, toColumnDTO(column))

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body ColumnInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		column, err := s.service.UpdateColumn(ctx, databaseID, parts[0], body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toColumnDTO(column))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteColumn(ctx, databaseID, parts[0]); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleRecords(w http.ResponseWriter, r *http.Request, databaseID string, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		records, err := s.service.ListRecords(ctx, databaseID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out := make([]recordDTO, 0, len(records))
		for _, record := range records {
			out = append(out, toRecordDTO(record))
		}
		writeData(w, http.StatusOK, out)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body RecordInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		record, err := s.service.CreateRecord(ctx, databaseID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, toRecordDTO(record))

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body RecordInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		record, err := s.service.UpdateRecord(ctx, databaseID, parts[0], body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toRecordDTO(record))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteRecord(ctx, databaseID, parts[0]); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && parts[0] == "upload" && r.Method == http.MethodPost:
		s.handleUpload(w, r)

	case len(parts) == 1 && r.Method == http.MethodGet:
		url, err := s.service.FileURL(r.Context(), parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"url": url})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteFile(r.Context(), parts[0]); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.service.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File size exceeds maximum allowed limit", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FILE", "Expected a multipart form with a file field", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILE", "file is required", nil)
		return
	}
	defer file.Close()

	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File size exceeds maximum allowed limit", nil)
		return
	}

	upload, err := s.service.UploadFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toUploadDTO(upload))
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated", nil)
		return Session{}, false
	}
	current, err := s.service.SessionFromCookie(r.Context(), cookie.Value)
	if err != nil {
		s.fail(w, r, err)
		return Session{}, false
	}
	return current, true
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.service.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
		cookie.Expires = time.Now().Add(ttl)
	} else {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}

// fail maps err to a response. Unexpected errors are logged.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, map[string]any{"data": nil, "error": body})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var notFoundErr *notetree.NotFoundError
	if errors.As(err, &notFoundErr) {
		if notFoundErr.Entity == notetree.EntityParent {
			return http.StatusBadRequest, "PARENT_NOT_FOUND", "Parent note not found", nil
		}
		return http.StatusNotFound, "NOT_FOUND", "Note not found", nil
	}
	var depthErr *notetree.DepthExceededError
	if errors.As(err, &depthErr) {
		return http.StatusBadRequest, "DEPTH_EXCEEDED", fmt.Sprintf("Maximum nesting depth of %d exceeded", depthErr.MaxDepth), map[string]any{"maxDepth": depthErr.MaxDepth}
	}

	switch {
	case errors.Is(err, notetree.ErrSelfParent):
		return http.StatusBadRequest, "SELF_PARENT", "A note cannot be its own parent", nil
	case errors.Is(err, notetree.ErrCycle):
		return http.StatusBadRequest, "CIRCULAR_REFERENCE", "Cannot move a note into its own subtree", nil
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "CONFLICT", "The notes were modified concurrently, retry the request", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "INVALID_FORMAT", "format must be pdf, docx or html", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not available on this server", nil
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil
	case errors.Is(err, storage.ErrEmptyFile):
		return http.StatusBadRequest, "INVALID_FILE", "File is empty", nil
	case errors.Is(err, storage.ErrFileType):
		return http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed", nil
	case errors.Is(err, storage.ErrExtension):
		return http.StatusBadRequest, "INVALID_EXTENSION", "File extension not allowed", nil
	case errors.Is(err, storage.ErrTypeMismatch):
		return http.StatusBadRequest, "FILE_TYPE_MISMATCH", "File content doesn't match extension", nil
	case errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest, "INVALID_KEY", "Invalid file key format", nil
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
