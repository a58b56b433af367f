package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}

func (f *fixture) upload(t *testing.T, cookie *http.Cookie, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestUploadStoresWholeFile(t *testing.T) {
	f := newFixture(t)
	cookie := f.login(t)
	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{7}, 200)...)

	rr := f.upload(t, cookie, "my photo.png", "image/png", data)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var out uploadDTO
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &out); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if out.Filename != "my_photo.png" || out.ContentType != "image/png" || out.Size != int64(len(data)) {
		t.Fatalf("unexpected upload %+v", out)
	}
	stored, ok := f.files.uploaded[out.Key]
	if !ok {
		t.Fatalf("expected object stored under %s", out.Key)
	}
	if !bytes.Equal(stored, data) {
		t.Fatalf("stored %d bytes, want %d", len(stored), len(data))
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		status      int
		code        string
	}{
		{"too large", "big.png", "image/png", append(append([]byte{}, pngHeader...), make([]byte, 2048)...), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"signature mismatch", "fake.png", "image/png", []byte("GIF89a not a png"), http.StatusBadRequest, "FILE_TYPE_MISMATCH"},
		{"content type", "run.sh", "application/x-sh", []byte("#!/bin/sh"), http.StatusBadRequest, "INVALID_FILE_TYPE"},
		{"extension", "notes.exe", "text/plain", []byte("hello"), http.StatusBadRequest, "INVALID_EXTENSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cookie := f.login(t)

			rr := f.upload(t, cookie, tt.filename, tt.contentType, tt.data)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if got := errorCode(t, rr); got != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, got)
			}
			if len(f.files.uploaded) != 0 {
				t.Fatal("rejected upload reached storage")
			}
		})
	}
}

func TestUploadWithoutStorage(t *testing.T) {
	f := newFixture(t)
	cookie := f.login(t)
	f.files.enabled = false

	rr := f.upload(t, cookie, "a.png", "image/png", pngHeader)
	if rr.Code != http.StatusServiceUnavailable || errorCode(t, rr) != "STORAGE_UNAVAILABLE" {
		t.Fatalf("expected 503 STORAGE_UNAVAILABLE, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestFileURLAndDelete(t *testing.T) {
	f := newFixture(t)
	cookie := f.login(t)
	key := noteA + ".png"

	rr := f.do(t, http.MethodGet, "/api/files/"+key, nil, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &payload); err != nil {
		t.Fatalf("decode url: %v", err)
	}
	if payload.URL != "https://files.test/"+key+"?X-Amz-Expires=3600" {
		t.Fatalf("unexpected url %q", payload.URL)
	}

	rr = f.do(t, http.MethodDelete, "/api/files/"+key, nil, cookie)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(f.files.deleted) != 1 || f.files.deleted[0] != key {
		t.Fatalf("expected %s deleted, got %v", key, f.files.deleted)
	}

	for _, bad := range []string{"passwd", "evil..png", "NOT-A-UUID.png"} {
		rr = f.do(t, http.MethodGet, "/api/files/"+bad, nil, cookie)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, rr.Code)
		}
	}
}
