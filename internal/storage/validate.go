package storage

import (
	"bytes"
	"errors"
	"path"
	"regexp"
	"strings"

	"notebox/api/internal/util"
)

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrFileType      = errors.New("file type not allowed")
	ErrExtension     = errors.New("file extension not allowed")
	ErrTypeMismatch  = errors.New("file content does not match extension")
	ErrInvalidKey    = errors.New("invalid file key format")
	ErrNotConfigured = errors.New("file storage is not configured")
)

var allowedContentTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/jpg":          {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"application/pdf":    {},
	"text/plain":         {},
	"text/markdown":      {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
}

var allowedExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"pdf": {}, "txt": {}, "md": {}, "docx": {}, "xlsx": {},
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	keyPattern          = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.[a-z]{2,5}$`)
)

// SniffLen is how many leading bytes CheckUpload needs to verify a signature.
const SniffLen = 12

// Upload describes a validated file ready to be stored.
type Upload struct {
	FileID      string
	Key         string
	Filename    string
	Extension   string
	ContentType string
	Size        int64
}

// SanitizeFilename replaces anything outside [a-zA-Z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "unknown"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// CheckUpload validates an incoming file by content type, extension and the
// first SniffLen bytes of its body, and assigns it a fresh <uuid>.<ext> key.
func CheckUpload(filename, contentType string, size int64, head []byte) (Upload, error) {
	if size <= 0 {
		return Upload{}, ErrEmptyFile
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if _, ok := allowedContentTypes[contentType]; !ok {
		return Upload{}, ErrFileType
	}

	safeName := SanitizeFilename(filename)
	ext := ""
	if dot := strings.LastIndex(safeName, "."); dot >= 0 {
		ext = strings.ToLower(safeName[dot+1:])
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return Upload{}, ErrExtension
	}
	if !matchesSignature(head, ext) {
		return Upload{}, ErrTypeMismatch
	}

	fileID := util.NewID()
	return Upload{
		FileID:      fileID,
		Key:         fileID + "." + ext,
		Filename:    safeName,
		Extension:   ext,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// ValidKey reports whether key has the <uuid>.<ext> shape issued by CheckUpload.
func ValidKey(key string) bool {
	if strings.Contains(key, "..") || strings.ContainsAny(key, "/\\") {
		return false
	}
	return keyPattern.MatchString(key)
}

func matchesSignature(head []byte, ext string) bool {
	if len(head) < 2 {
		return false
	}
	switch ext {
	case "jpg", "jpeg":
		return bytes.HasPrefix(head, []byte{0xFF, 0xD8})
	case "png":
		return bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G'})
	case "gif":
		return bytes.HasPrefix(head, []byte("GIF"))
	case "pdf":
		return bytes.HasPrefix(head, []byte("%PDF"))
	case "webp":
		return len(head) >= 12 && bytes.HasPrefix(head, []byte("RIFF")) && string(head[8:12]) == "WEBP"
	default:
		// text and office formats rely on the content type check
		return true
	}
}
