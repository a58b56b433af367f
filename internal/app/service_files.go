package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"notebox/api/internal/storage"
)

// UploadFile validates an attachment and stores it under a fresh key.
func (s *Service) UploadFile(ctx context.Context, filename, contentType string, size int64, body io.Reader) (storage.Upload, error) {
	if !s.files.Enabled() {
		return storage.Upload{}, storage.ErrNotConfigured
	}

	head := make([]byte, storage.SniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return storage.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	upload, err := storage.CheckUpload(filename, contentType, size, head)
	if err != nil {
		return storage.Upload{}, err
	}
	if err := s.files.Upload(ctx, upload.Key, upload.ContentType, io.MultiReader(bytes.NewReader(head), body), size); err != nil {
		return storage.Upload{}, err
	}
	return upload, nil
}

func (s *Service) FileURL(ctx context.Context, key string) (string, error) {
	if !storage.ValidKey(key) {
		return "", storage.ErrInvalidKey
	}
	return s.files.PresignedURL(ctx, key)
}

func (s *Service) DeleteFile(ctx context.Context, key string) error {
	if !storage.ValidKey(key) {
		return storage.ErrInvalidKey
	}
	return s.files.Delete(ctx, key)
}
