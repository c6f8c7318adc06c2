// Package storage keeps uploaded source files and generated exports.
//
// Two backends exist: Local writes beneath a directory on disk and Azure
// writes to a blob container. Both hand out URLs of the form
// /api/files/<key>; downloads are streamed back through the API.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/addrclean/internal/config"
)

// URLPrefix is prepended to keys to form download URLs.
const URLPrefix = "/api/files/"

// Store is implemented by every storage backend.
type Store interface {
	// Put streams r to key and returns the download URL.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Get returns a stream for the object at key. The caller must close it.
	// Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates the backend selected by cfg.Backend. The Azure container is
// created here, so ctx should carry a startup deadline.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocal(cfg.LocalDir)
	case "azure":
		a, err := NewAzure(cfg.ConnectionString, cfg.Container, logger)
		if err != nil {
			return nil, err
		}
		if err := a.Init(ctx); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

// URL returns the download URL for key.
func URL(key string) string {
	return URLPrefix + key
}

// KeyFromURL reverses URL. It reports false for URLs not produced by URL.
func KeyFromURL(u string) (string, bool) {
	key, ok := strings.CutPrefix(u, URLPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// UploadKey names an uploaded source file.
func UploadKey(userID int64, fileName string) string {
	return fmt.Sprintf("uploads/%d/%s-%s", userID, uuid.NewString(), safeName(fileName))
}

// ExportKey names a generated export of the batch uploaded as fileName.
func ExportKey(userID int64, fileName, ext string, at time.Time) string {
	base := strings.TrimSuffix(safeName(fileName), path.Ext(fileName))
	if base == "" {
		base = "batch"
	}
	return fmt.Sprintf("exports/%d/export-%s-%d%s", userID, base, at.Unix(), ext)
}

// safeName strips directory components and characters that do not belong
// in an object key.
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
