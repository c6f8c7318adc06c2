package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/addrclean/internal/store"
)

const (
	// APIKeyPrefix starts every issued key.
	APIKeyPrefix = "sdc_"

	apiKeyRandomLen  = 32
	apiKeyDisplayLen = 8
	apiKeyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// Permissions a key may carry.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

var defaultPermissions = []string{PermissionRead, PermissionWrite}

// CreatedAPIKey is returned once, on creation. Key is the only copy of the
// secret.
type CreatedAPIKey struct {
	store.APIKey
	Key string `json:"key"`
}

// CreateAPIKeyRequest describes a key to issue.
type CreateAPIKeyRequest struct {
	UserID      int64
	Name        string
	Permissions []string
	ExpiresAt   *time.Time
}

// CreateAPIKey issues a new key for the caller.
func (s *Service) CreateAPIKey(ctx context.Context, req CreateAPIKeyRequest) (CreatedAPIKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return CreatedAPIKey{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	perms := req.Permissions
	if len(perms) == 0 {
		perms = defaultPermissions
	}
	for _, p := range perms {
		if p != PermissionRead && p != PermissionWrite && p != PermissionAdmin {
			return CreatedAPIKey{}, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, p)
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return CreatedAPIKey{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}

	key, err := generateAPIKey()
	if err != nil {
		return CreatedAPIKey{}, err
	}

	k, err := s.repo.CreateAPIKey(ctx, store.NewAPIKey{
		UserID:      req.UserID,
		Name:        name,
		KeyHash:     hashAPIKey(key),
		KeyPrefix:   key[:apiKeyDisplayLen],
		Permissions: slices.Compact(slices.Sorted(slices.Values(perms))),
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return CreatedAPIKey{}, fmt.Errorf("create api key: %w", err)
	}

	s.audit(ctx, AuditLogParams{
		UserID:     req.UserID,
		Action:     ActionCreate,
		EntityType: EntityAPIKey,
		EntityID:   k.ID,
		NewValue:   map[string]any{"name": name},
	})
	return CreatedAPIKey{APIKey: k, Key: key}, nil
}

// APIKeys lists the caller's keys. Secrets are never returned.
func (s *Service) APIKeys(ctx context.Context, userID int64) ([]store.APIKey, error) {
	return s.repo.ListAPIKeys(ctx, userID)
}

// RevokeAPIKey deactivates one of the caller's keys.
func (s *Service) RevokeAPIKey(ctx context.Context, userID, keyID int64) error {
	err := s.repo.DeactivateAPIKey(ctx, keyID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAPIKeyNotFound
	}
	if err != nil {
		return err
	}

	s.audit(ctx, AuditLogParams{
		UserID:     userID,
		Action:     ActionRevoke,
		EntityType: EntityAPIKey,
		EntityID:   keyID,
	})
	return nil
}

// AuthenticateAPIKey resolves an issued key. Unknown, revoked and expired
// keys all return ErrUnauthorized.
func (s *Service) AuthenticateAPIKey(ctx context.Context, key string) (store.APIKey, error) {
	if !strings.HasPrefix(key, APIKeyPrefix) || len(key) != len(APIKeyPrefix)+apiKeyRandomLen {
		return store.APIKey{}, ErrUnauthorized
	}

	candidates, err := s.repo.GetAPIKeysByPrefix(ctx, key[:apiKeyDisplayLen])
	if err != nil {
		return store.APIKey{}, fmt.Errorf("authenticate api key: %w", err)
	}

	hash := []byte(hashAPIKey(key))
	now := s.now()
	for _, k := range candidates {
		if subtle.ConstantTimeCompare(hash, []byte(k.KeyHash)) != 1 {
			continue
		}
		if !k.IsActive || (k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)) {
			return store.APIKey{}, ErrUnauthorized
		}
		if err := s.repo.TouchAPIKey(ctx, k.ID, now); err != nil {
			s.logger.Warn("failed to record api key use", "key_id", k.ID, "error", err)
		}
		return k, nil
	}
	return store.APIKey{}, ErrUnauthorized
}

func generateAPIKey() (string, error) {
	buf := make([]byte, apiKeyRandomLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	var b strings.Builder
	b.Grow(len(APIKeyPrefix) + apiKeyRandomLen)
	b.WriteString(APIKeyPrefix)
	for _, c := range buf {
		b.WriteByte(apiKeyAlphabet[c&63])
	}
	return b.String(), nil
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
