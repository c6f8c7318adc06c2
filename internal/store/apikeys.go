package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, permissions,
	last_used_at, expires_at, is_active, created_at`

func scanAPIKey(row pgx.Row) (APIKey, error) {
	var k APIKey
	err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Permissions,
		&k.LastUsedAt, &k.ExpiresAt, &k.IsActive, &k.CreatedAt,
	)
	return k, err
}

func collectAPIKeys(rows pgx.Rows, err error) ([]APIKey, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CreateAPIKey stores a new active key.
func (s *Store) CreateAPIKey(ctx context.Context, nk NewAPIKey) (APIKey, error) {
	if nk.Permissions == nil {
		nk.Permissions = []string{}
	}
	k, err := scanAPIKey(s.db.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, name, key_hash, key_prefix, permissions, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+apiKeyColumns,
		nk.UserID, nk.Name, nk.KeyHash, nk.KeyPrefix, nk.Permissions, nk.ExpiresAt,
	))
	if err != nil {
		return APIKey{}, fmt.Errorf("create api key: %w", mapError(err))
	}
	return k, nil
}

// ListAPIKeys returns a user's keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, userID int64) ([]APIKey, error) {
	keys, err := collectAPIKeys(s.db.Query(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID))
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// GetAPIKeysByPrefix returns the active keys sharing a display prefix.
// Prefixes are short, so the caller compares hashes to pick the match.
func (s *Store) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]APIKey, error) {
	keys, err := collectAPIKeys(s.db.Query(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE key_prefix = $1 AND is_active`, prefix))
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return keys, nil
}

// DeactivateAPIKey revokes a key owned by userID.
func (s *Store) DeactivateAPIKey(ctx context.Context, id, userID int64) error {
	err := expectOne(s.db.Exec(ctx,
		`UPDATE api_keys SET is_active = false WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return fmt.Errorf("revoke api key %d: %w", id, err)
	}
	return nil
}

// TouchAPIKey records the time a key was last used.
func (s *Store) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch api key %d: %w", id, err)
	}
	return nil
}
