package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KeyQueries is the storage used for key management. Implemented by *db.Queries.
type KeyQueries interface {
	Queries
	Select(ctx context.Context, name string, dest interface{}, args ...interface{}) error
}

// KeyInfo describes a stored key. The key itself is never stored.
type KeyInfo struct {
	ID         string         `db:"api_key_id"`
	ClientName string         `db:"client_name"`
	SecretID   string         `db:"secret_id"`
	CreatedAt  string         `db:"created_at"`
	RevokedAt  sql.NullString `db:"revoked_at"`
	LastUsedAt sql.NullString `db:"last_used_at"`
}

// Revoked reports whether the key has been revoked.
func (k KeyInfo) Revoked() bool { return k.RevokedAt.Valid }

// CreateKey generates a key for clientName under secretID and stores its
// HMAC. The returned plaintext key is shown once and cannot be recovered.
func CreateKey(ctx context.Context, q KeyQueries, clientName, secretID string, secret []byte) (string, KeyInfo, error) {
	if clientName == "" {
		return "", KeyInfo{}, fmt.Errorf("client name is required")
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return "", KeyInfo{}, err
	}

	info := KeyInfo{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ClientName: clientName,
		SecretID:   secretID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	_, err = q.Exec(ctx, "insert-api-key", info.ID, info.ClientName, info.SecretID, ComputeHMAC(secret, key), info.CreatedAt)
	if err != nil {
		return "", KeyInfo{}, fmt.Errorf("failed to store API key: %w", err)
	}
	return key, info, nil
}

// ListKeys returns all stored keys in creation order.
func ListKeys(ctx context.Context, q KeyQueries) ([]KeyInfo, error) {
	var keys []KeyInfo
	if err := q.Select(ctx, "list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	return keys, nil
}

// RevokeKey marks a key revoked. Returns ErrKeyNotFound when no active key
// has that ID.
func RevokeKey(ctx context.Context, q KeyQueries, id string) error {
	res, err := q.Exec(ctx, "revoke-api-key", time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return nil
}
