// Package auth authenticates message-source clients of the filter service
// with HMAC-hashed API keys.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const clientKey = contextKey("client")

// Client identifies the caller of an authenticated request.
type Client struct {
	KeyID string
	Name  string
}

// Queries is the storage the authenticator needs. Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator checks API keys against the api_keys table.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator for the given secret_id -> secret map.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{secrets: secrets, queries: queries, now: time.Now}
}

// Authenticate validates apiKey and returns the client it belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (Client, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return Client{}, err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return Client{}, ErrUnknownKey
	}

	var row struct {
		APIKeyID   string         `db:"api_key_id"`
		ClientName string         `db:"client_name"`
		RevokedAt  sql.NullString `db:"revoked_at"`
		LastUsedAt sql.NullString `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &row, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrInvalidKey
	}
	if err != nil {
		return Client{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if row.RevokedAt.Valid {
		return Client{}, ErrKeyRevoked
	}

	// Writes are throttled to one per minute per key.
	now := a.now().UTC()
	if shouldUpdateLastUsed(row.LastUsedAt, now) {
		_, _ = a.queries.Exec(ctx, "update-last-used", now.Format(time.RFC3339), row.APIKeyID)
	}

	return Client{KeyID: row.APIKeyID, Name: row.ClientName}, nil
}

func shouldUpdateLastUsed(lastUsed sql.NullString, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	t, err := time.Parse(time.RFC3339, lastUsed.String)
	if err != nil {
		return true
	}
	return now.Sub(t) > time.Minute
}

// UnaryInterceptor authenticates every unary call except health checks.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		keys := md.Get("x-api-key")
		if len(keys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		client, err := a.Authenticate(ctx, keys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStorage):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(context.WithValue(ctx, clientKey, client), req)
	}
}

// ClientFromContext returns the authenticated client, if any.
func ClientFromContext(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(clientKey).(Client)
	return c, ok
}

// WithClient returns ctx carrying c. Used by tests and in-process callers.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}
