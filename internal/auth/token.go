package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/store"
)

// ErrUnauthorized is returned when a request carries no usable credential.
var ErrUnauthorized = errors.New("unauthorized")

// tokenPrefix makes issued tokens recognizable in logs and secret scanners.
const tokenPrefix = "bst_"

// HashToken returns the hex SHA-256 of a raw token. Only hashes are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Resolver maps API tokens to principals.
type Resolver struct {
	tokens store.TokenStore
}

// NewResolver creates a Resolver backed by a token store.
func NewResolver(tokens store.TokenStore) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve returns the principal for a raw token. Unknown tokens and store
// failures both yield ErrUnauthorized so callers fail closed.
func (r *Resolver) Resolve(ctx context.Context, token string) (*store.Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	p, err := r.tokens.GetPrincipal(ctx, HashToken(token))
	if err != nil {
		log.Error().Err(err).Msg("Token lookup failed")
		return nil, fmt.Errorf("%w: token lookup failed", ErrUnauthorized)
	}
	if p == nil || p.TeamID == "" || p.UserID == "" {
		return nil, ErrUnauthorized
	}
	return p, nil
}

// ResolveRequest resolves the request's bearer token.
func (r *Resolver) ResolveRequest(req *http.Request) (*store.Principal, error) {
	token, ok := BearerToken(req)
	if !ok {
		return nil, ErrUnauthorized
	}
	return r.Resolve(req.Context(), token)
}

// IssueToken creates a random token for a principal, stores its hash, and
// returns the raw token. The raw value cannot be recovered later.
func IssueToken(ctx context.Context, tokens store.TokenStore, p store.Principal) (string, error) {
	if p.UserID == "" || p.TeamID == "" {
		return "", errors.New("token requires both a user and a team")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := tokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
	if err := tokens.PutToken(ctx, HashToken(token), p); err != nil {
		return "", err
	}
	log.Info().Str("userId", p.UserID).Str("teamId", p.TeamID).Msg("API token issued")
	return token, nil
}
