package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity attached to a validated API key. UserID is
// the storefront user the key acts on behalf of; cart and order operations
// are scoped to it.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
}

// Repository provides lookup of active API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
