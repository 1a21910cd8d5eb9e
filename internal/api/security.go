package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type userIDKey struct{}

// UserID returns the authenticated user id stored by the authenticate
// middleware, or "" when the request is unauthenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// authenticate validates the X-API-Key header by hashing the key with the
// configured pepper, looking the hash up, and comparing it in constant time.
// The key's user id is placed in the request context for the handlers.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, r, http.StatusUnauthorized, "missing API key")
			return
		}

		mac := hmac.New(sha256.New, []byte(h.pepper))
		mac.Write([]byte(key))
		sum := mac.Sum(nil)

		info, err := h.apikeys.FindByHash(r.Context(), hex.EncodeToString(sum))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if subtle.ConstantTimeCompare(sum, stored) != 1 {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, info.UserID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.id", info.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
