package middleware

import (
	"context"
	"net/http"

	scs "github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"

	"github.com/otakulist/otakulist/cache"
)

type contextKey string

const StoreKey contextKey = "cache_store"

// SessionCache gives every request a cache.Store kept in the caller's
// session. It must run inside SessionManager.LoadAndSave.
func SessionCache(sess *scs.SessionManager, logger zerolog.Logger) func(http.Handler) http.Handler {
	backend := cache.NewSessionBackend(sess)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := cache.NewStore(backend, cache.WithLogger(logger))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), StoreKey, store)))
		})
	}
}

// StoreFrom returns the store SessionCache placed in ctx
func StoreFrom(ctx context.Context) (*cache.Store, bool) {
	store, ok := ctx.Value(StoreKey).(*cache.Store)
	return store, ok && store != nil
}

// RequireStore rejects requests that reached a cached route without a
// session store
func RequireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := StoreFrom(r.Context()); !ok {
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}
