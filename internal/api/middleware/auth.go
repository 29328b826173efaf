package middleware

import (
	"context"
	"net/http"
)

// principalHeader carries the caller's principal, the identity every
// authenticated and privileged check is keyed on.
const principalHeader = "X-Caller-Principal"

type principalKey struct{}

// WithPrincipal extracts the caller's principal from the request header
// into the request context, where handlers and the manager gate both read
// it from.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := r.Header.Get(principalHeader)
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Principal returns the caller's principal set by WithPrincipal, or "" if
// absent.
func Principal(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

// ManagerChecker reports whether principal belongs to the manager set.
type ManagerChecker interface {
	IsManager(principal string) (bool, error)
}

// RequireManager rejects any request whose caller principal is not a
// configured manager, the gate the admin surface sits behind.
func RequireManager(checker ManagerChecker, onUnauthorized func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := Principal(r.Context())
			if principal == "" {
				onUnauthorized(w, r)
				return
			}
			ok, err := checker.IsManager(principal)
			if err != nil || !ok {
				onUnauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
