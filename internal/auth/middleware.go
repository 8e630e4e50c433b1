package auth

import (
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"motorlane/internal/store"
)

// BearerToken extracts the raw token from an Authorization header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// RequireUser validates the bearer token and resolves the request principal:
// decode, access type, denylist lookup, active-user load. Any failure is a
// plain 401; causes are not distinguished to the client.
func RequireUser(db *gorm.DB, codec *Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := codec.Decode(raw)
			if err != nil || claims.Type != TokenTypeAccess {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			st := store.New(db)
			if claims.JTI != "" {
				revoked, err := st.IsRevoked(claims.JTI)
				if err != nil || revoked {
					http.Error(w, "token has been revoked", http.StatusUnauthorized)
					return
				}
			}
			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			user, err := st.UserByID(userID)
			if err != nil || user == nil || !user.IsActive {
				http.Error(w, "user not found or inactive", http.StatusUnauthorized)
				return
			}
			ctx := WithPrincipal(r.Context(), Principal{User: user, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole re-reads the principal's current role names from storage, so a
// role revoked after the token was minted is enforced immediately.
func RequireRole(db *gorm.DB, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			roles, err := store.New(db).RoleNames(p.User.ID)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			for _, have := range roles {
				for _, want := range allowed {
					if have == want {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			http.Error(w, "insufficient permissions", http.StatusForbidden)
		})
	}
}
