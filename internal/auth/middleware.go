package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

func FromContext(ctx context.Context) (*Claims, bool) {
	cl, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return cl, ok
}

func parseBearer(r *http.Request, secret, issuer string) (*Claims, error) {
	raw := r.Header.Get("Authorization")
	if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
		return nil, ErrNoClaims
	}
	tokenStr := strings.TrimPrefix(raw, "Bearer ")

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	cl := &Claims{}
	if _, err := parser.ParseWithClaims(tokenStr, cl, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}); err != nil {
		return nil, err
	}
	if cl.Issuer != issuer {
		return nil, ErrBadIssuer
	}
	return cl, nil
}

// JWTMiddleware rejects requests without a valid bearer token.
func JWTMiddleware(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl, err := parseBearer(r, secret, issuer)
			if err != nil {
				if err != ErrNoClaims {
					slog.Warn("jwt parse failed", "error", err)
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyClaims, cl)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWT attaches claims when a valid bearer token is present but
// lets anonymous requests through. Scan endpoints use this so history is
// attributed without keeping the relay behind a login wall.
func OptionalJWT(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cl, err := parseBearer(r, secret, issuer); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, cl))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequirePerm(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "no auth context", http.StatusUnauthorized)
				return
			}
			perms := PermsForRoles(cl.Roles)
			if _, ok := perms[PermAdminAll]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := perms[required]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
