package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok
}

func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// Verifier checks bearer tokens. RS256 tokens carrying a kid are verified
// against JWKS when configured; everything else uses the shared HS256 secret.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
}

func (v Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if v.JWKS != nil {
		header, err := ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := v.JWKS.Get(ctx, header.Kid)
			if err != nil {
				return nil, ErrInvalidToken
			}
			return VerifyRS256(token, pub)
		}
	}
	return ParseAndVerifyHS256(token, v.Secret)
}

// Enabled reports whether any verification material is configured.
func (v Verifier) Enabled() bool {
	return v.Secret != "" || v.JWKS != nil
}

func RequireBearer(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			claims, err := v.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole must run after RequireBearer.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
