package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const ownerKey ctxKey = iota

// OwnerFromContext returns the owner attached by the authentication middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey).(string)
	return owner, ok && owner != ""
}

// Authenticator validates HMAC-signed bearer tokens.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an Authenticator for secret.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}, nil
}

// Issue signs a token naming owner as its subject. A zero ttl issues a token
// that never expires.
func (a *Authenticator) Issue(owner string, ttl time.Duration) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("%w: owner is empty", ErrUnauthenticated)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  owner,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Owner validates tokenStr and returns the owner it names.
func (a *Authenticator) Owner(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	owner, _ := claims.GetSubject()
	if owner == "" {
		owner, _ = claims["user_id"].(string)
	}
	if owner == "" {
		return "", fmt.Errorf("%w: token names no owner", ErrUnauthenticated)
	}
	return owner, nil
}

// Middleware rejects requests without a valid token and attaches the owner
// to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeUnauthenticated(w, "missing bearer token")
			return
		}
		owner, err := a.Owner(tokenStr)
		if err != nil {
			writeUnauthenticated(w, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
