// Package auth resolves the signed-in learner for an HTTP request.
//
// A request carries an HS256 bearer token whose subject is the user's UUID,
// either in the Authorization header or the access_token query parameter.
// In development mode an X-User-ID header with the UUID is accepted too.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew is tolerated on exp and iat checks.
const clockSkew = 30 * time.Second

// DevHeader names the header accepted when development mode is on.
const DevHeader = "X-User-ID"

// TokenParam is the query parameter checked when no Authorization header is
// sent. Browsers cannot set headers on a websocket handshake.
const TokenParam = "access_token"

var (
	// ErrUnauthenticated is returned when the request carries no credentials.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken is returned for a token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier checks bearer tokens signed with a shared secret.
type Verifier struct {
	secret    []byte
	allowDev  bool
	now       func() time.Time
	parserOps []jwt.ParserOption
}

// NewVerifier creates a verifier. An empty secret disables bearer tokens,
// which only makes sense together with allowDev.
func NewVerifier(secret string, allowDev bool) *Verifier {
	v := &Verifier{
		secret:   []byte(secret),
		allowDev: allowDev,
		now:      time.Now,
	}
	v.parserOps = []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	}
	return v
}

// Issue signs a token for userID that expires after ttl.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("signing secret is empty")
	}
	id, err := parseUserID(userID)
	if err != nil {
		return "", err
	}

	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks tokenStr and returns the canonical user id in its subject.
func (v *Verifier) Verify(tokenStr string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: bearer tokens are disabled", ErrInvalidToken)
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.parserOps...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	id, err := parseUserID(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}

// Authenticate extracts the user id from r.
func (v *Verifier) Authenticate(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		return v.Verify(strings.TrimSpace(token))
	}
	if token := r.URL.Query().Get(TokenParam); token != "" {
		return v.Verify(token)
	}

	if v.allowDev {
		if h := r.Header.Get(DevHeader); h != "" {
			id, err := parseUserID(h)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
			}
			return id, nil
		}
	}

	return "", ErrUnauthenticated
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the user id stored by Middleware.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware rejects unauthenticated requests with 401 and stores the user
// id in the request context otherwise.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="courses"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), id)))
	})
}

func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("user id %q is not a UUID", raw)
	}
	return id.String(), nil
}
