package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"okeanchat/internal/observability/metrics"
	obsmw "okeanchat/internal/observability/middleware"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrIssuer        = errors.New("issuer mismatch")
	ErrNoSubject     = errors.New("no subject")
	ErrSigningMethod = errors.New("unexpected signing method")
)

// Identity is the authenticated caller resolved from a session token.
type Identity struct {
	Subject string
	Name    string
	Avatar  string
}

// Validator turns a raw session token into an Identity.
type Validator interface {
	Validate(token string) (Identity, error)
	Method() string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(Identity)
	return v, ok && v.Subject != ""
}

// SubjectFrom returns the authenticated user id.
func SubjectFrom(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.Subject, ok
}

// TokenFromRequest reads the bearer header, falling back to the
// access_token query parameter browsers use for websocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	raw := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		if tok := strings.TrimSpace(raw[len("Bearer "):]); tok != "" {
			return tok, nil
		}
	}
	if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
		return tok, nil
	}
	return "", ErrMissingToken
}

// Middleware rejects requests without a valid session token and stores the
// caller's Identity in the request context.
func Middleware(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := "success"
			defer func() {
				metrics.AuthenticationAttemptsTotal.WithLabelValues(v.Method(), result).Inc()
			}()
			log := obsmw.Logger(r.Context())

			tok, err := TokenFromRequest(r)
			if err == nil {
				var id Identity
				if id, err = v.Validate(tok); err == nil {
					log.Debug("auth passed", "method", v.Method(), "subject", id.Subject)
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
					return
				}
			}

			result = "failure"
			log.Warn("auth rejected", "method", v.Method(), "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		})
	}
}

// claimString reads an optional string claim.
func claimString(claims map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := claims[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// identityFromClaims applies the issuer and subject checks shared by every validator.
func identityFromClaims(claims map[string]any, issuer string) (Identity, error) {
	if iss := claimString(claims, "iss"); iss != "" && issuer != "" && iss != issuer {
		return Identity{}, ErrIssuer
	}
	sub := claimString(claims, "sub")
	if sub == "" {
		return Identity{}, ErrNoSubject
	}
	return Identity{
		Subject: sub,
		Name:    claimString(claims, "name", "preferred_username", "username"),
		Avatar:  claimString(claims, "picture", "avatar"),
	}, nil
}
