package authz

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

// JWKSValidator verifies tokens against a remote JWKS that is refreshed in
// the background.
type JWKSValidator struct {
	jwks   *keyfunc.JWKS
	issuer string
}

func NewJWKSValidator(jwksURL, issuer string) (*JWKSValidator, error) {
	options := keyfunc.Options{
		RefreshInterval:   time.Minute * 15,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, err
	}
	return newJWKSValidator(jwks, issuer), nil
}

func newJWKSValidator(jwks *keyfunc.JWKS, issuer string) *JWKSValidator {
	return &JWKSValidator{jwks: jwks, issuer: issuer}
}

func (j *JWKSValidator) Method() string { return "jwks" }

func (j *JWKSValidator) Validate(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, j.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return identityFromClaims(claims, j.issuer)
}

// Close stops the background refresh.
func (j *JWKSValidator) Close() { j.jwks.EndBackground() }
