package jwtsigner

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues HS256 session tokens accepted by authz.HMACValidator.
// Production tokens come from the external auth service; this is for local
// development and tests.
type Signer struct {
	secret []byte
	Issuer string
}

func New(secret, iss string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("empty signing secret")
	}
	return &Signer{secret: []byte(secret), Issuer: iss}, nil
}

// Sign issues a JWT for subject `sub` with TTL and extra claims.
func (s *Signer) Sign(sub string, ttl time.Duration, claims map[string]any) (string, error) {
	now := time.Now()
	m := jwt.MapClaims{}
	for k, v := range claims {
		m[k] = v
	}
	if s.Issuer != "" {
		m["iss"] = s.Issuer
	}
	m["sub"] = sub
	m["iat"] = now.Unix()
	m["exp"] = now.Add(ttl).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, m).SignedString(s.secret)
}
