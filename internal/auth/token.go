package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller extracted from a token.
type Principal struct {
	ID   uuid.UUID
	Role string
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs an HS256 token for subject with the given role.
//
// Returns:
//   - string: the signed token.
//   - time.Time: when the token expires.
func (i *Issuer) Issue(subject uuid.UUID, role string) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Issue:%w", err)
	}

	return signed, exp, nil
}

// Parse validates raw and returns its principal. Any failure is reported
// as ErrInvalidToken.
func (i *Issuer) Parse(raw string) (Principal, error) {
	var claims Claims

	tok, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return Principal{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || claims.Role == "" {
		return Principal{}, ErrInvalidToken
	}

	return Principal{ID: id, Role: claims.Role}, nil
}
