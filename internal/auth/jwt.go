package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/giacomoarchidi/tutoring-platform/internal/model"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenIssuer mints and verifies signed access tokens. The secret, signing
// algorithm and TTL are fixed at construction; rotating the secret
// invalidates every outstanding token.
type TokenIssuer struct {
	secret []byte
	issuer string
	method jwt.SigningMethod
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer, algorithm string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		method: method,
		ttl:    ttl,
	}, nil
}

func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token carrying sub=userID and the user's role, expiring
// after the configured TTL.
func (t *TokenIssuer) Issue(userID uuid.UUID, role model.Role) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(t.method, claims)
	return token.SignedString(t.secret)
}

// Parse validates the signature, issuer and expiry and returns the embedded
// claims. Expired tokens report ErrTokenExpired; everything else that fails
// validation reports ErrInvalidToken.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{t.method.Alg()}), jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
