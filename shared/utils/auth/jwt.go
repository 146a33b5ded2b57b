package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens whose subject is a user id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *s
	clone.now = now
	return &clone
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for userID and returns it with its expiry.
func (s *TokenService) Issue(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates tokenString and returns the user id it was issued for.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return uuid.Nil, ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, ErrExpiredToken
	default:
		return uuid.Nil, ErrInvalidToken
	}

	if !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrMalformedToken
	}
	return userID, nil
}
