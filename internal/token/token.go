// Package token issues and verifies the signed bearer credentials handed to clients.
//
// Tokens are HS256 JWTs carrying the user ID as subject, a random token ID, the issue
// time and an expiry.
// Verification is purely cryptographic plus an expiry check; nothing is persisted and the
// credential store is never consulted here.
package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is used when no lifetime is configured.
const DefaultTTL = 12 * time.Hour

var (
	// ErrMalformed is returned when a token cannot be parsed, is signed with another key or
	// algorithm, or carries no usable subject.
	ErrMalformed = errors.New("malformed token")

	// ErrExpired is returned when a correctly signed token is past its expiry.
	ErrExpired = errors.New("token expired")

	// ErrEmptySecret is returned by New when no signing secret is configured.
	ErrEmptySecret = errors.New("token signing secret can not be empty")
)

// Service signs and verifies tokens with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithIssuer sets the iss claim on issued tokens and requires it on verification.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a token service. A zero ttl falls back to DefaultTTL.
func New(secret string, ttl time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for userID. Callers must only issue after the
// credentials of an active user were checked.
func (s *Service) Issue(userID uint64) (string, error) {
	now := s.now()

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatUint(userID, 10),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the user ID carried by the token.
// The error is always ErrMalformed or ErrExpired.
func (s *Service) Verify(tokenString string) (uint64, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		// non-canonical base64 would let the last character change without changing the bytes
		jwt.WithStrictDecoding(),
	}

	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := jwt.RegisteredClaims{}

	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrExpired
	case err != nil:
		return 0, ErrMalformed
	case !tok.Valid:
		return 0, ErrMalformed
	}

	userID, err := strconv.ParseUint(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID == 0 {
		return 0, ErrMalformed
	}

	return userID, nil
}
