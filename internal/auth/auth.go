// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package auth supplies the tokens appended to every request sent to the
// remote store.
//
// A TokenSource is asked for a token each time a URL is built, so sources
// may refresh expiring tokens transparently. StaticToken covers database
// secrets and long-lived tokens; RefreshingTokenSource caches a JWT until
// shortly before its exp claim.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptyToken is returned when a refresh yields no token.
	ErrEmptyToken = errors.New("empty auth token")
	// ErrInvalidToken is returned by VerifyToken for tokens that are not
	// signed with the expected secret or are expired.
	ErrInvalidToken = errors.New("invalid auth token")
)

// TokenSource returns the token to authenticate the next request with. An
// empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// TokenFunc adapts an ordinary function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// RefreshingTokenSource caches the token returned by refresh until leeway
// before its expiry. Tokens without a readable exp claim are cached until
// Invalidate is called.
type RefreshingTokenSource struct {
	refresh TokenFunc
	leeway  time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewRefreshingTokenSource(refresh TokenFunc, leeway time.Duration) *RefreshingTokenSource {
	return &RefreshingTokenSource{
		refresh: refresh,
		leeway:  leeway,
		now:     time.Now,
	}
}

func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expires.IsZero() || s.now().Add(s.leeway).Before(s.expires)) {
		return s.token, nil
	}

	token, err := s.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh auth token: %w", err)
	}
	if token == "" {
		return "", ErrEmptyToken
	}

	s.token = token
	s.expires, _ = ExpiresAt(token)
	return token, nil
}

// Invalidate drops the cached token so that the next call refreshes it.
func (s *RefreshingTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
func ExpiresAt(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// SignToken issues an HS256 JWT for subject signed with secret.
func SignToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" || ttl <= 0 {
		return "", errors.New("invalid params for signing auth token")
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("error occurred during signing auth token: %w", err)
	}
	return signed, nil
}

// VerifyToken accepts either the secret itself or a JWT signed with it and
// returns the subject of the JWT ("" for the bare secret).
func VerifyToken(token, secret string) (string, error) {
	if token == secret {
		return "", nil
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return subject, nil
}
