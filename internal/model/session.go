package model

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/stayware/identity-context-service/internal/errors"
)

// ExpiryBuffer is how close to the absolute expiry a session is still
// considered usable without a refresh. A session within this buffer is
// refreshed transparently instead of being handed out.
const ExpiryBuffer = 30 * time.Second

// Session GRANT for an authenticated end-user.
// Owned exclusively by the session store ; mutated only by refresh/sign-out.
type Session struct {
	// [access_token] string ; REQUIRED
	AccessToken string `json:"access_token"`
	// [refresh_token] string ; REQUIRED for renewal
	RefreshToken string `json:"refresh_token"`
	// token type ; default: "bearer"
	TokenType string `json:"token_type,omitempty"`
	// [access_token] absolute expiry date
	ExpiresAt time.Time `json:"expires_at"`
	// Bound end-user identifier
	UserID string `json:"user_id,omitempty"`
}

// Indicates ANY token claims violation
var ErrTokenIsInvalid = errors.ErrInvalidToken()

// Indicates [NotAfter] claim violation
var ErrTokenIsExpired = errors.ErrSessionExpired()

// Verify the session grant can be used at [date].
func (e *Session) Verify(date time.Time) error {
	// assigned ?
	if e == nil || e.AccessToken == "" {
		return ErrTokenIsInvalid
	}
	if date.IsZero() {
		date = LocalTime.Now()
	}
	// expired ?
	if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(date) {
		return ErrTokenIsExpired
	}
	// [ OK ]
	return nil
}

// ExpiresIn returns the duration until absolute expiry at [date].
// Zero expiry reports a negative duration ; treat as expired.
func (e *Session) ExpiresIn(date time.Time) time.Duration {
	if e == nil || e.ExpiresAt.IsZero() {
		return -1
	}
	if date.IsZero() {
		date = LocalTime.Now()
	}
	return e.ExpiresAt.Sub(date)
}

// NearExpiry reports whether the session is within ExpiryBuffer
// of its absolute expiry at [date].
func (e *Session) NearExpiry(date time.Time) bool {
	return e.ExpiresIn(date) <= ExpiryBuffer
}

// TokenExpiry introspects the [exp] claim of a compact JWT access token.
// Used as a fallback when the identity provider response carries no
// explicit expiry. Claims only ; NO signature authority is assumed here.
func TokenExpiry(accessToken string) (expiry time.Time, err error) {
	claims, err := jwt.ParseInsecure([]byte(accessToken))
	if err != nil {
		return expiry, err
	}
	expiry, _ = claims.Expiration()
	return expiry, nil
}

// TokenSubject introspects the [sub] claim of a compact JWT access token.
func TokenSubject(accessToken string) (subject string, err error) {
	claims, err := jwt.ParseInsecure([]byte(accessToken))
	if err != nil {
		return "", err
	}
	subject, _ = claims.Subject()
	return subject, nil
}
