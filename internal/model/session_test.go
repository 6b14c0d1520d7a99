package model

import (
	"testing"
	"time"

	"github.com/stayware/identity-context-service/internal/errors"
)

func TestSessionVerify(t *testing.T) {
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string // description of this test case
		e    *Session
		want errors.Code // "" for nil error
	}{
		// TODO: Add test cases.
		{
			name: "valid",
			e: &Session{
				AccessToken: "tok",
				ExpiresAt:   now.Add(time.Hour),
			},
			want: "",
		},
		{
			name: "nil session",
			e:    nil,
			want: errors.InvalidToken,
		},
		{
			name: "no access token",
			e:    &Session{ExpiresAt: now.Add(time.Hour)},
			want: errors.InvalidToken,
		},
		{
			name: "expired",
			e: &Session{
				AccessToken: "tok",
				ExpiresAt:   now.Add(-time.Second),
			},
			want: errors.SessionExpired,
		},
		{
			name: "zero expiry never expires",
			e:    &Session{AccessToken: "tok"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Verify(now)
			got := errors.Code("")
			if err != nil {
				got = errors.ClassOf(err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionNearExpiry(t *testing.T) {
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string // description of this test case
		e    *Session
		want bool
	}{
		// TODO: Add test cases.
		{
			name: "well before the buffer",
			e: &Session{
				AccessToken: "tok",
				ExpiresAt:   now.Add(time.Hour),
			},
			want: false,
		},
		{
			name: "inside the buffer",
			e: &Session{
				AccessToken: "tok",
				ExpiresAt:   now.Add(ExpiryBuffer - time.Second),
			},
			want: true,
		},
		{
			name: "exactly at the buffer",
			e: &Session{
				AccessToken: "tok",
				ExpiresAt:   now.Add(ExpiryBuffer),
			},
			want: true,
		},
		{
			name: "already expired",
			e: &Session{
				AccessToken: "tok",
				ExpiresAt:   now.Add(-time.Minute),
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.e.NearExpiry(now)
			if got != tt.want {
				t.Errorf("NearExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionExpiresIn(t *testing.T) {
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

	grant := &Session{AccessToken: "tok", ExpiresAt: now.Add(90 * time.Second)}
	if got, want := grant.ExpiresIn(now), 90*time.Second; got != want {
		t.Errorf("ExpiresIn() = %v, want %v", got, want)
	}

	var none *Session
	if got := none.ExpiresIn(now); got >= 0 {
		t.Errorf("ExpiresIn() = %v, want negative", got)
	}

	zero := &Session{AccessToken: "tok"}
	if got := zero.ExpiresIn(now); got >= 0 {
		t.Errorf("ExpiresIn() = %v, want negative", got)
	}
}
