package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stayware/identity-context-service/internal/errors"
)

func TestBackoffDelay(t *testing.T) {
	// deterministic: no jitter
	policy := Backoff{
		Base:     500 * time.Millisecond,
		Cap:      10 * time.Second,
		Attempts: 5,
		Rand:     func() float64 { return 0 },
	}
	tests := []struct {
		name    string // description of this test case
		attempt int
		want    time.Duration
	}{
		// TODO: Add test cases.
		{
			name:    "first",
			attempt: 0,
			want:    500 * time.Millisecond,
		},
		{
			name:    "doubles",
			attempt: 1,
			want:    time.Second,
		},
		{
			name:    "exponential",
			attempt: 3,
			want:    4 * time.Second,
		},
		{
			name:    "capped",
			attempt: 10,
			want:    10 * time.Second,
		},
		{
			name:    "negative clamps to first",
			attempt: -1,
			want:    500 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Delay(tt.attempt)
			if got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayJitterBound(t *testing.T) {
	policy := Backoff{
		Base:     500 * time.Millisecond,
		Cap:      10 * time.Second,
		Attempts: 5,
		Rand:     func() float64 { return 1 },
	}
	// full jitter: delay + 0.5*delay
	if got, want := policy.Delay(0), 750*time.Millisecond; got != want {
		t.Errorf("Delay(0) = %v, want %v", got, want)
	}
	if got, want := policy.Delay(10), 15*time.Second; got != want {
		t.Errorf("Delay(10) = %v, want %v", got, want)
	}
}

func TestBackoffDo(t *testing.T) {

	fast := Backoff{
		Base:     time.Microsecond,
		Cap:      time.Millisecond,
		Attempts: 5,
		Rand:     func() float64 { return 0 },
	}

	t.Run("retries network failures then succeeds", func(t *testing.T) {
		var calls int
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.ErrNetwork()
			}
			return nil
		})
		if err != nil {
			t.Errorf("Do() error = %v, want nil", err)
		}
		if calls != 3 {
			t.Errorf("Do() calls = %v, want 3", calls)
		}
	})

	t.Run("terminal at attempt ceiling", func(t *testing.T) {
		var calls int
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.ErrNetwork()
		})
		if errors.ClassOf(err) != errors.NetworkError {
			t.Errorf("Do() error class = %v, want %v", errors.ClassOf(err), errors.NetworkError)
		}
		if calls != 5 {
			t.Errorf("Do() calls = %v, want 5", calls)
		}
	})

	t.Run("non-retryable fails at once", func(t *testing.T) {
		var calls int
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.ErrNoSession()
		})
		if errors.ClassOf(err) != errors.NoSession {
			t.Errorf("Do() error class = %v, want %v", errors.ClassOf(err), errors.NoSession)
		}
		if calls != 1 {
			t.Errorf("Do() calls = %v, want 1", calls)
		}
	})

	t.Run("context cancellation aborts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Backoff{
			Base:     time.Hour,
			Cap:      time.Hour,
			Attempts: 5,
			Rand:     func() float64 { return 0 },
		}
		done := make(chan error, 1)
		go func() {
			done <- slow.Do(ctx, func(ctx context.Context) error {
				return errors.ErrNetwork()
			})
		}()
		cancel()
		select {
		case err := <-done:
			if err == nil {
				t.Error("Do() error = nil, want cancellation")
			}
		case <-time.After(time.Second):
			t.Fatal("Do() did not return after cancel")
		}
	})
}
