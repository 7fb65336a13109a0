package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJanitorSweep(t *testing.T) {
	t.Parallel()

	var sweptAt time.Time
	repo := &fakeWebhookRepo{
		deleteExpiredEphemeralFn: func(ctx context.Context, now time.Time) (int64, error) {
			sweptAt = now
			return 3, nil
		},
	}

	janitor, err := NewJanitor(repo, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewJanitor() error = %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	janitor.now = func() time.Time { return now }

	if err := janitor.sweep(context.Background()); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if !sweptAt.Equal(now) {
		t.Fatalf("sweep cutoff = %v, want %v", sweptAt, now)
	}
}

func TestJanitorSweepError(t *testing.T) {
	t.Parallel()

	repo := &fakeWebhookRepo{
		deleteExpiredEphemeralFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, errors.New("db down")
		},
	}

	janitor, err := NewJanitor(repo, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewJanitor() error = %v", err)
	}

	if err := janitor.sweep(context.Background()); err == nil {
		t.Fatal("expected error from failed sweep")
	}
}

func TestJanitorStartStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &fakeWebhookRepo{
		deleteExpiredEphemeralFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, nil
		},
	}

	janitor, err := NewJanitor(repo, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewJanitor() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- janitor.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
