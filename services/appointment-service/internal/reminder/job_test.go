package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *recordingSender) SendDueReminders(ctx context.Context, lead time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected a deadline")
	}
	s.calls = append(s.calls, lead)
	return len(s.calls), s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewJobRejectsBadSchedule(t *testing.T) {
	if _, err := NewJob(&recordingSender{}, discard(), Config{Spec: "every tuesday"}); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
	if _, err := NewJob(&recordingSender{}, discard(), Config{Spec: "@every 5m"}); err != nil {
		t.Fatalf("descriptor should be accepted: %v", err)
	}
}

func TestRunOnceUsesLeadAndTimeout(t *testing.T) {
	sender := &recordingSender{}
	job, err := NewJob(sender, discard(), Config{Lead: 6 * time.Hour})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.RunOnce(context.Background())

	sender.err = errors.New("db down")
	job.RunOnce(context.Background())

	if len(sender.calls) != 2 || sender.calls[0] != 6*time.Hour {
		t.Fatalf("unexpected calls %v", sender.calls)
	}
}

func TestRunOnceSkipsCancelledContext(t *testing.T) {
	sender := &recordingSender{}
	job, err := NewJob(sender, discard(), Config{})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job.RunOnce(ctx)
	if len(sender.calls) != 0 {
		t.Fatal("cancelled context should skip the run")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job, err := NewJob(&recordingSender{}, discard(), Config{Spec: "@every 1h"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
