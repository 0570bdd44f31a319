package core

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/csvmerge/internal/history"
)

func TestService_PruneHistory(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	now := time.Now()

	_ = store.Record(ctx, history.Run{StartedAt: now.Add(-48 * time.Hour), Profile: "old"})
	_ = store.Record(ctx, history.Run{StartedAt: now, Profile: "new"})

	n, err := svc.PruneHistory(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PruneHistory() = %d, want 1", n)
	}
	runs, _ := svc.Runs(ctx, 0)
	if len(runs) != 1 || runs[0].Profile != "new" {
		t.Errorf("Runs() = %+v", runs)
	}
}

func TestService_RetentionScheduler(t *testing.T) {
	svc, store := newTestService(t, nil)
	_ = store.Record(context.Background(), history.Run{StartedAt: time.Now().Add(-2 * time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.StartRetentionScheduler(ctx, RetentionConfig{MaxAge: time.Hour, CheckInterval: time.Hour})
	}()

	// The first prune runs before the scheduler waits on its ticker.
	deadline := time.Now().Add(2 * time.Second)
	for {
		runs, _ := store.Recent(context.Background(), 0)
		if len(runs) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired run was not pruned")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestService_RetentionDisabled(t *testing.T) {
	svc, _ := newTestService(t, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.StartRetentionScheduler(context.Background(), RetentionConfig{})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled scheduler did not return")
	}
}
