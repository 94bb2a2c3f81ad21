package reaper

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forward_bot/internal/model"
	"forward_bot/internal/registry"
	"forward_bot/internal/storage"
)

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Broadcast(_ context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
}

func (m *mockNotifier) broadcasts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func newTestRegistry(t *testing.T) (*registry.Registry, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return registry.New(store), store
}

func seedChannel(t *testing.T, store *storage.SQLite, channelID int64, expiresAt time.Time) {
	t.Helper()
	ch := model.Channel{ChannelID: channelID, ExpiresAt: expiresAt}
	if err := store.CreateChannel(context.Background(), &ch); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
}

func TestSweepRemovesExpiredAndNotifies(t *testing.T) {
	ctx := context.Background()
	reg, store := newTestRegistry(t)
	notifier := &mockNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Now().UTC()
	seedChannel(t, store, 200, now.Add(-time.Hour))
	seedChannel(t, store, 300, now.Add(time.Hour))

	r := New(reg, notifier, log)
	if err := r.Sweep(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := store.GetChannel(ctx, 200); err == nil {
		t.Error("expected expired channel to be removed")
	}
	if _, err := store.GetChannel(ctx, 300); err != nil {
		t.Errorf("active channel should survive the sweep: %v", err)
	}

	msgs := notifier.broadcasts()
	if len(msgs) != 1 {
		t.Fatalf("expected one broadcast, got %d: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "200") || !strings.Contains(msgs[0], "expired") {
		t.Errorf("broadcast should mention channel 200 and expiry, got %q", msgs[0])
	}
}

func TestSweepIdempotent(t *testing.T) {
	ctx := context.Background()
	reg, store := newTestRegistry(t)
	notifier := &mockNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Now().UTC()
	seedChannel(t, store, 200, now.Add(-time.Hour))

	r := New(reg, notifier, log)
	if err := r.Sweep(ctx, now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := r.Sweep(ctx, now); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if diff := cmp.Diff(1, len(notifier.broadcasts())); diff != "" {
		t.Errorf("broadcast count mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepNothingExpired(t *testing.T) {
	ctx := context.Background()
	reg, store := newTestRegistry(t)
	notifier := &mockNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Now().UTC()
	seedChannel(t, store, 300, now.Add(time.Hour))

	r := New(reg, notifier, log)
	if err := r.Sweep(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(notifier.broadcasts()) != 0 {
		t.Errorf("expected no broadcasts, got %v", notifier.broadcasts())
	}
}

func TestRunSweepsOnTick(t *testing.T) {
	reg, store := newTestRegistry(t)
	notifier := &mockNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	seedChannel(t, store, 200, time.Now().UTC().Add(-time.Hour))

	r := New(reg, notifier, log)
	r.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	if diff := cmp.Diff(1, len(notifier.broadcasts())); diff != "" {
		t.Errorf("broadcast count mismatch (-want +got):\n%s", diff)
	}
}
