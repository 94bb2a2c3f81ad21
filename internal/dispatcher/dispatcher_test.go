package dispatcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forward_bot/internal/model"
	"forward_bot/internal/registry"
	"forward_bot/internal/storage"
)

type forwardedMsg struct {
	FromChatID int64
	MessageID  int
	ToChatID   int64
}

type mockTransport struct {
	mu      sync.Mutex
	failFor map[int64]bool
	sent    []forwardedMsg
}

func (m *mockTransport) Forward(fromChatID int64, messageID int, toChatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[toChatID] {
		return fmt.Errorf("channel %d unreachable", toChatID)
	}
	m.sent = append(m.sent, forwardedMsg{FromChatID: fromChatID, MessageID: messageID, ToChatID: toChatID})
	return nil
}

func (m *mockTransport) forwards() []forwardedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]forwardedMsg, len(m.sent))
	copy(cp, m.sent)
	return cp
}

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

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fixture struct {
	store     *storage.SQLite
	reg       *registry.Registry
	transport *mockTransport
	notifier  *mockNotifier
	disp      *Dispatcher
}

func newFixture(t *testing.T, store *storage.SQLite) *fixture {
	t.Helper()
	reg := registry.New(store)
	transport := &mockTransport{}
	notifier := &mockNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		store:     store,
		reg:       reg,
		transport: transport,
		notifier:  notifier,
		disp:      New(store, reg, transport, notifier, log),
	}
}

func seedChannel(t *testing.T, store *storage.SQLite, channelID int64, expiresAt time.Time) {
	t.Helper()
	ch := model.Channel{ChannelID: channelID, ExpiresAt: expiresAt}
	if err := store.CreateChannel(context.Background(), &ch); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
}

func seedFilter(t *testing.T, store *storage.SQLite, channelID int64, kind model.FilterKind, value string) {
	t.Helper()
	f := model.Filter{ChannelID: channelID, Kind: kind, Value: value}
	if err := store.CreateFilter(context.Background(), &f); err != nil {
		t.Fatalf("seed filter: %v", err)
	}
}

func seedSource(t *testing.T, store *storage.SQLite, chatID int64) {
	t.Helper()
	if err := store.AddSourceFeed(context.Background(), chatID); err != nil {
		t.Fatalf("seed source: %v", err)
	}
}

func forwardCount(t *testing.T, store *storage.SQLite) int {
	t.Helper()
	counts, err := store.ListRecentActions(context.Background(), 100)
	if err != nil {
		t.Fatalf("list analytics: %v", err)
	}
	total := 0
	for _, c := range counts {
		if c.Action == ActionForward {
			total += c.Count
		}
	}
	return total
}

func TestForwardsMatchingPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")

	post := Post{ChatID: 100, FromUserID: 7, MessageID: 42, Text: "Big PROMO today"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	want := []forwardedMsg{{FromChatID: 100, MessageID: 42, ToChatID: 200}}
	if diff := cmp.Diff(want, f.transport.forwards()); diff != "" {
		t.Errorf("forwards mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, forwardCount(t, f.store)); diff != "" {
		t.Errorf("analytics count mismatch (-want +got):\n%s", diff)
	}
	if len(f.notifier.broadcasts()) != 0 {
		t.Errorf("expected no admin broadcasts, got %v", f.notifier.broadcasts())
	}
}

func TestIgnoresUnknownSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")
	// Chat 100 is not registered as a source feed.

	post := Post{ChatID: 100, MessageID: 1, Text: "Big PROMO today"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	if len(f.transport.forwards()) != 0 {
		t.Errorf("expected no forwards, got %v", f.transport.forwards())
	}
}

func TestSpamFlaggedUserDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")

	f.disp.SetSpamCheck(func(userID int64) bool { return userID == 7 })

	post := Post{ChatID: 100, FromUserID: 7, MessageID: 1, Text: "Big PROMO today"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	if len(f.transport.forwards()) != 0 {
		t.Errorf("expected no forwards for spam-flagged user, got %v", f.transport.forwards())
	}
}

func TestNoMatchNoForward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")

	post := Post{ChatID: 100, MessageID: 1, Text: "weather report"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	if len(f.transport.forwards()) != 0 {
		t.Errorf("expected no forwards, got %v", f.transport.forwards())
	}
	if diff := cmp.Diff(0, forwardCount(t, f.store)); diff != "" {
		t.Errorf("analytics count mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelWithoutFiltersGetsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	// No filters for the channel.

	post := Post{ChatID: 100, MessageID: 1, Text: "Big PROMO today"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	if len(f.transport.forwards()) != 0 {
		t.Errorf("expected no forwards without filters, got %v", f.transport.forwards())
	}
}

func TestCaptionFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")

	post := Post{ChatID: 100, MessageID: 1, Caption: "photo of the PROMO"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	want := []forwardedMsg{{FromChatID: 100, MessageID: 1, ToChatID: 200}}
	if diff := cmp.Diff(want, f.transport.forwards()); diff != "" {
		t.Errorf("forwards mismatch (-want +got):\n%s", diff)
	}
}

func TestExpiredDestinationRemovedAndReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(-24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")

	post := Post{ChatID: 100, MessageID: 1, Text: "Big PROMO today"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	if len(f.transport.forwards()) != 0 {
		t.Errorf("expected no forwards to expired channel, got %v", f.transport.forwards())
	}

	if _, err := f.store.GetChannel(ctx, 200); err == nil {
		t.Error("expected expired channel to be removed")
	}
	filters, err := f.store.ListFilters(ctx, 200)
	if err != nil {
		t.Fatalf("list filters: %v", err)
	}
	if len(filters) != 0 {
		t.Errorf("expected cascade-deleted filters, got %d", len(filters))
	}

	msgs := f.notifier.broadcasts()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "200") {
		t.Errorf("broadcast should mention channel 200, got %q", msgs[0])
	}
}

func TestTransportFailureDoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t))
	f.transport.failFor = map[int64]bool{200: true}

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 200, model.KindTag, "promo")
	seedChannel(t, f.store, 300, time.Now().UTC().Add(24*time.Hour))
	seedFilter(t, f.store, 300, model.KindTag, "promo")

	post := Post{ChatID: 100, MessageID: 1, Text: "Big PROMO today"}
	if err := f.disp.HandlePost(ctx, post); err != nil {
		t.Fatalf("handle post: %v", err)
	}

	want := []forwardedMsg{{FromChatID: 100, MessageID: 1, ToChatID: 300}}
	if diff := cmp.Diff(want, f.transport.forwards()); diff != "" {
		t.Errorf("forwards mismatch (-want +got):\n%s", diff)
	}

	// One failure report; the failed destination does not count in analytics.
	msgs := f.notifier.broadcasts()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "200") {
		t.Errorf("expected one failure broadcast mentioning 200, got %v", msgs)
	}
	if diff := cmp.Diff(1, forwardCount(t, f.store)); diff != "" {
		t.Errorf("analytics count mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentPostsSingleExpiryNotification(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := newFixture(t, store)

	seedSource(t, f.store, 100)
	seedChannel(t, f.store, 200, time.Now().UTC().Add(-time.Hour))

	const posts = 8
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			post := Post{ChatID: 100, MessageID: i + 1, Text: "anything"}
			if err := f.disp.HandlePost(ctx, post); err != nil {
				t.Errorf("handle post: %v", err)
			}
		}(i)
	}
	wg.Wait()

	expiryMsgs := 0
	for _, m := range f.notifier.broadcasts() {
		if strings.Contains(m, "200") && strings.Contains(m, "expired") {
			expiryMsgs++
		}
	}
	if diff := cmp.Diff(1, expiryMsgs); diff != "" {
		t.Errorf("expiry notification count mismatch (-want +got):\n%s", diff)
	}
}
