package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/models"
	"chathub-presence-svc/src/internal/session"
)

// fakeStore is an in-memory session.Store with real set semantics.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]bool
	markers  map[string]bool
	failAll  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]map[string]bool),
		markers:  make(map[string]bool),
	}
}

func (f *fakeStore) RegisterSession(_ context.Context, userID, sessionID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, models.ErrSessionCreating
	}
	if f.sessions[userID] == nil {
		f.sessions[userID] = make(map[string]bool)
	}
	added := !f.sessions[userID][sessionID]
	f.sessions[userID][sessionID] = true
	f.markers[userID+":"+sessionID] = true
	return added && len(f.sessions[userID]) == 1, nil
}

func (f *fakeStore) RenewHeartbeat(_ context.Context, userID, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, models.ErrRedisExpire
	}
	return f.markers[userID+":"+sessionID], nil
}

func (f *fakeStore) RemoveSession(_ context.Context, userID, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, models.ErrSessionRemoving
	}
	removed := f.sessions[userID][sessionID]
	delete(f.sessions[userID], sessionID)
	delete(f.markers, userID+":"+sessionID)
	return removed && len(f.sessions[userID]) == 0, nil
}

func (f *fakeStore) IsOnline(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions[userID]) > 0, nil
}

func (f *fakeStore) ActiveSessionIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.sessions[userID]))
	for id := range f.sessions[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ActiveSessions(_ context.Context, _ string) ([]*session.Session, error) {
	return nil, nil
}

func (f *fakeStore) BatchIsOnline(_ context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	for _, uid := range userIDs {
		online, _ := f.IsOnline(context.Background(), uid)
		result[uid] = online
	}
	return result, nil
}

type publishedEvent struct {
	userID string
	online bool
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishStatus(_ context.Context, userID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{userID: userID, online: online})
	return nil
}

func (f *fakePublisher) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

type fakeFinalizer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeFinalizer) TryFinalizeOffline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return nil
}

func newTestService(store session.Store, pub *fakePublisher, fin *fakeFinalizer) Service {
	cfg := &config.PresenceConfig{SessionTTLSeconds: 60, HeartbeatIntervalSeconds: 25}
	return NewService(store, session.NewHeartbeats(store, cfg), pub, fin)
}

func TestOnConnect_FirstSessionPublishesOnline(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &fakeFinalizer{})

	if _, err := svc.OnConnect(context.Background(), "u1", "s1", "web"); err != nil {
		t.Fatalf("OnConnect: %v", err)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events))
	}
	if events[0].userID != "u1" || !events[0].online {
		t.Errorf("expected online event for u1, got %+v", events[0])
	}
}

// Session ids end up inside the liveness-marker key, where ":" separates the
// user id from the session id. An id like "web:tab1" would register fine but
// its expiry notification would parse back as the wrong identity, so the
// dead session would never be torn down.
func TestOnConnect_RejectsSessionIDWithSeparator(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &fakeFinalizer{})

	ctx := context.Background()
	if _, err := svc.OnConnect(ctx, "u1", "web:tab1", "web"); !errors.Is(err, models.ErrSessionIDInvalid) {
		t.Fatalf("OnConnect with separator in session id = %v, want ErrSessionIDInvalid", err)
	}

	ids, _ := store.ActiveSessionIDs(ctx, "u1")
	if len(ids) != 0 {
		t.Errorf("rejected session must not be registered, got %d entries", len(ids))
	}
	if got := len(pub.published()); got != 0 {
		t.Errorf("rejected session must not publish, got %d events", got)
	}
}

func TestOnConnect_IdempotentForSameSession(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &fakeFinalizer{})

	ctx := context.Background()
	if _, err := svc.OnConnect(ctx, "u1", "s1", "web"); err != nil {
		t.Fatalf("first OnConnect: %v", err)
	}
	if _, err := svc.OnConnect(ctx, "u1", "s1", "web"); err != nil {
		t.Fatalf("second OnConnect: %v", err)
	}

	ids, _ := store.ActiveSessionIDs(ctx, "u1")
	if len(ids) != 1 {
		t.Errorf("expected exactly 1 session entry, got %d", len(ids))
	}
	if got := len(pub.published()); got != 1 {
		t.Errorf("expected 1 online publish, got %d", got)
	}
}

func TestOnConnect_SecondSessionDoesNotPublish(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &fakeFinalizer{})

	ctx := context.Background()
	svc.OnConnect(ctx, "u1", "s1", "web")
	svc.OnConnect(ctx, "u1", "s2", "phone")

	if got := len(pub.published()); got != 1 {
		t.Errorf("expected 1 online publish across 2 sessions, got %d", got)
	}
}

func TestOnConnect_GeneratesSessionID(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{}, &fakeFinalizer{})

	sessionID, err := svc.OnConnect(context.Background(), "u1", "", "web")
	if err != nil {
		t.Fatalf("OnConnect: %v", err)
	}
	if sessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestOnConnect_StoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	pub := &fakePublisher{}
	svc := newTestService(store, pub, &fakeFinalizer{})

	if _, err := svc.OnConnect(context.Background(), "u1", "s1", "web"); err == nil {
		t.Fatal("expected error from unavailable store")
	}
	if len(pub.published()) != 0 {
		t.Error("no event may be published when registration fails")
	}
}

func TestOnHeartbeat_LostSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{}, &fakeFinalizer{})

	err := svc.OnHeartbeat(context.Background(), "u1", "never-registered")
	if !errors.Is(err, models.ErrSessionLost) {
		t.Fatalf("expected ErrSessionLost, got %v", err)
	}
}

func TestOnHeartbeat_AliveSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{}, &fakeFinalizer{})

	ctx := context.Background()
	svc.OnConnect(ctx, "u1", "s1", "web")
	if err := svc.OnHeartbeat(ctx, "u1", "s1"); err != nil {
		t.Fatalf("OnHeartbeat: %v", err)
	}
}

func TestOnDisconnect_LastSessionCorrectness(t *testing.T) {
	store := newFakeStore()
	fin := &fakeFinalizer{}
	svc := newTestService(store, &fakePublisher{}, fin)

	ctx := context.Background()
	svc.OnConnect(ctx, "u1", "sA", "web")
	svc.OnConnect(ctx, "u1", "sB", "phone")

	if err := svc.OnDisconnect(ctx, "u1", "sA"); err != nil {
		t.Fatalf("OnDisconnect sA: %v", err)
	}
	if len(fin.calls) != 0 {
		t.Fatalf("removing a non-last session must not finalize, got %d calls", len(fin.calls))
	}

	if err := svc.OnDisconnect(ctx, "u1", "sB"); err != nil {
		t.Fatalf("OnDisconnect sB: %v", err)
	}
	if len(fin.calls) != 1 || fin.calls[0] != "u1" {
		t.Fatalf("expected exactly one finalize for u1, got %v", fin.calls)
	}
}

func TestOnDisconnect_DoubleRemoveDoesNotFinalizeTwice(t *testing.T) {
	store := newFakeStore()
	fin := &fakeFinalizer{}
	svc := newTestService(store, &fakePublisher{}, fin)

	ctx := context.Background()
	svc.OnConnect(ctx, "u1", "s1", "web")
	svc.OnDisconnect(ctx, "u1", "s1")
	svc.OnDisconnect(ctx, "u1", "s1")

	if len(fin.calls) != 1 {
		t.Fatalf("expected 1 finalize call, got %d", len(fin.calls))
	}
}
