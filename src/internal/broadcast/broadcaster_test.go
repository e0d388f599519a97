package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/events"
	"chathub-presence-svc/src/internal/models"
	"chathub-presence-svc/src/internal/presence"
)

type fakePresenceRepo struct {
	mu         sync.Mutex
	states     map[string]*presence.UserPresenceState
	applyCount int
	getErr     error
	applyErr   error
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{states: make(map[string]*presence.UserPresenceState)}
}

func (f *fakePresenceRepo) Get(_ context.Context, userID string) (*presence.UserPresenceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	state, ok := f.states[userID]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return state, nil
}

func (f *fakePresenceRepo) BatchGet(_ context.Context, _ []string) (map[string]*presence.UserPresenceState, error) {
	return nil, nil
}

func (f *fakePresenceRepo) Apply(_ context.Context, userID string, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applyCount++
	state := &presence.UserPresenceState{UserID: userID, IsOnline: online}
	if !online {
		state.LastActiveAt = &at
	}
	f.states[userID] = state
	return nil
}

type fakeWatchers struct {
	watchers map[string][]string
	err      error
}

func (f *fakeWatchers) WatchersOf(_ context.Context, targetID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.watchers[targetID], nil
}

type push struct {
	address string
	note    StatusNotification
}

type fakeChannel struct {
	mu     sync.Mutex
	users  []push
	topics []push
	err    error
}

func (f *fakeChannel) PushToUser(userID string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, push{address: userID, note: payload.(StatusNotification)})
	return nil
}

func (f *fakeChannel) PushToTopic(topic string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, push{address: topic, note: payload.(StatusNotification)})
	return nil
}

func testConfig() *config.PresenceConfig {
	return &config.PresenceConfig{
		StalenessWindowMinutes: 30,
		MaxClockSkewMinutes:    5,
		GlobalFeedTopic:        "presence.global",
	}
}

func event(userID string, online bool, emittedAt time.Time) events.PresenceEvent {
	return events.PresenceEvent{UserID: userID, Online: online, EmittedAt: emittedAt}
}

func TestHandle_AppliesAndFansOut(t *testing.T) {
	repo := newFakePresenceRepo()
	channel := &fakeChannel{}
	watchers := &fakeWatchers{watchers: map[string][]string{"u1": {"w1", "w2"}}}
	b := NewBroadcaster(repo, watchers, channel, testConfig())

	if err := b.Handle(context.Background(), event("u1", true, time.Now())); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !repo.states["u1"].IsOnline {
		t.Error("presence store must show online")
	}
	if len(channel.users) != 2 {
		t.Fatalf("expected pushes to 2 watchers, got %d", len(channel.users))
	}
	if len(channel.topics) != 1 || channel.topics[0].address != "presence.global" {
		t.Errorf("expected one global feed push, got %v", channel.topics)
	}
}

func TestHandle_DropsStaleEvent(t *testing.T) {
	repo := newFakePresenceRepo()
	b := NewBroadcaster(repo, &fakeWatchers{}, &fakeChannel{}, testConfig())

	old := time.Now().Add(-31 * time.Minute)
	if err := b.Handle(context.Background(), event("u1", true, old)); err != nil {
		t.Fatalf("stale drop must not error: %v", err)
	}
	if repo.applyCount != 0 {
		t.Error("stale event must have no side effects")
	}
}

func TestHandle_DropsFutureEvent(t *testing.T) {
	repo := newFakePresenceRepo()
	b := NewBroadcaster(repo, &fakeWatchers{}, &fakeChannel{}, testConfig())

	future := time.Now().Add(6 * time.Minute)
	if err := b.Handle(context.Background(), event("u1", true, future)); err != nil {
		t.Fatalf("skewed drop must not error: %v", err)
	}
	if repo.applyCount != 0 {
		t.Error("future event must have no side effects")
	}
}

func TestHandle_DropsDuplicateTransition(t *testing.T) {
	repo := newFakePresenceRepo()
	channel := &fakeChannel{}
	b := NewBroadcaster(repo, &fakeWatchers{}, channel, testConfig())

	ctx := context.Background()
	if err := b.Handle(ctx, event("u1", true, time.Now())); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if err := b.Handle(ctx, event("u1", true, time.Now())); err != nil {
		t.Fatalf("redelivered event: %v", err)
	}

	if repo.applyCount != 1 {
		t.Fatalf("duplicate transition must not re-apply, applyCount = %d", repo.applyCount)
	}
	if len(channel.topics) != 1 {
		t.Errorf("duplicate transition must not re-push, pushes = %d", len(channel.topics))
	}
}

func TestHandle_OrderedSequenceEndsOnline(t *testing.T) {
	repo := newFakePresenceRepo()
	b := NewBroadcaster(repo, &fakeWatchers{}, &fakeChannel{}, testConfig())

	ctx := context.Background()
	now := time.Now()
	sequence := []events.PresenceEvent{
		event("u1", true, now.Add(-3*time.Second)),
		event("u1", false, now.Add(-2*time.Second)),
		event("u1", false, now.Add(-2*time.Second)), // at-least-once redelivery
		event("u1", true, now.Add(-1*time.Second)),
	}
	for i, evt := range sequence {
		if err := b.Handle(ctx, evt); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	if !repo.states["u1"].IsOnline {
		t.Error("final state must be online")
	}
	if repo.applyCount != 3 {
		t.Errorf("expected 3 applied transitions, got %d", repo.applyCount)
	}
}

func TestHandle_OfflineStampsLastActive(t *testing.T) {
	repo := newFakePresenceRepo()
	b := NewBroadcaster(repo, &fakeWatchers{}, &fakeChannel{}, testConfig())

	ctx := context.Background()
	emitted := time.Now().Add(-time.Second)
	b.Handle(ctx, event("u1", true, emitted.Add(-time.Second)))
	if err := b.Handle(ctx, event("u1", false, emitted)); err != nil {
		t.Fatalf("offline event: %v", err)
	}

	state := repo.states["u1"]
	if state.IsOnline {
		t.Fatal("state must be offline")
	}
	if state.LastActiveAt == nil || !state.LastActiveAt.Equal(emitted) {
		t.Errorf("lastActiveAt must be the emission time, got %v", state.LastActiveAt)
	}
}

func TestHandle_StoreErrorLeavesEventUnacked(t *testing.T) {
	repo := newFakePresenceRepo()
	repo.getErr = errors.New("mongo down")
	b := NewBroadcaster(repo, &fakeWatchers{}, &fakeChannel{}, testConfig())

	if err := b.Handle(context.Background(), event("u1", true, time.Now())); err == nil {
		t.Fatal("store failure must surface so the event is redelivered")
	}
}

func TestHandle_PushErrorLeavesEventUnacked(t *testing.T) {
	repo := newFakePresenceRepo()
	channel := &fakeChannel{err: errors.New("amqp down")}
	watchers := &fakeWatchers{watchers: map[string][]string{"u1": {"w1"}}}
	b := NewBroadcaster(repo, watchers, channel, testConfig())

	if err := b.Handle(context.Background(), event("u1", true, time.Now())); err == nil {
		t.Fatal("push failure must surface so the event is redelivered")
	}
}
