package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/kingrea/ideaboard/internal/idea"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(client, "test", testOptions()...)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s, mr
}

func waitFor(t *testing.T, sub Subscription, match func([]idea.Idea) bool) []idea.Idea {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snapshot, ok := <-sub.Snapshots:
			if !ok {
				t.Fatalf("subscription closed")
			}
			if match(snapshot) {
				return snapshot
			}
		case <-deadline:
			t.Fatalf("expected snapshot never arrived")
		}
	}
}

func TestRedisUpdateDeliversSnapshot(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()
	stored, err := s.Put(ctx, idea.Idea{ProjectID: "p1", Category: idea.CategoryFeature, Title: "Dark mode"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("test:ideas") {
		t.Fatalf("expected hash test:ideas to exist")
	}

	sub, err := s.Subscribe(ctx, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	if diff := cmp.Diff([]string{stored.ID}, ids(next(t, sub))); diff != "" {
		t.Fatalf("initial snapshot mismatch (-want +got):\n%s", diff)
	}

	if err := s.Update(ctx, stored.ID, idea.StagePatch("Refining")); err != nil {
		t.Fatalf("update: %v", err)
	}
	waitFor(t, sub, func(items []idea.Idea) bool {
		return len(items) == 1 && items[0].Stage == "Refining"
	})

	items, err := s.List(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Stage != "Refining" || !items[0].UpdatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestRedisUpdateUnknownIdea(t *testing.T) {
	s, _ := newTestRedis(t)
	err := s.Update(context.Background(), "missing", idea.StagePatch("Refining"))
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected persistence and not-found, got %v", err)
	}
}

func TestRedisScopesByProject(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()
	for _, item := range seed() {
		if _, err := s.Put(ctx, item); err != nil {
			t.Fatalf("put %s: %v", item.ID, err)
		}
	}

	items, err := s.List(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, ids(items)); diff != "" {
		t.Fatalf("scoped list mismatch (-want +got):\n%s", diff)
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 ideas unscoped, got %d", len(all))
	}

	sub, err := s.Subscribe(ctx, "p2")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	if diff := cmp.Diff([]string{"b"}, ids(next(t, sub))); diff != "" {
		t.Fatalf("initial scoped snapshot mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.Put(ctx, idea.Idea{ID: "d", ProjectID: "p2", Category: idea.CategoryProduct, Title: "D"}); err != nil {
		t.Fatalf("put d: %v", err)
	}
	got := waitFor(t, sub, func(items []idea.Idea) bool { return len(items) == 2 })
	if diff := cmp.Diff([]string{"b", "d"}, ids(got)); diff != "" {
		t.Fatalf("scoped snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisSkipsMalformedEntries(t *testing.T) {
	s, mr := newTestRedis(t)
	mr.HSet("test:ideas", "junk", "{not json")
	if _, err := s.Put(context.Background(), idea.Idea{ID: "ok", Category: idea.CategoryFeature, Title: "OK"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	items, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"ok"}, ids(items)); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}
