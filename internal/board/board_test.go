package board

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/store"
	"github.com/kingrea/ideaboard/internal/transition"
)

type fakeStore struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeStore) Update(_ context.Context, id string, patch idea.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id+" "+patch.String())
	return f.err
}

func seedIdeas() []idea.Idea {
	return []idea.Idea{
		{ID: "x", Category: idea.CategoryFeature, Stage: "Brainstorm", Title: "X"},
		{ID: "y", Category: idea.CategoryFeature, Stage: "Refining", Title: "Y"},
		{ID: "s", Category: idea.CategorySocial, SocialSubtype: idea.SubtypePost, Title: "S"},
	}
}

func newBoard(t *testing.T, st Updater, key pipeline.Key) (*Board, *logbook.Logbook) {
	t.Helper()
	journal, err := logbook.New(filepath.Join(t.TempDir(), "journal.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	b, err := New(nil, st, WithPipeline(key), WithLogbook(journal),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	b.Merge(seedIdeas())
	return b, journal
}

func find(t *testing.T, b *Board, id string) idea.Idea {
	t.Helper()
	ideas := b.Ideas()
	idx := idea.Index(ideas, id)
	if idx < 0 {
		t.Fatalf("idea %s missing", id)
	}
	return ideas[idx]
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestBeginAppliesOptimistically(t *testing.T) {
	b, _ := newBoard(t, &fakeStore{}, pipeline.Key(idea.CategoryFeature))
	p, err := b.Begin(transition.Drop("x", "Planning"))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if got := find(t, b, "x").Stage; got != "Planning" {
		t.Fatalf("optimistic stage = %s", got)
	}
	if !b.IsPending("x") || p.Seq == 0 {
		t.Fatalf("expected pending move, got %+v", p)
	}
	if _, err := b.Begin(transition.Drop("x", "Shipped")); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
}

func TestCommitConfirmsOnSuccess(t *testing.T) {
	st := &fakeStore{}
	b, _ := newBoard(t, st, pipeline.Key(idea.CategoryFeature))
	tr, err := b.Move(context.Background(), transition.Drop("x", "y"))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if tr.To.Stage != "Refining" {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if b.PendingCount() != 0 {
		t.Fatalf("move not settled")
	}
	if got := find(t, b, "x").Stage; got != "Refining" {
		t.Fatalf("stage = %s", got)
	}
	if diff := cmp.Diff([]string{"x stage=Refining"}, st.calls); diff != "" {
		t.Fatalf("store calls (-want +got):\n%s", diff)
	}
}

func TestFailedPersistenceRestoresSnapshot(t *testing.T) {
	st := &fakeStore{err: store.ErrPersistence}
	b, journal := newBoard(t, st, pipeline.KeyOverview)
	before := find(t, b, "s").Position()
	_, err := b.Move(context.Background(), transition.Drop("s", "Marketing"))
	if !errors.Is(err, store.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if diff := cmp.Diff(before, find(t, b, "s").Position()); diff != "" {
		t.Fatalf("rollback mismatch (-want +got):\n%s", diff)
	}
	lines, _ := journal.Tail(5)
	if len(lines) != 2 || !strings.Contains(lines[1], "ERROR rollback s to Social/<first> (post)") {
		t.Fatalf("unexpected journal %v", lines)
	}
}

func TestRejectedDragsLeaveBoardUntouched(t *testing.T) {
	st := &fakeStore{}
	b, _ := newBoard(t, st, pipeline.Key(idea.CategoryFeature))
	before := b.Ideas()
	for _, drag := range []transition.DragEnd{
		transition.Cancel("x"),
		transition.Drop("x", "Brainstorm"),
		transition.Drop("x", "Posted"),
	} {
		if _, err := b.Move(context.Background(), drag); err == nil {
			t.Fatalf("expected rejection for %+v", drag)
		}
	}
	if diff := cmp.Diff(before, b.Ideas()); diff != "" {
		t.Fatalf("board changed (-want +got):\n%s", diff)
	}
	if len(st.calls) != 0 {
		t.Fatalf("store called for rejected drags: %v", st.calls)
	}
}

func TestMergeKeepsPendingMoveAndAppliesOthers(t *testing.T) {
	b, _ := newBoard(t, &fakeStore{}, pipeline.Key(idea.CategoryFeature))
	p, err := b.Begin(transition.Drop("x", "Shipped"))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	incoming := seedIdeas()
	incoming[0].Title = "X renamed"
	incoming[1].Stage = "Planning"
	b.Merge(incoming)

	x := find(t, b, "x")
	if x.Stage != "Shipped" || x.Title != "X renamed" {
		t.Fatalf("pending idea clobbered: %+v", x)
	}
	if got := find(t, b, "y").Stage; got != "Planning" {
		t.Fatalf("non-pending change not applied: %s", got)
	}

	b.Settle(p, errors.New("offline"))
	if got := find(t, b, "x").Stage; got != "Brainstorm" {
		t.Fatalf("rollback after merge = %s", got)
	}
}

func TestSettleIgnoresStaleMoves(t *testing.T) {
	b, _ := newBoard(t, &fakeStore{}, pipeline.Key(idea.CategoryFeature))
	first, err := b.Begin(transition.Drop("x", "Planning"))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	b.Settle(first, nil)
	second, err := b.Begin(transition.Drop("x", "Shipped"))
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}
	if b.Settle(first, errors.New("late failure")) {
		t.Fatalf("stale settle rolled back")
	}
	if got := find(t, b, "x").Stage; got != "Shipped" {
		t.Fatalf("stale settle changed stage to %s", got)
	}
	if !b.Settle(second, errors.New("offline")) {
		t.Fatalf("expected rollback")
	}
	if got := find(t, b, "x").Stage; got != "Planning" {
		t.Fatalf("rolled back to %s, want Planning", got)
	}
}

func TestBoardAgainstMemoryStore(t *testing.T) {
	mem := store.NewMemory(seedIdeas())
	defer mem.Close()
	b, _ := newBoard(t, mem, pipeline.KeyOverview)
	if _, err := b.Move(context.Background(), transition.Drop("x", string(pipeline.KeySocialCampaign))); err != nil {
		t.Fatalf("move: %v", err)
	}
	items, err := mem.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := items[idea.Index(items, "x")].Position()
	want := idea.Position{Category: idea.CategorySocial, Stage: "Concept", SocialSubtype: idea.SubtypeCampaign}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stored position (-want +got):\n%s", diff)
	}
	view := b.View()
	if card, ok := view.Card("x"); !ok || card.Column != string(pipeline.KeySocialCampaign) {
		t.Fatalf("overview card = %+v", card)
	}
}
