package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/ideaboard/internal/board"
	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/store"
)

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyP     = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}
)

type failingStore struct {
	calls int
}

func (f *failingStore) Update(context.Context, string, idea.Patch) error {
	f.calls++
	return errors.New("disk full")
}

type recordingSaver struct {
	saved []string
}

func (r *recordingSaver) SetDefaultPipeline(key string) error {
	r.saved = append(r.saved, key)
	return nil
}

func seed() []idea.Idea {
	return []idea.Idea{
		{ID: "x", Category: idea.CategoryFeature, Stage: "Brainstorm", Title: "Dark mode"},
		{ID: "y", Category: idea.CategoryFeature, Stage: "Refining", Title: "Export"},
		{ID: "s", Category: idea.CategorySocial, SocialSubtype: idea.SubtypePost, Title: "Teaser"},
	}
}

func newTestApp(t *testing.T, st board.Updater, key pipeline.Key, opts ...AppOption) (*App, *logbook.Logbook) {
	t.Helper()
	journal, err := logbook.New(filepath.Join(t.TempDir(), "journal.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	b, err := board.New(nil, st, board.WithPipeline(key), board.WithLogbook(journal))
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	b.Merge(seed())
	app, err := NewApp(b, append([]AppOption{WithLogbook(journal)}, opts...)...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app, journal
}

func press(t *testing.T, app *App, keys ...tea.KeyMsg) (*App, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var model tea.Model
		model, cmd = app.Update(k)
		app = model.(*App)
	}
	return app, cmd
}

func stageOf(t *testing.T, ideas []idea.Idea, id string) string {
	t.Helper()
	idx := idea.Index(ideas, id)
	if idx < 0 {
		t.Fatalf("idea %s missing", id)
	}
	return ideas[idx].Stage
}

func TestDropPersistsMove(t *testing.T) {
	mem := store.NewMemory(seed())
	app, _ := newTestApp(t, mem, pipeline.Key(idea.CategoryFeature))

	app, cmd := press(t, app, keyEnter, keyRight, keyRight, keyEnter)
	if cmd == nil {
		t.Fatalf("drop should persist")
	}
	if got := stageOf(t, app.board.Ideas(), "x"); got != "Planning" {
		t.Fatalf("optimistic stage = %s", got)
	}
	if !app.board.IsPending("x") {
		t.Fatalf("move should be pending before the write settles")
	}
	app = runCommands(t, app, cmd)

	stored, err := mem.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := stageOf(t, stored, "x"); got != "Planning" {
		t.Fatalf("stored stage = %s", got)
	}
	if app.board.PendingCount() != 0 {
		t.Fatalf("pending moves left after settle")
	}
	if !strings.Contains(app.statusMsg, "Saved Dark mode") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
	if app.column != 2 || app.row != 0 {
		t.Fatalf("cursor should follow the card, got %d/%d", app.column, app.row)
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	st := &failingStore{}
	app, journal := newTestApp(t, st, pipeline.Key(idea.CategoryFeature))

	app, cmd := press(t, app, keyEnter, keyRight, keyRight, keyRight, keyEnter)
	if got := stageOf(t, app.board.Ideas(), "x"); got != "InProgress" {
		t.Fatalf("optimistic stage = %s", got)
	}
	app = runCommands(t, app, cmd)

	if st.calls != 1 {
		t.Fatalf("expected one write, got %d", st.calls)
	}
	if got := stageOf(t, app.board.Ideas(), "x"); got != "Brainstorm" {
		t.Fatalf("stage after rollback = %s", got)
	}
	if !strings.Contains(app.statusMsg, "moved back") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
	lines, _ := journal.Tail(1)
	if len(lines) != 1 || !strings.Contains(lines[0], "rollback x") {
		t.Fatalf("expected rollback entry, got %v", lines)
	}
}

func TestEscapeCancelsDrag(t *testing.T) {
	st := &failingStore{}
	app, _ := newTestApp(t, st, pipeline.Key(idea.CategoryFeature))

	app, _ = press(t, app, keyEnter, keyRight)
	if app.drag == nil || app.drag.target != 1 {
		t.Fatalf("expected drag over column 1, got %+v", app.drag)
	}
	app, cmd := press(t, app, keyEsc)
	if cmd != nil {
		t.Fatalf("cancel must not persist")
	}
	if app.drag != nil {
		t.Fatalf("drag should be cleared")
	}
	if st.calls != 0 {
		t.Fatalf("cancel wrote to the store")
	}
	if got := stageOf(t, app.board.Ideas(), "x"); got != "Brainstorm" {
		t.Fatalf("stage changed on cancel: %s", got)
	}
}

func TestDropOnSameColumnIsNoop(t *testing.T) {
	st := &failingStore{}
	app, _ := newTestApp(t, st, pipeline.Key(idea.CategoryFeature))
	app, cmd := press(t, app, keyEnter, keyEnter)
	if cmd != nil || st.calls != 0 {
		t.Fatalf("same-column drop should be ignored")
	}
	if app.statusMsg != "" {
		t.Fatalf("no-op drop should be silent, got %q", app.statusMsg)
	}
}

func TestOverviewDropTriagesIdea(t *testing.T) {
	untriaged := idea.Idea{ID: "n", Category: idea.CategoryFeature, Title: "New"}
	mem := store.NewMemory([]idea.Idea{untriaged})
	journal, err := logbook.New(filepath.Join(t.TempDir(), "journal.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	b, err := board.New(nil, mem, board.WithLogbook(journal))
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	b.Merge([]idea.Idea{untriaged})
	app, err := NewApp(b)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	view := b.View()
	target := -1
	for i, col := range view.Columns {
		if col.ID == string(idea.CategoryMarketing) {
			target = i
		}
	}
	if target < 0 {
		t.Fatalf("overview has no marketing column: %+v", view.Columns)
	}
	keys := []tea.KeyMsg{keyEnter}
	for i := 0; i < target; i++ {
		keys = append(keys, keyRight)
	}
	app, cmd := press(t, app, append(keys, keyEnter)...)
	app = runCommands(t, app, cmd)

	stored, err := mem.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if stored[0].Category != idea.CategoryMarketing || stored[0].Stage != "Brainstorm" {
		t.Fatalf("unexpected triage result %+v", stored[0])
	}
	card, ok := app.board.View().Card("n")
	if !ok || card.Column != string(idea.CategoryMarketing) {
		t.Fatalf("card should sit under Marketing, got %+v", card)
	}
}

func TestPipelineSelectionIsRemembered(t *testing.T) {
	saver := &recordingSaver{}
	app, _ := newTestApp(t, &failingStore{}, pipeline.KeyOverview, WithPipelineSaver(saver))

	app, _ = press(t, app, keyP)
	if app.state != statePipelineSelect {
		t.Fatalf("expected pipeline picker, got state %d", app.state)
	}
	for i, item := range app.pipelineMenu.Items() {
		if item.(pipelineItem).key == pipeline.Key(idea.CategorySocial) {
			app.pipelineMenu.Select(i)
		}
	}
	app, _ = press(t, app, keyEnter)
	if app.state != stateBoard {
		t.Fatalf("picker should close on enter")
	}
	if got := app.board.Pipeline(); got != pipeline.Key(idea.CategorySocial) {
		t.Fatalf("active pipeline = %s", got)
	}
	if diff := cmp.Diff([]string{"Social"}, saver.saved); diff != "" {
		t.Fatalf("saved pipelines mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotsMergeIntoBoard(t *testing.T) {
	mem := store.NewMemory(seed())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := mem.Subscribe(ctx, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	app, _ := newTestApp(t, mem, pipeline.Key(idea.CategoryFeature), WithSubscription(sub))
	app.board.Merge(nil)

	cmd := app.Init()
	if cmd == nil {
		t.Fatalf("init should wait for snapshots")
	}
	model, next := app.Update(cmd())
	app = model.(*App)
	if next == nil {
		t.Fatalf("listener should re-arm after a snapshot")
	}
	if got := len(app.board.View().Cards); got != 2 {
		t.Fatalf("expected 2 feature cards after snapshot, got %d", got)
	}
}

func TestCursorMovesWithinColumn(t *testing.T) {
	mem := store.NewMemory(nil)
	app, _ := newTestApp(t, mem, pipeline.Key(idea.CategoryFeature))
	app.board.Merge(append(seed(), idea.Idea{ID: "z", Category: idea.CategoryFeature, Stage: "Brainstorm", Title: "Search"}))
	app, _ = press(t, app, keyDown, keyDown)
	if app.row != 1 {
		t.Fatalf("row should clamp to last card, got %d", app.row)
	}
	app, _ = press(t, app, keyEnter)
	if app.drag == nil || app.drag.ideaID != "z" {
		t.Fatalf("expected to pick up z, got %+v", app.drag)
	}
}

func TestViewRendersColumnsAndLog(t *testing.T) {
	app, _ := newTestApp(t, &failingStore{}, pipeline.Key(idea.CategoryFeature))
	app, _ = press(t, app, keyEnter, keyRight)
	out := app.View()
	for _, want := range []string{"Brainstorm (1)", "Refining (1)", "Dark mode", "drop here", "LOG · journal.log"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		var ok bool
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}
