// internal/tui/app.go
//
// This is the kanban board for ideaboard. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: the board, cursor and drag state
// 2. Update: keys raise drag events; store snapshots and write results arrive as messages
// 3. View: columns rendered with lipgloss
//
// A drag is keyboard driven: pick a card up, move it across columns, drop it
// (or press esc to cancel). Dropping hands (card id, column id) to the board,
// which applies the move at once and persists it in a command.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/ideaboard/internal/board"
	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/store"
	"github.com/kingrea/ideaboard/internal/transition"
)

// appState represents which "screen" we're on
type appState int

const (
	stateBoard          appState = iota // Columns of the active pipeline
	statePipelineSelect                 // Pipeline picker
)

// PipelineSaver persists the last selected pipeline. config.Config satisfies it.
type PipelineSaver interface {
	SetDefaultPipeline(key string) error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithSubscription feeds store snapshots into the board.
func WithSubscription(sub store.Subscription) AppOption {
	return func(a *App) {
		a.snapshots = sub.Snapshots
	}
}

// WithLogbook shows the journal tail under the board.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithPipelineSaver remembers pipeline selections across launches.
func WithPipelineSaver(saver PipelineSaver) AppOption {
	return func(a *App) {
		a.saver = saver
	}
}

// WithContext bounds store writes issued by the board.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

type snapshotMsg struct {
	ideas []idea.Idea
}

type subscriptionClosedMsg struct{}

type persistedMsg struct {
	pending board.Pending
	err     error
}

// dragState tracks a picked-up card and the column it hovers over.
type dragState struct {
	ideaID string
	origin int
	target int
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state     appState
	ctx       context.Context
	board     *board.Board
	logbook   *logbook.Logbook
	saver     PipelineSaver
	snapshots <-chan []idea.Idea

	pipelineMenu list.Model
	keys         keyMap
	help         help.Model

	column int
	row    int
	drag   *dragState

	statusMsg string
	width     int
	height    int
}

// pipelineItem implements list.Item for the pipeline picker.
type pipelineItem struct {
	key   pipeline.Key
	title string
	desc  string
}

func (i pipelineItem) Title() string       { return i.title }
func (i pipelineItem) Description() string { return i.desc }
func (i pipelineItem) FilterValue() string { return string(i.key) }

// NewApp creates the board model.
func NewApp(b *board.Board, opts ...AppOption) (*App, error) {
	if b == nil {
		return nil, fmt.Errorf("tui: board is required")
	}
	menu := list.New(nil, list.NewDefaultDelegate(), 60, 20)
	menu.Title = "Select Pipeline"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	app := &App{
		state:        stateBoard,
		ctx:          context.Background(),
		board:        b,
		pipelineMenu: menu,
		keys:         defaultKeyMap(),
		help:         help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.refreshPipelineMenu()
	app.logInfo("Board opened · pipeline %s", b.Pipeline())
	return app, nil
}

func (a *App) refreshPipelineMenu() {
	reg := a.board.Registry()
	keys := reg.Keys()
	items := make([]list.Item, 0, len(keys))
	selected := 0
	for i, key := range keys {
		item := pipelineItem{key: key, title: string(key)}
		if key == pipeline.KeyOverview {
			item.title = "Overview"
			item.desc = "Triage new ideas into pipelines"
		} else if def, ok := reg.Pipeline(key); ok {
			item.title = def.Title
			item.desc = fmt.Sprintf("%d stages · %s", len(def.Stages), stageList(def.Stages))
		}
		if key == a.board.Pipeline() {
			selected = i
		}
		items = append(items, item)
	}
	a.pipelineMenu.SetItems(items)
	a.pipelineMenu.Select(selected)
}

func stageList(stages []pipeline.StageDefinition) string {
	titles := make([]string, 0, len(stages))
	for _, stage := range stages {
		titles = append(titles, stage.Title)
	}
	return strings.Join(titles, " → ")
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.waitForSnapshot()
}

func (a *App) waitForSnapshot() tea.Cmd {
	if a.snapshots == nil {
		return nil
	}
	ch := a.snapshots
	return func() tea.Msg {
		ideas, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg{ideas: ideas}
	}
}

func (a *App) persist(p board.Pending) tea.Cmd {
	ctx := a.ctx
	b := a.board
	return func() tea.Msg {
		return persistedMsg{pending: p, err: b.Persist(ctx, p)}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.pipelineMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-6))
		return a, nil

	case snapshotMsg:
		a.board.Merge(msg.ideas)
		a.clampCursor()
		return a, a.waitForSnapshot()

	case subscriptionClosedMsg:
		a.snapshots = nil
		a.statusMsg = "Store subscription closed"
		a.logWarn("Store subscription closed")
		return a, nil

	case persistedMsg:
		if a.board.Settle(msg.pending, msg.err) {
			a.statusMsg = fmt.Sprintf("Could not save %s, moved back", a.titleOf(msg.pending.Transition.IdeaID))
		} else if msg.err == nil {
			a.statusMsg = fmt.Sprintf("Saved %s", a.titleOf(msg.pending.Transition.IdeaID))
		}
		a.clampCursor()
		return a, nil

	case tea.KeyMsg:
		if a.state == statePipelineSelect {
			return a.updatePipelineSelect(msg)
		}
		return a.updateBoard(msg)
	}

	if a.state == statePipelineSelect {
		var cmd tea.Cmd
		a.pipelineMenu, cmd = a.pipelineMenu.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updatePipelineSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc", "q":
		a.state = stateBoard
		return a, nil
	case "enter":
		item, ok := a.pipelineMenu.SelectedItem().(pipelineItem)
		if ok {
			a.selectPipeline(item.key)
		}
		a.state = stateBoard
		return a, nil
	}
	var cmd tea.Cmd
	a.pipelineMenu, cmd = a.pipelineMenu.Update(msg)
	return a, cmd
}

func (a *App) selectPipeline(key pipeline.Key) {
	a.cancelDrag()
	a.board.SetPipeline(key)
	a.column, a.row = 0, 0
	a.statusMsg = fmt.Sprintf("Pipeline · %s", key)
	a.logInfo("Pipeline selected · %s", key)
	if a.saver != nil {
		if err := a.saver.SetDefaultPipeline(string(key)); err != nil {
			a.logWarn("Could not remember pipeline %s: %v", key, err)
		}
	}
}

func (a *App) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := a.board.View()
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Pipeline):
		if a.drag == nil {
			a.refreshPipelineMenu()
			a.state = statePipelineSelect
		}
	case key.Matches(msg, a.keys.Cancel):
		if a.drag != nil {
			a.cancelDrag()
			a.statusMsg = "Move cancelled"
		}
	case key.Matches(msg, a.keys.Left):
		a.shiftColumn(view, -1)
	case key.Matches(msg, a.keys.Right):
		a.shiftColumn(view, 1)
	case key.Matches(msg, a.keys.Up):
		if a.drag == nil && a.row > 0 {
			a.row--
		}
	case key.Matches(msg, a.keys.Down):
		if a.drag == nil && a.row < len(columnCards(view, a.column))-1 {
			a.row++
		}
	case key.Matches(msg, a.keys.Grab):
		if a.drag == nil {
			a.pickUp(view)
			return a, nil
		}
		return a, a.drop(view)
	}
	return a, nil
}

func (a *App) shiftColumn(view pipeline.View, delta int) {
	if len(view.Columns) == 0 {
		return
	}
	if a.drag != nil {
		a.drag.target = clamp(a.drag.target+delta, 0, len(view.Columns)-1)
		return
	}
	a.column = clamp(a.column+delta, 0, len(view.Columns)-1)
	a.row = clamp(a.row, 0, max(0, len(columnCards(view, a.column))-1))
}

func (a *App) pickUp(view pipeline.View) {
	cards := columnCards(view, a.column)
	if a.row >= len(cards) {
		return
	}
	card := cards[a.row]
	if a.board.IsPending(card.Idea.ID) {
		a.statusMsg = fmt.Sprintf("%s is still saving", card.Idea.Title)
		return
	}
	a.drag = &dragState{ideaID: card.Idea.ID, origin: a.column, target: a.column}
	a.statusMsg = fmt.Sprintf("Moving %s", card.Idea.Title)
}

// drop raises the drag-end event for the hovered column.
func (a *App) drop(view pipeline.View) tea.Cmd {
	drag := a.drag
	a.drag = nil
	if drag == nil || drag.target >= len(view.Columns) {
		return nil
	}
	column := view.Columns[drag.target].ID
	pending, err := a.board.Begin(transition.Drop(drag.ideaID, column))
	if err != nil {
		switch {
		case errors.Is(err, transition.ErrNoop), errors.Is(err, transition.ErrInvalidDropTarget):
			a.statusMsg = ""
		case errors.Is(err, board.ErrInFlight):
			a.statusMsg = "Still saving the previous move"
		default:
			a.statusMsg = err.Error()
		}
		return nil
	}
	a.statusMsg = fmt.Sprintf("Saving %s…", a.titleOf(drag.ideaID))
	a.followCard(drag.ideaID)
	return a.persist(pending)
}

// cancelDrag ends a drag over no target. The board sees a nil drop target,
// which is always a no-op.
func (a *App) cancelDrag() {
	if a.drag == nil {
		return
	}
	_, _ = a.board.Begin(transition.Cancel(a.drag.ideaID))
	a.drag = nil
}

// followCard keeps the cursor on a card after it moves.
func (a *App) followCard(id string) {
	view := a.board.View()
	for ci := range view.Columns {
		for ri, card := range columnCards(view, ci) {
			if card.Idea.ID == id {
				a.column, a.row = ci, ri
				return
			}
		}
	}
	a.clampCursor()
}

func (a *App) clampCursor() {
	view := a.board.View()
	if len(view.Columns) == 0 {
		a.column, a.row = 0, 0
		return
	}
	a.column = clamp(a.column, 0, len(view.Columns)-1)
	a.row = clamp(a.row, 0, max(0, len(columnCards(view, a.column))-1))
	if a.drag != nil {
		if _, ok := view.Card(a.drag.ideaID); !ok {
			a.drag = nil
		}
	}
}

func (a *App) titleOf(id string) string {
	ideas := a.board.Ideas()
	if idx := idea.Index(ideas, id); idx >= 0 && ideas[idx].Title != "" {
		return ideas[idx].Title
	}
	return id
}

func columnCards(view pipeline.View, column int) []pipeline.Card {
	if column < 0 || column >= len(view.Columns) {
		return nil
	}
	id := view.Columns[column].ID
	var out []pipeline.Card
	for _, card := range view.Cards {
		if card.Column == id {
			out = append(out, card)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (a *App) logFileName() string {
	if a.logbook == nil {
		return "log"
	}
	name := filepath.Base(a.logbook.Path())
	if name == "." || name == "" {
		return "log"
	}
	return name
}
