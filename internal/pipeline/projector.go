package pipeline

import "github.com/kingrea/ideaboard/internal/idea"

// Mode distinguishes the per-category board from the triage overview.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeOverview Mode = "overview"
)

// Card is a read-only projection of an idea onto a board column. In the
// overview the column is the idea's home pipeline key.
type Card struct {
	Idea   idea.Idea
	Column string
}

// View is the projected board for one pipeline key.
type View struct {
	Key     Key
	Mode    Mode
	Columns []StageDefinition
	Cards   []Card
}

// Card returns the projected card for an idea id.
func (v View) Card(id string) (Card, bool) {
	for _, card := range v.Cards {
		if card.Idea.ID == id {
			return card, true
		}
	}
	return Card{}, false
}

// HasColumn reports whether id is one of the view's columns.
func (v View) HasColumn(id string) bool {
	return stageIndex(v.Columns, id) >= 0
}

// ColumnGroup is a column with the cards that render in it.
type ColumnGroup struct {
	Stage StageDefinition
	Cards []Card
}

// Project filters and remaps ideas for the pipeline behind key. Input order
// is preserved and the input slice is never modified.
func (r *Registry) Project(key Key, ideas []idea.Idea) View {
	if key == KeyOverview {
		return r.projectOverview(ideas)
	}
	view := View{Key: key, Mode: ModeStandard, Columns: r.Columns(key)}
	def, configured := r.pipelines[key]
	for _, item := range ideas {
		if configured {
			if !def.Matches(item) {
				continue
			}
		} else if string(item.Category) != string(key) {
			continue
		}
		stage := r.EffectiveStage(item)
		column := stage
		if configured {
			column = def.visualStage(item.SocialSubtype, stage)
		}
		view.Cards = append(view.Cards, Card{Idea: item, Column: column})
	}
	return view
}

func (r *Registry) projectOverview(ideas []idea.Idea) View {
	view := View{Key: KeyOverview, Mode: ModeOverview, Columns: r.OverviewColumns()}
	for _, item := range ideas {
		home := r.HomeKey(item)
		if _, ok := r.pipelines[home]; !ok {
			continue
		}
		if r.IsTriaged(item) {
			continue
		}
		view.Cards = append(view.Cards, Card{Idea: item, Column: string(home)})
	}
	return view
}

// Group buckets cards by column in column order. Cards whose column is not
// part of the view are returned separately.
func Group(view View) (groups []ColumnGroup, unplaced []Card) {
	groups = make([]ColumnGroup, len(view.Columns))
	for i, col := range view.Columns {
		groups[i] = ColumnGroup{Stage: col}
	}
	for _, card := range view.Cards {
		idx := stageIndex(view.Columns, card.Column)
		if idx < 0 {
			unplaced = append(unplaced, card)
			continue
		}
		groups[idx].Cards = append(groups[idx].Cards, card)
	}
	return groups, unplaced
}
