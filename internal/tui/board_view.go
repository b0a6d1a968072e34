package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/ideaboard/internal/pipeline"
)

const (
	minColumnWidth = 18
	logTailLines   = 6
)

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 120
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render(fmt.Sprintf("◧ IDEABOARD · %s", a.board.Pipeline()))

	var content string
	switch a.state {
	case statePipelineSelect:
		content = a.renderPipelineSelection()
	default:
		content = a.renderColumns(width)
	}
	sections := []string{header, content}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer, a.help.View(a.keys))
	return strings.Join(sections, "\n")
}

func (a *App) renderPipelineSelection() string {
	view := a.pipelineMenu.View()
	if strings.TrimSpace(view) == "" {
		view = "No pipelines available"
	}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render("Enter → open pipeline    Esc → back")
	return lipgloss.JoinVertical(lipgloss.Left, view, hint)
}

func (a *App) renderColumns(width int) string {
	view := a.board.View()
	groups, unplaced := pipeline.Group(view)
	if len(groups) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("No columns configured.")
	}
	colWidth := max(minColumnWidth, width/len(groups)-4)
	rendered := make([]string, 0, len(groups))
	for ci, group := range groups {
		rendered = append(rendered, a.renderColumn(ci, group, colWidth))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	if len(unplaced) > 0 {
		note := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render(fmt.Sprintf("%d idea(s) sit in stages this pipeline has no column for", len(unplaced)))
		body = lipgloss.JoinVertical(lipgloss.Left, body, note)
	}
	return body
}

func (a *App) renderColumn(index int, group pipeline.ColumnGroup, width int) string {
	border := lipgloss.Color("#444444")
	if a.drag != nil && a.drag.target == index {
		border = lipgloss.Color("#5B8DEF")
	}
	title := group.Stage.Title
	if title == "" {
		title = group.Stage.ID
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(tagColor(group.Stage.VisualTag)).
		Render(fmt.Sprintf("%s (%d)", title, len(group.Cards)))
	lines := []string{head}
	for ri, card := range group.Cards {
		lines = append(lines, a.renderCard(index, ri, card, width-2))
	}
	if a.drag != nil && a.drag.target == index && a.drag.origin != index {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5B8DEF")).
			Render("▼ drop here"))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func (a *App) renderCard(column, row int, card pipeline.Card, width int) string {
	title := card.Idea.Title
	if title == "" {
		title = card.Idea.ID
	}
	marker := "  "
	switch {
	case a.drag != nil && a.drag.ideaID == card.Idea.ID:
		marker = "✥ "
	case a.board.IsPending(card.Idea.ID):
		marker = "… "
	}
	style := lipgloss.NewStyle().Width(max(8, width)).Foreground(lipgloss.Color("#AAAAAA"))
	if a.drag == nil && column == a.column && row == a.row {
		style = style.Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	}
	if card.Idea.SocialSubtype != "" {
		title = fmt.Sprintf("%s [%s]", title, strings.ToLower(string(card.Idea.SocialSubtype)))
	}
	return style.Render(marker + title)
}

func tagColor(tag string) lipgloss.Color {
	if strings.TrimSpace(tag) == "" {
		return lipgloss.Color("#5B8DEF")
	}
	return lipgloss.Color(tag)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logTailLines)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d entries", a.logFileName(), total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
