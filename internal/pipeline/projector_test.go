package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/ideaboard/internal/idea"
)

func sampleIdeas() []idea.Idea {
	return []idea.Idea{
		{ID: "f1", Category: idea.CategoryFeature, Title: "Dark mode"},
		{ID: "f2", Category: idea.CategoryFeature, Stage: "Refining", Title: "Export"},
		{ID: "m1", Category: idea.CategoryMarketing, Stage: "Brainstorm", Title: "Launch post"},
		{ID: "s1", Category: idea.CategorySocial, SocialSubtype: idea.SubtypePost, Title: "Teaser"},
		{ID: "c1", Category: idea.CategorySocial, SocialSubtype: idea.SubtypeCampaign, Stage: "Concept", Title: "Summer"},
		{ID: "c2", Category: idea.CategorySocial, SocialSubtype: idea.SubtypeCampaign, Stage: "PendingReview", Title: "Winter"},
		{ID: "f3", Category: idea.CategoryFeature, Stage: "Brainstorm", Title: "Search"},
	}
}

func cardColumns(view View) map[string]string {
	out := map[string]string{}
	for _, card := range view.Cards {
		out[card.Idea.ID] = card.Column
	}
	return out
}

func TestProjectStandardFiltersByCategoryAndKeepsOrder(t *testing.T) {
	view := Default().Project(Key(idea.CategoryFeature), sampleIdeas())
	if view.Mode != ModeStandard {
		t.Fatalf("mode = %s", view.Mode)
	}
	var ids []string
	for _, card := range view.Cards {
		ids = append(ids, card.Idea.ID)
	}
	if diff := cmp.Diff([]string{"f1", "f2", "f3"}, ids); diff != "" {
		t.Fatalf("cards mismatch (-want +got):\n%s", diff)
	}
	cols := cardColumns(view)
	if cols["f1"] != "Brainstorm" {
		t.Fatalf("absent stage should project to first stage, got %s", cols["f1"])
	}
}

func TestProjectSocialRemapsCampaignConcept(t *testing.T) {
	ideas := sampleIdeas()
	view := Default().Project(Key(idea.CategorySocial), ideas)
	cols := cardColumns(view)
	if cols["c1"] != "Brainstorm" {
		t.Fatalf("campaign concept should render in Brainstorm, got %s", cols["c1"])
	}
	if cols["s1"] != "Brainstorm" {
		t.Fatalf("post should render in Brainstorm, got %s", cols["s1"])
	}
	card, _ := view.Card("c1")
	if card.Idea.Stage != "Concept" {
		t.Fatalf("persisted stage must stay Concept, got %s", card.Idea.Stage)
	}
	if ideas[4].Stage != "Concept" {
		t.Fatalf("input mutated")
	}
}

func TestProjectSocialCampaignOnlyCampaigns(t *testing.T) {
	view := Default().Project(KeySocialCampaign, sampleIdeas())
	cols := cardColumns(view)
	if len(cols) != 2 {
		t.Fatalf("expected only campaigns, got %+v", cols)
	}
	if cols["c2"] != "Submit" {
		t.Fatalf("pending review should render in Submit, got %s", cols["c2"])
	}
	if cols["c1"] != "Concept" {
		t.Fatalf("concept should render in Concept, got %s", cols["c1"])
	}
}

func TestProjectUnknownKeyUsesFeatureColumnsWithNoCards(t *testing.T) {
	view := Default().Project("Podcast", sampleIdeas())
	if len(view.Cards) != 0 {
		t.Fatalf("expected no cards, got %d", len(view.Cards))
	}
	if view.Columns[0].ID != "Brainstorm" || len(view.Columns) != 5 {
		t.Fatalf("expected feature columns, got %+v", view.Columns)
	}
}

func TestProjectOverviewOnlyUntriaged(t *testing.T) {
	view := Default().Project(KeyOverview, sampleIdeas())
	if view.Mode != ModeOverview {
		t.Fatalf("mode = %s", view.Mode)
	}
	want := map[string]string{
		"f1": "Feature",
		"m1": "Marketing",
		"s1": "Social",
		"c1": "SocialCampaign",
		"f3": "Feature",
	}
	if diff := cmp.Diff(want, cardColumns(view)); diff != "" {
		t.Fatalf("overview mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupPlacesCardsInColumnOrder(t *testing.T) {
	view := Default().Project(Key(idea.CategorySocial), sampleIdeas())
	groups, unplaced := Group(view)
	if len(groups) != 4 {
		t.Fatalf("expected 4 social columns, got %d", len(groups))
	}
	if groups[0].Stage.ID != "Brainstorm" || len(groups[0].Cards) != 2 {
		t.Fatalf("unexpected brainstorm group %+v", groups[0])
	}
	if groups[0].Cards[0].Idea.ID != "s1" || groups[0].Cards[1].Idea.ID != "c1" {
		t.Fatalf("group lost input order: %+v", groups[0].Cards)
	}
	if len(unplaced) != 1 || unplaced[0].Idea.ID != "c2" {
		t.Fatalf("expected pending campaign unplaced on social board, got %+v", unplaced)
	}
}
