package models

import (
	"testing"
)

func TestConceptKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Product_v1_9x16", "Product"},
		{"Product_v2_4x5", "Product"},
		{"Product_v10", "Product"},
		{"Product_9x16", "Product"},
		{"Spring_Sale_v3_1x1", "Spring_Sale"},
		{"Spring_Sale", "Spring_Sale"},
		{"Product", "Product"},
		{"Product_version1", "Product_version1"},
		{"Product_2x3", "Product_2x3"},
		{"9x16", "9x16"},
		{"v1", "v1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConceptKey(tt.name); got != tt.want {
				t.Errorf("ConceptKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestGroupByConcept(t *testing.T) {
	assets := []*VideoAsset{
		{ID: "1", Name: "Foo_v1_4x5", MediaType: MediaTypeVideo},
		{ID: "2", Name: "Foo_v2_9x16", MediaType: MediaTypeVideo},
		{ID: "3", Name: "Bar_v1_4x5", MediaType: MediaTypeVideo},
		{ID: "4", Name: "Foo_v1_1x1", MediaType: MediaTypeImage},
	}

	groups := GroupByConcept(assets)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	foo := groups["Foo"]
	if len(foo) != 2 {
		t.Fatalf("expected 2 assets in Foo group, got %d", len(foo))
	}
	if foo[0].Name != "Foo_v1_4x5" || foo[1].Name != "Foo_v2_9x16" {
		t.Errorf("unexpected Foo group members: %s, %s", foo[0].Name, foo[1].Name)
	}

	bar := groups["Bar"]
	if len(bar) != 1 || bar[0].Name != "Bar_v1_4x5" {
		t.Errorf("unexpected Bar group: %+v", bar)
	}
}

func TestGroupByConceptRecomputed(t *testing.T) {
	assets := []*VideoAsset{
		{ID: "1", Name: "Foo_v1_4x5", MediaType: MediaTypeVideo},
		{ID: "2", Name: "Bar_v1_4x5", MediaType: MediaTypeVideo},
	}

	groups := GroupByConcept(assets)
	if len(groups["Foo"]) != 1 || len(groups["Bar"]) != 1 {
		t.Fatalf("unexpected initial grouping: %v", groups)
	}

	// Renaming moves the asset into the other group on the next call.
	assets[1].Name = "Foo_v2_9x16"
	groups = GroupByConcept(assets)
	if len(groups["Foo"]) != 2 {
		t.Errorf("expected rename to take effect immediately, got %v", groups)
	}
	if _, ok := groups["Bar"]; ok {
		t.Error("Bar group should be empty after rename")
	}
}

func TestRelatedVideos(t *testing.T) {
	assets := []*VideoAsset{
		{ID: "1", Name: "Demo_v1_4x5", MediaType: MediaTypeVideo},
		{ID: "2", Name: "Demo_v1_9x16", MediaType: MediaTypeVideo},
		{ID: "3", Name: "Demo_still_1x1", MediaType: MediaTypeImage},
		{ID: "4", Name: "Other_v1_4x5", MediaType: MediaTypeVideo},
	}

	related := RelatedVideos(assets, "Demo_v1_4x5")
	if len(related) != 2 {
		t.Fatalf("expected 2 related videos, got %d", len(related))
	}
	if related[0].ID != "1" || related[1].ID != "2" {
		t.Errorf("unexpected related set: %s, %s", related[0].ID, related[1].ID)
	}
}
