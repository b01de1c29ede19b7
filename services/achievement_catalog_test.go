package services

import (
	"testing"

	"gamification-engine/models"
)

func TestCatalogEntryBonusAndRarity(t *testing.T) {
	cases := []struct {
		dim    string
		n      int64
		id     string
		points int64
		rarity models.Rarity
	}{
		{DimensionLessons, 1, "lessons_1", 5, models.RarityCommon},
		{DimensionLessons, 100, "lessons_100", 500, models.RarityLegendary},
		{DimensionEvents, 3, "events_3", 30, models.RarityCommon},
		{DimensionEvents, 20, "events_20", 200, models.RarityLegendary},
		{DimensionPoints, 100, "points_100", 5, models.RarityCommon},
		{DimensionPoints, 10000, "points_10000", 500, models.RarityEpic},
		{DimensionLevel, 2, "level_2", 0, models.RarityCommon},
		{DimensionLevel, 30, "level_30", 0, models.RarityLegendary},
	}
	for _, tc := range cases {
		a := catalogEntry(tc.dim, tc.n)
		if a.ID != tc.id {
			t.Fatalf("catalogEntry(%s, %d).ID = %q, want %q", tc.dim, tc.n, a.ID, tc.id)
		}
		if a.PointsAwarded != tc.points {
			t.Fatalf("%s: PointsAwarded = %d, want %d", tc.id, a.PointsAwarded, tc.points)
		}
		if a.Rarity != tc.rarity {
			t.Fatalf("%s: Rarity = %s, want %s", tc.id, a.Rarity, tc.rarity)
		}
		if a.Slug == "" || a.Name == "" {
			t.Fatalf("%s: empty name or slug", tc.id)
		}
	}
}

func TestCatalogEntryNames(t *testing.T) {
	if got := catalogEntry(DimensionPoints, 10000).Name; got != "10,000 Points" {
		t.Fatalf("points name = %q", got)
	}
	if got := catalogEntry(DimensionLessons, 1).Name; got != "1 Lesson Completed" {
		t.Fatalf("lesson name = %q", got)
	}
	if got := catalogEntry(DimensionLevel, 7).Slug; got != "level-7" {
		t.Fatalf("level slug = %q", got)
	}
}

func TestReachedThresholds(t *testing.T) {
	got := reachedThresholds(PointsThresholds, 5000)
	if len(got) != 4 || got[3] != 5000 {
		t.Fatalf("reachedThresholds(points, 5000) = %v", got)
	}
	if got := reachedThresholds(LessonThresholds, 0); len(got) != 0 {
		t.Fatalf("reachedThresholds(lessons, 0) = %v", got)
	}
}
