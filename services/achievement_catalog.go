package services

import (
	"fmt"

	"gamification-engine/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Achievement dimensions. The id of a system achievement is "<dimension>_<n>".
const (
	DimensionPoints  = "points"
	DimensionLessons = "lessons"
	DimensionEvents  = "events"
	DimensionLevel   = "level"
)

var (
	PointsThresholds = []int64{100, 500, 1000, 5000, 10000, 25000, 50000, 100000}
	LessonThresholds = []int64{1, 5, 10, 25, 50, 100}
	EventThresholds  = []int64{1, 3, 5, 10, 20}
)

// achievementBonus is what a system achievement pays out. Points badges pay a
// twentieth of their threshold and level badges pay nothing.
func achievementBonus(dimension string, n int64) int64 {
	switch dimension {
	case DimensionLessons:
		return n * 5
	case DimensionEvents:
		return n * 10
	case DimensionPoints:
		return n / 20
	default:
		return 0
	}
}

var (
	numberPrinter = message.NewPrinter(language.English)
	titleCaser    = cases.Title(language.English)
)

func AchievementID(dimension string, n int64) string {
	return fmt.Sprintf("%s_%d", dimension, n)
}

// thresholdRarity spreads a threshold table over the four rarities by
// position: the first quarter is COMMON and the last is LEGENDARY.
func thresholdRarity(table []int64, n int64) models.Rarity {
	idx := 0
	for i, t := range table {
		if t == n {
			idx = i
			break
		}
	}
	switch idx * 4 / len(table) {
	case 0:
		return models.RarityCommon
	case 1:
		return models.RarityRare
	case 2:
		return models.RarityEpic
	default:
		return models.RarityLegendary
	}
}

func levelRarity(level int) models.Rarity {
	switch {
	case level < 5:
		return models.RarityCommon
	case level < 10:
		return models.RarityRare
	case level < 25:
		return models.RarityEpic
	default:
		return models.RarityLegendary
	}
}

func plural(n int64, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}

// catalogEntry builds the catalog row for a system achievement.
func catalogEntry(dimension string, n int64) models.Achievement {
	count := numberPrinter.Sprintf("%d", n)

	var name, description string
	var rarity models.Rarity
	switch dimension {
	case DimensionPoints:
		name = titleCaser.String(fmt.Sprintf("%s points", count))
		description = fmt.Sprintf("Reach %s total points", count)
		rarity = thresholdRarity(PointsThresholds, n)
	case DimensionLessons:
		name = titleCaser.String(fmt.Sprintf("%s %s completed", count, plural(n, "lesson")))
		description = fmt.Sprintf("Complete %s %s", count, plural(n, "lesson"))
		rarity = thresholdRarity(LessonThresholds, n)
	case DimensionEvents:
		name = titleCaser.String(fmt.Sprintf("%s %s attended", count, plural(n, "event")))
		description = fmt.Sprintf("Participate in %s %s", count, plural(n, "event"))
		rarity = thresholdRarity(EventThresholds, n)
	case DimensionLevel:
		name = titleCaser.String(fmt.Sprintf("level %d", n))
		description = fmt.Sprintf("Reach level %d", n)
		rarity = levelRarity(int(n))
	default:
		name = titleCaser.String(fmt.Sprintf("%s %s", dimension, count))
		rarity = models.RarityCommon
	}

	return models.Achievement{
		ID:            AchievementID(dimension, n),
		Slug:          slug.Make(name),
		Name:          name,
		Description:   description,
		Category:      dimension,
		Rarity:        rarity,
		PointsAwarded: achievementBonus(dimension, n),
		Criteria: map[string]interface{}{
			"dimension": dimension,
			"threshold": n,
		},
	}
}

// reachedThresholds returns every threshold in table that value satisfies.
func reachedThresholds(table []int64, value int64) []int64 {
	var out []int64
	for _, t := range table {
		if value >= t {
			out = append(out, t)
		}
	}
	return out
}
