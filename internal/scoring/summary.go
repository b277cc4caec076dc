// internal/scoring/summary.go
package scoring

import (
	"github.com/shrimpsizemoose/milestones/internal/models"
)

// SkillNormalizer divides raw skill totals. It is a fixed constant, not the
// number of contributing categories.
const SkillNormalizer = 3.0

type RatingCount struct {
	Rating models.Rating `json:"name"`
	Count  int           `json:"value"`
}

type SkillScore struct {
	Skill           models.Skill `json:"skill"`
	Score           float64      `json:"score"`
	RecentlyChanged bool         `json:"recentChange"`
}

type Summary struct {
	Distribution []RatingCount `json:"distribution"`
	Profile      []SkillScore  `json:"profile"`
}

// CategoryDistribution counts rated categories per rating level. Unrated
// categories are not counted anywhere; zero counts are kept for charting.
func CategoryDistribution(ratings models.Ratings) []RatingCount {
	counts := make(map[models.Rating]int, len(models.RatingLevels))
	for _, rec := range ratings {
		if rec.Value == models.RatingUnset {
			continue
		}
		counts[rec.Value]++
	}

	out := make([]RatingCount, 0, len(models.RatingLevels))
	for _, level := range models.RatingLevels {
		out = append(out, RatingCount{Rating: level, Count: counts[level]})
	}
	return out
}

// SkillProfile folds category ratings into the five skills. Every category
// adds its rating weight to each skill it maps to; totals are divided by
// SkillNormalizer. A skill is flagged RecentlyChanged when any category
// mapped to it is in changed.
func SkillProfile(ratings models.Ratings, changed models.CategorySet) []SkillScore {
	totals := make(map[models.Skill]int, len(models.Skills))
	for category, rec := range ratings {
		weight := rec.Value.Weight()
		for _, skill := range category.Skills() {
			totals[skill] += weight
		}
	}

	recent := make(map[models.Skill]bool, len(models.Skills))
	for category, ok := range changed {
		if !ok {
			continue
		}
		for _, skill := range category.Skills() {
			recent[skill] = true
		}
	}

	out := make([]SkillScore, 0, len(models.Skills))
	for _, skill := range models.Skills {
		out = append(out, SkillScore{
			Skill:           skill,
			Score:           float64(totals[skill]) / SkillNormalizer,
			RecentlyChanged: recent[skill],
		})
	}
	return out
}

func Summarize(ratings models.Ratings, changed models.CategorySet) Summary {
	return Summary{
		Distribution: CategoryDistribution(ratings),
		Profile:      SkillProfile(ratings, changed),
	}
}
