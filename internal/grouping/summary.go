package grouping

import (
	"classquiz-service/internal/domain"
	"github.com/samber/lo"
)

// Summary describes the ability mix of one group.
type Summary struct {
	Number       int      `json:"number"`
	Size         int      `json:"size"`
	AverageScore float64  `json:"averageScore"`
	AverageRatio *float64 `json:"averageRatio,omitempty"`
}

// Summarize reports the average score per group, and when category is not
// overall, the average correct ratio among members that have data.
func Summarize(groups []Group, category domain.Category) []Summary {
	return lo.Map(groups, func(g Group, _ int) Summary {
		s := Summary{Number: g.Number, Size: len(g.Members)}
		if len(g.Members) == 0 {
			return s
		}
		total := lo.SumBy(g.Members, func(m Member) int { return m.Participant.Score })
		s.AverageScore = float64(total) / float64(len(g.Members))

		if category == domain.CategoryOverall {
			return s
		}
		ratios := lo.FilterMap(g.Members, func(m Member, _ int) (float64, bool) {
			return m.Profile.Category(category).Ratio()
		})
		if len(ratios) > 0 {
			avg := lo.Sum(ratios) / float64(len(ratios))
			s.AverageRatio = &avg
		}
		return s
	})
}
