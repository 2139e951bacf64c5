// Package grouping builds per-participant performance profiles and partitions
// participants into mixed-ability groups.
package grouping

import "classquiz-service/internal/domain"

// Tally counts correct answers out of the questions seen.
type Tally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Ratio returns Correct/Total. ok is false when there were no questions.
func (t Tally) Ratio() (ratio float64, ok bool) {
	if t.Total == 0 {
		return 0, false
	}
	return float64(t.Correct) / float64(t.Total), true
}

// CategoryTally is a category tally with its subcategory breakdown.
type CategoryTally struct {
	Tally
	Subcategories map[string]Tally `json:"subcategories"`
}

// Profile is the per-category correctness of one participant. It is derived on
// demand and never persisted.
type Profile struct {
	Categories map[domain.Category]*CategoryTally `json:"categories"`
}

// BuildProfile joins the participant's answers against every question in the
// quiz. Unanswered questions count toward totals only.
func BuildProfile(participant domain.Participant, questions []domain.Question) Profile {
	profile := Profile{Categories: make(map[domain.Category]*CategoryTally)}
	for _, q := range questions {
		category := q.ResolvedCategory()
		sub := q.ResolvedSubcategory()

		ct, ok := profile.Categories[category]
		if !ok {
			ct = &CategoryTally{Subcategories: make(map[string]Tally)}
			profile.Categories[category] = ct
		}
		st := ct.Subcategories[sub]

		ct.Total++
		st.Total++
		if answer, answered := participant.Answer(q.ID); answered && answer == q.CorrectAnswer {
			ct.Correct++
			st.Correct++
		}
		ct.Subcategories[sub] = st
	}
	return profile
}

// Category returns the tally for a category; zero when the quiz has none.
func (p Profile) Category(c domain.Category) Tally {
	if ct, ok := p.Categories[c]; ok {
		return ct.Tally
	}
	return Tally{}
}

// Overall sums every category.
func (p Profile) Overall() Tally {
	var t Tally
	for _, ct := range p.Categories {
		t.Correct += ct.Correct
		t.Total += ct.Total
	}
	return t
}
