package grouping

import (
	"errors"
	"math/rand"
	"sort"

	"classquiz-service/internal/domain"
	"github.com/samber/lo"
)

// ErrInvalidGroupSize signals a target size that cannot produce any group.
var ErrInvalidGroupSize = errors.New("group size must be at least 1")

// Member is a participant paired with its profile.
type Member struct {
	Participant domain.Participant
	Profile     Profile
}

// NewMembers profiles every participant against the quiz questions.
func NewMembers(participants []domain.Participant, questions []domain.Question) []Member {
	return lo.Map(participants, func(p domain.Participant, _ int) Member {
		return Member{Participant: p, Profile: BuildProfile(p, questions)}
	})
}

// Group is one output bucket. Number starts at 1.
type Group struct {
	Number  int
	Members []Member
}

// Option tweaks a grouping run.
type Option func(*options)

type options struct {
	rng *rand.Rand
}

// WithShuffle shuffles members before ranking so that ties fall in a random
// order. Rankings are unchanged. A nil rng disables shuffling.
func WithShuffle(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// GroupByOverall ranks members by raw score.
func GroupByOverall(members []Member, targetSize int, opts ...Option) ([]Group, error) {
	return partition(members, targetSize, overallRank, opts)
}

// GroupByCategory ranks members by their correct ratio in category. Members
// with no questions in the category share the bottom rank.
func GroupByCategory(members []Member, targetSize int, category domain.Category, opts ...Option) ([]Group, error) {
	return partition(members, targetSize, categoryRank(category), opts)
}

// GroupCount returns ceil(n/targetSize).
func GroupCount(n, targetSize int) int {
	if n <= 0 || targetSize < 1 {
		return 0
	}
	return (n + targetSize - 1) / targetSize
}

type rankFunc func(Member) (value float64, hasData bool)

func overallRank(m Member) (float64, bool) {
	return float64(m.Participant.Score), true
}

func categoryRank(category domain.Category) rankFunc {
	return func(m Member) (float64, bool) {
		return m.Profile.Category(category).Ratio()
	}
}

type ranked struct {
	member  Member
	pos     int
	value   float64
	hasData bool
}

func partition(members []Member, targetSize int, rank rankFunc, opts []Option) ([]Group, error) {
	if targetSize < 1 {
		return nil, ErrInvalidGroupSize
	}
	if len(members) == 0 {
		return nil, nil
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	// Work on a copy; the caller's slice order is left alone.
	ranks := make([]ranked, len(members))
	for i, m := range members {
		value, hasData := rank(m)
		ranks[i] = ranked{member: m, pos: i, value: value, hasData: hasData}
	}

	shuffled := o.rng != nil
	if shuffled {
		o.rng.Shuffle(len(ranks), func(i, j int) {
			ranks[i], ranks[j] = ranks[j], ranks[i]
		})
		for i := range ranks {
			ranks[i].pos = i
		}
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		return rankedBefore(ranks[i], ranks[j], shuffled)
	})

	numGroups := GroupCount(len(ranks), targetSize)
	groups := make([]Group, numGroups)
	for i := range groups {
		groups[i] = Group{Number: i + 1, Members: make([]Member, 0, targetSize)}
	}
	for i, r := range ranks {
		g := &groups[i%numGroups]
		g.Members = append(g.Members, r.member)
	}
	return groups, nil
}

// rankedBefore orders by value descending with no-data members last. Ties go
// to the earlier joiner, then the earlier input position; after a shuffle only
// the shuffled position breaks ties.
func rankedBefore(a, b ranked, shuffled bool) bool {
	if a.hasData != b.hasData {
		return a.hasData
	}
	if a.hasData && a.value != b.value {
		return a.value > b.value
	}
	if !shuffled {
		at, bt := a.member.Participant.CreatedAt, b.member.Participant.CreatedAt
		if !at.Equal(bt) {
			return at.Before(bt)
		}
	}
	return a.pos < b.pos
}
