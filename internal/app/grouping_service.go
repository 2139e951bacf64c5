package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"classquiz-service/internal/domain"
	"classquiz-service/internal/grouping"
	"classquiz-service/internal/metrics"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ParticipantRepository lists the submissions of a quiz. Results are never
// cached: every grouping request sees the latest submissions.
type ParticipantRepository interface {
	ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error)
}

// Messages returned in the error field of a grouping result.
const (
	MsgNoSubmissions  = "No students have completed this assessment yet"
	MsgQuizNotFound   = "Quiz not found"
	MsgGroupingFailed = "Failed to generate groups"
)

// GroupingLimits bounds the requested group size.
type GroupingLimits struct {
	DefaultSize int
	MinSize     int
	MaxSize     int
}

// DefaultGroupingLimits returns size 4 clamped to [2, 8].
func DefaultGroupingLimits() GroupingLimits {
	return GroupingLimits{DefaultSize: 4, MinSize: 2, MaxSize: 8}
}

// Clamp resolves a requested size; zero means the default.
func (l GroupingLimits) Clamp(size int) int {
	if size == 0 {
		size = l.DefaultSize
	}
	return lo.Clamp(size, l.MinSize, l.MaxSize)
}

// GroupRequest is a grouping request for one quiz.
type GroupRequest struct {
	GroupSize       int
	Category        string
	ForceRegenerate bool
}

// MemberView is a grouped participant as returned to callers.
type MemberView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Score     int              `json:"score"`
	CreatedAt time.Time        `json:"createdAt"`
	Profile   grouping.Profile `json:"profile"`
}

// GroupView is one group plus its ability summary.
type GroupView struct {
	grouping.Summary
	Members []MemberView `json:"members"`
}

// GroupResult mirrors the HTTP body: callers check Error, not the status.
type GroupResult struct {
	Groups    []GroupView     `json:"groups"`
	Error     string          `json:"error,omitempty"`
	Warning   string          `json:"warning,omitempty"`
	GroupSize int             `json:"groupSize"`
	Category  domain.Category `json:"category"`
}

// GroupingService loads quiz submissions and partitions them into groups.
type GroupingService struct {
	quizzes      QuizRepository
	participants ParticipantRepository
	limits       GroupingLimits
	newRand      func() *rand.Rand
	logger       *slog.Logger
}

func NewGroupingService(quizzes QuizRepository, participants ParticipantRepository, limits GroupingLimits) *GroupingService {
	return &GroupingService{
		quizzes:      quizzes,
		participants: participants,
		limits:       limits,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		logger: slog.Default().With("component", "grouping"),
	}
}

// NewGroupingServiceWithRand is test-only for reproducible regeneration.
func NewGroupingServiceWithRand(quizzes QuizRepository, participants ParticipantRepository, limits GroupingLimits, newRand func() *rand.Rand) *GroupingService {
	s := NewGroupingService(quizzes, participants, limits)
	s.newRand = newRand
	return s
}

// ParseCategory maps a request value to a category; empty means overall.
func ParseCategory(raw string) domain.Category {
	c := domain.Category(strings.ToLower(strings.TrimSpace(raw)))
	if c == "" {
		return domain.CategoryOverall
	}
	return c
}

// Groups builds mixed-ability groups for a quiz. Missing data is reported in
// the result's Error field; the returned error is reserved for storage and
// programmer failures.
func (s *GroupingService) Groups(ctx context.Context, quizID string, req GroupRequest) (GroupResult, error) {
	start := time.Now()
	category := ParseCategory(req.Category)
	size := s.limits.Clamp(req.GroupSize)
	result := GroupResult{Groups: []GroupView{}, GroupSize: size, Category: category}
	mode := "category"
	if category == domain.CategoryOverall {
		mode = "overall"
	}

	var (
		quiz         domain.Quiz
		participants []domain.Participant
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		quiz, err = s.quizzes.GetQuiz(gctx, quizID)
		if err != nil {
			return fmt.Errorf("load quiz %s: %w", quizID, err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		participants, err = s.participants.ListParticipants(gctx, quizID)
		if err != nil {
			return fmt.Errorf("list participants of %s: %w", quizID, err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			metrics.GroupingRequests.WithLabelValues(mode, "quiz_not_found").Inc()
			result.Error = MsgQuizNotFound
			return result, nil
		}
		metrics.GroupingRequests.WithLabelValues(mode, "error").Inc()
		return result, err
	}

	if len(participants) == 0 {
		metrics.GroupingRequests.WithLabelValues(mode, "empty").Inc()
		result.Error = MsgNoSubmissions
		return result, nil
	}

	members := grouping.NewMembers(participants, quiz.Questions)
	var opts []grouping.Option
	if req.ForceRegenerate {
		opts = append(opts, grouping.WithShuffle(s.newRand()))
	}

	var (
		groups []grouping.Group
		err    error
	)
	if category == domain.CategoryOverall {
		groups, err = grouping.GroupByOverall(members, size, opts...)
	} else {
		groups, err = grouping.GroupByCategory(members, size, category, opts...)
		if !lo.SomeBy(members, func(m grouping.Member) bool { return m.Profile.Category(category).Total > 0 }) {
			result.Warning = fmt.Sprintf("No questions in category %q; students were grouped without category data", category)
		}
	}
	if err != nil {
		metrics.GroupingRequests.WithLabelValues(mode, "error").Inc()
		return result, fmt.Errorf("group quiz %s: %w", quizID, err)
	}

	summaries := grouping.Summarize(groups, category)
	result.Groups = lo.Map(groups, func(g grouping.Group, i int) GroupView {
		return GroupView{
			Summary: summaries[i],
			Members: lo.Map(g.Members, func(m grouping.Member, _ int) MemberView {
				return MemberView{
					ID:        m.Participant.ID,
					Name:      m.Participant.Name,
					Score:     m.Participant.Score,
					CreatedAt: m.Participant.CreatedAt,
					Profile:   m.Profile,
				}
			}),
		}
	})

	metrics.GroupingRequests.WithLabelValues(mode, "ok").Inc()
	metrics.GroupingDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("groups generated",
		"quiz", quizID,
		"category", category,
		"size", size,
		"participants", len(participants),
		"groups", len(groups),
		"regenerated", req.ForceRegenerate,
	)
	return result, nil
}
