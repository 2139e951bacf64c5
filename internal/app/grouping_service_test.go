package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
)

func gradedQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Options: []string{"a", "b"}, CorrectAnswer: 0, Category: "aljabar"},
			{ID: "q2", Options: []string{"a", "b"}, CorrectAnswer: 1, Category: "aljabar"},
			{ID: "q3", Options: []string{"a", "b"}, CorrectAnswer: 0, Category: "Geometri"},
			{ID: "q4", Options: []string{"a", "b"}, CorrectAnswer: 1},
		},
	}
}

func seededStore(t *testing.T, scores ...int) *memory.StaticStore {
	t.Helper()
	store := memory.NewStaticStore(map[string]domain.Quiz{"quiz-1": gradedQuiz()})
	base := time.Date(2024, 11, 22, 8, 0, 0, 0, time.UTC)
	participants := make([]domain.Participant, len(scores))
	for i, s := range scores {
		participants[i] = domain.Participant{
			ID:        fmt.Sprintf("p%d", i+1),
			Name:      fmt.Sprintf("Student %d", i+1),
			Score:     s,
			Answers:   map[string]int{"q1": i % 2},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	if err := store.SaveParticipants(context.Background(), "quiz-1", participants); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func memberIDs(g app.GroupView) []string {
	out := make([]string, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.ID
	}
	return out
}

func TestGroupsOverall(t *testing.T) {
	store := seededStore(t, 95, 88, 76, 65, 60, 55, 40, 35, 20, 10)
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits())

	res, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{})
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if res.Error != "" || res.Warning != "" {
		t.Fatalf("unexpected messages %q %q", res.Error, res.Warning)
	}
	if res.GroupSize != 4 || res.Category != domain.CategoryOverall {
		t.Fatalf("expected defaults size 4 overall, got %d %s", res.GroupSize, res.Category)
	}
	want := [][]string{
		{"p1", "p4", "p7", "p10"},
		{"p2", "p5", "p8"},
		{"p3", "p6", "p9"},
	}
	if len(res.Groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(res.Groups))
	}
	for i, g := range res.Groups {
		if got := memberIDs(g); !reflect.DeepEqual(got, want[i]) {
			t.Fatalf("group %d: got %v, want %v", i+1, got, want[i])
		}
	}
	if res.Groups[0].Size != 4 || res.Groups[0].AverageScore != 52.5 {
		t.Fatalf("unexpected summary %+v", res.Groups[0].Summary)
	}
}

func TestGroupsClampsSize(t *testing.T) {
	store := seededStore(t, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0)
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits())

	cases := []struct {
		requested int
		size      int
		groups    int
	}{
		{requested: 1, size: 2, groups: 5},
		{requested: -3, size: 2, groups: 5},
		{requested: 3, size: 3, groups: 4},
		{requested: 50, size: 8, groups: 2},
	}
	for _, tc := range cases {
		res, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{GroupSize: tc.requested})
		if err != nil {
			t.Fatalf("size %d: %v", tc.requested, err)
		}
		if res.GroupSize != tc.size || len(res.Groups) != tc.groups {
			t.Fatalf("size %d: got size %d with %d groups, want %d with %d",
				tc.requested, res.GroupSize, len(res.Groups), tc.size, tc.groups)
		}
	}
}

func TestGroupsWithoutSubmissions(t *testing.T) {
	store := memory.NewStaticStore(map[string]domain.Quiz{"quiz-1": gradedQuiz()})
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits())

	res, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{GroupSize: 4})
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if res.Error != app.MsgNoSubmissions {
		t.Fatalf("expected no-submissions message, got %q", res.Error)
	}
	if res.Groups == nil || len(res.Groups) != 0 {
		t.Fatalf("expected empty non-nil groups, got %v", res.Groups)
	}
}

func TestGroupsUnknownQuiz(t *testing.T) {
	store := memory.NewStaticStore(nil)
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits())

	res, err := svc.Groups(context.Background(), "missing", app.GroupRequest{})
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if res.Error != app.MsgQuizNotFound {
		t.Fatalf("expected quiz-not-found message, got %q", res.Error)
	}
}

func TestGroupsByCategory(t *testing.T) {
	store := seededStore(t, 10, 10, 10, 10)
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits())

	res, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{GroupSize: 2, Category: " Aljabar "})
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if res.Category != domain.CategoryAljabar || res.Warning != "" {
		t.Fatalf("unexpected category %s warning %q", res.Category, res.Warning)
	}
	// odd participants answered q1 correctly (index 0): p1 and p3 rank first
	want := [][]string{{"p1", "p2"}, {"p3", "p4"}}
	for i, g := range res.Groups {
		if got := memberIDs(g); !reflect.DeepEqual(got, want[i]) {
			t.Fatalf("group %d: got %v, want %v", i+1, got, want[i])
		}
		if g.AverageRatio == nil || *g.AverageRatio != 0.25 {
			t.Fatalf("group %d: expected average ratio 0.25, got %v", i+1, g.AverageRatio)
		}
	}
}

func TestGroupsCategoryWithoutDataWarns(t *testing.T) {
	store := seededStore(t, 30, 20, 10)
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits())

	res, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{GroupSize: 2, Category: "kalkulus"})
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if res.Warning == "" {
		t.Fatalf("expected a warning for a category without questions")
	}
	total := 0
	for _, g := range res.Groups {
		total += len(g.Members)
	}
	if total != 3 || len(res.Groups) != 2 {
		t.Fatalf("expected full partition into 2 groups, got %d members in %d groups", total, len(res.Groups))
	}
}

func TestGroupsForceRegenerateOnlyReordersTies(t *testing.T) {
	store := seededStore(t, 5, 5, 5, 5, 5, 5, 1, 1)
	seed := int64(1)
	svc := app.NewGroupingServiceWithRand(memory.NewQuizRepository(store, time.Minute), store, app.DefaultGroupingLimits(), func() *rand.Rand {
		seed++
		return rand.New(rand.NewSource(seed))
	})

	changed := false
	for i := 0; i < 10; i++ {
		res, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{GroupSize: 4, ForceRegenerate: true})
		if err != nil {
			t.Fatalf("groups: %v", err)
		}
		for _, g := range res.Groups {
			if len(g.Members) != 4 {
				t.Fatalf("expected balanced groups, got %d", len(g.Members))
			}
			// each group gets exactly one low scorer
			low := 0
			for _, m := range g.Members {
				if m.Score == 1 {
					low++
				}
			}
			if low != 1 {
				t.Fatalf("expected one low scorer per group, got %d", low)
			}
		}
		if !reflect.DeepEqual(memberIDs(res.Groups[0]), []string{"p1", "p3", "p5", "p7"}) {
			changed = true
		}
	}
	if !changed {
		t.Fatalf("expected regeneration to reorder tied students at least once")
	}
}

func TestGroupsStorageError(t *testing.T) {
	store := memory.NewStaticStore(map[string]domain.Quiz{"quiz-1": gradedQuiz()})
	boom := errors.New("connection refused")
	svc := app.NewGroupingService(memory.NewQuizRepository(store, time.Minute), failingParticipants{err: boom}, app.DefaultGroupingLimits())

	_, err := svc.Groups(context.Background(), "quiz-1", app.GroupRequest{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "list participants of quiz-1") {
		t.Fatalf("error should name the participant lookup, got %q", err)
	}
}

type failingParticipants struct{ err error }

func (f failingParticipants) ListParticipants(context.Context, string) ([]domain.Participant, error) {
	return nil, f.err
}
