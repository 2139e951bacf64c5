package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"classquiz-service/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "classquiz-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "nested", "quiz.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	quiz := domain.Quiz{
		ID:    "quiz-1",
		Title: "Bangun Datar",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "Luas persegi sisi 2?", Options: []string{"2", "4"}, CorrectAnswer: 1, Category: "geometri"},
		},
	}

	t.Run("missing quiz", func(t *testing.T) {
		if _, err := store.LoadQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected ErrQuizNotFound, got %v", err)
		}
	})

	t.Run("save and load quiz", func(t *testing.T) {
		if err := store.SaveQuiz(ctx, quiz); err != nil {
			t.Fatalf("save quiz: %v", err)
		}
		got, err := store.LoadQuiz(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("load quiz: %v", err)
		}
		if got.Title != quiz.Title || len(got.Questions) != 1 || got.Questions[0].Category != "geometri" {
			t.Fatalf("unexpected quiz %+v", got)
		}
	})

	t.Run("participants upsert and order", func(t *testing.T) {
		base := time.Date(2024, 11, 22, 8, 0, 0, 0, time.UTC)
		err := store.SaveParticipants(ctx, "quiz-1", []domain.Participant{
			{ID: "p2", Name: "Budi", Score: 0, Answers: map[string]int{"q1": 0}, CreatedAt: base.Add(time.Second)},
			{ID: "p1", Name: "Ani", Email: "ani@example.com", Score: 1, Answers: map[string]int{"q1": 1}, CreatedAt: base},
		})
		if err != nil {
			t.Fatalf("save participants: %v", err)
		}
		if err := store.SaveParticipants(ctx, "quiz-1", []domain.Participant{
			{ID: "p2", Name: "Budi", Score: 1, Answers: map[string]int{"q1": 1}, CreatedAt: base.Add(time.Second)},
		}); err != nil {
			t.Fatalf("upsert participant: %v", err)
		}

		got, err := store.ListParticipants(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("list participants: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 participants, got %d", len(got))
		}
		if got[0].ID != "p1" || got[1].ID != "p2" {
			t.Fatalf("expected join order p1, p2; got %s, %s", got[0].ID, got[1].ID)
		}
		if !got[0].CreatedAt.Equal(base) {
			t.Fatalf("created_at not preserved: %s", got[0].CreatedAt)
		}
		if got[1].Score != 1 || got[1].Answers["q1"] != 1 {
			t.Fatalf("expected upserted p2, got %+v", got[1])
		}
		if got[0].QuizID != "quiz-1" || got[0].Email != "ani@example.com" {
			t.Fatalf("unexpected p1 %+v", got[0])
		}
	})

	t.Run("participants for unknown quiz are rejected", func(t *testing.T) {
		err := store.SaveParticipants(ctx, "missing", []domain.Participant{{ID: "x", Name: "X", CreatedAt: time.Now()}})
		if err == nil {
			t.Fatalf("expected foreign key violation")
		}
	})

	t.Run("empty quiz lists nothing", func(t *testing.T) {
		got, err := store.ListParticipants(ctx, "missing")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no participants, got %d", len(got))
		}
	})
}
