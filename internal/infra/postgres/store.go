package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store reads quiz JSONB and participant submissions from Postgres and
// persists live results.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

// SaveQuiz upserts quiz content. Used by seeding and tooling.
func (s *Store) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		quiz.ID, raw)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// ListParticipants returns a quiz's submissions oldest first.
func (s *Store) ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, name, email, score, answers, created_at
		 FROM quiz_participants WHERE quiz_id=$1
		 ORDER BY created_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var (
			p   domain.Participant
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.QuizID, &p.Name, &p.Email, &p.Score, &raw, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p.Answers); err != nil {
				return nil, fmt.Errorf("unmarshal answers for %s: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveParticipants upserts submissions in one transaction. The quiz a
// participant belongs to is never changed by an upsert.
func (s *Store) SaveParticipants(ctx context.Context, quizID string, participants []domain.Participant) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range participants {
		answers := p.Answers
		if answers == nil {
			answers = map[string]int{}
		}
		raw, err := json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("marshal answers for %s: %w", p.ID, err)
		}
		batch.Queue(
			`INSERT INTO quiz_participants (id, quiz_id, name, email, score, answers, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
			   name = EXCLUDED.name,
			   email = EXCLUDED.email,
			   score = EXCLUDED.score,
			   answers = EXCLUDED.answers`,
			p.ID, quizID, p.Name, p.Email, p.Score, raw, p.CreatedAt)
	}
	results := tx.SendBatch(ctx, batch)
	for range participants {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("save participants: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("save participants: %w", err)
	}
	return tx.Commit(ctx)
}
