// Package sqlite provides a single-file store for quizzes and submissions,
// used for local development and demos when Postgres is not configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"classquiz-service/internal/domain"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const schema = `
CREATE TABLE IF NOT EXISTS quizzes (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_participants (
    id TEXT PRIMARY KEY,
    quiz_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    score INTEGER NOT NULL DEFAULT 0,
    answers TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_quiz_participants_quiz ON quiz_participants(quiz_id, created_at);
`

// Store implements the quiz loader and participant repositories on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	// foreign_keys is per connection, so it goes in the DSN
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM quizzes WHERE id = ?", quizID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

// SaveQuiz inserts or replaces quiz content.
func (s *Store) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO quizzes (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data",
		quiz.ID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// ListParticipants returns a quiz's submissions oldest first.
func (s *Store) ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, name, email, score, answers, created_at
		 FROM quiz_participants WHERE quiz_id = ? ORDER BY created_at, id`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var (
			p       domain.Participant
			answers string
			created int64
		)
		if err := rows.Scan(&p.ID, &p.QuizID, &p.Name, &p.Email, &p.Score, &answers, &created); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if err := json.Unmarshal([]byte(answers), &p.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers for %s: %w", p.ID, err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveParticipants upserts submissions in one transaction.
func (s *Store) SaveParticipants(ctx context.Context, quizID string, participants []domain.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range participants {
		answers := p.Answers
		if answers == nil {
			answers = map[string]int{}
		}
		raw, err := json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("marshal answers for %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quiz_participants (id, quiz_id, name, email, score, answers, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   email = excluded.email,
			   score = excluded.score,
			   answers = excluded.answers`,
			p.ID, quizID, p.Name, p.Email, p.Score, string(raw), p.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert participant %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
