package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	pgstore "classquiz-service/internal/infra/postgres"
	redisinfra "classquiz-service/internal/infra/redis"
	"classquiz-service/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backingStore is what every quiz/participant backend provides.
type backingStore interface {
	memory.QuizLoader
	app.ParticipantRepository
	app.ParticipantWriter
}

// services is the wired application graph shared by start and groups.
type services struct {
	grouping    *app.GroupingService
	live        *app.LiveService
	roomIdleTTL time.Duration
	closers     []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices picks backends from config: Postgres, else SQLite, else the
// in-memory sample store; Redis, when set, backs the quiz cache and room
// recovery.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	out := &services{roomIdleTTL: config.TTLDuration(cfg.Live.RoomIdleTTL, 2*time.Hour)}

	var store backingStore
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		out.closers = append(out.closers, pool.Close)
		store = pgstore.NewStore(pool)
		slog.Info("using postgres store")
	case cfg.SQLite.Path != "":
		db, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, func() { db.Close() })
		if err := seedSQLite(ctx, db); err != nil {
			out.Close()
			return nil, err
		}
		store = db
		slog.Info("using sqlite store", "path", cfg.SQLite.Path)
	default:
		store = memory.NewStaticStore(sampleQuizzes())
		slog.Warn("no database configured, serving sample quizzes from memory")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		out.closers = append(out.closers, func() { redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	snapshotTTL := config.TTLDuration(cfg.Live.SnapshotTTL, 6*time.Hour)

	var (
		quizRepo  app.QuizRepository
		rooms     app.RoomRepository
		snapshots app.SnapshotStore
	)
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, store, quizTTL)
		rooms = redisinfra.NewRoomStore(redisClient, redisTTL)
		snapshots = redisinfra.NewSnapshotStore(redisClient, snapshotTTL)
	} else {
		quizRepo = memory.NewQuizRepository(store, quizTTL)
		rooms = memory.NewRoomStore()
		snapshots = memory.NewSnapshotStore()
	}

	limits := app.GroupingLimits{
		DefaultSize: cfg.Grouping.DefaultSize,
		MinSize:     cfg.Grouping.MinSize,
		MaxSize:     cfg.Grouping.MaxSize,
	}
	out.grouping = app.NewGroupingService(quizRepo, store, limits)
	out.live = app.NewLiveService(rooms, snapshots, quizRepo,
		app.WithParticipantWriter(store),
		app.WithCodeGenerator(app.NewCodeGenerator(cfg.Live.CodeLength)),
	)
	return out, nil
}

// seedSQLite loads the sample quizzes into an empty development database.
func seedSQLite(ctx context.Context, db *sqlite.Store) error {
	for id, quiz := range sampleQuizzes() {
		if _, err := db.LoadQuiz(ctx, id); err == nil {
			continue
		}
		if err := db.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed quiz %s: %w", id, err)
		}
	}
	return nil
}

// sampleQuizzes provides a minimal quiz for demos; swap in Postgres or SQLite for real data.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Latihan Campuran",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "2x + 3 = 11, x = ?", Options: []string{"3", "4", "5"}, CorrectAnswer: 1, Category: "aljabar", Subcategory: "persamaan linear"},
				{ID: "q2", Prompt: "Luas persegi dengan sisi 6?", Options: []string{"24", "36", "12"}, CorrectAnswer: 1, Category: "geometri", Subcategory: "luas"},
				{ID: "q3", Prompt: "3/4 + 1/8 = ?", Options: []string{"7/8", "4/12", "1"}, CorrectAnswer: 0, Category: "aritmatika", Subcategory: "pecahan"},
				{ID: "q4", Prompt: "Rata-rata dari 4, 6, 8?", Options: []string{"5", "6", "7"}, CorrectAnswer: 1, Category: "statistik"},
				{ID: "q5", Prompt: "sin 30° = ?", Options: []string{"1/2", "1", "0"}, CorrectAnswer: 0, Category: "trigonometri"},
			},
		},
	}
}
